package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"letterflow/internal/artifacts"
	"letterflow/internal/export"
	"letterflow/internal/gitrepo"
	"letterflow/internal/lifecycle"
	"letterflow/internal/rbac"
	"letterflow/internal/search"
	"letterflow/internal/store"
	"letterflow/internal/util"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// LetterView is a letter plus the flags the caller's role derives from it.
type LetterView struct {
	lifecycle.Letter
	Flags lifecycle.Flags `json:"flags"`
}

type LetterPage struct {
	Letters  []LetterView `json:"letters"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"pageSize"`
}

type ListLettersInput struct {
	Statuses       []string
	DecisionTypeID string
	Text           string
	Mine           bool
	Archived       bool
	Sort           string
	Page           int
	PageSize       int
}

type CreateLetterInput struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	Rationale      string `json:"rationale"`
	DecisionTypeID string `json:"decisionTypeId"`
}

type UpdateLetterInput struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Rationale   *string `json:"rationale"`
	ArtifactRef *string `json:"artifactRef"`
}

type StatusInput struct {
	Status    string `json:"status"`
	Signature string `json:"signature"`
	Reason    string `json:"reason"`
}

type ArtifactPayload struct {
	ArtifactURL string `json:"artifactUrl"`
	Filename    string `json:"filename"`
}

func (s *Service) view(current Session, letter store.Letter) LetterView {
	l := letter.Lifecycle()
	return LetterView{Letter: l, Flags: lifecycle.DeriveFlags(current.Role, l)}
}

// canView: admins and the president see everything, authors see their own
// letters, supervisors see the decision types they supervise, and everyone
// sees the archive of terminal letters.
func canView(current Session, letter store.Letter) bool {
	switch {
	case current.Role == lifecycle.RoleAdmin || current.Role == lifecycle.RolePresident:
		return true
	case letter.AuthorID == current.UserID:
		return true
	case current.Role == lifecycle.RoleSupervisor && letter.SupervisorID == current.UserID:
		return true
	default:
		return lifecycle.Status(letter.Status).Terminal()
	}
}

func forbidden() *DomainError {
	return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
}

func validationError(field, message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, map[string]any{"field": field})
}

func (s *Service) loadVisible(ctx context.Context, current Session, letterID string) (store.Letter, error) {
	letter, err := s.store.GetLetter(ctx, letterID)
	if err != nil {
		return store.Letter{}, err
	}
	if !canView(current, letter) {
		return store.Letter{}, forbidden()
	}
	return letter, nil
}

// ListLetters serves the role queues, the personal archive (Mine) and the
// global archive (Archived).
func (s *Service) ListLetters(ctx context.Context, current Session, input ListLettersInput) (LetterPage, error) {
	if !s.Can(current.Role, rbac.ActionRead) {
		return LetterPage{}, forbidden()
	}
	for _, raw := range input.Statuses {
		if _, err := lifecycle.ParseStatus(raw); err != nil {
			return LetterPage{}, validationError("status", err.Error())
		}
	}
	page := input.Page
	if page < 1 {
		page = 1
	}
	pageSize := input.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	filter := store.LetterFilter{
		Statuses:       input.Statuses,
		DecisionTypeID: input.DecisionTypeID,
		Text:           input.Text,
		Sort:           input.Sort,
		Limit:          pageSize,
		Offset:         (page - 1) * pageSize,
	}
	switch {
	case input.Archived:
		if len(filter.Statuses) == 0 {
			filter.Statuses = []string{string(lifecycle.StatusApproved), string(lifecycle.StatusRejected)}
		}
		for _, raw := range filter.Statuses {
			if !lifecycle.Status(raw).Terminal() {
				return LetterPage{}, validationError("status", "the archive only holds approved or rejected letters")
			}
		}
		if input.Mine {
			filter.AuthorID = current.UserID
		}
	case input.Mine:
		filter.AuthorID = current.UserID
	default:
		applyQueue(current, &filter)
	}
	if _, ok := sortOptions[filter.Sort]; !ok {
		return LetterPage{}, validationError("sort", fmt.Sprintf("unknown sort %q", filter.Sort))
	}

	items, total, err := s.store.ListLetters(ctx, filter)
	if err != nil {
		return LetterPage{}, err
	}
	views := make([]LetterView, 0, len(items))
	for _, item := range items {
		views = append(views, s.view(current, item))
	}
	return LetterPage{Letters: views, Total: total, Page: page, PageSize: pageSize}, nil
}

var sortOptions = map[string]struct{}{"": {}, "newest": {}, "oldest": {}, "updated": {}, "title": {}}

// applyQueue narrows an unscoped listing to the caller's work queue.
func applyQueue(current Session, filter *store.LetterFilter) {
	switch current.Role {
	case lifecycle.RoleSupervisor:
		filter.SupervisorID = current.UserID
		if len(filter.Statuses) == 0 {
			filter.Statuses = []string{string(lifecycle.StatusInProgress)}
		}
	case lifecycle.RolePresident:
		if len(filter.Statuses) == 0 {
			filter.Statuses = []string{string(lifecycle.StatusPending)}
		}
	case lifecycle.RolePreparer:
		filter.AuthorID = current.UserID
	}
}

func (s *Service) CreateLetter(ctx context.Context, current Session, input CreateLetterInput) (LetterView, error) {
	if !s.Can(current.Role, rbac.ActionDeclare) {
		return LetterView{}, forbidden()
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return LetterView{}, validationError("title", "title is required")
	}
	if strings.TrimSpace(input.DecisionTypeID) == "" {
		return LetterView{}, validationError("decisionTypeId", "decisionTypeId is required")
	}
	if _, err := s.store.GetDecisionType(ctx, input.DecisionTypeID); err != nil {
		if isNotFound(err) {
			return LetterView{}, validationError("decisionTypeId", "unknown decision type")
		}
		return LetterView{}, err
	}

	item := store.Letter{
		ID:             util.NewID("ltr"),
		Title:          title,
		Description:    input.Description,
		Rationale:      strings.TrimSpace(input.Rationale),
		DecisionTypeID: input.DecisionTypeID,
		Status:         string(lifecycle.StatusInProgress),
		AuthorID:       current.UserID,
	}
	if err := s.store.InsertLetter(ctx, item); err != nil {
		return LetterView{}, err
	}
	if err := s.git.EnsureLetterRepo(item.ID, contentOf(item), current.UserName); err != nil {
		s.logger.Warn("create letter repo", zap.String("letter_id", item.ID), zap.Error(err))
	}

	created, err := s.store.GetLetter(ctx, item.ID)
	if err != nil {
		return LetterView{}, err
	}
	s.index(created)
	s.logger.Info("letter declared", zap.String("letter_id", created.ID), zap.String("author_id", current.UserID))
	return s.view(current, created), nil
}

func (s *Service) GetLetter(ctx context.Context, current Session, letterID string) (LetterView, error) {
	if !s.Can(current.Role, rbac.ActionRead) {
		return LetterView{}, forbidden()
	}
	letter, err := s.loadVisible(ctx, current, letterID)
	if err != nil {
		return LetterView{}, err
	}
	return s.view(current, letter), nil
}

// UpdateLetter merges content fields and/or links an artifact. Content edits
// follow the editability policy; an artifact can only be linked to an
// approved letter.
func (s *Service) UpdateLetter(ctx context.Context, current Session, letterID string, input UpdateLetterInput) (LetterView, error) {
	patch := lifecycle.ContentPatch{Title: input.Title, Description: input.Description, Rationale: input.Rationale}
	if patch.Empty() && input.ArtifactRef == nil {
		return LetterView{}, validationError("body", "nothing to update")
	}
	letter, err := s.loadVisible(ctx, current, letterID)
	if err != nil {
		return LetterView{}, err
	}

	if !patch.Empty() {
		status := lifecycle.Status(letter.Status)
		if !s.Can(current.Role, rbac.ActionEdit) || !lifecycle.CanEdit(current.Role, status) {
			return LetterView{}, fmt.Errorf("%s cannot edit a letter in %s: %w", current.Role, status, lifecycle.ErrNotEditable)
		}
		if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
			return LetterView{}, validationError("title", "title cannot be empty")
		}
		merged := lifecycle.MergeContent(letter.Lifecycle(), patch)
		if err := s.store.UpdateLetterContent(ctx, letter.ID, letter.Status, merged.Title, merged.Description, merged.Rationale); err != nil {
			return LetterView{}, err
		}
		letter.Title, letter.Description, letter.Rationale = merged.Title, merged.Description, merged.Rationale
		s.commitRevision(letter, current.UserName, "Edit letter content")
	}

	if input.ArtifactRef != nil {
		if !s.Can(current.Role, rbac.ActionRender) {
			return LetterView{}, forbidden()
		}
		if lifecycle.Status(letter.Status) != lifecycle.StatusApproved {
			return LetterView{}, domainError(http.StatusConflict, "NOT_APPROVED", "Artifacts can only be linked to approved letters", nil)
		}
		name := lifecycle.ArtifactFilename(*input.ArtifactRef)
		if !artifacts.ValidName(name) {
			return LetterView{}, validationError("artifactRef", "invalid artifact reference")
		}
		if err := s.store.SetArtifactRef(ctx, letter.ID, name); err != nil {
			return LetterView{}, err
		}
	}

	updated, err := s.store.GetLetter(ctx, letter.ID)
	if err != nil {
		return LetterView{}, err
	}
	s.index(updated)
	return s.view(current, updated), nil
}

// UpdateStatus applies a supervisor or president review. reviewer is the
// role the route is reserved for.
func (s *Service) UpdateStatus(ctx context.Context, current Session, letterID string, reviewer lifecycle.Role, input StatusInput) (LetterView, error) {
	if current.Role != reviewer || !s.Can(current.Role, rbac.ActionReview) {
		return LetterView{}, forbidden()
	}
	requested, err := lifecycle.ParseStatus(input.Status)
	if err != nil {
		return LetterView{}, validationError("status", err.Error())
	}

	var action lifecycle.Action
	switch {
	case requested == lifecycle.StatusRejected:
		action = lifecycle.Reject(input.Reason)
	case strings.TrimSpace(input.Signature) != "":
		option, err := lifecycle.ParseSignatureOption(input.Signature)
		if err != nil {
			return LetterView{}, validationError("signature", err.Error())
		}
		action = lifecycle.ApproveWithSignature(option)
	default:
		action = lifecycle.Approve()
	}

	letter, err := s.loadVisible(ctx, current, letterID)
	if err != nil {
		return LetterView{}, err
	}
	if reviewer == lifecycle.RoleSupervisor && letter.SupervisorID != "" && letter.SupervisorID != current.UserID {
		return LetterView{}, forbidden()
	}

	decision, err := lifecycle.Decide(letter.Lifecycle(), current.Actor(), action)
	if err != nil {
		return LetterView{}, err
	}
	if decision.Next != requested {
		return LetterView{}, &lifecycle.TransitionError{
			From:   decision.From,
			Role:   current.Role,
			Action: decision.Action,
			Detail: fmt.Sprintf("approval moves the letter to %s, not %s", decision.Next, requested),
		}
	}

	if err := s.store.TransitionStatus(ctx, store.Transition{
		LetterID:   letter.ID,
		FromStatus: string(decision.From),
		ToStatus:   string(decision.Next),
		ActorID:    current.UserID,
		ActorRole:  string(current.Role),
		Reason:     decision.Reason,
		Signature:  string(decision.Signature),
	}); err != nil {
		return LetterView{}, err
	}

	updated, err := s.store.GetLetter(ctx, letter.ID)
	if err != nil {
		return LetterView{}, err
	}
	s.logger.Info("letter status changed",
		zap.String("letter_id", updated.ID),
		zap.String("from", string(decision.From)),
		zap.String("to", string(decision.Next)),
		zap.String("actor_id", current.UserID),
	)
	if decision.Next == lifecycle.StatusApproved {
		if err := s.git.TagHead(updated.ID, "approved", current.UserName); err != nil {
			s.logger.Warn("tag approved revision", zap.String("letter_id", updated.ID), zap.Error(err))
		}
	}
	s.index(updated)
	s.notifyAuthor(updated)
	return s.view(current, updated), nil
}

// RenderArtifact prints the official document for an approved letter and
// stores it. Linking the artifact to the letter is a separate UpdateLetter call.
func (s *Service) RenderArtifact(ctx context.Context, current Session, letterID, signature string) (ArtifactPayload, error) {
	if !s.Can(current.Role, rbac.ActionRender) {
		return ArtifactPayload{}, forbidden()
	}
	option, err := lifecycle.ParseSignatureOption(signature)
	if err != nil {
		return ArtifactPayload{}, validationError("signature", err.Error())
	}
	letter, err := s.loadVisible(ctx, current, letterID)
	if err != nil {
		return ArtifactPayload{}, err
	}
	if lifecycle.Status(letter.Status) != lifecycle.StatusApproved {
		return ArtifactPayload{}, domainError(http.StatusConflict, "NOT_APPROVED", "Only approved letters have an official document", nil)
	}

	approvedAt, err := s.approvedAt(ctx, letter)
	if err != nil {
		return ArtifactPayload{}, err
	}

	result, err := s.renderer.Render(ctx, export.Document{
		LetterID:        letter.ID,
		Title:           letter.Title,
		DecisionType:    letter.DecisionTypeTitle,
		Sector:          letter.Sector,
		DescriptionHTML: letter.Description,
		Rationale:       letter.Rationale,
		AuthorName:      letter.AuthorName,
		ApprovedAt:      approvedAt,
		Signature:       option,
	})
	if err != nil {
		s.logger.Error("render artifact", zap.String("letter_id", letter.ID), zap.Error(err))
		return ArtifactPayload{}, artifactFailed(err)
	}
	if err := s.artifacts.Put(ctx, result.Filename, result.Data, result.MimeType); err != nil {
		s.logger.Error("store artifact", zap.String("letter_id", letter.ID), zap.String("filename", result.Filename), zap.Error(err))
		return ArtifactPayload{}, artifactFailed(err)
	}
	return ArtifactPayload{
		ArtifactURL: s.artifactURL(result.Filename),
		Filename:    result.Filename,
	}, nil
}

// approvedAt is the time of the letter's final approval in the transition
// log. Letters without a logged approval fall back to their last update.
func (s *Service) approvedAt(ctx context.Context, letter store.Letter) (time.Time, error) {
	entries, err := s.store.ListTransitions(ctx, letter.ID)
	if err != nil {
		return time.Time{}, fmt.Errorf("load approval time for %s: %w", letter.ID, err)
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].ToStatus == string(lifecycle.StatusApproved) {
			return entries[i].CreatedAt, nil
		}
	}
	return letter.UpdatedAt, nil
}

func artifactFailed(err error) *DomainError {
	details := map[string]any{"reason": "render"}
	if errors.Is(err, export.ErrPDFDependencyMissing) {
		details["reason"] = "pdf_dependency_missing"
	}
	return domainError(http.StatusBadGateway, "ARTIFACT_FAILED", "Could not generate the official document", details)
}

func (s *Service) artifactURL(filename string) string {
	return strings.TrimRight(s.cfg.PublicURL, "/") + "/api/artifacts/" + filename
}

// ArtifactLocation returns a short-lived storage URL for a stored artifact.
func (s *Service) ArtifactLocation(ctx context.Context, current Session, filename, downloadAs string) (string, error) {
	if !s.Can(current.Role, rbac.ActionRead) {
		return "", forbidden()
	}
	if !artifacts.ValidName(filename) {
		return "", validationError("filename", "invalid artifact name")
	}
	exists, err := s.artifacts.Exists(ctx, filename)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", domainError(http.StatusNotFound, "NOT_FOUND", "Artifact not found", nil)
	}
	return s.artifacts.PresignedURL(ctx, filename, downloadAs)
}

func (s *Service) History(ctx context.Context, current Session, letterID string, limit int) ([]store.CommitInfo, error) {
	letter, err := s.loadVisible(ctx, current, letterID)
	if err != nil {
		return nil, err
	}
	items, err := s.git.History(letter.ID, limit)
	if err == nil {
		return items, nil
	}
	// Letters imported without a repository get one seeded from their current content.
	if seedErr := s.git.EnsureLetterRepo(letter.ID, contentOf(letter), letter.AuthorName); seedErr != nil {
		return nil, fmt.Errorf("letter history: %w", errors.Join(err, seedErr))
	}
	return s.git.History(letter.ID, limit)
}

func (s *Service) Transitions(ctx context.Context, current Session, letterID string) ([]store.Transition, error) {
	letter, err := s.loadVisible(ctx, current, letterID)
	if err != nil {
		return nil, err
	}
	return s.store.ListTransitions(ctx, letter.ID)
}

// Search covers the archive: only approved and rejected letters are searchable.
func (s *Service) Search(ctx context.Context, current Session, text string, statuses []string, decisionTypeID string, limit, offset int) (search.Response, error) {
	if !s.Can(current.Role, rbac.ActionRead) {
		return search.Response{}, forbidden()
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	if len(statuses) == 0 {
		statuses = []string{string(lifecycle.StatusApproved), string(lifecycle.StatusRejected)}
	}
	for _, raw := range statuses {
		if !lifecycle.Status(raw).Terminal() {
			return search.Response{}, validationError("status", "search only covers approved or rejected letters")
		}
	}
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	return s.search.Search(ctx, search.Query{
		Text:           text,
		Statuses:       statuses,
		DecisionTypeID: decisionTypeID,
		Limit:          limit,
		Offset:         offset,
	}), nil
}

func (s *Service) commitRevision(letter store.Letter, author, message string) {
	content := contentOf(letter)
	if err := s.git.EnsureLetterRepo(letter.ID, content, author); err != nil {
		s.logger.Warn("ensure letter repo", zap.String("letter_id", letter.ID), zap.Error(err))
		return
	}
	if _, err := s.git.CommitContent(letter.ID, content, author, message); err != nil {
		s.logger.Warn("commit letter revision", zap.String("letter_id", letter.ID), zap.Error(err))
	}
}

func (s *Service) index(letter store.Letter) {
	if s.search == nil {
		return
	}
	s.search.IndexLetter(search.LetterRecord{
		ID:             letter.ID,
		Title:          letter.Title,
		Description:    search.PlainText(letter.Description),
		Rationale:      letter.Rationale,
		Status:         letter.Status,
		DecisionTypeID: letter.DecisionTypeID,
		AuthorID:       letter.AuthorID,
		Sector:         letter.Sector,
		UpdatedAt:      letter.UpdatedAt.Unix(),
	})
}

// notifyAuthor emails the author in the background when SMTP is configured.
func (s *Service) notifyAuthor(letter store.Letter) {
	if s.mailer == nil || !s.mailer.IsConfigured() || letter.AuthorEmail == "" {
		return
	}
	letterURL := strings.TrimRight(s.cfg.PublicURL, "/") + "/letters/" + letter.ID
	go func() {
		if err := s.mailer.SendTransitionNotice(letter.AuthorEmail, letter.AuthorName, letter.Lifecycle(), letterURL); err != nil {
			s.logger.Warn("send transition notice", zap.String("letter_id", letter.ID), zap.Error(err))
		}
	}()
}

func contentOf(letter store.Letter) gitrepo.Content {
	return gitrepo.Content{Title: letter.Title, Description: letter.Description, Rationale: letter.Rationale}
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
