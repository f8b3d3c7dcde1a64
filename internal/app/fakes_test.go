package app

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"letterflow/internal/authpw"
	"letterflow/internal/config"
	"letterflow/internal/export"
	"letterflow/internal/gitrepo"
	"letterflow/internal/lifecycle"
	"letterflow/internal/search"
	"letterflow/internal/session"
	"letterflow/internal/store"
)

const testPassword = "correct-horse"

// fakeStore keeps rows in memory. The Fn fields override single methods.
type fakeStore struct {
	mu            sync.Mutex
	users         map[string]store.User
	decisionTypes map[string]store.DecisionType
	letters       map[string]store.Letter
	transitions   []store.Transition

	pingFn             func(context.Context) error
	transitionStatusFn func(context.Context, store.Transition) error
	listLettersFn      func(context.Context, store.LetterFilter) ([]store.Letter, int, error)
	updateContentCalls int
}

func newFakeStore(t *testing.T) *fakeStore {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	fs := &fakeStore{
		users:         map[string]store.User{},
		decisionTypes: map[string]store.DecisionType{},
		letters:       map[string]store.Letter{},
	}
	for _, u := range []store.User{
		{ID: "usr_prep", Username: "rana", FullName: "Rana", Email: "rana@example.test", Role: "preparer"},
		{ID: "usr_prep2", Username: "omar", FullName: "Omar", Role: "preparer"},
		{ID: "usr_sup", Username: "samir", FullName: "Samir", Role: "supervisor"},
		{ID: "usr_sup2", Username: "lina", FullName: "Lina", Role: "supervisor"},
		{ID: "usr_pres", Username: "huda", FullName: "Huda", Role: "president"},
		{ID: "usr_admin", Username: "admin", FullName: "Admin", Role: "admin"},
	} {
		u.PasswordHash = string(hash)
		u.Active = true
		fs.users[u.ID] = u
	}
	fs.decisionTypes["dt_calendar"] = store.DecisionType{ID: "dt_calendar", Title: "Calendar", Sector: "Academic", SupervisorID: "usr_sup"}
	return fs
}

func (f *fakeStore) putLetter(letter store.Letter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if letter.AuthorID == "" {
		letter.AuthorID = "usr_prep"
	}
	if letter.DecisionTypeID == "" {
		letter.DecisionTypeID = "dt_calendar"
	}
	f.letters[letter.ID] = f.decorate(letter)
}

func (f *fakeStore) decorate(letter store.Letter) store.Letter {
	if dt, ok := f.decisionTypes[letter.DecisionTypeID]; ok {
		letter.DecisionTypeTitle = dt.Title
		letter.Sector = dt.Sector
		letter.SupervisorID = dt.SupervisorID
	}
	if author, ok := f.users[letter.AuthorID]; ok {
		letter.AuthorName = author.FullName
		letter.AuthorEmail = author.Email
	}
	return letter
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (f *fakeStore) GetUserByUsername(_ context.Context, username string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) CreateUser(_ context.Context, user store.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[user.ID] = user
	return nil
}

func (f *fakeStore) UpdateUserPassword(_ context.Context, id, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.PasswordHash = hash
	f.users[id] = u
	return nil
}

func (f *fakeStore) CountUsers(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users), nil
}

func (f *fakeStore) ListDecisionTypes(context.Context) ([]store.DecisionType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.DecisionType, 0, len(f.decisionTypes))
	for _, dt := range f.decisionTypes {
		out = append(out, dt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) GetDecisionType(_ context.Context, id string) (store.DecisionType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dt, ok := f.decisionTypes[id]
	if !ok {
		return store.DecisionType{}, sql.ErrNoRows
	}
	return dt, nil
}

func (f *fakeStore) InsertDecisionType(_ context.Context, dt store.DecisionType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decisionTypes[dt.ID] = dt
	return nil
}

func (f *fakeStore) UpdateDecisionType(_ context.Context, dt store.DecisionType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.decisionTypes[dt.ID]; !ok {
		return sql.ErrNoRows
	}
	f.decisionTypes[dt.ID] = dt
	for id, letter := range f.letters {
		if letter.DecisionTypeID == dt.ID {
			f.letters[id] = f.decorate(letter)
		}
	}
	return nil
}

func (f *fakeStore) DeleteDecisionType(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.decisionTypes[id]; !ok {
		return sql.ErrNoRows
	}
	for _, letter := range f.letters {
		if letter.DecisionTypeID == id {
			return store.ErrDecisionTypeInUse
		}
	}
	delete(f.decisionTypes, id)
	return nil
}

func (f *fakeStore) GetLetter(_ context.Context, id string) (store.Letter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	letter, ok := f.letters[id]
	if !ok {
		return store.Letter{}, fmt.Errorf("letter %s: %w", id, sql.ErrNoRows)
	}
	return letter, nil
}

func (f *fakeStore) InsertLetter(_ context.Context, letter store.Letter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	letter.CreatedAt, letter.UpdatedAt = now, now
	f.letters[letter.ID] = f.decorate(letter)
	return nil
}

func (f *fakeStore) ListLetters(ctx context.Context, filter store.LetterFilter) ([]store.Letter, int, error) {
	if f.listLettersFn != nil {
		return f.listLettersFn(ctx, filter)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Letter
	for _, letter := range f.letters {
		if filter.AuthorID != "" && letter.AuthorID != filter.AuthorID {
			continue
		}
		if filter.SupervisorID != "" && letter.SupervisorID != filter.SupervisorID {
			continue
		}
		if filter.DecisionTypeID != "" && letter.DecisionTypeID != filter.DecisionTypeID {
			continue
		}
		if len(filter.Statuses) > 0 && !contains(filter.Statuses, letter.Status) {
			continue
		}
		out = append(out, letter)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

func (f *fakeStore) UpdateLetterContent(_ context.Context, id, expectedStatus, title, description, rationale string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateContentCalls++
	letter, ok := f.letters[id]
	if !ok {
		return sql.ErrNoRows
	}
	if letter.Status != expectedStatus {
		return store.ErrStatusConflict
	}
	letter.Title, letter.Description, letter.Rationale = title, description, rationale
	f.letters[id] = letter
	return nil
}

func (f *fakeStore) SetArtifactRef(_ context.Context, id, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	letter, ok := f.letters[id]
	if !ok {
		return sql.ErrNoRows
	}
	if letter.Status != string(lifecycle.StatusApproved) {
		return store.ErrStatusConflict
	}
	letter.ArtifactRef = ref
	letter.UpdatedAt = time.Now().UTC()
	f.letters[id] = letter
	return nil
}

func (f *fakeStore) TransitionStatus(ctx context.Context, entry store.Transition) error {
	if f.transitionStatusFn != nil {
		return f.transitionStatusFn(ctx, entry)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	letter, ok := f.letters[entry.LetterID]
	if !ok {
		return sql.ErrNoRows
	}
	if letter.Status != entry.FromStatus {
		return store.ErrStatusConflict
	}
	letter.Status = entry.ToStatus
	letter.ReasonForRejection = entry.Reason
	if entry.ToStatus != string(lifecycle.StatusApproved) {
		letter.ArtifactRef = ""
	}
	f.letters[entry.LetterID] = letter
	entry.ID = int64(len(f.transitions) + 1)
	entry.CreatedAt = time.Now().UTC()
	f.transitions = append(f.transitions, entry)
	return nil
}

func (f *fakeStore) ListTransitions(_ context.Context, id string) ([]store.Transition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Transition
	for _, entry := range f.transitions {
		if entry.LetterID == id {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

type fakeSessions struct {
	mu      sync.Mutex
	refresh map[string]session.Record
	revoked map[string]bool
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{refresh: map[string]session.Record{}, revoked: map[string]bool{}}
}

func (f *fakeSessions) SaveRefreshSession(_ context.Context, hash string, record session.Record, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh[hash] = record
	return nil
}

func (f *fakeSessions) ConsumeRefreshSession(_ context.Context, hash string) (session.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.refresh[hash]
	if !ok {
		return session.Record{}, session.ErrSessionNotFound
	}
	delete(f.refresh, hash)
	return record, nil
}

func (f *fakeSessions) RevokeRefreshSession(_ context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.refresh, hash)
	return nil
}

func (f *fakeSessions) RevokeAccessToken(_ context.Context, jti string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[jti] = true
	return nil
}

func (f *fakeSessions) IsAccessTokenRevoked(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revoked[jti], nil
}

type fakeGit struct {
	mu      sync.Mutex
	commits map[string][]store.CommitInfo
	tags    []string
	histErr error
}

func (f *fakeGit) EnsureLetterRepo(id string, _ gitrepo.Content, author string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commits == nil {
		f.commits = map[string][]store.CommitInfo{}
	}
	if _, ok := f.commits[id]; !ok {
		f.commits[id] = []store.CommitInfo{{Hash: "c0", Message: "Declare letter", Author: author}}
		f.histErr = nil
	}
	return nil
}

func (f *fakeGit) CommitContent(id string, _ gitrepo.Content, author, message string) (store.CommitInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info := store.CommitInfo{Hash: fmt.Sprintf("c%d", len(f.commits[id])), Message: message, Author: author}
	f.commits[id] = append([]store.CommitInfo{info}, f.commits[id]...)
	return info, nil
}

func (f *fakeGit) History(id string, limit int) ([]store.CommitInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.histErr != nil {
		return nil, f.histErr
	}
	items := f.commits[id]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (f *fakeGit) TagHead(id, name, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tags = append(f.tags, id+":"+name)
	return nil
}

type fakeRenderer struct {
	renderFn func(context.Context, export.Document) (*export.Result, error)
	calls    int
	docs     []export.Document
}

func (f *fakeRenderer) Render(ctx context.Context, doc export.Document) (*export.Result, error) {
	f.calls++
	f.docs = append(f.docs, doc)
	if f.renderFn != nil {
		return f.renderFn(ctx, doc)
	}
	return &export.Result{
		Data:     []byte("%PDF-1.4"),
		Filename: "letter-" + doc.LetterID + "-" + string(doc.Signature) + ".pdf",
		MimeType: "application/pdf",
		Pages:    1,
	}, nil
}

type fakeArtifacts struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func (f *fakeArtifacts) Put(_ context.Context, name string, data []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[name] = data
	return nil
}

func (f *fakeArtifacts) Exists(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[name]
	return ok, nil
}

func (f *fakeArtifacts) PresignedURL(_ context.Context, name, downloadAs string) (string, error) {
	location := "https://storage.example.test/letter-artifacts/" + name + "?X-Amz-Signature=abc"
	if downloadAs != "" {
		location += "&download=" + downloadAs
	}
	return location, nil
}

type fakeSearch struct {
	mu      sync.Mutex
	queries []search.Query
	indexed []search.LetterRecord
}

func (f *fakeSearch) Search(_ context.Context, q search.Query) search.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return search.Response{
		Results: []search.Result{{ID: "ltr_1", Title: "Calendar", Snippet: "<em>calendar</em>", Status: "approved"}},
		Total:   1,
		Query:   q.Text,
	}
}

func (f *fakeSearch) IndexLetter(record search.LetterRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, record)
}

type fakeMailer struct {
	sent chan string
}

func (f *fakeMailer) IsConfigured() bool { return true }

func (f *fakeMailer) SendTransitionNotice(to, _ string, letter lifecycle.Letter, _ string) error {
	f.sent <- to + ":" + string(letter.Status)
	return nil
}

type testEnv struct {
	store     *fakeStore
	sessions  *fakeSessions
	git       *fakeGit
	renderer  *fakeRenderer
	artifacts *fakeArtifacts
	search    *fakeSearch
	service   *Service
	server    *HTTPServer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:     newFakeStore(t),
		sessions:  newFakeSessions(),
		git:       &fakeGit{},
		renderer:  &fakeRenderer{},
		artifacts: &fakeArtifacts{},
		search:    &fakeSearch{},
	}
	env.service = &Service{
		cfg: config.Config{
			JWTSecret:  "test-secret",
			AccessTTL:  time.Hour,
			RefreshTTL: 24 * time.Hour,
			PublicURL:  "http://api.test",
		},
		store:     env.store,
		sessions:  env.sessions,
		git:       env.git,
		passwords: authpw.NewService(env.store),
		renderer:  env.renderer,
		artifacts: env.artifacts,
		search:    env.search,
		logger:    zap.NewNop(),
	}
	env.server = NewHTTPServer(env.service, "*", zap.NewNop())
	return env
}

// login issues a session for userID without going through bcrypt.
func (e *testEnv) login(t *testing.T, userID string) Session {
	t.Helper()
	user, err := e.store.GetUserByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetUserByID(%s) error = %v", userID, err)
	}
	sess, err := e.service.issueSession(context.Background(), user)
	if err != nil {
		t.Fatalf("issueSession() error = %v", err)
	}
	return sess
}
