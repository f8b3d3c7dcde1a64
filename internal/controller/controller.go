// Package controller drives one letter through its lifecycle against the
// letters API. Local state is only written after the remote call succeeds.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"letterflow/internal/client"
	"letterflow/internal/lifecycle"
)

// ErrBusy is returned when an action is issued while another one is in flight.
var ErrBusy = errors.New("another action is in progress")

// ErrNotLoaded is returned by actions issued before Load.
var ErrNotLoaded = errors.New("no letter loaded")

// Remote is the subset of the letters API the controller needs.
type Remote interface {
	GetLetter(ctx context.Context, id string) (lifecycle.Letter, error)
	UpdateStatusBySupervisor(ctx context.Context, id string, status lifecycle.Status, reason string) (lifecycle.Letter, error)
	UpdateStatusByPresident(ctx context.Context, id string, status lifecycle.Status, signature lifecycle.SignatureOption, reason string) (lifecycle.Letter, error)
	UpdateLetter(ctx context.Context, id string, update client.LetterUpdate) (lifecycle.Letter, error)
	RenderArtifact(ctx context.Context, id string, signature lifecycle.SignatureOption) (client.Artifact, error)
	Transitions(ctx context.Context, id string) ([]client.TransitionRecord, error)
}

// Opener surfaces a freshly rendered artifact to the user.
type Opener func(url string)

type Options struct {
	Logger *zap.Logger
	Opener Opener
}

type Controller struct {
	remote Remote
	actor  lifecycle.Actor
	logger *zap.Logger
	opener Opener

	// busy guards against overlapping actions; mu guards the fields below.
	busy sync.Mutex
	mu   sync.Mutex

	letter        lifecycle.Letter
	loaded        bool
	rejecting     bool
	draftReason   string
	artifactURL   string
	lastSignature lifecycle.SignatureOption
}

func New(remote Remote, actor lifecycle.Actor, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		remote: remote,
		actor:  actor,
		logger: logger.With(zap.String("actor_id", actor.ID), zap.String("actor_role", string(actor.Role))),
		opener: opts.Opener,
	}
}

// View is a snapshot of what a UI needs to render the letter.
type View struct {
	Letter      lifecycle.Letter `json:"letter"`
	Flags       lifecycle.Flags  `json:"flags"`
	ArtifactRef string           `json:"artifactRef,omitempty"`
	Rejecting   bool             `json:"rejecting"`
	DraftReason string           `json:"draftReason,omitempty"`
}

func (c *Controller) Actor() lifecycle.Actor {
	return c.actor
}

func (c *Controller) Load(ctx context.Context, id string) error {
	if !c.busy.TryLock() {
		return ErrBusy
	}
	defer c.busy.Unlock()

	id = strings.TrimSpace(id)
	if id == "" {
		return &lifecycle.ValidationError{Field: "id", Err: errors.New("letter id is required")}
	}
	letter, err := c.remote.GetLetter(ctx, id)
	if err != nil {
		return fmt.Errorf("load letter %s: %w", id, remoteErr(err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.letter.ID != letter.ID {
		c.artifactURL = ""
		c.lastSignature = ""
	}
	c.letter = letter
	c.loaded = true
	c.rejecting = false
	c.draftReason = ""
	return nil
}

func (c *Controller) Letter() lifecycle.Letter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.letter
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return View{
		Letter:      c.letter,
		Flags:       lifecycle.DeriveFlags(c.actor.Role, c.letter),
		ArtifactRef: c.artifactRefLocked(),
		Rejecting:   c.rejecting,
		DraftReason: c.draftReason,
	}
}

// ArtifactRef returns the artifact URL rendered in this session, or else the
// filename persisted on the letter.
func (c *Controller) ArtifactRef() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.artifactRefLocked()
}

func (c *Controller) artifactRefLocked() string {
	if c.artifactURL != "" {
		return c.artifactURL
	}
	return c.letter.ArtifactRef
}

// UpdateContent merges patch into the letter's content. It fails with
// lifecycle.ErrNotEditable before any remote call when the actor cannot edit.
func (c *Controller) UpdateContent(ctx context.Context, patch lifecycle.ContentPatch) (lifecycle.Letter, error) {
	if !c.busy.TryLock() {
		return lifecycle.Letter{}, ErrBusy
	}
	defer c.busy.Unlock()

	current, err := c.snapshot()
	if err != nil {
		return lifecycle.Letter{}, err
	}
	if !lifecycle.CanEdit(c.actor.Role, current.Status) {
		return current, fmt.Errorf("%s cannot edit a letter in %s: %w", c.actor.Role, current.Status, lifecycle.ErrNotEditable)
	}
	if patch.Empty() {
		return current, &lifecycle.ValidationError{Field: "content", Err: errors.New("nothing to update")}
	}

	if _, err := c.remote.UpdateLetter(ctx, current.ID, client.ContentUpdate(patch)); err != nil {
		c.logger.Warn("content update failed", zap.String("letter_id", current.ID), zap.Error(err))
		return current, fmt.Errorf("update letter %s: %w", current.ID, remoteErr(err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.letter = lifecycle.MergeContent(c.letter, patch)
	return c.letter, nil
}

func (c *Controller) snapshot() (lifecycle.Letter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		return lifecycle.Letter{}, ErrNotLoaded
	}
	return c.letter, nil
}

// pushStatus sends a decided transition through the endpoint owned by the
// deciding role.
func (c *Controller) pushStatus(ctx context.Context, id string, decision lifecycle.Decision) error {
	var err error
	switch decision.Role {
	case lifecycle.RoleSupervisor:
		_, err = c.remote.UpdateStatusBySupervisor(ctx, id, decision.Next, decision.Reason)
	case lifecycle.RolePresident:
		_, err = c.remote.UpdateStatusByPresident(ctx, id, decision.Next, decision.Signature, decision.Reason)
	default:
		return &lifecycle.TransitionError{From: decision.From, Role: decision.Role, Action: decision.Action, Detail: "role does not review letters"}
	}
	if err != nil {
		c.logger.Warn("status update failed",
			zap.String("letter_id", id),
			zap.String("from", string(decision.From)),
			zap.String("to", string(decision.Next)),
			zap.Error(err),
		)
		return fmt.Errorf("update status of %s to %s: %w", id, decision.Next, remoteErr(err))
	}
	c.logger.Debug("status updated",
		zap.String("letter_id", id),
		zap.String("from", string(decision.From)),
		zap.String("to", string(decision.Next)),
	)
	return nil
}

// remoteErr makes sure a collaborator failure always matches
// lifecycle.ErrRemoteCallFailed.
func remoteErr(err error) error {
	if errors.Is(err, lifecycle.ErrRemoteCallFailed) {
		return err
	}
	return errors.Join(lifecycle.ErrRemoteCallFailed, err)
}
