package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"letterflow/internal/lifecycle"
)

// BeginRejection opens the rejection capture with an empty draft.
func (c *Controller) BeginRejection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rejecting = true
	c.draftReason = ""
}

func (c *Controller) SetDraftReason(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draftReason = text
}

func (c *Controller) CancelRejection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rejecting = false
	c.draftReason = ""
}

// ErrNotRejecting is returned by ConfirmRejection without a prior
// BeginRejection.
var ErrNotRejecting = errors.New("rejection capture is not open")

// ConfirmRejection rejects the letter with reason. An empty reason fails
// locally. A remote failure keeps the capture open with its draft.
func (c *Controller) ConfirmRejection(ctx context.Context, reason string) (lifecycle.Letter, error) {
	if !c.busy.TryLock() {
		return lifecycle.Letter{}, ErrBusy
	}
	defer c.busy.Unlock()

	c.mu.Lock()
	if !c.rejecting {
		letter := c.letter
		c.mu.Unlock()
		return letter, &lifecycle.ValidationError{Field: "reason", Err: ErrNotRejecting}
	}
	c.draftReason = reason
	c.mu.Unlock()

	letter, err := c.reject(ctx, reason)
	if err != nil {
		return letter, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.rejecting = false
	c.draftReason = ""
	return letter, nil
}

// Reject rejects the letter in one step.
func (c *Controller) Reject(ctx context.Context, reason string) (lifecycle.Letter, error) {
	if !c.busy.TryLock() {
		return lifecycle.Letter{}, ErrBusy
	}
	defer c.busy.Unlock()
	return c.reject(ctx, reason)
}

func (c *Controller) reject(ctx context.Context, reason string) (lifecycle.Letter, error) {
	current, err := c.snapshot()
	if err != nil {
		return lifecycle.Letter{}, err
	}
	if strings.TrimSpace(reason) == "" {
		return current, &lifecycle.ValidationError{Field: "reason", Err: lifecycle.ErrMissingReason}
	}

	decision, err := lifecycle.Decide(current, c.actor, lifecycle.Reject(reason))
	if err != nil {
		return current, fmt.Errorf("reject letter %s: %w", current.ID, err)
	}
	if err := c.pushStatus(ctx, current.ID, decision); err != nil {
		return current, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.letter = lifecycle.Apply(c.letter, decision)
	c.artifactURL = ""
	return c.letter, nil
}
