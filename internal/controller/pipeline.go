package controller

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"letterflow/internal/client"
	"letterflow/internal/lifecycle"
)

type ApproveOptions struct {
	// Signature requests the official approval document. Only the president
	// may set it.
	Signature *lifecycle.SignatureOption
}

// ApprovalResult reports an approval. Warning is set when the artifact was
// rendered but its reference could not be stored on the letter.
type ApprovalResult struct {
	Letter      lifecycle.Letter
	ArtifactURL string
	Filename    string
	Warning     error
}

// Approve moves the letter to the next status for the actor's role. A
// president approval with a signature option then renders the approval
// document and links it to the letter. If rendering fails the letter stays
// approved and the returned error matches lifecycle.ErrArtifactGenerationFailed.
func (c *Controller) Approve(ctx context.Context, opts ApproveOptions) (ApprovalResult, error) {
	if !c.busy.TryLock() {
		return ApprovalResult{}, ErrBusy
	}
	defer c.busy.Unlock()

	current, err := c.snapshot()
	if err != nil {
		return ApprovalResult{}, err
	}

	action := lifecycle.Approve()
	if opts.Signature != nil {
		action = lifecycle.ApproveWithSignature(*opts.Signature)
	}
	decision, err := lifecycle.Decide(current, c.actor, action)
	if err != nil {
		return ApprovalResult{Letter: current}, fmt.Errorf("approve letter %s: %w", current.ID, err)
	}
	if err := c.pushStatus(ctx, current.ID, decision); err != nil {
		return ApprovalResult{Letter: current}, err
	}

	c.mu.Lock()
	c.letter = lifecycle.Apply(c.letter, decision)
	c.artifactURL = ""
	if decision.GenerateArtifact {
		c.lastSignature = decision.Signature
	}
	approved := c.letter
	c.mu.Unlock()

	result := ApprovalResult{Letter: approved}
	if !decision.GenerateArtifact {
		return result, nil
	}
	return c.renderAndLink(ctx, current.ID, decision.Signature)
}

// RegenerateArtifact renders a fresh approval document for an approved letter
// and replaces the stored reference. An empty option reuses the one chosen at
// approval, then defaults to genuine.
func (c *Controller) RegenerateArtifact(ctx context.Context, option lifecycle.SignatureOption) (ApprovalResult, error) {
	if !c.busy.TryLock() {
		return ApprovalResult{}, ErrBusy
	}
	defer c.busy.Unlock()

	current, err := c.snapshot()
	if err != nil {
		return ApprovalResult{}, err
	}
	if current.Status != lifecycle.StatusApproved {
		return ApprovalResult{Letter: current}, &lifecycle.TransitionError{
			From:   current.Status,
			Role:   c.actor.Role,
			Action: lifecycle.ActionApprove,
			Detail: "only approved letters have an approval document",
		}
	}

	if option == "" {
		c.mu.Lock()
		option = c.lastSignature
		c.mu.Unlock()
	}
	if option == "" {
		option = c.approvalSignature(ctx, current.ID)
	}
	if option == "" {
		option = lifecycle.SignatureGenuine
	}
	if !option.Valid() {
		return ApprovalResult{Letter: current}, &lifecycle.ValidationError{
			Field: "signature",
			Err:   fmt.Errorf("unknown signature option %q", option),
		}
	}
	return c.renderAndLink(ctx, current.ID, option)
}

// approvalSignature looks up the signature option recorded by the president's
// approval. It returns "" when the log has none or cannot be read.
func (c *Controller) approvalSignature(ctx context.Context, id string) lifecycle.SignatureOption {
	records, err := c.remote.Transitions(ctx, id)
	if err != nil {
		c.logger.Warn("transition log unavailable", zap.String("letter_id", id), zap.Error(err))
		return ""
	}
	for i := len(records) - 1; i >= 0; i-- {
		record := records[i]
		if record.ToStatus != string(lifecycle.StatusApproved) || record.Signature == "" {
			continue
		}
		option, err := lifecycle.ParseSignatureOption(record.Signature)
		if err != nil {
			return ""
		}
		c.mu.Lock()
		c.lastSignature = option
		c.mu.Unlock()
		return option
	}
	return ""
}

// renderAndLink renders the artifact, persists its filename and surfaces it.
// Each step runs once.
func (c *Controller) renderAndLink(ctx context.Context, id string, option lifecycle.SignatureOption) (ApprovalResult, error) {
	artifact, err := c.remote.RenderArtifact(ctx, id, option)
	if err != nil {
		c.logger.Warn("artifact render failed", zap.String("letter_id", id), zap.String("signature", string(option)), zap.Error(err))
		return ApprovalResult{Letter: c.Letter()}, fmt.Errorf("render artifact for %s: %w", id, errors.Join(lifecycle.ErrArtifactGenerationFailed, remoteErr(err)))
	}
	filename := artifact.Filename
	if filename == "" {
		filename = lifecycle.ArtifactFilename(artifact.URL)
	}
	if filename == "" {
		return ApprovalResult{Letter: c.Letter()}, fmt.Errorf("render artifact for %s: empty artifact reference: %w", id, lifecycle.ErrArtifactGenerationFailed)
	}
	url := artifact.URL
	if url == "" {
		url = filename
	}

	c.mu.Lock()
	c.artifactURL = url
	c.lastSignature = option
	c.mu.Unlock()

	result := ApprovalResult{ArtifactURL: url, Filename: filename}
	ref := filename
	if _, err := c.remote.UpdateLetter(ctx, id, client.LetterUpdate{ArtifactRef: &ref}); err != nil {
		c.logger.Warn("artifact reference not persisted", zap.String("letter_id", id), zap.String("filename", filename), zap.Error(err))
		result.Warning = fmt.Errorf("persist artifact %s on %s: %w", filename, id,
			errors.Join(lifecycle.ErrArtifactGenerationFailed, lifecycle.ErrArtifactNotLinked, remoteErr(err)))
	} else {
		c.mu.Lock()
		c.letter.ArtifactRef = filename
		c.mu.Unlock()
	}
	result.Letter = c.Letter()

	c.logger.Info("artifact ready", zap.String("letter_id", id), zap.String("filename", filename), zap.Bool("linked", result.Warning == nil))
	if c.opener != nil {
		c.opener(url)
	}
	return result, nil
}
