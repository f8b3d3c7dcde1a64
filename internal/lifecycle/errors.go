package lifecycle

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when the actor's role does not own the
	// letter's current status, or the action is not defined for it.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrMissingReason is returned when a rejection carries no reason after trimming.
	ErrMissingReason = errors.New("rejection reason is required")
	// ErrNotEditable is returned when content is changed outside the role's editable status.
	ErrNotEditable = errors.New("letter is not editable")
	// ErrRemoteCallFailed wraps any failure of a collaborator call.
	ErrRemoteCallFailed = errors.New("remote call failed")
	// ErrArtifactGenerationFailed wraps failures of the approval artifact steps.
	ErrArtifactGenerationFailed = errors.New("artifact generation failed")
	// ErrArtifactNotLinked marks an artifact that was generated but whose
	// reference could not be persisted on the letter.
	ErrArtifactNotLinked = errors.New("artifact reference not persisted")
)

// TransitionError describes a rejected (status, role, action) combination.
type TransitionError struct {
	From   Status
	Role   Role
	Action ActionKind
	Detail string
}

func (e *TransitionError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s: %s cannot %s a letter in %s", ErrInvalidTransition, e.Role, e.Action, e.From)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// ValidationError is a local input failure detected before any remote call.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("validation failed on %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
