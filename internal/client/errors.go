package client

import (
	"fmt"

	"letterflow/internal/lifecycle"
)

// RemoteError is a failed call to the letters API. It always matches
// lifecycle.ErrRemoteCallFailed and, when the API reported a lifecycle error
// code, the corresponding lifecycle sentinel as well.
type RemoteError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Code != "":
		return fmt.Sprintf("%s: %d %s: %s", e.Op, e.StatusCode, e.Code, e.Message)
	default:
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
}

func (e *RemoteError) Unwrap() []error {
	errs := []error{lifecycle.ErrRemoteCallFailed}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if mapped := codeSentinel(e.Code); mapped != nil {
		errs = append(errs, mapped)
	}
	return errs
}

func codeSentinel(code string) error {
	switch code {
	case "INVALID_TRANSITION", "STATUS_CONFLICT":
		return lifecycle.ErrInvalidTransition
	case "MISSING_REASON":
		return lifecycle.ErrMissingReason
	case "NOT_EDITABLE":
		return lifecycle.ErrNotEditable
	case "ARTIFACT_FAILED":
		return lifecycle.ErrArtifactGenerationFailed
	default:
		return nil
	}
}
