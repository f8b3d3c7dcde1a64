package lifecycle

import "strings"

// CanEdit reports whether role may change a letter's content while it is in status.
func CanEdit(role Role, status Status) bool {
	if status.Terminal() {
		return false
	}
	owned, ok := ReviewStatus(role)
	return ok && owned == status
}

// Flags are the derived view booleans a UI needs to render a letter.
type Flags struct {
	CanEdit              bool `json:"canEdit"`
	ShowReviewActions    bool `json:"showReviewActions"`
	ShowRejectionDetails bool `json:"showRejectionDetails"`
	ShowSignatureOptions bool `json:"showSignatureOptions"`
	IsTerminal           bool `json:"isTerminal"`
}

func DeriveFlags(role Role, letter Letter) Flags {
	reviewing := false
	if owned, ok := ReviewStatus(role); ok && owned == letter.Status {
		reviewing = true
	}
	return Flags{
		CanEdit:              CanEdit(role, letter.Status),
		ShowReviewActions:    reviewing,
		ShowRejectionDetails: letter.Status == StatusRejected && strings.TrimSpace(letter.ReasonForRejection) != "",
		ShowSignatureOptions: reviewing && role == RolePresident,
		IsTerminal:           letter.Status.Terminal(),
	}
}

// ContentPatch carries the content fields to overwrite. Nil fields are kept.
type ContentPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Rationale   *string `json:"rationale,omitempty"`
}

func (p ContentPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Rationale == nil
}

// MergeContent overwrites the patched content fields and nothing else.
func MergeContent(letter Letter, patch ContentPatch) Letter {
	if patch.Title != nil {
		letter.Title = *patch.Title
	}
	if patch.Description != nil {
		letter.Description = *patch.Description
	}
	if patch.Rationale != nil {
		letter.Rationale = *patch.Rationale
	}
	return letter
}
