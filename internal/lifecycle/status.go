// Package lifecycle holds the letter approval state machine and the editability
// policy. Nothing in this package performs I/O; callers run the remote update
// and apply the returned decision only after it succeeds.
package lifecycle

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
)

var allStatuses = []Status{StatusInProgress, StatusPending, StatusApproved, StatusRejected}

// Statuses returns every known status in lifecycle order.
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

func ParseStatus(value string) (Status, error) {
	switch Status(strings.TrimSpace(value)) {
	case StatusInProgress, StatusPending, StatusApproved, StatusRejected:
		return Status(strings.TrimSpace(value)), nil
	default:
		return "", fmt.Errorf("unknown letter status %q", value)
	}
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

func (s Status) Valid() bool {
	_, err := ParseStatus(string(s))
	return err == nil
}

type Role string

const (
	RolePreparer   Role = "preparer"
	RoleSupervisor Role = "supervisor"
	RolePresident  Role = "president"
	RoleAdmin      Role = "admin"
)

// ParseRole normalizes a role name. The legacy "UniversityPresident" spelling
// maps to RolePresident.
func ParseRole(value string) (Role, error) {
	trimmed := strings.TrimSpace(value)
	switch {
	case strings.EqualFold(trimmed, "UniversityPresident"), strings.EqualFold(trimmed, string(RolePresident)):
		return RolePresident, nil
	case strings.EqualFold(trimmed, string(RoleSupervisor)):
		return RoleSupervisor, nil
	case strings.EqualFold(trimmed, string(RolePreparer)):
		return RolePreparer, nil
	case strings.EqualFold(trimmed, string(RoleAdmin)):
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("unknown role %q", value)
	}
}

// Actor is the explicitly injected identity of whoever drives a transition.
type Actor struct {
	ID   string
	Role Role
}

// Letter is the only entity with a lifecycle.
type Letter struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	Rationale          string    `json:"rationale"`
	DecisionTypeRef    string    `json:"decisionTypeId"`
	DecisionTypeTitle  string    `json:"decisionTypeTitle,omitempty"`
	Sector             string    `json:"sector,omitempty"`
	Status             Status    `json:"status"`
	ReasonForRejection string    `json:"reasonForRejection,omitempty"`
	ArtifactRef        string    `json:"artifactRef,omitempty"`
	AuthorRef          string    `json:"authorId"`
	AuthorName         string    `json:"authorName,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// HasArtifact reports whether an approval artifact has been linked.
func (l Letter) HasArtifact() bool {
	return strings.TrimSpace(l.ArtifactRef) != ""
}
