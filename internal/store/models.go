package store

import (
	"time"

	"letterflow/internal/lifecycle"
)

type User struct {
	ID           string
	Username     string
	FullName     string
	Email        string
	PasswordHash string
	Role         string
	Sector       string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type DecisionType struct {
	ID                  string
	Title               string
	Sector              string
	SupervisorID        string
	IsPresidentDecision bool
	CreatedAt           time.Time
}

type Letter struct {
	ID                 string
	Title              string
	Description        string
	Rationale          string
	DecisionTypeID     string
	DecisionTypeTitle  string
	Sector             string
	SupervisorID       string
	Status             string
	ReasonForRejection string
	ArtifactRef        string
	AuthorID           string
	AuthorName         string
	AuthorEmail        string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Lifecycle converts a stored row into the state machine's letter.
func (l Letter) Lifecycle() lifecycle.Letter {
	return lifecycle.Letter{
		ID:                 l.ID,
		Title:              l.Title,
		Description:        l.Description,
		Rationale:          l.Rationale,
		DecisionTypeRef:    l.DecisionTypeID,
		DecisionTypeTitle:  l.DecisionTypeTitle,
		Sector:             l.Sector,
		Status:             lifecycle.Status(l.Status),
		ReasonForRejection: l.ReasonForRejection,
		ArtifactRef:        l.ArtifactRef,
		AuthorRef:          l.AuthorID,
		AuthorName:         l.AuthorName,
		CreatedAt:          l.CreatedAt,
		UpdatedAt:          l.UpdatedAt,
	}
}

// Transition is one row of the append-only status log.
type Transition struct {
	ID         int64
	LetterID   string
	FromStatus string
	ToStatus   string
	ActorID    string
	ActorRole  string
	Reason     string
	Signature  string
	CreatedAt  time.Time
}

// LetterFilter narrows ListLetters. Zero values mean "any".
type LetterFilter struct {
	Statuses       []string
	DecisionTypeID string
	AuthorID       string
	SupervisorID   string
	Text           string
	Sort           string
	Limit          int
	Offset         int
}

type CommitInfo struct {
	Hash      string
	Message   string
	Author    string
	CreatedAt time.Time
}
