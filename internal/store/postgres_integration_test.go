package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"letterflow/db/migrations"
	"letterflow/internal/util"
)

// openTestStore migrates a throwaway schema. It skips unless
// LETTERFLOW_TEST_DATABASE_URL is set.
func openTestStore(t *testing.T) (*PostgresStore, context.Context) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	dsn := strings.TrimSpace(os.Getenv("LETTERFLOW_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("LETTERFLOW_TEST_DATABASE_URL is not set")
	}
	ctx := context.Background()
	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := resetPublicSchema(ctx, db); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	if err := ApplyMigrations(ctx, db, migrations.FS); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return NewPostgresStore(db), ctx
}

func seedLetter(t *testing.T, ctx context.Context, s *PostgresStore, status string) (Letter, User) {
	t.Helper()
	author := User{ID: util.NewID("usr"), Username: util.NewID("u"), FullName: "Mona", PasswordHash: "x", Role: "preparer", Active: true}
	if err := s.CreateUser(ctx, author); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	dt := DecisionType{ID: util.NewID("dt"), Title: "Leave", IsPresidentDecision: true}
	if err := s.InsertDecisionType(ctx, dt); err != nil {
		t.Fatalf("InsertDecisionType() error = %v", err)
	}
	letter := Letter{ID: util.NewID("ltr"), Title: "Annual leave", DecisionTypeID: dt.ID, Status: status, AuthorID: author.ID}
	if err := s.InsertLetter(ctx, letter); err != nil {
		t.Fatalf("InsertLetter() error = %v", err)
	}
	return letter, author
}

func TestTransitionStatusCompareAndSet(t *testing.T) {
	s, ctx := openTestStore(t)
	letter, author := seedLetter(t, ctx, s, "in_progress")

	first := Transition{LetterID: letter.ID, FromStatus: "in_progress", ToStatus: "pending", ActorID: author.ID, ActorRole: "supervisor"}
	if err := s.TransitionStatus(ctx, first); err != nil {
		t.Fatalf("TransitionStatus() error = %v", err)
	}
	if err := s.TransitionStatus(ctx, first); !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict on stale from status, got %v", err)
	}
	missing := first
	missing.LetterID = "ltr_missing"
	if err := s.TransitionStatus(ctx, missing); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}

	reject := Transition{LetterID: letter.ID, FromStatus: "pending", ToStatus: "rejected", ActorID: author.ID, ActorRole: "president", Reason: "no budget"}
	if err := s.TransitionStatus(ctx, reject); err != nil {
		t.Fatalf("TransitionStatus(reject) error = %v", err)
	}
	stored, err := s.GetLetter(ctx, letter.ID)
	if err != nil {
		t.Fatalf("GetLetter() error = %v", err)
	}
	if stored.Status != "rejected" || stored.ReasonForRejection != "no budget" {
		t.Fatalf("unexpected letter %+v", stored)
	}
	log, err := s.ListTransitions(ctx, letter.ID)
	if err != nil {
		t.Fatalf("ListTransitions() error = %v", err)
	}
	if len(log) != 2 || log[1].Reason != "no budget" {
		t.Fatalf("unexpected transition log %+v", log)
	}
}

func TestSetArtifactRefRequiresApproved(t *testing.T) {
	s, ctx := openTestStore(t)
	letter, _ := seedLetter(t, ctx, s, "pending")

	if err := s.SetArtifactRef(ctx, letter.ID, "letter.pdf"); !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}
}

func TestTransitionLogBlocksUpdate(t *testing.T) {
	s, ctx := openTestStore(t)
	letter, author := seedLetter(t, ctx, s, "in_progress")
	if err := s.TransitionStatus(ctx, Transition{LetterID: letter.ID, FromStatus: "in_progress", ToStatus: "pending", ActorID: author.ID, ActorRole: "supervisor"}); err != nil {
		t.Fatalf("TransitionStatus() error = %v", err)
	}

	for _, stmt := range []string{
		`UPDATE letter_transitions SET reason = 'edited' WHERE letter_id = $1`,
		`DELETE FROM letter_transitions WHERE letter_id = $1`,
	} {
		_, err := s.DB().ExecContext(ctx, stmt, letter.ID)
		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) {
			t.Fatalf("expected PostgreSQL error for %q, got %v", stmt, err)
		}
		if pgErr.SQLState() != "55000" {
			t.Fatalf("expected SQLSTATE 55000, got %s", pgErr.SQLState())
		}
	}
}

func TestDecisionTypeUpdateAndGuardedDelete(t *testing.T) {
	s, ctx := openTestStore(t)
	letter, _ := seedLetter(t, ctx, s, "in_progress")

	used, err := s.GetDecisionType(ctx, letter.DecisionTypeID)
	if err != nil {
		t.Fatalf("GetDecisionType() error = %v", err)
	}
	used.Title = "Leave requests"
	used.Sector = "Staff affairs"
	if err := s.UpdateDecisionType(ctx, used); err != nil {
		t.Fatalf("UpdateDecisionType() error = %v", err)
	}
	got, err := s.GetDecisionType(ctx, used.ID)
	if err != nil {
		t.Fatalf("GetDecisionType() error = %v", err)
	}
	if got.Title != "Leave requests" || got.Sector != "Staff affairs" {
		t.Fatalf("update not stored: %+v", got)
	}
	if err := s.UpdateDecisionType(ctx, DecisionType{ID: "dt_missing", Title: "x"}); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows for missing type, got %v", err)
	}

	if err := s.DeleteDecisionType(ctx, used.ID); !errors.Is(err, ErrDecisionTypeInUse) {
		t.Fatalf("expected ErrDecisionTypeInUse, got %v", err)
	}

	unused := DecisionType{ID: util.NewID("dt"), Title: "Unused"}
	if err := s.InsertDecisionType(ctx, unused); err != nil {
		t.Fatalf("InsertDecisionType() error = %v", err)
	}
	if err := s.DeleteDecisionType(ctx, unused.ID); err != nil {
		t.Fatalf("DeleteDecisionType() error = %v", err)
	}
	if err := s.DeleteDecisionType(ctx, unused.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows after delete, got %v", err)
	}
}
