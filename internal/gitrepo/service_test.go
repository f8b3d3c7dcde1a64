package gitrepo

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCommitAndReadContent(t *testing.T) {
	svc := New(t.TempDir())

	initial := Content{Title: "Leave request", Description: "<p>Annual leave</p>", Rationale: "Policy 4"}
	if err := svc.EnsureLetterRepo("ltr-1", initial, "Sara Preparer"); err != nil {
		t.Fatalf("EnsureLetterRepo() error = %v", err)
	}

	updated := initial
	updated.Rationale = "Policy 4, clause 2"
	commit, err := svc.CommitContent("ltr-1", updated, "Omar Supervisor", "Edit rationale")
	if err != nil {
		t.Fatalf("CommitContent() error = %v", err)
	}
	if len(commit.Hash) != 7 {
		t.Fatalf("expected short hash, got %q", commit.Hash)
	}

	got, err := svc.GetContentByHash("ltr-1", commit.Hash)
	if err != nil {
		t.Fatalf("GetContentByHash() error = %v", err)
	}
	if diff := cmp.Diff(updated, got); diff != "" {
		t.Fatalf("content mismatch (-want +got):\n%s", diff)
	}

	head, info, err := svc.HeadContent("ltr-1")
	if err != nil {
		t.Fatalf("HeadContent() error = %v", err)
	}
	if head != updated || info.Hash != commit.Hash || info.Author != "Omar Supervisor" {
		t.Fatalf("unexpected head: %+v %+v", head, info)
	}

	history, err := svc.History("ltr-1", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 revisions, got %d", len(history))
	}
	if strings.TrimSpace(history[0].Message) != "Edit rationale" || strings.TrimSpace(history[1].Message) != "Declare letter" {
		t.Fatalf("unexpected history order: %+v", history)
	}
}

func TestEnsureLetterRepoIsIdempotent(t *testing.T) {
	svc := New(t.TempDir())
	first := Content{Title: "One"}
	if err := svc.EnsureLetterRepo("ltr-1", first, "Sara"); err != nil {
		t.Fatalf("EnsureLetterRepo() error = %v", err)
	}
	if err := svc.EnsureLetterRepo("ltr-1", Content{Title: "Two"}, "Sara"); err != nil {
		t.Fatalf("EnsureLetterRepo() second call error = %v", err)
	}
	head, _, err := svc.HeadContent("ltr-1")
	if err != nil {
		t.Fatalf("HeadContent() error = %v", err)
	}
	if head.Title != "One" {
		t.Fatalf("expected original content to survive, got %+v", head)
	}
}

func TestCommitContentSkipsUnchanged(t *testing.T) {
	svc := New(t.TempDir())
	initial := Content{Title: "Same"}
	if err := svc.EnsureLetterRepo("ltr-1", initial, "Sara"); err != nil {
		t.Fatalf("EnsureLetterRepo() error = %v", err)
	}
	if _, err := svc.CommitContent("ltr-1", initial, "Sara", "No-op"); err != nil {
		t.Fatalf("CommitContent() error = %v", err)
	}
	history, err := svc.History("ltr-1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected unchanged content to skip commit, got %d revisions", len(history))
	}
}

func TestHistoryLimit(t *testing.T) {
	svc := New(t.TempDir())
	if err := svc.EnsureLetterRepo("ltr-1", Content{Title: "v0"}, "Sara"); err != nil {
		t.Fatalf("EnsureLetterRepo() error = %v", err)
	}
	for i := 1; i <= 3; i++ {
		if _, err := svc.CommitContent("ltr-1", Content{Title: fmt.Sprintf("v%d", i)}, "Sara", fmt.Sprintf("Rev %d", i)); err != nil {
			t.Fatalf("CommitContent() error = %v", err)
		}
	}
	history, err := svc.History("ltr-1", 2)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 revisions, got %d", len(history))
	}
}

func TestTagHeadTolerantOfRepeat(t *testing.T) {
	svc := New(t.TempDir())
	if err := svc.EnsureLetterRepo("ltr-1", Content{Title: "x"}, "Sara"); err != nil {
		t.Fatalf("EnsureLetterRepo() error = %v", err)
	}
	if err := svc.TagHead("ltr-1", "approved", "Huda President"); err != nil {
		t.Fatalf("TagHead() error = %v", err)
	}
	if err := svc.TagHead("ltr-1", "approved", "Huda President"); err != nil {
		t.Fatalf("TagHead() repeat error = %v", err)
	}
}

func TestDiffFields(t *testing.T) {
	from := Content{Title: "A", Description: "same", Rationale: "r1"}
	to := Content{Title: "B", Description: "same", Rationale: "r2"}
	got := DiffFields(from, to)
	want := []FieldChange{
		{Field: "rationale", Before: "r1", After: "r2"},
		{Field: "title", Before: "A", After: "B"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("DiffFields mismatch (-want +got):\n%s", diff)
	}
	if HasChanges(from, from) {
		t.Fatal("expected identical content to report no changes")
	}
}

func TestConcurrentCommitContent(t *testing.T) {
	svc := New(t.TempDir())
	initial := Content{Title: "Letter", Description: "d", Rationale: "r"}
	if err := svc.EnsureLetterRepo("ltr-1", initial, "Sara"); err != nil {
		t.Fatalf("EnsureLetterRepo() error = %v", err)
	}

	const writers = 12
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			next := initial
			next.Rationale = fmt.Sprintf("rationale-%02d", idx)
			if _, err := svc.CommitContent("ltr-1", next, "Sara", fmt.Sprintf("Commit %02d", idx)); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("CommitContent() concurrent error = %v", err)
	}

	history, err := svc.History("ltr-1", 100)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != writers+1 {
		t.Fatalf("expected %d revisions, got %d", writers+1, len(history))
	}
	head, _, err := svc.HeadContent("ltr-1")
	if err != nil {
		t.Fatalf("HeadContent() error = %v", err)
	}
	if !strings.HasPrefix(head.Rationale, "rationale-") {
		t.Fatalf("unexpected head content: %+v", head)
	}
}
