package artifacts

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"letterflow/internal/config"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(config.Config{
		S3Endpoint:  "localhost:9000",
		S3AccessKey: "minioadmin",
		S3SecretKey: "minioadmin",
		S3Bucket:    "letter-artifacts",
		S3Region:    "us-east-1",
		PresignTTL:  5 * time.Minute,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestValidName(t *testing.T) {
	tests := map[string]bool{
		"letter-ltr_1-genuine.pdf": true,
		"":                         false,
		"..":                       false,
		"a/b.pdf":                  false,
		"a\\b.pdf":                 false,
		"x..pdf":                   false,
		"x.pdf?sig=1":              false,
	}
	for name, want := range tests {
		if got := ValidName(name); got != want {
			t.Errorf("ValidName(%q) = %v, want %v", name, got, want)
		}
	}
}

// Presigning is computed locally when the region is configured.
func TestPresignedURLSetsDisposition(t *testing.T) {
	s := newTestStorage(t)

	raw, err := s.PresignedURL(context.Background(), "letter-1-scanned.pdf", "document_1.pdf")
	if err != nil {
		t.Fatalf("PresignedURL() error = %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if !strings.HasSuffix(u.Path, "/letter-artifacts/letter-1-scanned.pdf") {
		t.Fatalf("unexpected path %q", u.Path)
	}
	disposition := u.Query().Get("response-content-disposition")
	if !strings.HasPrefix(disposition, `attachment; filename="document_1.pdf"`) {
		t.Fatalf("unexpected disposition %q", disposition)
	}
	if u.Query().Get("X-Amz-Expires") != "300" {
		t.Fatalf("unexpected expiry %q", u.Query().Get("X-Amz-Expires"))
	}

	raw, err = s.PresignedURL(context.Background(), "letter-1-scanned.pdf", "")
	if err != nil {
		t.Fatalf("PresignedURL() error = %v", err)
	}
	u, _ = url.Parse(raw)
	if u.Query().Get("response-content-disposition") != "inline" {
		t.Fatalf("expected inline disposition, got %q", u.Query().Get("response-content-disposition"))
	}
}

func TestPresignedURLRejectsTraversal(t *testing.T) {
	s := newTestStorage(t)
	if _, err := s.PresignedURL(context.Background(), "../secret", ""); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if err := s.Put(context.Background(), "a/b.pdf", []byte("x"), "application/pdf"); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestContentDispositionStripsQuotes(t *testing.T) {
	got := contentDisposition(`bad"name.pdf`)
	if !strings.HasPrefix(got, `attachment; filename="badname.pdf"`) {
		t.Fatalf("unexpected disposition %q", got)
	}
}
