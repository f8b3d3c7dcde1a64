package logging

import "testing"

func TestNewAcceptsKnownLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", " INFO "} {
		logger, err := New(level, "json")
		if err != nil {
			t.Fatalf("New(%q) error = %v", level, err)
		}
		_ = logger.Sync()
	}
}

func TestNewConsoleFormat(t *testing.T) {
	logger, err := New("debug", "console")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !logger.Core().Enabled(-1) {
		t.Fatal("expected debug level to be enabled")
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("chatty", "json"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
