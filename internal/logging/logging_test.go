package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestDiscardNeverEnabled(t *testing.T) {
	logger := Discard()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("discard logger reports enabled")
	}
	// Must not panic.
	logger.Info("dropped", "k", "v")
}

func TestDefault(t *testing.T) {
	if Default(nil) == nil {
		t.Fatal("Default(nil) returned nil")
	}
	logger := Discard()
	if Default(logger) != logger {
		t.Fatal("Default did not pass through provided logger")
	}
}
