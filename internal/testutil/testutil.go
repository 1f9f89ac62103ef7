// Package testutil provides shared test helpers for setting up note
// directories, snapshots and engines.
package testutil

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/notesync/internal/engine"
	"github.com/starford/notesync/internal/remote"
	"github.com/starford/notesync/internal/snapshot"
	"github.com/starford/notesync/internal/storage"
)

// Logger returns a logger that only reports errors.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestNotesDir creates a temporary note directory with a storage.Provider.
func TestNotesDir(t *testing.T) storage.Provider {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store
}

// TestSnapshot opens a snapshot store in its own temporary directory, so
// its files never show up in a note directory.
func TestSnapshot(t *testing.T) *snapshot.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := snapshot.Open(filepath.Join(dir, "notes.db"), filepath.Join(dir, "notes.toml"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestEngine wires an engine to a fresh note directory and snapshot. Publish
// polling does not sleep.
func TestEngine(t *testing.T, rs remote.Service, opts ...func(*engine.Options)) (*engine.Engine, storage.Provider) {
	t.Helper()
	store := TestNotesDir(t)
	o := engine.Options{
		Store:     store,
		Remote:    rs,
		Snapshots: TestSnapshot(t),
		Logger:    Logger(),
		Sleep:     func(context.Context, time.Duration) error { return nil },
	}
	for _, opt := range opts {
		opt(&o)
	}
	e, err := engine.New(o)
	if err != nil {
		t.Fatal(err)
	}
	return e, store
}
