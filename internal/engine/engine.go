// Package engine synchronizes the note directory with the remote note
// service. An Engine owns the in-memory snapshot (notes, cursor, word index)
// for one run; it is not safe for concurrent use.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/starford/notesync/internal/models"
	"github.com/starford/notesync/internal/remote"
	"github.com/starford/notesync/internal/snapshot"
	"github.com/starford/notesync/internal/storage"
)

// Event kinds passed to an EventCallback.
const (
	EventUpdated = "updated" // a pull wrote or renamed a note file
	EventDeleted = "deleted" // a pull removed a note file
	EventSent    = "sent"    // a local change was pushed
)

// EventCallback is called after the engine changes a note file or pushes
// a note.
type EventCallback func(kind, filename string)

// Snapshots loads and persists engine state.
type Snapshots interface {
	Load() (*snapshot.State, error)
	Save(*snapshot.State) error
}

// Options configures an Engine. Store, Remote and Snapshots are required.
type Options struct {
	Store     storage.Provider
	Remote    remote.Service
	Snapshots Snapshots
	Logger    *slog.Logger
	OnEvent   EventCallback

	// Now and Sleep default to the wall clock.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error

	// PollInterval and PollAttempts bound the wait for publish URLs.
	PollInterval time.Duration
	PollAttempts int
}

// Defaults for publish polling.
const (
	DefaultPollInterval = time.Second
	DefaultPollAttempts = 10
)

// Engine runs pulls, pushes and note lifecycle operations.
type Engine struct {
	store   storage.Provider
	remote  remote.Service
	snaps   Snapshots
	logger  *slog.Logger
	onEvent EventCallback
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error

	pollInterval time.Duration
	pollAttempts int

	state *snapshot.State
}

// New loads the snapshot and returns a ready engine.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil || opts.Remote == nil || opts.Snapshots == nil {
		return nil, fmt.Errorf("engine: store, remote and snapshots are required")
	}
	st, err := opts.Snapshots.Load()
	if err != nil {
		return nil, fmt.Errorf("engine: load snapshot: %w", err)
	}

	e := &Engine{
		store:        opts.Store,
		remote:       opts.Remote,
		snaps:        opts.Snapshots,
		logger:       opts.Logger,
		onEvent:      opts.OnEvent,
		now:          opts.Now,
		sleep:        opts.Sleep,
		pollInterval: opts.PollInterval,
		pollAttempts: opts.PollAttempts,
		state:        st,
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.sleep == nil {
		e.sleep = sleepContext
	}
	if e.pollInterval <= 0 {
		e.pollInterval = DefaultPollInterval
	}
	if e.pollAttempts <= 0 {
		e.pollAttempts = DefaultPollAttempts
	}
	return e, nil
}

// Store returns the note directory the engine syncs.
func (e *Engine) Store() storage.Provider { return e.store }

// Cursor returns the remote cursor of the last pull.
func (e *Engine) Cursor() string { return e.state.Cursor }

// Note returns the snapshot note with key.
func (e *Engine) Note(key string) (models.Note, bool) {
	n, ok := e.state.Notes[key]
	return n.Clone(), ok
}

// Active returns the active snapshot notes sorted by filename.
func (e *Engine) Active() []models.Note {
	out := make([]models.Note, 0, len(e.state.Notes))
	for _, n := range e.state.Notes {
		if !n.Deleted {
			out = append(out, n.Clone())
		}
	}
	slices.SortFunc(out, func(a, b models.Note) int { return strings.Compare(a.Filename, b.Filename) })
	return out
}

// Trashed returns the trashed snapshot notes sorted by title.
func (e *Engine) Trashed() []models.Note {
	var out []models.Note
	for _, n := range e.state.Notes {
		if n.Deleted {
			out = append(out, n.Clone())
		}
	}
	slices.SortFunc(out, func(a, b models.Note) int { return strings.Compare(a.Title, b.Title) })
	return out
}

// commit persists the in-memory state.
func (e *Engine) commit() error {
	if err := e.snaps.Save(e.state); err != nil {
		return fmt.Errorf("engine: save snapshot: %w", err)
	}
	return nil
}

func (e *Engine) emit(kind, filename string) {
	if e.onEvent != nil {
		e.onEvent(kind, filename)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
