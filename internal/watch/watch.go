// Package watch runs continuous two-way sync: a filesystem subscriber
// reports touched note files to a driver that pulls on a timer and pushes
// local edits once they have settled.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/starford/notesync/internal/engine"
	"github.com/starford/notesync/internal/models"
	"github.com/starford/notesync/internal/storage"
)

// Defaults for Options.
const (
	DefaultFetchInterval = 10 * time.Second
	DefaultSendWait      = 5 * time.Second
	DefaultTick          = time.Second
)

// Syncer is the part of the engine the driver uses.
type Syncer interface {
	Fetch(ctx context.Context) error
	Changed() ([]models.Note, error)
	SendOne(ctx context.Context, n models.Note) error
	View(pending int) *engine.View
}

// Options configures a Scheduler.
type Options struct {
	// FetchInterval is the time between pulls.
	FetchInterval time.Duration
	// SendWait is how long a file must go unmodified before it is pushed.
	SendWait time.Duration
	// Tick is the driver's wake-up period.
	Tick time.Duration

	Logger *slog.Logger
	// OnView receives a fresh view whenever the driver changed something.
	OnView func(*engine.View)
	Now    func() time.Time
}

// Scheduler drives a Syncer from filesystem events and timers. Only the
// driver goroutine ever calls the Syncer.
type Scheduler struct {
	sync   Syncer
	store  storage.Provider
	opts   Options
	logger *slog.Logger
}

// New creates a scheduler for the notes in store.
func New(s Syncer, store storage.Provider, opts Options) *Scheduler {
	if opts.FetchInterval <= 0 {
		opts.FetchInterval = DefaultFetchInterval
	}
	if opts.SendWait < 0 {
		opts.SendWait = 0
	}
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{sync: s, store: store, opts: opts, logger: logger}
}

// Run watches until ctx is cancelled, which is not an error, or until a
// pull or push fails. The filesystem watcher is closed before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()
	if err := w.Add(s.store.Root()); err != nil {
		return fmt.Errorf("watch: add %s: %w", s.store.Root(), err)
	}
	s.logger.Info("watch: started",
		slog.String("root", s.store.Root()),
		slog.Duration("fetch_interval", s.opts.FetchInterval),
		slog.Duration("send_wait", s.opts.SendWait))

	touched := make(chan string, 64)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.subscribe(gctx, w, touched) })
	g.Go(func() error { return s.drive(gctx, touched) })

	err = g.Wait()
	s.logger.Info("watch: stopped")
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// subscribe forwards the names of touched note files to the driver.
func (s *Scheduler) subscribe(ctx context.Context, w *fsnotify.Watcher, touched chan<- string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			name := filepath.Base(ev.Name)
			if !s.store.Eligible(name) {
				continue
			}
			select {
			case touched <- name:
			case <-ctx.Done():
				return ctx.Err()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watch: fsnotify error", slog.String("error", watchErr.Error()))
		}
	}
}

// drive owns the dirty set. It pulls once per fetch interval and pushes
// settled notes on every tick.
func (s *Scheduler) drive(ctx context.Context, touched <-chan string) error {
	if err := s.sync.Fetch(ctx); err != nil {
		return err
	}
	lastFetch := s.opts.Now()
	dirty, err := s.sync.Changed()
	if err != nil {
		return err
	}
	s.publish(dirty)

	stale := false
	ticker := time.NewTicker(s.opts.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case name := <-touched:
			s.logger.Debug("watch: touched", slog.String("file", name))
			stale = true

		case <-ticker.C:
			changed := false
			if s.opts.Now().Sub(lastFetch) >= s.opts.FetchInterval {
				if err := s.sync.Fetch(ctx); err != nil {
					return err
				}
				lastFetch = s.opts.Now()
				stale, changed = true, true
			}
			if stale {
				if dirty, err = s.sync.Changed(); err != nil {
					return err
				}
				stale, changed = false, true
			}

			sent := 0
			for _, n := range dirty {
				ready, recheck := s.settled(n)
				if recheck {
					stale = true
				}
				if !ready {
					continue
				}
				if err := s.sync.SendOne(ctx, n); err != nil {
					return err
				}
				sent++
			}
			if sent > 0 {
				s.logger.Info("watch: pushed", slog.Int("notes", sent))
				if err := s.sync.Fetch(ctx); err != nil {
					return err
				}
				lastFetch = s.opts.Now()
				// The pull may bump versions without a file event.
				if dirty, err = s.sync.Changed(); err != nil {
					return err
				}
				changed = true
			}
			if changed {
				s.publish(dirty)
			}
		}
	}
}

// settled reports whether n can be pushed: its file is gone and it is
// already a deletion, or the file has not been modified for SendWait.
// recheck is set when the dirty set no longer describes the file.
func (s *Scheduler) settled(n models.Note) (ready, recheck bool) {
	if n.State == models.StateDeleted {
		return true, false
	}
	mtime, ok := s.store.ModTime(n.Filename)
	if !ok {
		return false, true
	}
	age := s.opts.Now().Sub(time.Unix(mtime, 0))
	return age >= s.opts.SendWait, false
}

func (s *Scheduler) publish(dirty []models.Note) {
	if s.opts.OnView != nil {
		s.opts.OnView(s.sync.View(len(dirty)))
	}
}
