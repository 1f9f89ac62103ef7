// Package internal wires configuration, storage, the snapshot and the remote
// into a sync engine, and runs watch mode with its optional status server.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/starford/notesync/internal/api"
	"github.com/starford/notesync/internal/engine"
	"github.com/starford/notesync/internal/remote"
	"github.com/starford/notesync/internal/remote/memory"
	"github.com/starford/notesync/internal/remote/simplenote"
	"github.com/starford/notesync/internal/snapshot"
	"github.com/starford/notesync/internal/sse"
	"github.com/starford/notesync/internal/storage"
	"github.com/starford/notesync/internal/watch"
)

// App is a note directory opened against its remote.
type App struct {
	cfg    *Config
	logger *slog.Logger
	store  *storage.FS
	snaps  *snapshot.Store
	engine *engine.Engine
	editor engine.Editor
	broker *sse.Broker
	logs   io.Closer
}

// Open loads the snapshot for the configured note directory and builds the
// engine. The caller must Close the returned App.
func Open(opts ...Option) (*App, error) {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config
	a := &App{cfg: cfg}

	// Initialize structured JSON logger.
	var out io.Writer = os.Stderr
	if app.logOut != nil {
		out = app.logOut
	}
	if cfg.App.LogFile != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.App.LogFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}
		out, a.logs = lj, lj
	}
	a.logger = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(a.logger)

	dbPath, dumpPath := cfg.Snapshot.Paths(cfg.Notes.Directory)
	a.logger.Debug("Configuration loaded",
		slog.String("notes_dir", cfg.Notes.Directory),
		slog.String("snapshot", dbPath),
		slog.String("remote", cfg.Remote.Kind),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Notes.Directory, 0o755); err != nil {
		a.Close()
		return nil, fmt.Errorf("create notes dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Notes.Directory, cfg.Notes.Ignore...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	a.store = store

	a.snaps, err = snapshot.Open(dbPath, dumpPath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init snapshot: %w", err)
	}

	rs := app.remote
	if rs == nil {
		rs = newRemote(cfg.Remote)
	}

	if cfg.App.HTTP.Enabled() {
		a.broker = sse.NewBroker(2 * time.Second)
	}

	a.engine, err = engine.New(engine.Options{
		Store:        store,
		Remote:       rs,
		Snapshots:    a.snaps,
		Logger:       a.logger,
		OnEvent:      a.fanOut(app.onEvent),
		PollInterval: cfg.Publish.PollInterval,
		PollAttempts: cfg.Publish.PollAttempts,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init engine: %w", err)
	}

	a.editor = app.editor
	if a.editor == nil {
		a.editor = engine.CommandEditor(cfg.Notes.EditorCommand())
	}

	return a, nil
}

func newRemote(cfg RemoteConfig) remote.Service {
	if cfg.Kind == RemoteMemory {
		return memory.New()
	}
	return simplenote.New(cfg.Simplenote())
}

// fanOut delivers engine events to the SSE broker and to fn.
func (a *App) fanOut(fn engine.EventCallback) engine.EventCallback {
	return func(kind, filename string) {
		if a.broker != nil {
			a.broker.PublishFileEvent(kind, filename)
		}
		if fn != nil {
			fn(kind, filename)
		}
	}
}

// Engine returns the sync engine.
func (a *App) Engine() *engine.Engine { return a.engine }

// Editor returns the editor used by edit.
func (a *App) Editor() engine.Editor { return a.editor }

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// Close releases the snapshot, the broker and the log file.
func (a *App) Close() error {
	var errs []error
	if a.broker != nil {
		a.broker.Close()
	}
	if a.snaps != nil {
		errs = append(errs, a.snaps.Close())
	}
	if a.logs != nil {
		errs = append(errs, a.logs.Close())
	}
	return errors.Join(errs...)
}

// Run opens the configured note directory and watches it until a signal
// arrives or sync fails.
func Run(ctx context.Context, opts ...Option) error {
	a, err := Open(opts...)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Watch(ctx)
}

// Watch runs continuous sync. When http.port is set it also serves the
// status API and event stream from the views the scheduler publishes.
func (a *App) Watch(ctx context.Context) error {
	cfg := a.cfg
	logger := a.logger

	views := &api.Views{}
	scheduler := watch.New(a.engine, a.store, watch.Options{
		FetchInterval: cfg.Watch.FetchInterval,
		SendWait:      cfg.Watch.SendWait,
		Tick:          cfg.Watch.Tick,
		Logger:        logger,
		OnView: func(v *engine.View) {
			views.Store(v)
			if a.broker != nil {
				a.broker.PublishStatus(len(v.Notes), v.Pending)
			}
		},
	})

	g, gCtx := errgroup.WithContext(ctx)
	stop, cancel := context.WithCancel(gCtx)
	defer cancel()

	g.Go(func() error {
		return scheduler.Run(stop)
	})

	var httpServer *http.Server
	if cfg.App.HTTP.Enabled() {
		httpServer = &http.Server{
			Addr:              cfg.App.HTTP.Address(),
			Handler:           a.statusRouter(views),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g.Go(func() error {
			logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})
	}

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-stop.Done():
		}
		cancel()

		if httpServer != nil {
			shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
			defer done()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
			}
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Watch error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Watch stopped")
	return nil
}

func (a *App) statusRouter(views *api.Views) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if views.Load() == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"syncing"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	var events http.Handler
	if a.broker != nil {
		events = a.broker
	}
	r.Mount("/api", api.NewRouter(views, a.store, a.cfg.Auth.BearerToken(), events))
	return r
}
