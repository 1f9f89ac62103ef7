package internal

import (
	"io"

	"github.com/starford/notesync/internal/engine"
	"github.com/starford/notesync/internal/remote"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	remote  remote.Service
	logOut  io.Writer
	onEvent engine.EventCallback
	editor  engine.Editor
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithRemote replaces the remote selected by the configuration.
func WithRemote(rs remote.Service) Option {
	return func(a *application) {
		a.remote = rs
	}
}

// WithLogOutput sends logs to w unless the configuration names a log file.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOut = w
	}
}

// WithEventCallback receives every file event the engine emits.
func WithEventCallback(fn engine.EventCallback) Option {
	return func(a *application) {
		a.onEvent = fn
	}
}

// WithEditor replaces the editor command from the configuration.
func WithEditor(ed engine.Editor) Option {
	return func(a *application) {
		a.editor = ed
	}
}
