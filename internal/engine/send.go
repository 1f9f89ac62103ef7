package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/notesync/internal/models"
	"github.com/starford/notesync/internal/reconcile"
	"github.com/starford/notesync/internal/remote"
)

// Notes returns the current view of every note: the snapshot diffed
// against the directory, each note carrying its body and local state.
func (e *Engine) Notes() ([]models.Note, error) {
	notes, err := reconcile.Reconcile(e.state.Notes, e.store, e.state.Words)
	if err != nil {
		return nil, fmt.Errorf("engine: reconcile: %w", err)
	}
	return notes, nil
}

// Changed returns the notes whose local state is new, changed or deleted.
func (e *Engine) Changed() ([]models.Note, error) {
	notes, err := e.Notes()
	if err != nil {
		return nil, err
	}
	return reconcile.Dirty(notes), nil
}

// Send pushes every local change, then pulls.
func (e *Engine) Send(ctx context.Context) error {
	dirty, err := e.Changed()
	if err != nil {
		return err
	}
	if _, err := e.sendAll(ctx, dirty); err != nil {
		return err
	}
	return e.Fetch(ctx)
}

// SendOne pushes a single note as returned by Changed and persists the
// result. It does not pull.
func (e *Engine) SendOne(ctx context.Context, n models.Note) error {
	_, sendErr := e.sendOne(ctx, n)
	if err := e.commit(); err != nil {
		return err
	}
	return sendErr
}

// sendAll pushes notes in order, stopping at the first failure, and
// returns the keys of the pushed notes. Whatever was pushed before a
// failure is persisted either way so a rerun does not create duplicates.
func (e *Engine) sendAll(ctx context.Context, notes []models.Note) ([]string, error) {
	var (
		keys    []string
		sendErr error
	)
	for _, n := range notes {
		var key string
		if key, sendErr = e.sendOne(ctx, n); sendErr != nil {
			break
		}
		if key != "" {
			keys = append(keys, key)
		}
	}
	if err := e.commit(); err != nil {
		return nil, err
	}
	return keys, sendErr
}

// sendOne dispatches n by state and returns the key of the remote note.
func (e *Engine) sendOne(ctx context.Context, n models.Note) (string, error) {
	switch n.State {
	case models.StateDeleted:
		return n.Key, e.pushTrash(ctx, n)
	case models.StateNew:
		return e.pushNew(ctx, n)
	case models.StateChanged:
		return n.Key, e.pushChange(ctx, n)
	default:
		return n.Key, nil
	}
}

func (e *Engine) pushTrash(ctx context.Context, n models.Note) error {
	if n.Key == "" {
		return nil
	}
	entry, err := e.remote.Trash(ctx, n.Key)
	if err != nil {
		return fmt.Errorf("engine: trash %s: %w", n.Filename, err)
	}
	e.logger.Info("engine: trashed", slog.String("file", n.Filename), slog.String("key", n.Key))
	e.emit(EventSent, n.Filename)
	return e.apply(entry)
}

// pushNew creates the remote note for a file the snapshot does not know.
// The file's stem becomes the first line of the remote content.
func (e *Engine) pushNew(ctx context.Context, n models.Note) (string, error) {
	echo, err := e.remote.Update(ctx, remote.Entry{
		Content:    n.Stem() + "\n\n" + n.Body,
		Tags:       nonNil(n.Tags),
		SystemTags: nonNil(n.SystemTags),
		Created:    n.Created,
		Modified:   n.Modified,
	})
	if err != nil {
		return "", fmt.Errorf("engine: create %s: %w", n.Filename, err)
	}
	e.logger.Info("engine: created", slog.String("file", n.Filename), slog.String("key", echo.Key))
	e.emit(EventSent, n.Filename)

	// Seed the snapshot with the file the echo came from. apply keeps that
	// name only when the stem is already the title the server derives;
	// otherwise the file moves to the name a pull would give it.
	e.state.Notes[echo.Key] = models.Note{
		Key:      echo.Key,
		Title:    n.Stem(),
		Filename: n.Filename,
	}
	return echo.Key, e.apply(echo)
}

func (e *Engine) pushChange(ctx context.Context, n models.Note) error {
	echo, err := e.remote.Update(ctx, remote.Entry{
		Key:        n.Key,
		Version:    n.Version,
		Content:    n.Content(),
		Tags:       nonNil(n.Tags),
		SystemTags: nonNil(n.SystemTags),
		Created:    n.Created,
		Modified:   n.Modified,
		Deleted:    n.Deleted,
		ShareURL:   n.ShareURL,
		PublishURL: n.PublishURL,
	})
	if err != nil {
		return fmt.Errorf("engine: update %s: %w", n.Filename, err)
	}
	e.logger.Info("engine: updated", slog.String("file", n.Filename), slog.String("key", n.Key))
	e.emit(EventSent, n.Filename)
	return e.apply(echo)
}
