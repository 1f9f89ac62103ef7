package engine

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strings"

	"github.com/starford/notesync/internal/models"
	"github.com/starford/notesync/internal/naming"
	"github.com/starford/notesync/internal/parser"
	"github.com/starford/notesync/internal/reconcile"
	"github.com/starford/notesync/internal/remote"
)

// Fetch pulls every remote change since the stored cursor into the
// directory, then persists the snapshot with the new cursor.
func (e *Engine) Fetch(ctx context.Context) error {
	entries, cursor, err := e.remote.List(ctx, e.state.Cursor)
	if err != nil {
		return fmt.Errorf("engine: fetch: %w", err)
	}
	slices.SortStableFunc(entries, func(a, b remote.Entry) int { return cmp.Compare(a.Created, b.Created) })

	for _, entry := range entries {
		if err := e.apply(entry); err != nil {
			return err
		}
	}
	e.state.Cursor = cursor
	if len(entries) > 0 {
		e.logger.Info("engine: fetched", slog.Int("changes", len(entries)))
	}
	return e.commit()
}

// apply records one remote entry in the snapshot and mirrors it on disk.
func (e *Engine) apply(entry remote.Entry) error {
	res := parser.Parse(entry.Content, entry.Key)
	n := models.Note{
		Key:         entry.Key,
		Version:     entry.Version,
		Title:       res.Title,
		Body:        res.Body,
		Fingerprint: res.Fingerprint,
		Tags:        nonNil(entry.Tags),
		SystemTags:  nonNil(entry.SystemTags),
		Created:     entry.Created,
		Modified:    entry.Modified,
		Deleted:     entry.Deleted,
		ShareURL:    entry.ShareURL,
		PublishURL:  entry.PublishURL,
	}

	prev, had := e.state.Notes[n.Key]
	delete(e.state.Notes, n.Key)
	onDisk := had && !prev.Deleted && prev.Filename != ""

	if n.Deleted {
		n.Filename = prev.Filename
		if n.Filename == "" {
			n.Filename = naming.FromTitle(n.Title)
		}
		if onDisk {
			if err := e.store.Delete(prev.Filename); err != nil {
				return fmt.Errorf("engine: remove %s: %w", prev.Filename, err)
			}
			e.state.Words.Remove(prev.Filename)
			e.emit(EventDeleted, prev.Filename)
			e.logger.Debug("engine: removed", slog.String("file", prev.Filename))
		}
		n.Body = ""
		e.state.Notes[n.Key] = n
		return nil
	}

	own := ""
	if onDisk {
		own = prev.Filename
	}
	taken := e.takenExcept(own, n.Body)
	if onDisk && prev.Title == n.Title && !taken(prev.Filename) {
		n.Filename = prev.Filename
	} else {
		n.Filename = naming.Allocate(naming.FromTitle(n.Title), taken)
	}

	if onDisk && prev.Filename != n.Filename {
		if err := e.store.Move(prev.Filename, n.Filename); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("engine: rename %s: %w", prev.Filename, err)
		}
		e.state.Words.Remove(prev.Filename)
		e.logger.Debug("engine: renamed", slog.String("from", prev.Filename), slog.String("to", n.Filename))
	}

	if cur, err := e.store.Read(n.Filename); err != nil || cur != n.Body {
		if err := e.store.Write(n.Filename, n.Body); err != nil {
			return fmt.Errorf("engine: write %s: %w", n.Filename, err)
		}
	}
	if err := e.store.SetModTime(n.Filename, n.Modified); err != nil {
		return fmt.Errorf("engine: touch %s: %w", n.Filename, err)
	}
	e.state.Words.Add(n.Filename, reconcile.IndexText(n.Filename, n.Body))
	e.emit(EventUpdated, n.Filename)

	n.Body = ""
	e.state.Notes[n.Key] = n
	return nil
}

// takenExcept reports a filename as taken when an active snapshot note
// holds it, or when an unsynchronized file with different content already
// sits at that name. own is the file the note being placed currently
// occupies and body its content.
func (e *Engine) takenExcept(own, body string) naming.Taken {
	reg := naming.NewRegistry(e.state.Notes)
	return func(name string) bool {
		if _, ok := reg.Owner(name); ok {
			return true
		}
		if own != "" && strings.EqualFold(name, own) {
			return false
		}
		if _, exists := e.store.ModTime(name); !exists {
			return false
		}
		cur, err := e.store.Read(name)
		return err != nil || cur != body
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}
