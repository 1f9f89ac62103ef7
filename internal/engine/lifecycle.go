package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/notesync/internal/apperr"
	"github.com/starford/notesync/internal/models"
)

// AddTag adds tag to every note selected by terms.
func (e *Engine) AddTag(ctx context.Context, tag string, terms []string) ([]models.Note, error) {
	return e.mutate(ctx, terms, func(n *models.Note) bool {
		if n.HasTag(tag) {
			return false
		}
		n.Tags = models.AddTag(n.Tags, tag)
		return true
	})
}

// RemoveTag removes tag from every note selected by terms.
func (e *Engine) RemoveTag(ctx context.Context, tag string, terms []string) ([]models.Note, error) {
	return e.mutate(ctx, terms, func(n *models.Note) bool {
		if !n.HasTag(tag) {
			return false
		}
		n.Tags = models.RemoveTag(n.Tags, tag)
		return true
	})
}

// Pin pins every note selected by terms.
func (e *Engine) Pin(ctx context.Context, terms []string) ([]models.Note, error) {
	return e.setSystemTag(ctx, terms, models.SystemTagPinned, true)
}

// Unpin unpins every note selected by terms.
func (e *Engine) Unpin(ctx context.Context, terms []string) ([]models.Note, error) {
	return e.setSystemTag(ctx, terms, models.SystemTagPinned, false)
}

// Trash moves every synchronized note selected by terms to the remote
// trash. The following pull removes the local files.
func (e *Engine) Trash(ctx context.Context, terms []string) ([]models.Note, error) {
	return e.mutate(ctx, terms, func(n *models.Note) bool {
		if n.Key == "" {
			e.logger.Warn("engine: not trashing unsynchronized note", slog.String("file", n.Filename))
			return false
		}
		n.State = models.StateDeleted
		return true
	})
}

// Restore brings trashed notes selected by terms back from the remote
// trash. Terms match tags ("#tag") or title substrings; no terms select
// nothing.
func (e *Engine) Restore(ctx context.Context, terms []string) ([]models.Note, error) {
	trashed := e.matchTrashed(terms)
	if len(trashed) == 0 {
		return nil, apperr.ErrNoMatch
	}

	var keys []string
	for _, n := range trashed {
		entry, err := e.remote.Get(ctx, n.Key)
		if err == nil {
			entry.Deleted = false
			entry.Modified = e.now().Unix()
			entry, err = e.remote.Update(ctx, entry)
		}
		if err == nil {
			err = e.apply(entry)
		}
		if err != nil {
			_ = e.commit()
			return nil, fmt.Errorf("engine: restore %q: %w", n.Title, err)
		}
		e.logger.Info("engine: restored", slog.String("key", n.Key), slog.String("title", n.Title))
		keys = append(keys, n.Key)
	}
	if err := e.commit(); err != nil {
		return nil, err
	}
	if err := e.Fetch(ctx); err != nil {
		return nil, err
	}
	return e.notesByKey(keys), nil
}

// Purge permanently deletes trashed notes selected by terms. Terms match
// as in Restore.
func (e *Engine) Purge(ctx context.Context, terms []string) ([]models.Note, error) {
	trashed := e.matchTrashed(terms)
	if len(trashed) == 0 {
		return nil, apperr.ErrNoMatch
	}
	for _, n := range trashed {
		if err := e.remote.Delete(ctx, n.Key); err != nil {
			_ = e.commit()
			return nil, fmt.Errorf("engine: purge %q: %w", n.Title, err)
		}
		delete(e.state.Notes, n.Key)
		e.logger.Info("engine: purged", slog.String("key", n.Key), slog.String("title", n.Title))
	}
	if err := e.commit(); err != nil {
		return nil, err
	}
	return trashed, e.Fetch(ctx)
}

// Publish requests publication of every note selected by terms and waits
// until the remote reports a publish URL for each.
func (e *Engine) Publish(ctx context.Context, terms []string) ([]models.Note, error) {
	return e.setPublished(ctx, terms, true)
}

// Unpublish withdraws publication and waits until every publish URL is
// gone.
func (e *Engine) Unpublish(ctx context.Context, terms []string) ([]models.Note, error) {
	return e.setPublished(ctx, terms, false)
}

func (e *Engine) setPublished(ctx context.Context, terms []string, want bool) ([]models.Note, error) {
	notes, err := e.setSystemTag(ctx, terms, models.SystemTagPublished, want)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(notes))
	for i, n := range notes {
		keys[i] = n.Key
	}

	for attempt := 0; ; attempt++ {
		settled := true
		for _, key := range keys {
			if (e.state.Notes[key].PublishURL != "") != want {
				settled = false
				break
			}
		}
		if settled {
			return e.notesByKey(keys), nil
		}
		if attempt == e.pollAttempts {
			return e.notesByKey(keys), apperr.ErrPublishTimeout
		}
		if err := e.sleep(ctx, e.pollInterval); err != nil {
			return nil, err
		}
		if err := e.Fetch(ctx); err != nil {
			return nil, err
		}
	}
}

func (e *Engine) setSystemTag(ctx context.Context, terms []string, tag string, on bool) ([]models.Note, error) {
	return e.mutate(ctx, terms, func(n *models.Note) bool {
		if n.HasSystemTag(tag) == on {
			return false
		}
		if on {
			n.SystemTags = models.AddTag(n.SystemTags, tag)
		} else {
			n.SystemTags = models.RemoveTag(n.SystemTags, tag)
		}
		return true
	})
}

// mutate applies fn to every note selected by terms, pushes the notes fn
// modified, then pulls. Metadata-only edits get a fresh modification time
// so they count as changes. It returns every selected note that exists
// remotely, as recorded after the pull. An empty term list selects nothing.
func (e *Engine) mutate(ctx context.Context, terms []string, fn func(*models.Note) bool) ([]models.Note, error) {
	if len(terms) == 0 {
		return nil, apperr.ErrNoMatch
	}
	matched, err := e.Find(terms)
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		return nil, apperr.ErrNoMatch
	}

	var (
		push []models.Note
		keys []string
	)
	for _, n := range matched {
		if !fn(&n) {
			if n.Key != "" {
				keys = append(keys, n.Key)
			}
			continue
		}
		n.Modified = e.now().Unix()
		if n.State == models.StateUnchanged {
			n.State = models.StateChanged
		}
		push = append(push, n)
	}

	pushed, err := e.sendAll(ctx, push)
	if err != nil {
		return nil, err
	}
	if err := e.Fetch(ctx); err != nil {
		return nil, err
	}
	return e.notesByKey(append(pushed, keys...)), nil
}

// matchTrashed selects trashed notes whose tags or titles match every
// term.
func (e *Engine) matchTrashed(terms []string) []models.Note {
	if len(terms) == 0 {
		return nil
	}
	var out []models.Note
	for _, n := range e.Trashed() {
		ok := true
		for _, term := range terms {
			if strings.HasPrefix(term, "#") || strings.HasPrefix(term, "%") {
				ok = n.HasTag(term[1:])
			} else {
				ok = strings.Contains(strings.ToLower(n.Title), strings.ToLower(term))
			}
			if !ok {
				break
			}
		}
		if ok {
			out = append(out, n)
		}
	}
	return out
}

func (e *Engine) notesByKey(keys []string) []models.Note {
	out := make([]models.Note, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if n, ok := e.state.Notes[key]; ok {
			out = append(out, n.Clone())
		}
	}
	SortForDisplay(out)
	return out
}
