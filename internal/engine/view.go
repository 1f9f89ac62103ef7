package engine

import (
	"slices"
	"time"

	"github.com/starford/notesync/internal/index"
	"github.com/starford/notesync/internal/models"
)

// View is an immutable copy of the synchronized state, safe to share with
// readers running alongside the engine.
type View struct {
	Notes   []models.Note
	Tags    []models.TagCount
	Pending int
	Cursor  string
	At      time.Time

	words *index.Words
}

// View snapshots the active notes, tag counts and word index. pending is
// the size of the dirty set as last seen by the caller.
func (e *Engine) View(pending int) *View {
	notes := e.Active()
	SortForDisplay(notes)
	return &View{
		Notes:   notes,
		Tags:    e.Tags(),
		Pending: pending,
		Cursor:  e.state.Cursor,
		At:      e.now(),
		words:   index.FromMap(e.state.Words.Map()),
	}
}

// Search returns the notes whose filename or indexed content contains q.
// An empty q returns every note.
func (v *View) Search(q string) []models.Note {
	if q == "" {
		return slices.Clone(v.Notes)
	}
	hits := make(map[string]struct{})
	for _, name := range v.words.Lookup(q) {
		hits[name] = struct{}{}
	}
	var out []models.Note
	for _, n := range v.Notes {
		if _, ok := hits[n.Filename]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Note returns the note stored under filename.
func (v *View) Note(filename string) (models.Note, bool) {
	for _, n := range v.Notes {
		if n.Filename == filename {
			return n, true
		}
	}
	return models.Note{}, false
}
