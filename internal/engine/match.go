package engine

import (
	"cmp"
	"slices"
	"strings"

	"github.com/starford/notesync/internal/models"
)

// Find returns the active notes selected by every term, pinned notes
// first, then most recently modified first.
//
// A term starting with "#" or "%" selects an exact tag. A term containing
// a space matches a filename substring, ignoring case. Any other term is
// looked up in the word index. No terms select every active note.
func (e *Engine) Find(terms []string) ([]models.Note, error) {
	notes, err := e.Notes()
	if err != nil {
		return nil, err
	}

	matched := make([]models.Note, 0, len(notes))
	for _, n := range notes {
		if n.State != models.StateDeleted && !n.Deleted {
			matched = append(matched, n)
		}
	}
	for _, term := range terms {
		keep := e.matcher(term)
		matched = slices.DeleteFunc(matched, func(n models.Note) bool { return !keep(n) })
	}

	SortForDisplay(matched)
	return matched, nil
}

func (e *Engine) matcher(term string) func(models.Note) bool {
	switch {
	case strings.HasPrefix(term, "#"), strings.HasPrefix(term, "%"):
		tag := term[1:]
		return func(n models.Note) bool { return n.HasTag(tag) }
	case strings.Contains(term, " "):
		sub := strings.ToLower(term)
		return func(n models.Note) bool { return strings.Contains(strings.ToLower(n.Filename), sub) }
	default:
		hits := make(map[string]struct{})
		for _, name := range e.state.Words.Lookup(term) {
			hits[name] = struct{}{}
		}
		return func(n models.Note) bool {
			_, ok := hits[n.Filename]
			return ok
		}
	}
}

// SortForDisplay orders notes pinned first, then by modification time
// descending, then by filename.
func SortForDisplay(notes []models.Note) {
	slices.SortFunc(notes, func(a, b models.Note) int {
		if a.Pinned() != b.Pinned() {
			if a.Pinned() {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(b.Modified, a.Modified); c != 0 {
			return c
		}
		return strings.Compare(a.Filename, b.Filename)
	})
}

// Tags counts the active snapshot notes carrying each user tag, sorted by
// tag.
func (e *Engine) Tags() []models.TagCount {
	counts := make(map[string]int)
	for _, n := range e.state.Notes {
		if n.Deleted {
			continue
		}
		for _, t := range n.Tags {
			counts[t]++
		}
	}
	out := make([]models.TagCount, 0, len(counts))
	for tag, c := range counts {
		out = append(out, models.TagCount{Tag: tag, Count: c})
	}
	slices.SortFunc(out, func(a, b models.TagCount) int {
		if c := strings.Compare(strings.ToLower(a.Tag), strings.ToLower(b.Tag)); c != 0 {
			return c
		}
		return strings.Compare(a.Tag, b.Tag)
	})
	return out
}
