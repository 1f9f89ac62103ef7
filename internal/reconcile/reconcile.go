// Package reconcile diffs the last synchronized snapshot against the note
// directory.
package reconcile

import (
	"slices"
	"strings"

	"github.com/starford/notesync/internal/checksum"
	"github.com/starford/notesync/internal/index"
	"github.com/starford/notesync/internal/models"
	"github.com/starford/notesync/internal/parser"
	"github.com/starford/notesync/internal/storage"
)

// IndexText is the text indexed for a note file: its stem, so titles are
// searchable, followed by the file content.
func IndexText(filename, content string) string {
	return strings.TrimSuffix(filename, models.FileExt) + "\n" + content
}

// Reconcile walks the directory and returns the current view of every note:
// snapshot notes found on disk (unchanged or changed), files the snapshot
// does not know (new) and snapshot notes whose file is gone (deleted).
// known is never modified; returned notes are copies. Changed and new files
// are re-indexed in words, and filenames neither on disk nor held by an
// active note are dropped from it. The result is sorted by filename.
func Reconcile(known map[string]models.Note, store storage.Provider, words *index.Words) ([]models.Note, error) {
	expected := make(map[string]string, len(known))
	owned := make(map[string]struct{}, len(known))
	for key, n := range known {
		if !n.Deleted && n.Filename != "" {
			owned[n.Filename] = struct{}{}
		}
		// Notes mirrored under hidden or ignored names are outside the scan
		// and must not be mistaken for local deletions.
		if n.Deleted || n.Filename == "" || !store.Eligible(n.Filename) {
			continue
		}
		expected[n.Filename] = key
	}

	files, err := store.List()
	if err != nil {
		return nil, err
	}

	out := make([]models.Note, 0, len(files)+len(expected))
	for _, f := range files {
		owned[f.Name] = struct{}{}
		fp := checksum.Body(f.Content)

		key, ok := expected[f.Name]
		if !ok {
			out = append(out, newNote(f, fp))
			words.Add(f.Name, IndexText(f.Name, f.Content))
			continue
		}
		delete(expected, f.Name)

		n := known[key].Clone()
		n.Body = f.Content
		n.State = models.StateUnchanged
		if f.Modified != n.Modified || fp != n.Fingerprint {
			n.State = models.StateChanged
			n.Modified = f.Modified
			n.Fingerprint = fp
			words.Add(f.Name, IndexText(f.Name, f.Content))
		}
		out = append(out, n)
	}

	for _, key := range expected {
		n := known[key].Clone()
		n.State = models.StateDeleted
		out = append(out, n)
	}
	words.Retain(func(filename string) bool {
		_, ok := owned[filename]
		return ok
	})

	slices.SortFunc(out, func(a, b models.Note) int { return strings.Compare(a.Filename, b.Filename) })
	return out, nil
}

// newNote builds a not-yet-synchronized note from a file the snapshot does
// not know. The file's stem stands in for its first line.
func newNote(f storage.File, fingerprint string) models.Note {
	stem := strings.TrimSuffix(f.Name, models.FileExt)
	res := parser.Parse(stem+"\n\n"+f.Content, stem)
	return models.Note{
		Title:       res.Title,
		Body:        f.Content,
		Fingerprint: fingerprint,
		Filename:    f.Name,
		Tags:        []string{},
		SystemTags:  []string{},
		Created:     f.Modified,
		Modified:    f.Modified,
		State:       models.StateNew,
	}
}

// Dirty returns the notes whose state is not unchanged.
func Dirty(notes []models.Note) []models.Note {
	var out []models.Note
	for _, n := range notes {
		if n.State != models.StateUnchanged {
			out = append(out, n)
		}
	}
	return out
}
