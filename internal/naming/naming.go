// Package naming allocates unique on-disk filenames for note titles.
package naming

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/starford/notesync/internal/models"
)

var suffixRe = regexp.MustCompile(`\.(\d+)$`)

// Taken reports whether a filename is held by another active note.
type Taken func(filename string) bool

// FromTitle returns the unsuffixed filename for a title.
func FromTitle(title string) string {
	return title + models.FileExt
}

// Increment bumps the numeric suffix of filename: "a.txt" becomes "a.1.txt"
// and "a.1.txt" becomes "a.2.txt".
func Increment(filename string) string {
	base := strings.TrimSuffix(filename, models.FileExt)
	n := 0
	if m := suffixRe.FindStringSubmatch(base); m != nil {
		n, _ = strconv.Atoi(m[1])
		base = base[:len(base)-len(m[0])]
	}
	return base + "." + strconv.Itoa(n+1) + models.FileExt
}

// Allocate returns candidate, or the first incremented form of it, that
// taken does not report as in use.
func Allocate(candidate string, taken Taken) string {
	name := candidate
	for taken(name) {
		name = Increment(name)
	}
	return name
}

// Registry is the set of filenames held by active notes, compared
// case-insensitively, keyed back to the owning note key.
type Registry map[string]string

// NewRegistry builds a registry from the active notes in notes.
func NewRegistry(notes map[string]models.Note) Registry {
	r := make(Registry, len(notes))
	for key, n := range notes {
		if n.Deleted || n.Filename == "" {
			continue
		}
		r[strings.ToLower(n.Filename)] = key
	}
	return r
}

// TakenFor returns a Taken that ignores names held by the note key itself.
func (r Registry) TakenFor(key string) Taken {
	return func(filename string) bool {
		owner, ok := r[strings.ToLower(filename)]
		return ok && (key == "" || owner != key)
	}
}

// Owner returns the key of the note holding filename.
func (r Registry) Owner(filename string) (string, bool) {
	key, ok := r[strings.ToLower(filename)]
	return key, ok
}
