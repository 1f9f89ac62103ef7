// Package index maintains the word index used to match notes by content.
//
// The index maps lowercased word stems to the set of note filenames whose
// text contains them. It is rebuilt incrementally: Add drops every previous
// association of a filename before recording the new ones.
package index

import (
	"slices"
	"strings"
	"unicode"
)

// MaxStemLen is the rune length from which tokens are discarded.
const MaxStemLen = 30

// Words is an inverted index from stem to filenames. It is not safe for
// concurrent use; the sync engine owns it.
type Words struct {
	stems map[string][]string
	files map[string][]string
}

// New returns an empty index.
func New() *Words {
	return &Words{
		stems: make(map[string][]string),
		files: make(map[string][]string),
	}
}

// FromMap rebuilds an index from its persisted stem → filenames form.
func FromMap(m map[string][]string) *Words {
	w := New()
	for stem, names := range m {
		for _, name := range names {
			w.link(stem, name)
		}
	}
	return w
}

// Map returns a copy of the index in stem → filenames form.
func (w *Words) Map() map[string][]string {
	out := make(map[string][]string, len(w.stems))
	for stem, names := range w.stems {
		out[stem] = slices.Clone(names)
	}
	return out
}

// Len returns the number of distinct stems.
func (w *Words) Len() int { return len(w.stems) }

// Add indexes text under filename, replacing whatever was indexed for it.
func (w *Words) Add(filename, text string) {
	w.Remove(filename)
	for _, stem := range Stems(text) {
		w.link(stem, filename)
	}
}

// Remove drops every association of filename.
func (w *Words) Remove(filename string) {
	for _, stem := range w.files[filename] {
		names := slices.DeleteFunc(w.stems[stem], func(n string) bool { return n == filename })
		if len(names) == 0 {
			delete(w.stems, stem)
		} else {
			w.stems[stem] = names
		}
	}
	delete(w.files, filename)
}

// Retain drops every filename for which keep returns false.
func (w *Words) Retain(keep func(filename string) bool) {
	for filename := range w.files {
		if !keep(filename) {
			w.Remove(filename)
		}
	}
}

// Lookup returns the sorted filenames indexed under any stem containing
// substr.
func (w *Words) Lookup(substr string) []string {
	substr = strings.ToLower(substr)
	seen := make(map[string]struct{})
	for stem, names := range w.stems {
		if !strings.Contains(stem, substr) {
			continue
		}
		for _, n := range names {
			seen[n] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Has reports whether filename is indexed under stem.
func (w *Words) Has(stem, filename string) bool {
	return slices.Contains(w.stems[stem], filename)
}

func (w *Words) link(stem, filename string) {
	if slices.Contains(w.stems[stem], filename) {
		return
	}
	w.stems[stem] = append(w.stems[stem], filename)
	w.files[filename] = append(w.files[filename], stem)
}

// Stems tokenizes text into the distinct stems the index would record, in
// order of first appearance.
func Stems(text string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordRune(r)
	})
	seen := make(map[string]struct{}, len(tokens))
	var out []string
	for _, tok := range tokens {
		stem := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return r
			}
			return -1
		}, tok)
		if stem == "" || len([]rune(stem)) >= MaxStemLen {
			continue
		}
		if _, stop := stopwords[stem]; stop {
			continue
		}
		if _, dup := seen[stem]; dup {
			continue
		}
		seen[stem] = struct{}{}
		out = append(out, stem)
	}
	return out
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}
