package reconcile

import (
	"slices"
	"testing"

	"github.com/starford/notesync/internal/checksum"
	"github.com/starford/notesync/internal/index"
	"github.com/starford/notesync/internal/models"
	"github.com/starford/notesync/internal/storage"
)

func testStore(t *testing.T) *storage.FS {
	t.Helper()
	s, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return s
}

// synced writes a file and returns the snapshot note that matches it.
func synced(t *testing.T, s storage.Provider, key, filename, body string, modified int64) models.Note {
	t.Helper()
	if err := s.Write(filename, body); err != nil {
		t.Fatal(err)
	}
	if err := s.SetModTime(filename, modified); err != nil {
		t.Fatal(err)
	}
	return models.Note{
		Key:         key,
		Version:     1,
		Filename:    filename,
		Fingerprint: checksum.Body(body),
		Modified:    modified,
	}
}

func byFilename(notes []models.Note) map[string]models.Note {
	m := make(map[string]models.Note, len(notes))
	for _, n := range notes {
		m[n.Filename] = n
	}
	return m
}

func TestReconcile_States(t *testing.T) {
	s := testStore(t)
	known := map[string]models.Note{
		"a": synced(t, s, "a", "Same.txt", "same body", 1000),
		"b": synced(t, s, "b", "Edited.txt", "old body", 1000),
		"c": {Key: "c", Filename: "Gone.txt", Modified: 1000},
		"d": {Key: "d", Filename: "Trashed.txt", Deleted: true},
	}
	if err := s.Write("Edited.txt", "new body"); err != nil {
		t.Fatal(err)
	}
	if err := s.Write("Fresh idea.txt", "first draft"); err != nil {
		t.Fatal(err)
	}
	if err := s.Write(".hidden.txt", "x"); err != nil {
		t.Fatal(err)
	}

	words := index.New()
	notes, err := Reconcile(known, s, words)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	got := byFilename(notes)
	if len(got) != 4 {
		t.Fatalf("notes = %d, want 4: %+v", len(got), notes)
	}

	want := map[string]models.State{
		"Same.txt":       models.StateUnchanged,
		"Edited.txt":     models.StateChanged,
		"Gone.txt":       models.StateDeleted,
		"Fresh idea.txt": models.StateNew,
	}
	for name, state := range want {
		if got[name].State != state {
			t.Errorf("%s state = %q, want %q", name, got[name].State, state)
		}
	}

	if got["Edited.txt"].Body != "new body" {
		t.Errorf("changed body = %q", got["Edited.txt"].Body)
	}
	fresh := got["Fresh idea.txt"]
	if fresh.Key != "" || fresh.Title != "Fresh idea" || fresh.Body != "first draft" {
		t.Errorf("new note = %+v", fresh)
	}
	if !words.Has("draft", "Fresh idea.txt") || !words.Has("idea", "Fresh idea.txt") {
		t.Error("new note not indexed")
	}
	if !words.Has("new", "Edited.txt") {
		t.Error("changed note not re-indexed")
	}
	if words.Has("body", "Same.txt") {
		t.Error("unchanged note should not be re-indexed")
	}
	if known["b"].Body != "" || known["b"].Fingerprint != checksum.Body("old body") {
		t.Error("snapshot note was mutated")
	}
}

func TestReconcile_ModTimeDriftIsChange(t *testing.T) {
	s := testStore(t)
	known := map[string]models.Note{"a": synced(t, s, "a", "A.txt", "body", 1000)}
	if err := s.SetModTime("A.txt", 2000); err != nil {
		t.Fatal(err)
	}
	notes, err := Reconcile(known, s, index.New())
	if err != nil {
		t.Fatal(err)
	}
	if notes[0].State != models.StateChanged || notes[0].Modified != 2000 {
		t.Errorf("note = %+v", notes[0])
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	s := testStore(t)
	known := map[string]models.Note{
		"a": synced(t, s, "a", "A.txt", "alpha", 1000),
		"b": synced(t, s, "b", "B.txt", "beta", 1000),
	}
	words := index.New()
	for pass := range 2 {
		notes, err := Reconcile(known, s, words)
		if err != nil {
			t.Fatal(err)
		}
		if dirty := Dirty(notes); len(dirty) != 0 {
			t.Errorf("pass %d: dirty = %+v", pass, dirty)
		}
	}
}

func TestReconcile_SortedByFilename(t *testing.T) {
	s := testStore(t)
	for _, name := range []string{"c.txt", "a.txt", "b.txt"} {
		if err := s.Write(name, name); err != nil {
			t.Fatal(err)
		}
	}
	notes, err := Reconcile(nil, s, index.New())
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, n := range notes {
		names = append(names, n.Filename)
	}
	if !slices.Equal(names, []string{"a.txt", "b.txt", "c.txt"}) {
		t.Errorf("order = %v", names)
	}
}

func TestDirty(t *testing.T) {
	notes := []models.Note{
		{Filename: "a.txt", State: models.StateUnchanged},
		{Filename: "b.txt", State: models.StateNew},
		{Filename: "c.txt", State: models.StateDeleted},
	}
	dirty := Dirty(notes)
	if len(dirty) != 2 || dirty[0].Filename != "b.txt" {
		t.Errorf("dirty = %+v", dirty)
	}
}

func TestReconcile_IneligibleNamesAreNotDeletions(t *testing.T) {
	s, err := storage.NewFS(t.TempDir(), "draft*")
	if err != nil {
		t.Fatal(err)
	}
	known := map[string]models.Note{
		"a": synced(t, s, "a", ".profile.txt", "hidden", 1000),
		"b": synced(t, s, "b", "draft one.txt", "ignored", 1000),
	}
	notes, err := Reconcile(known, s, index.New())
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 0 {
		t.Errorf("notes = %+v, want none", notes)
	}
}

func TestReconcile_DropsIndexOfVanishedFiles(t *testing.T) {
	s := testStore(t)
	known := map[string]models.Note{
		"a": synced(t, s, "a", "Kept.txt", "kept", 1000),
		"b": {Key: "b", Filename: "Gone.txt", Modified: 1000},
	}
	words := index.New()
	words.Add("Kept.txt", "kept")
	words.Add("Gone.txt", "gone")
	if err := s.Write("Scratch.txt", "zeppelin"); err != nil {
		t.Fatal(err)
	}
	if _, err := Reconcile(known, s, words); err != nil {
		t.Fatal(err)
	}
	if !words.Has("zeppelin", "Scratch.txt") {
		t.Fatal("new note not indexed")
	}

	if err := s.Delete("Scratch.txt"); err != nil {
		t.Fatal(err)
	}
	if _, err := Reconcile(known, s, words); err != nil {
		t.Fatal(err)
	}
	if got := words.Lookup("zeppelin"); len(got) != 0 {
		t.Errorf("lookup after delete = %v, want none", got)
	}
	// A snapshot note whose file is gone still owns its entries until the
	// deletion is pushed.
	if !words.Has("gone", "Gone.txt") || !words.Has("kept", "Kept.txt") {
		t.Error("entries of snapshot notes were dropped")
	}
}
