package index

import (
	"slices"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestStems_FiltersAndLowercases(t *testing.T) {
	got := Stems("The Quarterly REPORT, report_v2 and the draft-notes!")
	want := []string{"quarterly", "report", "reportv2", "draft", "notes"}
	if !slices.Equal(got, want) {
		t.Errorf("Stems = %v, want %v", got, want)
	}
}

func TestStems_DropsLongTokens(t *testing.T) {
	long := strings.Repeat("a", MaxStemLen)
	got := Stems("short " + long)
	if !slices.Equal(got, []string{"short"}) {
		t.Errorf("Stems = %v", got)
	}
}

func TestAddAndLookup(t *testing.T) {
	w := New()
	w.Add("a.txt", "quarterly report")
	w.Add("b.txt", "weekly reporting")

	got := w.Lookup("report")
	if !slices.Equal(got, []string{"a.txt", "b.txt"}) {
		t.Errorf("Lookup(report) = %v", got)
	}
	got = w.Lookup("Weekly")
	if !slices.Equal(got, []string{"b.txt"}) {
		t.Errorf("Lookup(Weekly) = %v", got)
	}
}

func TestAdd_ReplacesPreviousText(t *testing.T) {
	w := New()
	w.Add("a.txt", "apples")
	w.Add("a.txt", "oranges")
	if got := w.Lookup("apple"); len(got) != 0 {
		t.Errorf("stale association: %v", got)
	}
	if !w.Has("oranges", "a.txt") {
		t.Error("new association missing")
	}
	if w.Len() != 1 {
		t.Errorf("Len = %d, want 1", w.Len())
	}
}

func TestRemove(t *testing.T) {
	w := New()
	w.Add("a.txt", "shared unique")
	w.Add("b.txt", "shared")
	w.Remove("a.txt")
	if got := w.Lookup("unique"); len(got) != 0 {
		t.Errorf("Lookup(unique) = %v", got)
	}
	if got := w.Lookup("shared"); !slices.Equal(got, []string{"b.txt"}) {
		t.Errorf("Lookup(shared) = %v", got)
	}
	w.Remove("missing.txt")
}

func TestRetain(t *testing.T) {
	w := New()
	w.Add("a.txt", "shared alpha")
	w.Add("b.txt", "shared beta")
	w.Retain(func(filename string) bool { return filename == "b.txt" })
	if got := w.Lookup("shared"); !slices.Equal(got, []string{"b.txt"}) {
		t.Errorf("Lookup(shared) = %v", got)
	}
	if w.Has("alpha", "a.txt") {
		t.Error("a.txt still indexed")
	}
}

func TestMapRoundTrip(t *testing.T) {
	w := New()
	w.Add("a.txt", "alpha beta")
	w.Add("b.txt", "beta")
	r := FromMap(w.Map())
	if !slices.Equal(r.Lookup("beta"), []string{"a.txt", "b.txt"}) {
		t.Errorf("rebuilt index lookup = %v", r.Lookup("beta"))
	}
	r.Remove("a.txt")
	if len(r.Lookup("alpha")) != 0 {
		t.Error("rebuilt index did not track filename associations")
	}
}

var wordGen = rapid.StringMatching(`[a-z]{3,10}`)

func testIndex_Consistency(t *rapid.T) {
	first := rapid.SliceOfN(wordGen, 1, 8).Draw(t, "first")
	second := rapid.SliceOfN(wordGen, 1, 8).Draw(t, "second")

	w := New()
	w.Add("f.txt", strings.Join(first, " "))
	w.Add("f.txt", strings.Join(second, " "))

	for _, stem := range Stems(strings.Join(first, " ")) {
		if w.Has(stem, "f.txt") && !slices.Contains(Stems(strings.Join(second, " ")), stem) {
			t.Fatalf("stem %q from replaced text still associated", stem)
		}
	}
	for _, stem := range Stems(strings.Join(second, " ")) {
		if !w.Has(stem, "f.txt") {
			t.Fatalf("stem %q of current text missing", stem)
		}
	}

	w.Remove("f.txt")
	for _, stem := range append(first, second...) {
		if slices.Contains(w.Lookup(stem), "f.txt") {
			t.Fatalf("lookup(%q) still returns removed file", stem)
		}
	}
}

func TestIndex_Consistency(t *testing.T) {
	rapid.Check(t, testIndex_Consistency)
}
