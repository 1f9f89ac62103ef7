package parser

import (
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/starford/notesync/internal/checksum"
)

func TestParse_ShoppingList(t *testing.T) {
	r := Parse("Shopping List\nMilk\nEggs", "key1")
	if r.Title != "Shopping List" {
		t.Errorf("title = %q, want %q", r.Title, "Shopping List")
	}
	if r.Body != "Milk\nEggs" {
		t.Errorf("body = %q, want %q", r.Body, "Milk\nEggs")
	}
	if r.Fingerprint != checksum.Body("Milk\nEggs") {
		t.Errorf("fingerprint = %q", r.Fingerprint)
	}
}

func TestParse_CanonicalSeparator(t *testing.T) {
	r := Parse("Title\n\nBody text", "k")
	if r.Title != "Title" || r.Body != "Body text" {
		t.Errorf("got title=%q body=%q", r.Title, r.Body)
	}
	// Only one blank line is collapsed.
	r = Parse("Title\n\n\nBody text", "k")
	if r.Body != "\nBody text" {
		t.Errorf("body = %q, want %q", r.Body, "\nBody text")
	}
}

func TestParse_StripsTitleNoise(t *testing.T) {
	r := Parse("a/b: c* «d»\nbody", "k")
	if r.Title != "ab c d" {
		t.Errorf("title = %q", r.Title)
	}
}

func TestParse_LongTitleWordBoundary(t *testing.T) {
	line := strings.Repeat("word ", 15) + "tail"
	r := Parse(line+"\nsecond", "k")
	if n := len([]rune(r.Title)); n > MaxTitleLen {
		t.Fatalf("title has %d runes", n)
	}
	if strings.HasSuffix(r.Title, " ") {
		t.Errorf("title ends with space: %q", r.Title)
	}
	if !strings.HasPrefix(line, r.Title) {
		t.Errorf("title %q is not a prefix of the first line", r.Title)
	}
	if !strings.HasSuffix(r.Body, "tail\nsecond") {
		t.Errorf("body lost the remainder of the first line: %q", r.Body)
	}
}

func TestParse_LongTitleNoBoundary(t *testing.T) {
	line := strings.Repeat("x", 80)
	r := Parse(line, "k")
	if r.Title != strings.Repeat("x", MaxTitleLen) {
		t.Errorf("title = %q", r.Title)
	}
	if r.Body != strings.Repeat("x", 20) {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_EmptyTitleFallsBackToKey(t *testing.T) {
	r := Parse("//**\nbody", "abc123")
	if r.Title != "abc123" {
		t.Errorf("title = %q, want key", r.Title)
	}
	if r.Body != "body" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize("a\u00a0b\r\nc")
	if got != "a b\n\nc" {
		t.Errorf("Normalize = %q", got)
	}
	if Normalize(got) != got {
		t.Error("Normalize is not idempotent")
	}
}

func testParse_Deterministic(t *rapid.T) {
	content := rapid.String().Draw(t, "content")
	a := Parse(content, "key")
	b := Parse(content, "key")
	if a != b {
		t.Fatalf("Parse not deterministic: %+v vs %+v", a, b)
	}
}

func TestParse_Deterministic(t *testing.T) {
	rapid.Check(t, testParse_Deterministic)
}

func testParse_FingerprintIgnoresTitle(t *rapid.T) {
	first := rapid.StringMatching(`[A-Za-z0-9 ]{1,40}`).Draw(t, "first")
	other := rapid.StringMatching(`[A-Za-z0-9 ]{1,40}`).Draw(t, "other")
	rest := rapid.StringMatching(`[a-z\n ]{0,80}`).Draw(t, "rest")

	a := Parse(first+"\n"+rest, "k")
	b := Parse(other+"\n"+rest, "k")
	if a.Fingerprint != b.Fingerprint {
		t.Fatalf("fingerprint changed with title: %q vs %q", first, other)
	}
}

func TestParse_FingerprintIgnoresTitle(t *testing.T) {
	rapid.Check(t, testParse_FingerprintIgnoresTitle)
}

func testParse_ContentRoundTrip(t *rapid.T) {
	title := rapid.StringMatching(`[A-Za-z][A-Za-z0-9 ]{0,40}[A-Za-z]`).Draw(t, "title")
	body := rapid.StringMatching(`[a-z][a-z\n ]{0,80}`).Draw(t, "body")

	r := Parse(title+"\n\n"+body, "k")
	if r.Title != title || r.Body != body {
		t.Fatalf("round trip: got (%q, %q), want (%q, %q)", r.Title, r.Body, title, body)
	}
}

func TestParse_ContentRoundTrip(t *testing.T) {
	rapid.Check(t, testParse_ContentRoundTrip)
}
