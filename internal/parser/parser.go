// Package parser derives a note's title, body and fingerprint from raw note
// content.
package parser

import (
	"strings"
	"unicode"

	"github.com/starford/notesync/internal/checksum"
)

// MaxTitleLen is the longest title, in runes, before word-boundary trimming.
const MaxTitleLen = 60

var (
	titleNoise = strings.NewReplacer("/", "", ":", "", "*", "", "«", "", "»", "")
	textFixes  = strings.NewReplacer("\u00a0", " ", "\r", "\n")
)

// Result holds the output of parsing note content.
type Result struct {
	Title       string
	Body        string
	Fingerprint string
}

// Normalize replaces non-breaking spaces with spaces and carriage returns
// with newlines. It is idempotent.
func Normalize(text string) string {
	return textFixes.Replace(text)
}

// Parse splits content into title and body. fallback is used as the title
// when the first line yields nothing usable (normally the remote key).
func Parse(content, fallback string) Result {
	content = Normalize(content)

	firstLine, rest, hasRest := strings.Cut(content, "\n")
	firstLine = titleNoise.Replace(firstLine)

	title := deriveTitle(firstLine)
	remainder := strings.TrimLeftFunc(string([]rune(firstLine)[len([]rune(title)):]), unicode.IsSpace)
	if title == "" {
		title = fallback
	}

	body := remainder
	if hasRest {
		body += "\n" + rest
	}
	// The newline separating title from body is structural; one blank line
	// after the title is the canonical separator and is dropped as well.
	if strings.HasPrefix(body, "\n\n") {
		body = body[2:]
	} else {
		body = strings.TrimPrefix(body, "\n")
	}

	return Result{
		Title:       title,
		Body:        body,
		Fingerprint: checksum.Body(body),
	}
}

// deriveTitle trims firstLine to MaxTitleLen runes on a word boundary.
func deriveTitle(firstLine string) string {
	runes := []rune(firstLine)
	if len(runes) <= MaxTitleLen {
		return firstLine
	}
	window := runes[:MaxTitleLen+1]
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == ' ' {
			return string(window[:i])
		}
	}
	return string(runes[:MaxTitleLen])
}
