package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/starford/notesync/internal/engine"
	"github.com/starford/notesync/internal/models"
)

var stdout io.Writer = os.Stdout

var eventMarks = map[string]string{
	engine.EventUpdated: "<<",
	engine.EventDeleted: "--",
	engine.EventSent:    ">>",
}

func printEvent(kind, filename string) {
	if mark, ok := eventMarks[kind]; ok {
		fmt.Fprintln(stdout, mark, filename)
	}
}

// printNotes writes one quoted filename per line, followed by the note's
// tags and publish URL.
func printNotes(w io.Writer, notes []models.Note) {
	for _, n := range notes {
		var b strings.Builder
		b.WriteString(`"` + strings.ReplaceAll(n.Filename, `"`, `\"`) + `"`)
		for _, t := range n.Tags {
			b.WriteString(" #" + t)
		}
		if n.PublishURL != "" {
			b.WriteString(" " + n.PublishURL)
		}
		fmt.Fprintln(w, b.String())
	}
}

// printTags writes tags in a padded column with their note counts.
func printTags(w io.Writer, tags []models.TagCount) {
	width := 0
	for _, t := range tags {
		width = max(width, len(t.Tag))
	}
	for _, t := range tags {
		unit := "note"
		if t.Count > 1 {
			unit = "notes"
		}
		fmt.Fprintf(w, "%-*s  %d %s\n", width, t.Tag, t.Count, unit)
	}
}
