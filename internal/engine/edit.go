package engine

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/starford/notesync/internal/apperr"
	"github.com/starford/notesync/internal/models"
	"github.com/starford/notesync/internal/naming"
	"github.com/starford/notesync/internal/parser"
)

// Editor opens files for interactive editing and returns once the user is
// done with them.
type Editor func(ctx context.Context, paths []string) error

// CommandEditor runs command through the shell with the file paths as
// arguments, attached to the terminal. command may carry its own flags
// ("code --wait").
func CommandEditor(command string) Editor {
	return func(ctx context.Context, paths []string) error {
		args := append([]string{"-c", command + ` "$@"`, "editor"}, paths...)
		cmd := exec.CommandContext(ctx, "/bin/sh", args...)
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		return cmd.Run()
	}
}

// Edit opens the notes selected by terms in editor, then pushes whatever
// changed among them and pulls. When nothing matches, every term that
// contains a space is taken as the title of a new note to write.
func (e *Engine) Edit(ctx context.Context, terms []string, editor Editor) ([]models.Note, error) {
	matched, err := e.Find(terms)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matched))
	for _, n := range matched {
		names = append(names, n.Filename)
	}

	var created []string
	if len(names) == 0 {
		for _, term := range terms {
			if !strings.Contains(term, " ") {
				continue
			}
			title := parser.Parse(term, "").Title
			if title == "" {
				continue
			}
			name := naming.FromTitle(title)
			if _, exists := e.store.ModTime(name); !exists {
				if err := e.store.Write(name, ""); err != nil {
					return nil, fmt.Errorf("engine: create %s: %w", name, err)
				}
				created = append(created, name)
			}
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, apperr.ErrNoMatch
	}

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = e.store.Path(name)
	}
	if err := editor(ctx, paths); err != nil {
		return nil, fmt.Errorf("engine: editor: %w", err)
	}

	for _, name := range created {
		if content, err := e.store.Read(name); err == nil && content == "" {
			if err := e.store.Delete(name); err != nil {
				return nil, err
			}
		}
	}

	edited := make(map[string]struct{}, len(names))
	for _, name := range names {
		edited[strings.ToLower(name)] = struct{}{}
	}
	dirty, err := e.Changed()
	if err != nil {
		return nil, err
	}
	var push []models.Note
	for _, n := range dirty {
		if _, ok := edited[strings.ToLower(n.Filename)]; ok {
			push = append(push, n)
		}
	}

	keys, err := e.sendAll(ctx, push)
	if err != nil {
		return nil, err
	}
	if err := e.Fetch(ctx); err != nil {
		return nil, err
	}
	return e.notesByKey(keys), nil
}

// Capture stores text as a note. With terms that select exactly one note,
// text replaces its body. Otherwise a new note is created: its title is the
// non-tag terms joined by spaces, or the first line of text when there are
// none, and tag terms become its tags.
func (e *Engine) Capture(ctx context.Context, terms []string, text string) (models.Note, error) {
	var matched []models.Note
	if len(terms) > 0 {
		var err error
		if matched, err = e.Find(terms); err != nil {
			return models.Note{}, err
		}
	}

	now := e.now().Unix()
	var n models.Note
	switch len(matched) {
	case 0:
		var err error
		if n, err = e.newCapture(terms, text, now); err != nil {
			return models.Note{}, err
		}
	case 1:
		n = matched[0]
		n.Body = text
		n.Modified = now
		if n.State == models.StateUnchanged {
			n.State = models.StateChanged
		}
	default:
		return models.Note{}, fmt.Errorf("engine: capture: %d notes match: %w", len(matched), apperr.ErrAmbiguous)
	}

	if err := e.store.Write(n.Filename, n.Body); err != nil {
		return models.Note{}, fmt.Errorf("engine: capture %s: %w", n.Filename, err)
	}
	if err := e.store.SetModTime(n.Filename, now); err != nil {
		return models.Note{}, err
	}

	keys, err := e.sendAll(ctx, []models.Note{n})
	if err != nil {
		return models.Note{}, err
	}
	if err := e.Fetch(ctx); err != nil {
		return models.Note{}, err
	}
	notes := e.notesByKey(keys)
	if len(notes) == 0 {
		return models.Note{}, fmt.Errorf("engine: capture: note missing after sync: %w", apperr.ErrNotFound)
	}
	return notes[0], nil
}

func (e *Engine) newCapture(terms []string, text string, now int64) (models.Note, error) {
	var words, tags []string
	for _, term := range terms {
		if strings.HasPrefix(term, "#") || strings.HasPrefix(term, "%") {
			tags = models.AddTag(tags, term[1:])
		} else {
			words = append(words, term)
		}
	}

	title, body := strings.Join(words, " "), text
	if title == "" {
		res := parser.Parse(text, "")
		title, body = res.Title, res.Body
	}
	title = parser.Parse(title, "").Title
	if title == "" {
		return models.Note{}, fmt.Errorf("engine: capture: no title: %w", apperr.ErrNoMatch)
	}

	return models.Note{
		Title:      title,
		Body:       body,
		Filename:   naming.Allocate(naming.FromTitle(title), e.takenExcept("", body)),
		Tags:       nonNil(tags),
		SystemTags: []string{},
		Created:    now,
		Modified:   now,
		State:      models.StateNew,
	}, nil
}
