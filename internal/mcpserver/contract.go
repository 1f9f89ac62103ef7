package mcpserver

const formatURI = "notesync://note-format"

// NoteFormat describes how note files map to Simplenote notes, for LLM
// clients that write through capture_note.
const NoteFormat = `# Note Format

Every note is a plain UTF-8 text file in one flat directory.

## Filename and title

- The filename is the note title plus ` + "`" + `.txt` + "`" + `, e.g. ` + "`" + `Shopping List.txt` + "`" + `.
- The title is the first line of the Simplenote note, cut at 60 characters.
- Two notes with the same title get ` + "`" + `Title.txt` + "`" + ` and ` + "`" + `Title.1.txt` + "`" + `.
- Characters not allowed in filenames are dropped from the title.

## Body

- The file holds the body only: everything after the title line.
- One blank line between title and body is removed when pulling.
- Hidden files and files without ` + "`" + `.txt` + "`" + ` are never synchronized.

## Capture

- ` + "`" + `capture_note` + "`" + ` with no terms creates a note; the first line of ` + "`" + `text` + "`" + ` becomes its title.
- Terms starting with ` + "`" + `#` + "`" + ` become tags of the new note.
- With terms matching exactly one note, ` + "`" + `text` + "`" + ` replaces its body and the title is kept.

## Example

` + "```" + `text
Shopping List

milk
eggs
` + "```" + `

is stored as ` + "`" + `Shopping List.txt` + "`" + ` containing:

` + "```" + `text
milk
eggs
` + "```" + `
`
