// Package storage defines the note directory abstraction.
package storage

// File is one eligible note file as found on disk.
type File struct {
	Name     string
	Content  string
	Modified int64 // mtime, epoch seconds
}

// Provider is the interface for note file operations. All names are plain
// filenames relative to the notes directory.
type Provider interface {
	// Root returns the absolute notes directory.
	Root() string
	// Eligible reports whether name is a note file (".txt", not hidden,
	// not ignored).
	Eligible(name string) bool
	// List returns every eligible note file with its content.
	List() ([]File, error)
	// Read returns the content of a note file.
	Read(name string) (string, error)
	// ModTime returns the mtime of a note file in epoch seconds.
	ModTime(name string) (int64, bool)
	// Write atomically replaces the content of name.
	Write(name, content string) error
	// SetModTime sets the mtime of name.
	SetModTime(name string, modified int64) error
	// Delete removes name. A missing file is not an error.
	Delete(name string) error
	// Move renames oldName to newName.
	Move(oldName, newName string) error
	// Path returns the absolute path of name.
	Path(name string) string
}

var _ Provider = (*FS)(nil)
