package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/starford/notesync/internal/models"
)

// FS implements Provider backed by a flat local directory.
type FS struct {
	root   string   // absolute path to the notes directory
	ignore []string // doublestar patterns matched against filenames
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist. Filenames matching any ignore pattern
// are treated as not being notes.
func NewFS(root string, ignore ...string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	for _, p := range ignore {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("storage: invalid ignore pattern %q", p)
		}
	}
	return &FS{root: abs, ignore: slices.Clone(ignore)}, nil
}

// Root returns the absolute notes directory.
func (f *FS) Root() string { return f.root }

// Eligible reports whether name is a visible, non-ignored .txt file name.
func (f *FS) Eligible(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, models.FileExt) {
		return false
	}
	for _, p := range f.ignore {
		if ok, _ := doublestar.Match(p, name); ok {
			return false
		}
	}
	return true
}

// safePath resolves a filename inside the root and rejects anything that
// would land elsewhere.
func (f *FS) safePath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == ".." {
		return "", fmt.Errorf("storage: invalid note filename: %q", name)
	}
	return filepath.Join(f.root, name), nil
}

// Path returns the absolute path of name.
func (f *FS) Path(name string) string {
	return filepath.Join(f.root, name)
}

// List reads every eligible note file in the directory.
func (f *FS) List() ([]File, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	var out []File
	for _, e := range entries {
		if e.IsDir() || !f.Eligible(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue // removed between ReadDir and Info
			}
			return nil, fmt.Errorf("storage: stat %s: %w", e.Name(), err)
		}
		data, err := os.ReadFile(filepath.Join(f.root, e.Name()))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("storage: read %s: %w", e.Name(), err)
		}
		out = append(out, File{
			Name:     e.Name(),
			Content:  string(data),
			Modified: info.ModTime().Unix(),
		})
	}
	return out, nil
}

// Read returns the content of a note file.
func (f *FS) Read(name string) (string, error) {
	abs, err := f.safePath(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("storage: read %s: %w", name, err)
	}
	return string(data), nil
}

// ModTime returns the mtime of name in epoch seconds; ok is false when the
// file does not exist.
func (f *FS) ModTime(name string) (int64, bool) {
	abs, err := f.safePath(name)
	if err != nil {
		return 0, false
	}
	info, err := os.Stat(abs)
	if err != nil {
		return 0, false
	}
	return info.ModTime().Unix(), true
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(name, content string) error {
	abs, err := f.safePath(name)
	if err != nil {
		return err
	}
	return WriteFileAtomic(abs, []byte(content), 0o644)
}

// SetModTime sets both atime and mtime of name.
func (f *FS) SetModTime(name string, modified int64) error {
	abs, err := f.safePath(name)
	if err != nil {
		return err
	}
	ts := time.Unix(modified, 0)
	if err := os.Chtimes(abs, ts, ts); err != nil {
		return fmt.Errorf("storage: chtimes %s: %w", name, err)
	}
	return nil
}

// Delete removes a note file. A file that is already gone is not an error:
// a local deletion may have taken effect before the snapshot caught up.
func (f *FS) Delete(name string) error {
	abs, err := f.safePath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: delete %s: %w", name, err)
	}
	return nil
}

// Move renames a note file within the directory.
func (f *FS) Move(oldName, newName string) error {
	absOld, err := f.safePath(oldName)
	if err != nil {
		return err
	}
	absNew, err := f.safePath(newName)
	if err != nil {
		return err
	}
	if err := os.Rename(absOld, absNew); err != nil {
		return fmt.Errorf("storage: move: %w", err)
	}
	return nil
}

// WriteFileAtomic writes data to path through a temp file in the same
// directory, fsyncs it, and renames it into place.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".notesync-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("storage: chmod temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}
