package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/starford/notesync/internal/index"
	"github.com/starford/notesync/internal/models"
	"github.com/starford/notesync/internal/storage"
)

const cursorKey = "cursor"

// State is the engine's in-memory view of the last synchronized state.
type State struct {
	Notes  map[string]models.Note
	Cursor string
	Words  *index.Words
}

// NewState returns the empty state used when no snapshot exists yet.
func NewState() *State {
	return &State{
		Notes: make(map[string]models.Note),
		Words: index.New(),
	}
}

// Load reads the persisted state. An empty database yields NewState.
func (s *Store) Load() (*State, error) {
	st := NewState()

	rows, err := s.conn.Query(`
		SELECT key, version, title, fingerprint, filename, tags, system_tags,
		       created, modified, deleted, share_url, publish_url
		FROM notes
	`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: load notes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			n                 models.Note
			tagsJSON, sysJSON string
			deleted           int
		)
		if err := rows.Scan(&n.Key, &n.Version, &n.Title, &n.Fingerprint, &n.Filename,
			&tagsJSON, &sysJSON, &n.Created, &n.Modified, &deleted, &n.ShareURL, &n.PublishURL); err != nil {
			return nil, fmt.Errorf("snapshot: scan note: %w", err)
		}
		if err := json.Unmarshal([]byte(tagsJSON), &n.Tags); err != nil {
			return nil, fmt.Errorf("snapshot: decode tags %s: %w", n.Key, err)
		}
		if err := json.Unmarshal([]byte(sysJSON), &n.SystemTags); err != nil {
			return nil, fmt.Errorf("snapshot: decode system tags %s: %w", n.Key, err)
		}
		n.Deleted = deleted != 0
		st.Notes[n.Key] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot: load notes: %w", err)
	}

	if err := s.conn.QueryRow(`SELECT value FROM meta WHERE name = ?`, cursorKey).Scan(&st.Cursor); err != nil {
		st.Cursor = "" // first run
	}

	wordRows, err := s.conn.Query(`SELECT stem, filename FROM words ORDER BY stem, position`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: load words: %w", err)
	}
	defer wordRows.Close()
	words := make(map[string][]string)
	for wordRows.Next() {
		var stem, filename string
		if err := wordRows.Scan(&stem, &filename); err != nil {
			return nil, fmt.Errorf("snapshot: scan word: %w", err)
		}
		words[stem] = append(words[stem], filename)
	}
	if err := wordRows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot: load words: %w", err)
	}
	st.Words = index.FromMap(words)

	return st, nil
}

// Save replaces the persisted state with st in one transaction, then
// rewrites the readable dump.
func (s *Store) Save(st *State) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("snapshot: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	for _, stmt := range []string{`DELETE FROM notes`, `DELETE FROM words`} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("snapshot: clear: %w", err)
		}
	}

	noteStmt, err := tx.Prepare(`
		INSERT INTO notes (key, version, title, fingerprint, filename, tags, system_tags,
		                   created, modified, deleted, share_url, publish_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("snapshot: prepare note insert: %w", err)
	}
	defer noteStmt.Close()
	for _, n := range st.Notes {
		tagsJSON, _ := json.Marshal(nonNil(n.Tags))
		sysJSON, _ := json.Marshal(nonNil(n.SystemTags))
		deleted := 0
		if n.Deleted {
			deleted = 1
		}
		if _, err := noteStmt.Exec(n.Key, n.Version, n.Title, n.Fingerprint, n.Filename,
			string(tagsJSON), string(sysJSON), n.Created, n.Modified, deleted, n.ShareURL, n.PublishURL); err != nil {
			return fmt.Errorf("snapshot: insert note %s: %w", n.Key, err)
		}
	}

	wordStmt, err := tx.Prepare(`INSERT OR IGNORE INTO words (stem, filename, position) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("snapshot: prepare word insert: %w", err)
	}
	defer wordStmt.Close()
	for stem, names := range st.Words.Map() {
		for i, name := range names {
			if _, err := wordStmt.Exec(stem, name, i); err != nil {
				return fmt.Errorf("snapshot: insert word: %w", err)
			}
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO meta (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value
	`, cursorKey, st.Cursor); err != nil {
		return fmt.Errorf("snapshot: save cursor: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("snapshot: commit: %w", err)
	}
	return s.dump(st)
}

type dumpFile struct {
	Cursor string                 `toml:"cursor"`
	Notes  map[string]models.Note `toml:"notes"`
	Words  map[string][]string    `toml:"words"`
}

func (s *Store) dump(st *State) error {
	if s.dumpPath == "" {
		return nil
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(dumpFile{
		Cursor: st.Cursor,
		Notes:  st.Notes,
		Words:  st.Words.Map(),
	}); err != nil {
		return fmt.Errorf("snapshot: encode dump: %w", err)
	}
	if err := storage.WriteFileAtomic(s.dumpPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("snapshot: write dump: %w", err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
