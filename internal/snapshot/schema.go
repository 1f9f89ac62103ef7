// Package snapshot persists the last known synchronized state: note
// metadata (never bodies), the remote cursor and the word index.
//
// The SQLite database is authoritative. Every save also writes a TOML dump
// of the same data for inspection; the dump is never read back.
package snapshot

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	key         TEXT PRIMARY KEY,
	version     INTEGER NOT NULL DEFAULT 0,
	title       TEXT NOT NULL DEFAULT '',
	fingerprint TEXT NOT NULL DEFAULT '',
	filename    TEXT NOT NULL DEFAULT '',
	tags        TEXT NOT NULL DEFAULT '[]',
	system_tags TEXT NOT NULL DEFAULT '[]',
	created     INTEGER NOT NULL DEFAULT 0,
	modified    INTEGER NOT NULL DEFAULT 0,
	deleted     INTEGER NOT NULL DEFAULT 0,
	share_url   TEXT NOT NULL DEFAULT '',
	publish_url TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS meta (
	name  TEXT PRIMARY KEY,
	value TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS words (
	stem     TEXT NOT NULL,
	filename TEXT NOT NULL,
	position INTEGER NOT NULL,
	UNIQUE(stem, filename)
);

CREATE INDEX IF NOT EXISTS idx_words_filename ON words(filename);
`

// Store reads and writes snapshots.
type Store struct {
	conn     *sql.DB
	dumpPath string
}

// Open opens (or creates) the snapshot database at path. dumpPath, when
// non-empty, receives the readable dump on every Save.
func Open(path, dumpPath string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("snapshot: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("snapshot: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("snapshot: apply schema: %w", err)
	}
	return &Store{conn: conn, dumpPath: dumpPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}
