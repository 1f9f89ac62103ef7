// Package models defines the domain types for notesync.
package models

import (
	"slices"
	"strings"
)

// State is the local reconciliation state of a note. It is computed on every
// reconciliation pass and never persisted.
type State string

// Reconciliation states.
const (
	StateUnchanged State = "unchanged"
	StateChanged   State = "changed"
	StateNew       State = "new"
	StateDeleted   State = "deleted"
)

// System tags interpreted by the sync engine.
const (
	SystemTagPinned    = "pinned"
	SystemTagPublished = "published"
)

// FileExt is the extension of every note file.
const FileExt = ".txt"

// Note is one remote note mirrored as one local text file.
type Note struct {
	Key         string   `json:"key" toml:"key"`
	Version     int      `json:"version" toml:"version"`
	Title       string   `json:"title" toml:"title"`
	Body        string   `json:"-" toml:"-"`
	Fingerprint string   `json:"fingerprint" toml:"fingerprint"`
	Filename    string   `json:"filename" toml:"filename"`
	Tags        []string `json:"tags" toml:"tags"`
	SystemTags  []string `json:"system_tags" toml:"system_tags"`
	Created     int64    `json:"created" toml:"created"`
	Modified    int64    `json:"modified" toml:"modified"`
	Deleted     bool     `json:"deleted" toml:"deleted"`
	ShareURL    string   `json:"share_url,omitempty" toml:"share_url"`
	PublishURL  string   `json:"publish_url,omitempty" toml:"publish_url"`
	State       State    `json:"state,omitempty" toml:"-"`
}

// Content is the canonical wire representation: title, blank line, body.
func (n Note) Content() string {
	return n.Title + "\n\n" + n.Body
}

// Stem returns the filename without its extension.
func (n Note) Stem() string {
	return strings.TrimSuffix(n.Filename, FileExt)
}

// Clone returns a deep copy, so callers can mutate tag slices freely.
func (n Note) Clone() Note {
	c := n
	c.Tags = slices.Clone(n.Tags)
	c.SystemTags = slices.Clone(n.SystemTags)
	return c
}

// HasTag reports whether the note carries the user tag.
func (n Note) HasTag(tag string) bool {
	return slices.Contains(n.Tags, tag)
}

// HasSystemTag reports whether the note carries the system tag.
func (n Note) HasSystemTag(tag string) bool {
	return slices.Contains(n.SystemTags, tag)
}

// Pinned reports whether the note is pinned.
func (n Note) Pinned() bool { return n.HasSystemTag(SystemTagPinned) }

// Published reports whether a publish has been requested for the note.
func (n Note) Published() bool { return n.HasSystemTag(SystemTagPublished) }

// AddTag returns tags with tag appended unless already present.
func AddTag(tags []string, tag string) []string {
	if slices.Contains(tags, tag) {
		return tags
	}
	return append(slices.Clone(tags), tag)
}

// RemoveTag returns tags without tag.
func RemoveTag(tags []string, tag string) []string {
	return slices.DeleteFunc(slices.Clone(tags), func(t string) bool { return t == tag })
}

// TagCount is one row of the tag listing.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}
