package api

import (
	"time"

	"github.com/starford/notesync/internal/models"
)

// NoteItem is one note in a listing.
type NoteItem struct {
	Filename   string    `json:"filename" example:"Shopping List.txt" validate:"required"`
	Title      string    `json:"title" example:"Shopping List" validate:"required"`
	Key        string    `json:"key" example:"5f2b0c8e9a0d4c1e8f7a6b5c4d3e2f1a"`
	Version    int       `json:"version" example:"3"`
	Tags       []string  `json:"tags" example:"home,errands"`
	Pinned     bool      `json:"pinned"`
	Published  bool      `json:"published"`
	PublishURL string    `json:"publish_url,omitempty"`
	ModifiedAt time.Time `json:"modified_at"`
}

// NoteDetail is a note with its file content.
type NoteDetail struct {
	NoteItem
	Content string `json:"content" example:"Milk\nEggs"`
}

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []NoteItem `json:"notes" validate:"required"`
	Total int        `json:"total" example:"42" validate:"required"`
}

// TagListResponse wraps the tag listing.
type TagListResponse struct {
	Tags []models.TagCount `json:"tags" validate:"required"`
}

// StatusResponse describes the last sync cycle.
type StatusResponse struct {
	Notes   int       `json:"notes" example:"42"`
	Pending int       `json:"pending" example:"1"`
	Cursor  string    `json:"cursor"`
	At      time.Time `json:"at"`
}

func toItem(n models.Note) NoteItem {
	return NoteItem{
		Filename:   n.Filename,
		Title:      n.Title,
		Key:        n.Key,
		Version:    n.Version,
		Tags:       nonNilSlice(n.Tags),
		Pinned:     n.Pinned(),
		Published:  n.Published(),
		PublishURL: n.PublishURL,
		ModifiedAt: time.Unix(n.Modified, 0).UTC(),
	}
}

func nonNilSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
