// Package remote defines the contract of the remote note service.
package remote

import "context"

// Entry is a note as exchanged with the remote service.
type Entry struct {
	Key        string   `json:"-"`
	Version    int      `json:"-"`
	Content    string   `json:"content"`
	Tags       []string `json:"tags"`
	SystemTags []string `json:"systemTags"`
	Created    int64    `json:"creationDate"`
	Modified   int64    `json:"modificationDate"`
	Deleted    bool     `json:"deleted"`
	ShareURL   string   `json:"shareURL"`
	PublishURL string   `json:"publishURL"`
}

// Service is the remote note API. Every call is synchronous and reports
// failure through its error; callers treat any error as fatal to the
// operation in progress.
type Service interface {
	// List returns the entries changed since cursor ("" for everything)
	// together with the cursor to use next time.
	List(ctx context.Context, cursor string) ([]Entry, string, error)
	// Get fetches one entry.
	Get(ctx context.Context, key string) (Entry, error)
	// Update creates the entry when Key is empty, otherwise updates it at
	// Version. It returns the stored entry.
	Update(ctx context.Context, e Entry) (Entry, error)
	// Trash marks the entry deleted.
	Trash(ctx context.Context, key string) (Entry, error)
	// Delete removes a trashed entry permanently.
	Delete(ctx context.Context, key string) error
}
