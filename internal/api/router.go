package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notesync/internal/storage"
)

// NewRouter creates a chi router with the status routes mounted.
// An empty token disables authentication. events, if non-nil, is mounted
// at GET /events behind the same auth.
func NewRouter(views *Views, store storage.Provider, token string, events http.Handler) chi.Router {
	h := NewHandler(views, store)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(token != "", token))

	r.Get("/status", h.Status)
	r.Get("/notes", h.ListNotes)
	r.Get("/notes/{filename}", h.GetNote)
	r.Get("/tags", h.ListTags)

	if events != nil {
		r.Get("/events", events.ServeHTTP)
	}

	return r
}
