package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notesync/internal/engine"
	"github.com/starford/notesync/internal/storage"
)

// Views holds the latest view published by the watch driver. Handlers
// only ever read it.
type Views struct {
	p atomic.Pointer[engine.View]
}

// Store replaces the current view.
func (v *Views) Store(view *engine.View) { v.p.Store(view) }

// Load returns the current view, or nil before the first sync cycle.
func (v *Views) Load() *engine.View { return v.p.Load() }

// Handler holds API route handlers.
type Handler struct {
	views *Views
	store storage.Provider
}

// NewHandler creates a new Handler.
func NewHandler(views *Views, store storage.Provider) *Handler {
	return &Handler{views: views, store: store}
}

// view writes 503 and returns nil until the first view is published.
func (h *Handler) view(w http.ResponseWriter) *engine.View {
	v := h.views.Load()
	if v == nil {
		writeError(w, http.StatusServiceUnavailable, "sync not ready")
	}
	return v
}

// Status handles GET /api/status.
//
//	@Summary		Describe the last sync cycle
//	@Tags			sync
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/status [get]
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	v := h.view(w)
	if v == nil {
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		Notes:   len(v.Notes),
		Pending: v.Pending,
		Cursor:  v.Cursor,
		At:      v.At.UTC(),
	})
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List synchronized notes, optionally filtered by a word
//	@Tags			notes
//	@Produce		json
//	@Param			q	query		string	false	"Word or fragment to look up"
//	@Success		200	{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	v := h.view(w)
	if v == nil {
		return
	}
	notes := v.Search(r.URL.Query().Get("q"))
	items := make([]NoteItem, len(notes))
	for i, n := range notes {
		items[i] = toItem(n)
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: len(items)})
}

// GetNote handles GET /api/notes/{filename}.
//
//	@Summary		Get one note with its content
//	@Tags			notes
//	@Produce		json
//	@Param			filename	path		string	true	"Note filename"
//	@Success		200			{object}	NoteDetail
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{filename} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	v := h.view(w)
	if v == nil {
		return
	}
	filename, err := url.PathUnescape(chi.URLParam(r, "filename"))
	if err != nil || filename == "" {
		writeError(w, http.StatusBadRequest, "filename is required")
		return
	}
	n, ok := v.Note(filename)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	content, err := h.store.Read(filename)
	if err != nil {
		slog.Error("api: read note", slog.String("file", filename), slog.String("error", err.Error()))
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, NoteDetail{NoteItem: toItem(n), Content: content})
}

// ListTags handles GET /api/tags.
//
//	@Summary		List user tags with note counts
//	@Tags			tags
//	@Produce		json
//	@Success		200	{object}	TagListResponse
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) ListTags(w http.ResponseWriter, _ *http.Request) {
	v := h.view(w)
	if v == nil {
		return
	}
	writeJSON(w, http.StatusOK, TagListResponse{Tags: v.Tags})
}
