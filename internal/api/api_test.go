package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/starford/notesync/internal/remote"
	"github.com/starford/notesync/internal/remote/memory"
	"github.com/starford/notesync/internal/sse"
	"github.com/starford/notesync/internal/testutil"
)

// testEnv syncs two remote notes into a temp directory and returns a router
// serving their view. An empty token disables auth.
func testEnv(t *testing.T, token string) http.Handler {
	t.Helper()
	views, router := testEnvViews(t, token, nil)
	if views.Load() == nil {
		t.Fatal("view not published")
	}
	return router
}

func testEnvViews(t *testing.T, token string, events http.Handler) (*Views, http.Handler) {
	t.Helper()
	ctx := context.Background()

	rs := memory.New()
	for _, e := range []remote.Entry{
		{Content: "Shopping List\nmilk\neggs", Tags: []string{"home"}, Modified: 2000},
		{Content: "Report\nquarterly numbers", Tags: []string{"work"}, Modified: 1000},
	} {
		if _, err := rs.Update(ctx, e); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	eng, store := testutil.TestEngine(t, rs)
	if err := eng.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	views := &Views{}
	views.Store(eng.View(0))
	return views, NewRouter(views, store, token, events)
}

func get(t *testing.T, router http.Handler, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestStatus(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp StatusResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Notes != 2 {
		t.Errorf("notes = %d, want 2", resp.Notes)
	}
	if resp.Cursor == "" {
		t.Error("cursor is empty")
	}
}

func TestStatus_NotReady(t *testing.T) {
	router := NewRouter(&Views{}, testutil.TestNotesDir(t), "", nil)

	w := get(t, router, "/status", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestListNotes(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/notes", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var resp NoteListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 2 {
		t.Fatalf("total = %d, want 2", resp.Total)
	}
	// Most recently modified first.
	if resp.Notes[0].Filename != "Shopping List.txt" {
		t.Errorf("first = %q, want Shopping List.txt", resp.Notes[0].Filename)
	}
	if resp.Notes[0].Tags[0] != "home" {
		t.Errorf("tags = %v", resp.Notes[0].Tags)
	}
}

func TestListNotes_Query(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/notes?q=quarter", "")
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d", w.Code)
	}
	var resp NoteListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Notes[0].Filename != "Report.txt" {
		t.Errorf("search = %+v, want Report.txt only", resp.Notes)
	}

	w = get(t, router, "/notes?q=nothing", "")
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 0 || resp.Notes == nil {
		t.Errorf("empty search = %+v, want empty list", resp)
	}
}

func TestGetNote(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/notes/Shopping%20List.txt", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp NoteDetail
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Content != "milk\neggs" {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.Title != "Shopping List" {
		t.Errorf("title = %q", resp.Title)
	}
}

func TestGetNote_NotFound(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/notes/missing.txt", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get missing = %d, want 404", w.Code)
	}
}

func TestListTags(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/tags", "")
	if w.Code != http.StatusOK {
		t.Fatalf("tags status = %d", w.Code)
	}
	var resp TagListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Tags) != 2 || resp.Tags[0].Tag != "home" || resp.Tags[1].Tag != "work" {
		t.Errorf("tags = %+v", resp.Tags)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router := testEnv(t, "secret123")

	w := get(t, router, "/notes", "secret123")
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	router := testEnv(t, "secret123")

	w := get(t, router, "/notes", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	router := testEnv(t, "secret123")

	w := get(t, router, "/notes", "wrong")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/notes", "")
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	broker := sse.NewBroker(0)
	t.Cleanup(broker.Close)
	_, router := testEnvViews(t, "secret123", broker)

	w := get(t, router, "/events", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed events = %d, want 401", w.Code)
	}
}

func TestSSEEvents_NotMounted(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/events", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("events without broker = %d, want 404", w.Code)
	}
}

func TestAuthMiddleware_QueryToken(t *testing.T) {
	router := testEnv(t, "secret123")

	w := get(t, router, "/status?token=secret123", "")
	if w.Code != http.StatusOK {
		t.Errorf("query token = %d, want 200", w.Code)
	}
	w = get(t, router, "/status?token=wrong", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong query token = %d, want 401", w.Code)
	}
}

func TestErrorBody(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/notes/missing.txt", "")
	var resp errResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != http.StatusNotFound || resp.Error != "not found" {
		t.Errorf("error body = %+v", resp)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "no-store" {
		t.Errorf("Cache-Control = %q", cc)
	}
}
