package simplenote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/starford/notesync/internal/apperr"
	"github.com/starford/notesync/internal/remote"
)

type fakeSimperium struct {
	authCalls atomic.Int32
	lastPath  atomic.Value
}

func (f *fakeSimperium) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/app/authorize/", func(w http.ResponseWriter, r *http.Request) {
		f.authCalls.Add(1)
		if r.Header.Get("X-Simperium-API-Key") != "key" {
			http.Error(w, "bad key", http.StatusUnauthorized)
			return
		}
		var creds map[string]string
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds["username"] != "me@example.com" || creds["password"] != "pw" {
			http.Error(w, "bad creds", http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok"})
	})
	mux.HandleFunc("GET /api/app/note/index", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Simperium-Token") != "tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("data") != "true" {
			t.Errorf("index called without data=true")
		}
		switch r.URL.Query().Get("mark") {
		case "":
			_, _ = w.Write([]byte(`{"current":"c1","mark":"m1","index":[
				{"id":"a","v":2,"d":{"content":"A\n\nbody","tags":["x"],"systemTags":[],"creationDate":1.5,"modificationDate":1700000000.25,"deleted":false}}]}`))
		case "m1":
			_, _ = w.Write([]byte(`{"current":"c2","index":[
				{"id":"b","v":1,"d":{"content":"B","tags":[],"systemTags":["pinned"],"creationDate":1,"modificationDate":2,"deleted":true}}]}`))
		}
	})
	mux.HandleFunc("GET /api/app/note/i/{key}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("key") == "missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Simperium-Version", "4")
		_, _ = w.Write([]byte(`{"content":"hello","tags":[],"systemTags":[],"creationDate":10,"modificationDate":20}`))
	})
	mux.HandleFunc("POST /api/app/note/i/{path...}", func(w http.ResponseWriter, r *http.Request) {
		f.lastPath.Store(r.URL.Path)
		if strings.HasSuffix(r.URL.Path, "/v/9") {
			w.WriteHeader(http.StatusPreconditionFailed)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("X-Simperium-Version", "5")
		_ = json.NewEncoder(w).Encode(body)
	})
	return mux
}

func testClient(t *testing.T) (*Client, *fakeSimperium) {
	t.Helper()
	f := &fakeSimperium{}
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	c := New(Config{
		User:     "me@example.com",
		Password: "pw",
		AppID:    "app",
		APIKey:   "key",
		AuthURL:  srv.URL + "/auth",
		APIURL:   srv.URL + "/api/",
	})
	return c, f
}

func TestList_FollowsMarks(t *testing.T) {
	c, f := testClient(t)
	entries, cursor, err := c.List(context.Background(), "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if cursor != "c2" {
		t.Errorf("cursor = %q, want %q", cursor, "c2")
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	a := entries[0]
	if a.Key != "a" || a.Version != 2 || a.Content != "A\n\nbody" || a.Modified != 1700000000 {
		t.Errorf("entry a = %+v", a)
	}
	if !entries[1].Deleted {
		t.Errorf("entry b should be deleted")
	}
	if got := f.authCalls.Load(); got != 1 {
		t.Errorf("auth calls = %d, want 1", got)
	}
}

func TestGet(t *testing.T) {
	c, _ := testClient(t)
	e, err := c.Get(context.Background(), "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e.Version != 4 || e.Content != "hello" || e.Created != 10 {
		t.Errorf("entry = %+v", e)
	}

	if _, err := c.Get(context.Background(), "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdate_NewNoteGetsKey(t *testing.T) {
	c, f := testClient(t)
	e, err := c.Update(context.Background(), remote.Entry{Content: "new", Modified: 30})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(e.Key) != 32 || e.Version != 5 || e.Created != 30 {
		t.Errorf("entry = %+v", e)
	}
	if p := f.lastPath.Load().(string); strings.Contains(p, "/v/") {
		t.Errorf("create should not carry a version: %s", p)
	}
}

func TestUpdate_Versioned(t *testing.T) {
	c, f := testClient(t)
	if _, err := c.Update(context.Background(), remote.Entry{Key: "k", Version: 4, Content: "x"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if p := f.lastPath.Load().(string); p != "/api/app/note/i/k/v/4" {
		t.Errorf("path = %s", p)
	}

	_, err := c.Update(context.Background(), remote.Entry{Key: "k", Version: 9, Content: "x"})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
}

func TestTrash(t *testing.T) {
	c, _ := testClient(t)
	e, err := c.Trash(context.Background(), "k")
	if err != nil {
		t.Fatalf("Trash: %v", err)
	}
	if !e.Deleted || e.Content != "hello" {
		t.Errorf("entry = %+v", e)
	}
}

func TestAuthorize_MissingCredentials(t *testing.T) {
	c := New(Config{AuthURL: "http://127.0.0.1:0", APIURL: "http://127.0.0.1:0"})
	if _, _, err := c.List(context.Background(), ""); err == nil {
		t.Fatal("expected error without credentials")
	}
}
