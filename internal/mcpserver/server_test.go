package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/notesync/internal/remote"
	"github.com/starford/notesync/internal/remote/memory"
	"github.com/starford/notesync/internal/testutil"
)

func testServer(t *testing.T) (*Server, *memory.Service) {
	t.Helper()
	ctx := context.Background()

	rs := memory.New()
	for _, e := range []remote.Entry{
		{Content: "Shopping List\nmilk\neggs", Tags: []string{"home"}, Modified: 2000},
		{Content: "Report\nquarterly numbers", Tags: []string{"work"}, Modified: 1000},
	} {
		if _, err := rs.Update(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	eng, _ := testutil.TestEngine(t, rs)
	if err := eng.Fetch(ctx); err != nil {
		t.Fatal(err)
	}
	return New(eng, "test"), rs
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct call helper, so the handlers are invoked as-is.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "find_notes":
		result, err = srv.findNotes(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "list_tags":
		result, err = srv.listTags(ctx, req)
	case "capture_note":
		result, err = srv.captureNote(ctx, req)
	case "sync":
		result, err = srv.syncNotes(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestFindNotes(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "find_notes", map[string]any{"terms": []any{"#work"}})
	var got []noteResult
	if err := json.Unmarshal([]byte(resultText(r)), &got); err != nil {
		t.Fatalf("decode: %v (%q)", err, resultText(r))
	}
	if len(got) != 1 || got[0].Filename != "Report.txt" {
		t.Errorf("find #work = %+v, want Report.txt", got)
	}

	r = callTool(t, srv, "find_notes", map[string]any{})
	if err := json.Unmarshal([]byte(resultText(r)), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("find all = %d notes, want 2", len(got))
	}
}

func TestReadNote(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "read_note", map[string]any{"filename": "Shopping List.txt"})
	if text := resultText(r); text != "milk\neggs" {
		t.Errorf("read result = %q", text)
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "read_note", map[string]any{"filename": "nope.txt"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
}

func TestReadNote_RejectsPaths(t *testing.T) {
	srv, _ := testServer(t)

	for _, name := range []string{"../secret.txt", ".hidden.txt", "notes.db"} {
		r := callTool(t, srv, "read_note", map[string]any{"filename": name})
		if !r.IsError {
			t.Errorf("read %q: expected error", name)
		}
	}
}

func TestListTags(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "list_tags", nil)
	text := resultText(r)
	if !strings.Contains(text, `"home"`) || !strings.Contains(text, `"work"`) {
		t.Errorf("tags = %s", text)
	}
}

func TestCaptureNote(t *testing.T) {
	srv, rs := testServer(t)

	r := callTool(t, srv, "capture_note", map[string]any{"text": "Idea\n\nsync more often"})
	if r.IsError {
		t.Fatalf("capture error: %s", resultText(r))
	}
	if text := resultText(r); text != "captured: Idea.txt" {
		t.Errorf("capture result = %q", text)
	}
	if len(rs.Keys()) != 3 {
		t.Errorf("remote notes = %d, want 3", len(rs.Keys()))
	}
}

func TestSync(t *testing.T) {
	srv, rs := testServer(t)

	if _, err := rs.Update(context.Background(), remote.Entry{Content: "Later\nbody", Modified: 3000}); err != nil {
		t.Fatal(err)
	}
	r := callTool(t, srv, "sync", nil)
	if text := resultText(r); text != "synced: 3 notes" {
		t.Errorf("sync result = %q", text)
	}
}
