// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the synchronized notes to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/notesync/internal/engine"
	"github.com/starford/notesync/internal/models"
)

// Server wraps the MCP server with note tools. Tool calls may arrive
// concurrently; mu serializes every engine access.
type Server struct {
	mcp    *server.MCPServer
	mu     sync.Mutex
	engine *engine.Engine
}

// noteResult is the JSON shape returned by note-listing tools.
type noteResult struct {
	Filename string   `json:"filename"`
	Title    string   `json:"title"`
	Tags     []string `json:"tags"`
	Pinned   bool     `json:"pinned,omitempty"`
	Modified string   `json:"modified"`
}

// New creates a new MCP server with all note tools registered.
func New(e *engine.Engine, version string) *Server {
	s := &Server{engine: e}

	s.mcp = server.NewMCPServer(
		"notesync",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("find_notes",
		mcp.WithDescription("Find notes matching every term. A term starting with # or % matches a tag, "+
			"a term containing a space matches a filename fragment, any other term matches words in the note."),
		mcp.WithArray("terms", mcp.WithStringItems(), mcp.Description("Search terms; empty lists every note")),
	), s.findNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full text of a synchronized note."),
		mcp.WithString("filename", mcp.Required(), mcp.Description("Note filename (e.g. Shopping List.txt)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("list_tags",
		mcp.WithDescription("List user tags with the number of notes carrying each."),
	), s.listTags)

	s.mcp.AddTool(mcp.NewTool("capture_note",
		mcp.WithDescription("Replace the body of the single note matching the terms, or create a new note. "+
			"Read the note format first via the notesync://note-format resource."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Note text")),
		mcp.WithArray("terms", mcp.WithStringItems(), mcp.Description("Terms selecting the note to replace")),
	), s.captureNote)

	s.mcp.AddTool(mcp.NewTool("sync",
		mcp.WithDescription("Push local edits to Simplenote, then pull remote changes."),
	), s.syncNotes)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Note Format",
			mcp.WithResourceDescription("How note files map to Simplenote notes."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) findNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	terms := req.GetStringSlice("terms", nil)

	s.mu.Lock()
	notes, err := s.engine.Find(terms)
	s.mu.Unlock()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(toResults(notes))
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filename, err := req.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	store := s.engine.Store()
	if strings.ContainsAny(filename, `/\`) || !store.Eligible(filename) {
		return mcp.NewToolResultError(fmt.Sprintf("not a note file: %s", filename)), nil
	}
	content, err := store.Read(filename)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", filename)), nil
	}
	return mcp.NewToolResultText(content), nil
}

func (s *Server) listTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	tags := s.engine.Tags()
	s.mu.Unlock()
	return jsonResult(tags)
}

func (s *Server) captureNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	terms := req.GetStringSlice("terms", nil)

	s.mu.Lock()
	n, err := s.engine.Capture(ctx, terms, text)
	s.mu.Unlock()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("captured: %s", n.Filename)), nil
}

func (s *Server) syncNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.Send(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("synced: %d notes", len(s.engine.Active()))), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormat,
		},
	}, nil
}

func toResults(notes []models.Note) []noteResult {
	out := make([]noteResult, len(notes))
	for i, n := range notes {
		tags := n.Tags
		if tags == nil {
			tags = []string{}
		}
		out[i] = noteResult{
			Filename: n.Filename,
			Title:    n.Title,
			Tags:     tags,
			Pinned:   n.Pinned(),
			Modified: time.Unix(n.Modified, 0).UTC().Format(time.RFC3339),
		}
	}
	return out
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
