// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Quill note tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/noteservice"
)

// Server wraps the MCP server with Quill tools.
type Server struct {
	mcp       *server.MCPServer
	svc       *noteservice.Service
	checkHost func(host string) error
}

// noteView is a note as shown to tool callers; image bytes are never inlined.
type noteView struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
	IsPinned     bool      `json:"isPinned"`
	HasImage     bool      `json:"hasImage"`
}

func toView(n models.Note) noteView {
	return noteView{
		ID:           n.ID,
		Title:        n.Title,
		Content:      n.Content,
		CreatedAt:    n.CreatedAt,
		LastModified: n.LastModified,
		IsPinned:     n.IsPinned,
		HasImage:     n.HasImage(),
	}
}

// New creates a new MCP server with all Quill tools registered.
func New(svc *noteservice.Service) *Server {
	s := &Server{svc: svc, checkHost: checkBlockedHost}

	s.mcp = server.NewMCPServer(
		"Quill",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all notes, pinned first, then newest first."),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Case-insensitive substring search over note titles and contents."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Text to look for")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a single note by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new note. Title and content must both be non-empty. "+
			"See the get_note_schema tool or the "+NoteSchemaURI+" resource for the record format."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Note body")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("update_note",
		mcp.WithDescription("Replace the title and content of an existing note."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("title", mcp.Required(), mcp.Description("New title")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New body")),
	), s.updateNote)

	s.mcp.AddTool(mcp.NewTool("toggle_pin",
		mcp.WithDescription("Pin an unpinned note or unpin a pinned one."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.togglePin)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Delete a note permanently."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.deleteNote)

	s.mcp.AddTool(mcp.NewTool("attach_image",
		mcp.WithDescription("Attach an image to a note from an http(s) URL or a base64 data URI, "+
			"replacing any previous image."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:image/...;base64,... URI")),
	), s.attachImage)

	s.mcp.AddTool(mcp.NewTool("set_dark_mode",
		mcp.WithDescription("Turn the dark theme preference on or off."),
		mcp.WithBoolean("enabled", mcp.Required(), mcp.Description("true for dark, false for light")),
	), s.setDarkMode)

	s.mcp.AddTool(mcp.NewTool("get_note_schema",
		mcp.WithDescription("Returns the Quill note record format and its rules."),
	), s.getNoteSchema)

	// Resource: note schema.
	s.mcp.AddResource(
		mcp.NewResource(NoteSchemaURI, "Note Schema",
			mcp.WithResourceDescription("Shape and rules of the note record."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteSchemaResource,
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

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func toolError(id string, err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id))
	}
	return mcp.NewToolResultError(err.Error())
}

func views(ns []models.Note) []noteView {
	out := make([]noteView, len(ns))
	for i, n := range ns {
		out[i] = toView(n)
	}
	return out
}

func (s *Server) listNotes(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(views(s.svc.List(ctx))), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(views(s.svc.Search(ctx, query))), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.Get(ctx, id)
	if err != nil {
		return toolError(id, err), nil
	}
	return jsonResult(toView(note)), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	note, err := s.svc.Create(ctx, title, content, nil)
	if err != nil {
		return toolError("", err), nil
	}
	return jsonResult(toView(note)), nil
}

func (s *Server) updateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	note, err := s.svc.Update(ctx, id, title, content)
	if err != nil {
		return toolError(id, err), nil
	}
	return jsonResult(toView(note)), nil
}

func (s *Server) togglePin(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.TogglePin(ctx, id)
	if err != nil {
		return toolError(id, err), nil
	}
	return jsonResult(toView(note)), nil
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Delete(ctx, id); err != nil {
		return toolError(id, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) setDarkMode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	enabled, err := req.RequireBool("enabled")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.svc.SetDarkMode(ctx, enabled)
	return jsonResult(map[string]bool{"isDarkMode": s.svc.DarkMode(ctx)}), nil
}

func (s *Server) getNoteSchema(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteSchema), nil
}

func (s *Server) readNoteSchemaResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      NoteSchemaURI,
			MIMEType: "text/markdown",
			Text:     NoteSchema,
		},
	}, nil
}
