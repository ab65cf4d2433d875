// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Stickies tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/stickies/internal/noteservice"
)

const contractURI = "stickies://note-format"

// Server wraps the MCP server with Stickies tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// New creates a new MCP server with all Stickies tools registered.
func New(svc *noteservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Stickies",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all notes in display order with id, title, language and a short preview."),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Case-insensitive search through note titles and text."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full text of a note."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id (UUID)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new code note. Read the format contract first via "+
			"the get_note_contract tool or the "+contractURI+" resource."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Note body")),
		mcp.WithString("title", mcp.Description("Optional title")),
		mcp.WithString("language", mcp.Description("Syntax language name (Text, Agda, Cabal, Cypher, Haskell, SQLite, Swift)")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("update_note",
		mcp.WithDescription("Replace fields of an existing note. Omitted fields are unchanged."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id (UUID)")),
		mcp.WithString("text", mcp.Description("New body")),
		mcp.WithString("title", mcp.Description("New title; empty clears it")),
		mcp.WithString("language", mcp.Description("New syntax language name")),
		mcp.WithString("checksum", mcp.Description("Checksum from read_note; the update fails if the note changed since")),
	), s.updateNote)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the Stickies note and export file format. "+
			"Call this before creating notes or importing files."),
	), s.getNoteContract)

	s.mcp.AddTool(mcp.NewTool("import_notes",
		mcp.WithDescription("Import notes from an http(s) URL or a base64 data: URI pointing at an "+
			"export file (.stickies or .json) or a Markdown/text file."),
		mcp.WithString("url", mcp.Required(), mcp.Description("Source URL or data: URI")),
		mcp.WithString("filename", mcp.Description("File name used to pick the format when the URL has none")),
		mcp.WithString("policy", mcp.Description("Merge policy: skip (default), add, replace or cancel")),
	), s.importNotes)

	s.mcp.AddTool(mcp.NewTool("list_backups",
		mcp.WithDescription("List snapshots in the backup folder, newest first."),
	), s.listBackups)

	s.mcp.AddTool(mcp.NewTool("create_backup",
		mcp.WithDescription("Write a snapshot of the saved notes to the backup folder now."),
	), s.createBackup)

	s.mcp.AddTool(mcp.NewTool("preview_backup",
		mcp.WithDescription("Show the notes and keywords stored in a snapshot."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Snapshot file name from list_backups")),
	), s.previewBackup)

	s.mcp.AddTool(mcp.NewTool("scheduler_status",
		mcp.WithDescription("Report whether automatic backups are enabled and how often they run."),
	), s.schedulerStatus)

	// Resource: note format contract.
	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Note Format Contract",
			mcp.WithResourceDescription("Note fields, languages and the export file format."),
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

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func optional(req mcp.CallToolRequest, key string) *string {
	if v, err := req.RequireString(key); err == nil {
		return &v
	}
	return nil
}

func requireID(req mcp.CallToolRequest) (uuid.UUID, error) {
	raw, err := req.RequireString("id")
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid note id %q", raw)
	}
	return id, nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.ListNotes(ctx))
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.svc.SearchNotes(ctx, query, 20))
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNote(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return jsonResult(note)
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.CreateNote(ctx, noteservice.NoteInput{
		Text:     &text,
		Title:    optional(req, "title"),
		Language: optional(req, "language"),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(note)
}

func (s *Server) updateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ifMatch := ""
	if v := optional(req, "checksum"); v != nil {
		ifMatch = *v
	}
	note, err := s.svc.UpdateNote(ctx, id, noteservice.NoteInput{
		Text:     optional(req, "text"),
		Title:    optional(req, "title"),
		Language: optional(req, "language"),
	}, ifMatch)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(note)
}

func (s *Server) getNoteContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}

func (s *Server) listBackups(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := s.svc.Backups(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(entries)
}

func (s *Server) createBackup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := s.svc.CreateBackup(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", name)), nil
}

func (s *Server) previewBackup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	preview, err := s.svc.PreviewBackup(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(preview)
}

func (s *Server) schedulerStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.svc.SchedulerState(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(st.String()), nil
}
