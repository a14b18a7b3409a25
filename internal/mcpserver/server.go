// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Folio workspace and link tools for LLM integration via
// stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/folio/internal/folio"
	"github.com/starford/folio/internal/linkgraph"
)

// Server wraps the MCP server with Folio tools.
type Server struct {
	mcp *server.MCPServer
	app *folio.App
}

// New creates a new MCP server with all Folio tools registered.
func New(app *folio.App, version string) *Server {
	s := &Server{app: app}

	s.mcp = server.NewMCPServer(
		"Folio",
		version,
		server.WithToolCapabilities(false),
	)

	s.mcp.AddTool(mcp.NewTool("sync_workspace",
		mcp.WithDescription("Reconcile the notes database with the Markdown files of a workspace folder. "+
			"Returns counts of created, updated and deleted notes."),
		mcp.WithString("workspace_id", mcp.Description("Workspace ID (empty for the active workspace)")),
	), s.syncWorkspace)

	s.mcp.AddTool(mcp.NewTool("scan_workspace",
		mcp.WithDescription("List the Markdown files of a workspace folder as a tree with per-folder counts."),
		mcp.WithString("workspace_id", mcp.Required(), mcp.Description("Workspace ID")),
	), s.scanWorkspace)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all live notes that link to the specified note."),
		mcp.WithString("note_id", mcp.Required(), mcp.Description("ID of the note to find backlinks for")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("get_forward_links",
		mcp.WithDescription("Find all live notes the specified note links to."),
		mcp.WithString("note_id", mcp.Required(), mcp.Description("ID of the linking note")),
	), s.getForwardLinks)

	s.mcp.AddTool(mcp.NewTool("get_graph_data",
		mcp.WithDescription("Return the link graph of a workspace as nodes and edges. "+
			"With center set, only notes within depth hops of it are returned."),
		mcp.WithString("workspace_id", mcp.Description("Workspace ID (empty for the active workspace)")),
		mcp.WithString("center", mcp.Description("Optional center note ID")),
		mcp.WithNumber("depth", mcp.Description("Hops around the center (default 1)")),
		mcp.WithBoolean("include_orphans", mcp.Description("Include notes without any links")),
	), s.getGraphData)

	s.mcp.AddTool(mcp.NewTool("update_note_links",
		mcp.WithDescription("Re-derive a note's outgoing links and tags from the given Markdown content. "+
			"The note file is not modified."),
		mcp.WithString("note_id", mcp.Required(), mcp.Description("ID of the note")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content containing [[wiki links]]")),
	), s.updateNoteLinks)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note with its content, tags and backlinks."),
		mcp.WithString("note_id", mcp.Required(), mcp.Description("ID of the note")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("capture_journal",
		mcp.WithDescription("Append text to today's journal note, creating it if needed."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to append")),
		mcp.WithString("workspace_id", mcp.Description("Workspace ID (empty for the active workspace)")),
	), s.captureJournal)

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

// jsonResult renders v as indented JSON, or the error as a tool error.
func jsonResult(v any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) syncWorkspace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.app.SyncWorkspace(ctx, req.GetString("workspace_id", "")))
}

func (s *Server) scanWorkspace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("workspace_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.app.ScanWorkspace(ctx, id))
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("note_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	refs, err := s.app.GetBacklinks(ctx, id)
	if err == nil && len(refs) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return jsonResult(refs, err)
}

func (s *Server) getForwardLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("note_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	refs, err := s.app.GetForwardLinks(ctx, id)
	if err == nil && len(refs) == 0 {
		return mcp.NewToolResultText("no forward links found"), nil
	}
	return jsonResult(refs, err)
}

func (s *Server) getGraphData(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.app.GetGraphData(ctx, linkgraph.GraphQuery{
		WorkspaceID:    req.GetString("workspace_id", ""),
		Center:         req.GetString("center", ""),
		Depth:          req.GetInt("depth", 1),
		IncludeOrphans: req.GetBool("include_orphans", false),
	}))
}

func (s *Server) updateNoteLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("note_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.app.UpdateNoteLinks(ctx, id, content))
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("note_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.app.GetNote(ctx, id))
}

func (s *Server) captureJournal(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.app.CaptureJournal(ctx, req.GetString("workspace_id", ""), text))
}
