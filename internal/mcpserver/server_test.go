package mcpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/folio/internal/folio"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/noteservice"
	"github.com/starford/folio/internal/testutil"
	"github.com/starford/folio/internal/watcher"
)

func testServer(t *testing.T) (*Server, *folio.App, models.Workspace) {
	t.Helper()

	app := folio.New(testutil.TestDB(t), watcher.DefaultOptions(), nil, slog.New(slog.DiscardHandler))
	t.Cleanup(app.StopAll)

	ctx := context.Background()
	ws, err := app.RegisterWorkspace(ctx, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if ws, err = app.ActivateWorkspace(ctx, ws.ID); err != nil {
		t.Fatal(err)
	}
	return New(app, "test"), app, ws
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so handlers are
	// invoked directly.
	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"sync_workspace":    srv.syncWorkspace,
		"scan_workspace":    srv.scanWorkspace,
		"get_backlinks":     srv.getBacklinks,
		"get_forward_links": srv.getForwardLinks,
		"get_graph_data":    srv.getGraphData,
		"update_note_links": srv.updateNoteLinks,
		"read_note":         srv.readNote,
		"capture_journal":   srv.captureJournal,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(ctx, req)
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

func TestToolsRegistered(t *testing.T) {
	srv, _, _ := testServer(t)
	tools := srv.MCPServer().ListTools()
	for _, name := range []string{"sync_workspace", "scan_workspace", "get_backlinks", "get_forward_links", "get_graph_data", "update_note_links"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("tool %s not registered", name)
		}
	}
}

func TestSyncAndScan(t *testing.T) {
	srv, _, ws := testServer(t)
	testutil.WriteFile(t, ws.FolderPath, "a.md", "# A")
	testutil.WriteFile(t, ws.FolderPath, "dir/b.md", "# B")

	r := callTool(t, srv, "sync_workspace", map[string]any{})
	if r.IsError {
		t.Fatalf("sync error: %s", resultText(r))
	}
	var stats models.SyncStats
	if err := json.Unmarshal([]byte(resultText(r)), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Created != 2 {
		t.Errorf("created = %d, want 2", stats.Created)
	}

	r = callTool(t, srv, "scan_workspace", map[string]any{"workspace_id": ws.ID})
	var scan folio.ScanResult
	if err := json.Unmarshal([]byte(resultText(r)), &scan); err != nil {
		t.Fatal(err)
	}
	if scan.Total != 2 {
		t.Errorf("total = %d, want 2", scan.Total)
	}

	r = callTool(t, srv, "scan_workspace", map[string]any{})
	if !r.IsError {
		t.Error("scan without workspace_id should fail")
	}
}

func TestLinkTools(t *testing.T) {
	srv, app, _ := testServer(t)
	ctx := context.Background()
	b, err := app.CreateNote(ctx, noteservice.CreateInput{Path: "b.md", Content: "# B"})
	if err != nil {
		t.Fatal(err)
	}
	a, err := app.CreateNote(ctx, noteservice.CreateInput{Path: "a.md", Content: "# A\n[[b]]"})
	if err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "get_backlinks", map[string]any{"note_id": b.ID})
	if !strings.Contains(resultText(r), a.ID) {
		t.Errorf("backlinks = %q, want %s", resultText(r), a.ID)
	}
	r = callTool(t, srv, "get_forward_links", map[string]any{"note_id": a.ID})
	if !strings.Contains(resultText(r), b.ID) {
		t.Errorf("forward links = %q, want %s", resultText(r), b.ID)
	}

	r = callTool(t, srv, "get_graph_data", map[string]any{"center": a.ID, "depth": float64(1)})
	var g models.GraphData
	if err := json.Unmarshal([]byte(resultText(r)), &g); err != nil {
		t.Fatal(err)
	}
	if len(g.Nodes) != 2 || len(g.Edges) != 1 {
		t.Errorf("graph = %+v", g)
	}

	r = callTool(t, srv, "update_note_links", map[string]any{"note_id": a.ID, "content": "no links"})
	if r.IsError {
		t.Fatalf("update links: %s", resultText(r))
	}
	r = callTool(t, srv, "get_backlinks", map[string]any{"note_id": b.ID})
	if resultText(r) != "no backlinks found" {
		t.Errorf("backlinks after update = %q", resultText(r))
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "read_note", map[string]any{"note_id": "nope"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
}

func TestCaptureJournal(t *testing.T) {
	srv, _, ws := testServer(t)
	r := callTool(t, srv, "capture_journal", map[string]any{"text": "hello"})
	if r.IsError {
		t.Fatalf("capture: %s", resultText(r))
	}
	var note noteservice.NoteDetail
	if err := json.Unmarshal([]byte(resultText(r)), &note); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(note.FilePath, "Journal/") {
		t.Errorf("path = %q", note.FilePath)
	}
	if _, err := os.Stat(filepath.Join(ws.FolderPath, filepath.FromSlash(note.FilePath))); err != nil {
		t.Errorf("journal file missing: %v", err)
	}
}
