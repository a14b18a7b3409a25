package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/starford/folio/internal/folio"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/testutil"
	"github.com/starford/folio/internal/watcher"
)

type env struct {
	app    *folio.App
	router http.Handler
	root   string
	ws     models.Workspace
}

// testEnv sets up a temp workspace folder, SQLite DB, app and router. An
// empty authToken disables auth.
func testEnv(t *testing.T, authToken string) *env {
	t.Helper()
	return testEnvWithSSE(t, authToken, nil)
}

func testEnvWithSSE(t *testing.T, authToken string, sseHandler http.Handler) *env {
	t.Helper()

	app := folio.New(testutil.TestDB(t), watcher.Options{Debounce: 50 * time.Millisecond}, nil, slog.New(slog.DiscardHandler))
	t.Cleanup(app.StopAll)

	root := t.TempDir()
	ctx := context.Background()
	ws, err := app.RegisterWorkspace(ctx, root)
	if err != nil {
		t.Fatalf("RegisterWorkspace: %v", err)
	}
	if ws, err = app.ActivateWorkspace(ctx, ws.ID); err != nil {
		t.Fatalf("ActivateWorkspace: %v", err)
	}

	return &env{
		app:    app,
		router: NewRouter(app, authToken != "", authToken, sseHandler),
		root:   root,
		ws:     ws,
	}
}

func (e *env) do(t *testing.T, method, target string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, rd)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func (e *env) createNote(t *testing.T, path, content string) NoteDetail {
	t.Helper()
	w := e.do(t, http.MethodPost, "/notes", map[string]string{"path": path, "content": content})
	if w.Code != http.StatusCreated {
		t.Fatalf("create %s = %d, body = %s", path, w.Code, w.Body.String())
	}
	return decode[NoteDetail](t, w)
}

func TestCreateAndGetNote(t *testing.T) {
	e := testEnv(t, "")

	created := e.createNote(t, "hello.md", "# Hello\nWorld")
	if created.WorkspaceID != e.ws.ID {
		t.Errorf("workspace = %q, want active %q", created.WorkspaceID, e.ws.ID)
	}
	if _, err := os.Stat(filepath.Join(e.root, "hello.md")); err != nil {
		t.Errorf("file not written: %v", err)
	}

	w := e.do(t, http.MethodGet, "/notes/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if got := w.Header().Get("ETag"); got != `"`+created.Checksum+`"` {
		t.Errorf("ETag = %q", got)
	}
	note := decode[NoteDetail](t, w)
	if note.FilePath != "hello.md" {
		t.Errorf("path = %q", note.FilePath)
	}
	if note.Title != "Hello" {
		t.Errorf("title = %q, want Hello", note.Title)
	}
}

func TestCreateDuplicate(t *testing.T) {
	e := testEnv(t, "")
	e.createNote(t, "dup.md", "a")

	w := e.do(t, http.MethodPost, "/notes", map[string]string{"path": "dup.md", "content": "b"})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}
}

func TestCreateNote_InvalidPath(t *testing.T) {
	e := testEnv(t, "")
	for _, p := range []string{"", "notes.txt", "../escape.md"} {
		w := e.do(t, http.MethodPost, "/notes", map[string]string{"path": p, "content": "x"})
		if w.Code != http.StatusBadRequest {
			t.Errorf("create %q = %d, want 400", p, w.Code)
		}
	}
}

func TestCreateNote_InvalidJSON(t *testing.T) {
	e := testEnv(t, "")
	req := httptest.NewRequest(http.MethodPost, "/notes", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestUpdateWithOptimisticLocking(t *testing.T) {
	e := testEnv(t, "")
	created := e.createNote(t, "lock.md", "v1")

	body := map[string]string{"content": "v2"}
	w := e.do(t, http.MethodPut, "/notes/"+created.ID, body, "If-Match", `"`+created.Checksum+`"`)
	if w.Code != http.StatusOK {
		t.Fatalf("update with correct checksum = %d, body = %s", w.Code, w.Body.String())
	}

	w = e.do(t, http.MethodPut, "/notes/"+created.ID, body, "If-Match", created.Checksum)
	if w.Code != http.StatusConflict {
		t.Errorf("update with stale checksum = %d, want 409", w.Code)
	}
}

func TestUpdateWithoutIfMatch(t *testing.T) {
	e := testEnv(t, "")
	created := e.createNote(t, "nolock.md", "v1")

	w := e.do(t, http.MethodPut, "/notes/"+created.ID, map[string]string{"content": "v2"})
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d", w.Code)
	}
	data, _ := os.ReadFile(filepath.Join(e.root, "nolock.md"))
	if string(data) != "v2" {
		t.Errorf("file = %q, want v2", data)
	}
}

func TestDeleteNote(t *testing.T) {
	e := testEnv(t, "")
	created := e.createNote(t, "del.md", "bye")

	if w := e.do(t, http.MethodDelete, "/notes/"+created.ID, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/notes/"+created.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
	if _, err := os.Stat(filepath.Join(e.root, "del.md")); !os.IsNotExist(err) {
		t.Errorf("file still on disk: %v", err)
	}
}

func TestMoveNote(t *testing.T) {
	e := testEnv(t, "")
	created := e.createNote(t, "old.md", "# Old")
	e.createNote(t, "busy.md", "x")

	w := e.do(t, http.MethodPut, "/notes/"+created.ID+"/path", MoveNoteRequest{Path: "sub/new.md"})
	if w.Code != http.StatusOK {
		t.Fatalf("move = %d, body = %s", w.Code, w.Body.String())
	}
	if got := decode[NoteDetail](t, w); got.FilePath != "sub/new.md" {
		t.Errorf("path = %q", got.FilePath)
	}
	if _, err := os.Stat(filepath.Join(e.root, "sub", "new.md")); err != nil {
		t.Errorf("moved file missing: %v", err)
	}

	w = e.do(t, http.MethodPut, "/notes/"+created.ID+"/path", MoveNoteRequest{Path: "busy.md"})
	if w.Code != http.StatusConflict {
		t.Errorf("move onto existing = %d, want 409", w.Code)
	}
}

func TestGetNote_NotFound(t *testing.T) {
	e := testEnv(t, "")
	if w := e.do(t, http.MethodGet, "/notes/missing", nil); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestUpdateNote_NotFound(t *testing.T) {
	e := testEnv(t, "")
	w := e.do(t, http.MethodPut, "/notes/missing", map[string]string{"content": "x"})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestLinksEndpoints(t *testing.T) {
	e := testEnv(t, "")
	b := e.createNote(t, "b.md", "# B")
	a := e.createNote(t, "a.md", "# A\nsee [[b]]")

	w := e.do(t, http.MethodGet, "/notes/"+b.ID+"/backlinks", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("backlinks = %d", w.Code)
	}
	want := []models.NoteRef{{ID: a.ID, Title: "A"}}
	if diff := cmp.Diff(want, decode[NoteRefsResponse](t, w).Notes); diff != "" {
		t.Errorf("backlinks (-want +got):\n%s", diff)
	}

	w = e.do(t, http.MethodGet, "/notes/"+a.ID+"/forward-links", nil)
	if diff := cmp.Diff([]models.NoteRef{{ID: b.ID, Title: "B"}}, decode[NoteRefsResponse](t, w).Notes); diff != "" {
		t.Errorf("forward links (-want +got):\n%s", diff)
	}

	w = e.do(t, http.MethodPut, "/notes/"+a.ID+"/links", map[string]string{"content": "now [[nowhere]]"})
	if w.Code != http.StatusOK {
		t.Fatalf("update links = %d, body = %s", w.Code, w.Body.String())
	}
	res := decode[LinksResult](t, w)
	if len(res.Linked) != 0 || len(res.Unresolved) != 1 {
		t.Errorf("result = %+v, want one unresolved", res)
	}

	w = e.do(t, http.MethodGet, "/notes/"+b.ID+"/backlinks", nil)
	if got := decode[NoteRefsResponse](t, w).Notes; len(got) != 0 {
		t.Errorf("backlinks after relink = %v, want none", got)
	}

	if w := e.do(t, http.MethodGet, "/notes/missing/backlinks", nil); w.Code != http.StatusNotFound {
		t.Errorf("backlinks of unknown note = %d, want 404", w.Code)
	}
}

func TestGraphEndpoint(t *testing.T) {
	e := testEnv(t, "")
	e.createNote(t, "b.md", "# B")
	a := e.createNote(t, "a.md", "# A\n[[b]]")
	e.createNote(t, "lonely.md", "# Lonely")

	w := e.do(t, http.MethodGet, "/graph", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("graph = %d", w.Code)
	}
	g := decode[GraphData](t, w)
	if len(g.Nodes) != 2 || len(g.Edges) != 1 {
		t.Errorf("graph = %d nodes, %d edges; want 2, 1", len(g.Nodes), len(g.Edges))
	}

	w = e.do(t, http.MethodGet, "/graph?include_orphans=true", nil)
	if g := decode[GraphData](t, w); len(g.Nodes) != 3 {
		t.Errorf("with orphans = %d nodes, want 3", len(g.Nodes))
	}

	w = e.do(t, http.MethodGet, "/graph?center="+a.ID+"&depth=1", nil)
	if g := decode[GraphData](t, w); len(g.Nodes) != 2 {
		t.Errorf("centered = %d nodes, want 2", len(g.Nodes))
	}

	w = e.do(t, http.MethodGet, "/graph?center="+a.ID, nil)
	if g := decode[GraphData](t, w); len(g.Nodes) != 2 {
		t.Errorf("centered with default depth = %d nodes, want 2", len(g.Nodes))
	}

	if w := e.do(t, http.MethodGet, "/graph?center=missing", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown center = %d, want 404", w.Code)
	}
}

func TestGraphEndpoint_MalformedQuery(t *testing.T) {
	e := testEnv(t, "")
	a := e.createNote(t, "a.md", "# A")

	for _, target := range []string{
		"/graph?center=" + a.ID + "&depth=abc",
		"/graph?include_orphans=maybe",
	} {
		if w := e.do(t, http.MethodGet, target, nil); w.Code != http.StatusBadRequest {
			t.Errorf("GET %s = %d, want 400", target, w.Code)
		}
	}
}

func TestTagsEndpoint(t *testing.T) {
	e := testEnv(t, "")
	e.createNote(t, "a.md", "# A\n#go #notes")
	e.createNote(t, "b.md", "---\ntags: [go]\n---\n# B")

	w := e.do(t, http.MethodGet, "/tags", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("tags = %d", w.Code)
	}
	want := []models.TagCount{{Tag: "go", Count: 2}, {Tag: "notes", Count: 1}}
	if diff := cmp.Diff(want, decode[[]models.TagCount](t, w)); diff != "" {
		t.Errorf("tags (-want +got):\n%s", diff)
	}
}

func TestWorkspaceEndpoints(t *testing.T) {
	e := testEnv(t, "")

	other := t.TempDir()
	w := e.do(t, http.MethodPost, "/workspaces", RegisterWorkspaceRequest{FolderPath: other})
	if w.Code != http.StatusCreated {
		t.Fatalf("register = %d, body = %s", w.Code, w.Body.String())
	}
	ws := decode[models.Workspace](t, w)
	if ws.IsActive {
		t.Error("registered workspace should not be active")
	}

	if w := e.do(t, http.MethodPost, "/workspaces", RegisterWorkspaceRequest{FolderPath: filepath.Join(other, "nope")}); w.Code != http.StatusBadRequest {
		t.Errorf("register missing folder = %d, want 400", w.Code)
	}

	w = e.do(t, http.MethodPost, "/workspaces/"+ws.ID+"/activate", nil)
	if w.Code != http.StatusOK || !decode[models.Workspace](t, w).IsActive {
		t.Fatalf("activate = %d, body = %s", w.Code, w.Body.String())
	}

	w = e.do(t, http.MethodGet, "/workspaces", nil)
	active := 0
	for _, item := range decode[[]models.Workspace](t, w) {
		if item.IsActive {
			active++
		}
	}
	if active != 1 {
		t.Errorf("active workspaces = %d, want 1", active)
	}

	if w := e.do(t, http.MethodPost, "/workspaces/missing/activate", nil); w.Code != http.StatusNotFound {
		t.Errorf("activate unknown = %d, want 404", w.Code)
	}
}

func TestScanAndSync(t *testing.T) {
	e := testEnv(t, "")
	for _, p := range []string{"one.md", "sub/two.md", "sub/skip.txt"} {
		testutil.WriteFile(t, e.root, p, "# "+p)
	}

	w := e.do(t, http.MethodGet, "/workspaces/"+e.ws.ID+"/scan", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("scan = %d", w.Code)
	}
	if scan := decode[ScanResponse](t, w); scan.Total != 2 {
		t.Errorf("scan total = %d, want 2", scan.Total)
	}

	w = e.do(t, http.MethodPost, "/sync", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("sync = %d, body = %s", w.Code, w.Body.String())
	}
	if stats := decode[models.SyncStats](t, w); stats.Created != 2 {
		t.Errorf("created = %d, want 2", stats.Created)
	}

	w = e.do(t, http.MethodPost, "/sync?workspace_id="+e.ws.ID, nil)
	if stats := decode[models.SyncStats](t, w); stats.Changed() {
		t.Errorf("second sync changed records: %+v", stats)
	}

	if w := e.do(t, http.MethodPost, "/sync?workspace_id=missing", nil); w.Code != http.StatusNotFound {
		t.Errorf("sync unknown = %d, want 404", w.Code)
	}
}

func TestWatchEndpoints(t *testing.T) {
	e := testEnv(t, "")

	w := e.do(t, http.MethodPost, "/workspaces/"+e.ws.ID+"/watch", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("watch = %d, body = %s", w.Code, w.Body.String())
	}
	if !e.app.Watching(e.ws.ID) {
		t.Error("workspace should be watched")
	}

	if w := e.do(t, http.MethodDelete, "/workspaces/"+e.ws.ID+"/watch", nil); w.Code != http.StatusNoContent {
		t.Fatalf("unwatch = %d", w.Code)
	}
	if e.app.Watching(e.ws.ID) {
		t.Error("workspace still watched")
	}
}

func TestJournalEndpoint(t *testing.T) {
	e := testEnv(t, "")

	if w := e.do(t, http.MethodPost, "/journal", JournalRequest{Text: "  "}); w.Code != http.StatusBadRequest {
		t.Errorf("empty text = %d, want 400", w.Code)
	}

	w := e.do(t, http.MethodPost, "/journal", JournalRequest{Text: "first"})
	if w.Code != http.StatusOK {
		t.Fatalf("journal = %d, body = %s", w.Code, w.Body.String())
	}
	first := decode[NoteDetail](t, w)

	w = e.do(t, http.MethodPost, "/journal", JournalRequest{Text: "second"})
	second := decode[NoteDetail](t, w)
	if second.ID != first.ID {
		t.Errorf("second capture created a new note %q != %q", second.ID, first.ID)
	}
	if !bytes.Contains([]byte(second.Content), []byte("first")) || !bytes.Contains([]byte(second.Content), []byte("second")) {
		t.Errorf("content = %q", second.Content)
	}
}

func TestNotebookEndpoints(t *testing.T) {
	e := testEnv(t, "")

	w := e.do(t, http.MethodPost, "/notebooks", CreateNotebookRequest{Name: "Projects", WorkspaceID: e.ws.ID})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d, body = %s", w.Code, w.Body.String())
	}
	parent := decode[models.Notebook](t, w)

	w = e.do(t, http.MethodPost, "/notebooks", CreateNotebookRequest{Name: "Child", ParentID: &parent.ID, WorkspaceID: e.ws.ID})
	child := decode[models.Notebook](t, w)

	if w := e.do(t, http.MethodPost, "/notebooks", CreateNotebookRequest{Name: ""}); w.Code != http.StatusBadRequest {
		t.Errorf("empty name = %d, want 400", w.Code)
	}

	w = e.do(t, http.MethodGet, "/notebooks/"+child.ID+"/ancestors", nil)
	if diff := cmp.Diff([]string{parent.ID}, decode[AncestorsResponse](t, w).AncestorIDs); diff != "" {
		t.Errorf("ancestors (-want +got):\n%s", diff)
	}
	if w := e.do(t, http.MethodGet, "/notebooks/missing/ancestors", nil); w.Code != http.StatusNotFound {
		t.Errorf("ancestors of unknown = %d, want 404", w.Code)
	}

	// A notebook cannot move under its own descendant.
	w = e.do(t, http.MethodPut, "/notebooks/"+parent.ID+"/parent", MoveNotebookRequest{ParentID: &child.ID})
	if w.Code != http.StatusBadRequest {
		t.Errorf("cycle move = %d, want 400", w.Code)
	}

	w = e.do(t, http.MethodPut, "/notebooks/"+child.ID+"/parent", MoveNotebookRequest{})
	if w.Code != http.StatusOK {
		t.Fatalf("move to root = %d, body = %s", w.Code, w.Body.String())
	}
	if decode[models.Notebook](t, w).ParentID != nil {
		t.Error("child should be at root level")
	}

	if w := e.do(t, http.MethodDelete, "/notebooks/"+parent.ID, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	w = e.do(t, http.MethodGet, "/notebooks?workspace_id="+e.ws.ID, nil)
	got := decode[[]models.Notebook](t, w)
	if len(got) != 1 || got[0].ID != child.ID {
		t.Errorf("notebooks = %+v, want only child", got)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	e := testEnv(t, "secret")
	if w := e.do(t, http.MethodGet, "/workspaces", nil, "Authorization", "Bearer secret"); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	e := testEnv(t, "secret")
	if w := e.do(t, http.MethodGet, "/workspaces", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	e := testEnv(t, "secret")
	if w := e.do(t, http.MethodGet, "/workspaces", nil, "Authorization", "Bearer wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	e := testEnv(t, "")
	if w := e.do(t, http.MethodGet, "/workspaces", nil); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func sseStub() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	e := testEnvWithSSE(t, "tok", sseStub())
	if w := e.do(t, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestSSEEvents_QueryToken(t *testing.T) {
	e := testEnvWithSSE(t, "tok", sseStub())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events?access_token=tok", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
