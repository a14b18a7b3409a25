package linkgraph

import (
	"context"
	"errors"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/store"
)

type env struct {
	db  *store.DB
	ix  *Index
	ws  models.Workspace
	ids map[string]string // title -> id
}

func newEnv(t *testing.T, titles ...string) *env {
	t.Helper()
	f, err := os.CreateTemp("", "folio-linkgraph-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := store.Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	ws, err := db.RegisterWorkspace(ctx, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	e := &env{db: db, ix: New(db, nil), ws: ws, ids: map[string]string{}}
	for _, title := range titles {
		n := models.Note{Title: title, FilePath: title + ".md", WorkspaceID: ws.ID}
		if err := db.CreateNote(ctx, &n); err != nil {
			t.Fatal(err)
		}
		e.ids[title] = n.ID
	}
	return e
}

func (e *env) link(t *testing.T, from, content string) Result {
	t.Helper()
	res, err := e.ix.UpdateLinksFor(context.Background(), e.ids[from], content)
	if err != nil {
		t.Fatalf("UpdateLinksFor(%s): %v", from, err)
	}
	return res
}

func refTitles(refs []models.NoteRef) []string {
	out := []string{}
	for _, r := range refs {
		out = append(out, r.Title)
	}
	return out
}

func TestUpdateLinksFor_ResolvesTitlesCaseInsensitive(t *testing.T) {
	e := newEnv(t, "A", "Beta", "Gamma")
	res := e.link(t, "A", "links to [[beta]] and [g](Gamma.md) and [[Missing]] #todo")

	if diff := cmp.Diff([]string{"Missing"}, res.Unresolved); diff != "" {
		t.Errorf("unresolved (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"todo"}, res.Tags); diff != "" {
		t.Errorf("tags (-want +got):\n%s", diff)
	}

	ctx := context.Background()
	fwd, err := e.ix.ForwardLinks(ctx, e.ids["A"])
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Beta", "Gamma"}, refTitles(fwd)); diff != "" {
		t.Errorf("forward (-want +got):\n%s", diff)
	}
	back, _ := e.ix.Backlinks(ctx, e.ids["Beta"])
	if diff := cmp.Diff([]string{"A"}, refTitles(back)); diff != "" {
		t.Errorf("backlinks (-want +got):\n%s", diff)
	}
}

func TestUpdateLinksFor_SkipsSelf(t *testing.T) {
	e := newEnv(t, "A")
	res := e.link(t, "A", "[[A]]")
	if len(res.Linked) != 0 || len(res.Unresolved) != 0 {
		t.Errorf("self link result = %+v", res)
	}
	fwd, _ := e.ix.ForwardLinks(context.Background(), e.ids["A"])
	if len(fwd) != 0 {
		t.Errorf("self link stored: %+v", fwd)
	}
}

func TestUpdateLinksFor_ReplacesPreviousEdges(t *testing.T) {
	e := newEnv(t, "A", "B", "C")
	e.link(t, "A", "[[B]]")
	e.link(t, "A", "[[C]]")

	back, _ := e.ix.Backlinks(context.Background(), e.ids["B"])
	if len(back) != 0 {
		t.Errorf("B still has backlinks: %+v", back)
	}
}

func TestUpdateLinksFor_IgnoresDeletedAndOtherWorkspaces(t *testing.T) {
	e := newEnv(t, "A", "Gone")
	ctx := context.Background()
	if _, err := e.db.SoftDeleteNote(ctx, e.ids["Gone"], time.Now()); err != nil {
		t.Fatal(err)
	}
	other, _ := e.db.RegisterWorkspace(ctx, t.TempDir())
	foreign := models.Note{Title: "Foreign", WorkspaceID: other.ID}
	if err := e.db.CreateNote(ctx, &foreign); err != nil {
		t.Fatal(err)
	}

	res := e.link(t, "A", "[[Gone]] [[Foreign]]")
	if diff := cmp.Diff([]string{"Gone", "Foreign"}, res.Unresolved); diff != "" {
		t.Errorf("unresolved (-want +got):\n%s", diff)
	}
}

func TestLinks_UnknownNote(t *testing.T) {
	e := newEnv(t)
	if _, err := e.ix.Backlinks(context.Background(), "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := e.ix.UpdateLinksFor(context.Background(), "nope", "[[x]]"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func nodeTitles(g models.GraphData) []string {
	out := []string{}
	for _, n := range g.Nodes {
		out = append(out, n.Title)
	}
	sort.Strings(out)
	return out
}

// chain builds A -> B -> C -> D plus an orphan O.
func chain(t *testing.T) *env {
	e := newEnv(t, "A", "B", "C", "D", "O")
	e.link(t, "A", "[[B]]")
	e.link(t, "B", "[[C]]")
	e.link(t, "C", "[[D]]")
	return e
}

func TestGraphData_Whole(t *testing.T) {
	e := chain(t)
	ctx := context.Background()

	g, err := e.ix.GraphData(ctx, GraphQuery{WorkspaceID: e.ws.ID})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"A", "B", "C", "D"}, nodeTitles(g)); diff != "" {
		t.Errorf("nodes (-want +got):\n%s", diff)
	}
	if len(g.Edges) != 3 {
		t.Errorf("edges = %d, want 3", len(g.Edges))
	}
	for _, n := range g.Nodes {
		want := 2
		if n.Title == "A" || n.Title == "D" {
			want = 1
		}
		if n.Weight != want {
			t.Errorf("weight(%s) = %d, want %d", n.Title, n.Weight, want)
		}
	}

	g, _ = e.ix.GraphData(ctx, GraphQuery{WorkspaceID: e.ws.ID, IncludeOrphans: true})
	if len(g.Nodes) != 5 {
		t.Errorf("with orphans nodes = %d, want 5", len(g.Nodes))
	}
}

func TestGraphData_CenterDepthBound(t *testing.T) {
	e := chain(t)
	ctx := context.Background()

	tests := []struct {
		depth int
		want  []string
	}{
		{-3, []string{"B"}},
		{0, []string{"B"}},
		{1, []string{"A", "B", "C"}},
		{2, []string{"A", "B", "C", "D"}},
	}
	for _, tt := range tests {
		g, err := e.ix.GraphData(ctx, GraphQuery{WorkspaceID: e.ws.ID, Center: e.ids["B"], Depth: tt.depth})
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(tt.want, nodeTitles(g)); diff != "" {
			t.Errorf("depth %d nodes (-want +got):\n%s", tt.depth, diff)
		}
		if len(g.Edges) != len(tt.want)-1 {
			t.Errorf("depth %d edges = %d, want %d", tt.depth, len(g.Edges), len(tt.want)-1)
		}
	}
}

func TestGraphData_UnknownCenter(t *testing.T) {
	e := chain(t)
	_, err := e.ix.GraphData(context.Background(), GraphQuery{WorkspaceID: e.ws.ID, Center: "nope", Depth: 1})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
