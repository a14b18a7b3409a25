// Package folio wires the workspace, note, link and watch components into
// the single set of operations exposed over HTTP, MCP and the CLI.
package folio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/folio/internal/linkgraph"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/notebook"
	"github.com/starford/folio/internal/noteservice"
	"github.com/starford/folio/internal/reconcile"
	"github.com/starford/folio/internal/scanner"
	"github.com/starford/folio/internal/store"
	"github.com/starford/folio/internal/watcher"
	"github.com/starford/folio/internal/workspace"
)

// Publisher receives change notifications for connected clients.
type Publisher interface {
	PublishNoteEvent(workspaceID, kind, path string)
	PublishSync(workspaceID string, stats models.SyncStats)
}

type nopPublisher struct{}

func (nopPublisher) PublishNoteEvent(string, string, string) {}
func (nopPublisher) PublishSync(string, models.SyncStats)    {}

// App is the application facade.
type App struct {
	db         *store.DB
	workspaces *workspace.Service
	engine     *reconcile.Engine
	index      *linkgraph.Index
	notes      *noteservice.Service
	notebooks  *notebook.Service
	watcher    *watcher.Manager
	scanner    *scanner.Scanner
	publisher  Publisher
	logger     *slog.Logger

	wg sync.WaitGroup
}

// New builds an App over an open store. A nil publisher drops notifications.
func New(db *store.DB, watch watcher.Options, publisher Publisher, logger *slog.Logger) *App {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	locker := workspace.NewLocker()
	wsSvc := workspace.NewService(db, logger)
	index := linkgraph.New(db, logger)
	return &App{
		db:         db,
		workspaces: wsSvc,
		engine:     reconcile.NewEngine(db, wsSvc, index, locker, logger),
		index:      index,
		notes:      noteservice.NewService(db, wsSvc, index, locker, logger),
		notebooks:  notebook.NewService(db, logger),
		watcher:    watcher.NewManager(watch, logger),
		scanner:    scanner.New(logger),
		publisher:  publisher,
		logger:     logger,
	}
}

// Ping checks the store; used by readiness probes.
func (a *App) Ping(ctx context.Context) error {
	return a.db.Ping(ctx)
}

// --- workspaces ---

// RegisterWorkspace records a folder as a workspace.
func (a *App) RegisterWorkspace(ctx context.Context, folderPath string) (models.Workspace, error) {
	return a.workspaces.Register(ctx, folderPath)
}

// ActivateWorkspace makes id the active workspace.
func (a *App) ActivateWorkspace(ctx context.Context, id string) (models.Workspace, error) {
	return a.workspaces.Activate(ctx, id)
}

// ListWorkspaces returns every registered workspace.
func (a *App) ListWorkspaces(ctx context.Context) ([]models.Workspace, error) {
	return a.workspaces.List(ctx)
}

// ScanResult is the response of ScanWorkspace.
type ScanResult struct {
	WorkspaceID  string                `json:"workspace_id"`
	Files        []models.FileSnapshot `json:"files"`
	Tree         *scanner.Node         `json:"folder_tree"`
	Total        int                   `json:"total"`
	FolderCounts map[string]int        `json:"per_folder_counts"`
	Skipped      []string              `json:"skipped,omitempty"`
}

// ScanWorkspace lists the Markdown tree of a workspace without touching the
// store. An empty id scans the active workspace.
func (a *App) ScanWorkspace(ctx context.Context, id string) (*ScanResult, error) {
	ws, err := a.workspaces.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	tree, err := a.scanner.Scan(ws.FolderPath)
	if err != nil {
		return nil, err
	}
	files := tree.Files
	if files == nil {
		files = []models.FileSnapshot{}
	}
	return &ScanResult{
		WorkspaceID:  ws.ID,
		Files:        files,
		Tree:         tree.Root,
		Total:        tree.Total,
		FolderCounts: tree.FolderCounts,
		Skipped:      tree.Skipped,
	}, nil
}

// SyncWorkspace runs a reconciliation pass on the caller's goroutine.
func (a *App) SyncWorkspace(ctx context.Context, id string) (models.SyncStats, error) {
	ws, err := a.workspaces.Resolve(ctx, id)
	if err != nil {
		return models.SyncStats{}, err
	}
	stats, err := a.engine.Sync(ctx, ws.ID)
	if err != nil {
		return stats, err
	}
	a.publisher.PublishSync(ws.ID, stats)
	return stats, nil
}

// --- links ---

// GetBacklinks returns live notes linking to noteID.
func (a *App) GetBacklinks(ctx context.Context, noteID string) ([]models.NoteRef, error) {
	return a.index.Backlinks(ctx, noteID)
}

// GetForwardLinks returns live notes noteID links to.
func (a *App) GetForwardLinks(ctx context.Context, noteID string) ([]models.NoteRef, error) {
	return a.index.ForwardLinks(ctx, noteID)
}

// GetGraphData returns graph nodes and edges. An empty workspace id means
// the active workspace.
func (a *App) GetGraphData(ctx context.Context, q linkgraph.GraphQuery) (models.GraphData, error) {
	ws, err := a.workspaces.Resolve(ctx, q.WorkspaceID)
	if err != nil {
		return models.GraphData{}, err
	}
	q.WorkspaceID = ws.ID
	return a.index.GraphData(ctx, q)
}

// ListTags returns tag usage counts. An empty workspace id means the active
// workspace.
func (a *App) ListTags(ctx context.Context, workspaceID string) ([]models.TagCount, error) {
	ws, err := a.workspaces.Resolve(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	return a.index.Tags(ctx, ws.ID)
}

// UpdateNoteLinks re-derives a note's links and tags from content without
// writing the file.
func (a *App) UpdateNoteLinks(ctx context.Context, noteID, content string) (linkgraph.Result, error) {
	return a.index.UpdateLinksFor(ctx, noteID, content)
}

// --- watching ---

// WatchWorkspace starts a watch. Every debounced event is published and
// schedules a reconciliation pass on a background goroutine; passes
// requested while one is running collapse into a single follow-up pass.
func (a *App) WatchWorkspace(ctx context.Context, id string) (models.Workspace, error) {
	ws, err := a.workspaces.Resolve(ctx, id)
	if err != nil {
		return models.Workspace{}, err
	}
	events, err := a.watcher.Watch(ws)
	if err != nil {
		return models.Workspace{}, err
	}
	a.wg.Add(1)
	go a.consume(ws, events)
	return ws, nil
}

func (a *App) consume(ws models.Workspace, events <-chan watcher.Event) {
	defer a.wg.Done()

	kick := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range kick {
			a.backgroundSync(ws.ID)
		}
	}()

	for ev := range events {
		a.publisher.PublishNoteEvent(ev.WorkspaceID, ev.Kind.String(), ev.Path)
		select {
		case kick <- struct{}{}:
		default:
		}
	}
	close(kick)
	<-done
}

func (a *App) backgroundSync(workspaceID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	stats, err := a.engine.Sync(ctx, workspaceID)
	if err != nil {
		a.logger.Warn("watch: sync failed",
			slog.String("workspace_id", workspaceID),
			slog.String("error", err.Error()))
		return
	}
	a.publisher.PublishSync(workspaceID, stats)
}

// UnwatchWorkspace stops a watch and waits for its handle to be released.
func (a *App) UnwatchWorkspace(id string) error {
	return a.watcher.Unwatch(id)
}

// Watching reports whether a workspace is watched.
func (a *App) Watching(id string) bool {
	return a.watcher.Watching(id)
}

// StopAll stops every watch and waits for pending background passes.
func (a *App) StopAll() {
	a.watcher.StopAll()
	a.wg.Wait()
}

// --- notes ---

// CreateNote writes a new note file and record.
func (a *App) CreateNote(ctx context.Context, in noteservice.CreateInput) (*noteservice.NoteDetail, error) {
	d, err := a.notes.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	a.publisher.PublishNoteEvent(d.WorkspaceID, watcher.Created.String(), d.FilePath)
	return d, nil
}

// GetNote returns a note with its content.
func (a *App) GetNote(ctx context.Context, id string) (*noteservice.NoteDetail, error) {
	return a.notes.Get(ctx, id)
}

// UpdateNoteContent replaces a note's content, guarded by ifMatch.
func (a *App) UpdateNoteContent(ctx context.Context, id, content, ifMatch string) (*noteservice.NoteDetail, error) {
	d, err := a.notes.UpdateContent(ctx, id, content, ifMatch)
	if err != nil {
		return nil, err
	}
	a.publisher.PublishNoteEvent(d.WorkspaceID, watcher.Updated.String(), d.FilePath)
	return d, nil
}

// DeleteNote permanently removes a note file and record.
func (a *App) DeleteNote(ctx context.Context, id string) error {
	n, err := a.db.GetNote(ctx, id)
	if err != nil {
		return fmt.Errorf("folio: delete note: %w", err)
	}
	if err := a.notes.PermanentDelete(ctx, id); err != nil {
		return err
	}
	a.publisher.PublishNoteEvent(n.WorkspaceID, watcher.Deleted.String(), n.FilePath)
	return nil
}

// MoveNote renames a note's file. Subscribers see the old path deleted and
// the new one created, as a watcher would report it.
func (a *App) MoveNote(ctx context.Context, id, newPath string) (*noteservice.NoteDetail, error) {
	n, err := a.db.GetNote(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("folio: move note: %w", err)
	}
	d, err := a.notes.Move(ctx, id, newPath)
	if err != nil {
		return nil, err
	}
	if n.FilePath != d.FilePath {
		a.publisher.PublishNoteEvent(d.WorkspaceID, watcher.Deleted.String(), n.FilePath)
		a.publisher.PublishNoteEvent(d.WorkspaceID, watcher.Created.String(), d.FilePath)
	}
	return d, nil
}

// CaptureJournal appends text to today's journal entry.
func (a *App) CaptureJournal(ctx context.Context, workspaceID, text string) (*noteservice.NoteDetail, error) {
	d, err := a.notes.CaptureJournal(ctx, workspaceID, text, time.Now())
	if err != nil {
		return nil, err
	}
	a.publisher.PublishNoteEvent(d.WorkspaceID, watcher.Updated.String(), d.FilePath)
	return d, nil
}

// --- notebooks ---

// CreateNotebook adds a notebook.
func (a *App) CreateNotebook(ctx context.Context, in notebook.CreateInput) (models.Notebook, error) {
	return a.notebooks.Create(ctx, in)
}

// MoveNotebook re-parents a notebook.
func (a *App) MoveNotebook(ctx context.Context, id string, parentID *string) (models.Notebook, error) {
	return a.notebooks.Move(ctx, id, parentID)
}

// DeleteNotebook removes a notebook.
func (a *App) DeleteNotebook(ctx context.Context, id string) error {
	return a.notebooks.Delete(ctx, id)
}

// ListNotebooks returns the notebooks of a workspace.
func (a *App) ListNotebooks(ctx context.Context, workspaceID string) ([]models.Notebook, error) {
	return a.notebooks.List(ctx, workspaceID)
}

// NotebookAncestors returns the parent chain of a notebook, nearest first.
func (a *App) NotebookAncestors(ctx context.Context, id string) ([]string, error) {
	ids, err := a.notebooks.Ancestors(ctx, id)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}
