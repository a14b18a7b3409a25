// Package reconcile brings the note records of a workspace in line with the
// Markdown files on disk.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/linkgraph"
	"github.com/starford/folio/internal/metrics"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/parser"
	"github.com/starford/folio/internal/pathutil"
	"github.com/starford/folio/internal/scanner"
	"github.com/starford/folio/internal/storage"
	"github.com/starford/folio/internal/workspace"
)

// Store is the note persistence a pass needs.
type Store interface {
	ListNotes(ctx context.Context, workspaceID string, includeDeleted bool) ([]models.Note, error)
	CreateNote(ctx context.Context, n *models.Note) error
	UpdateNote(ctx context.Context, n *models.Note) error
	SoftDeleteNote(ctx context.Context, id string, at time.Time) (bool, error)
}

// Resolver finds the workspace a pass runs against.
type Resolver interface {
	Resolve(ctx context.Context, id string) (models.Workspace, error)
}

// Linker refreshes the links and tags of a note from its content.
type Linker interface {
	UpdateLinksFor(ctx context.Context, noteID, content string) (linkgraph.Result, error)
}

// Engine runs reconciliation passes.
type Engine struct {
	store    Store
	resolver Resolver
	linker   Linker
	locker   *workspace.Locker
	scanner  *scanner.Scanner
	open     storage.Opener
	logger   *slog.Logger
	now      func() time.Time
}

// NewEngine returns an Engine reading workspaces from the local disk.
func NewEngine(store Store, resolver Resolver, linker Linker, locker *workspace.Locker, logger *slog.Logger) *Engine {
	return &Engine{
		store:    store,
		resolver: resolver,
		linker:   linker,
		locker:   locker,
		scanner:  scanner.New(logger),
		open:     storage.OpenFS,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Sync reconciles workspaceID, or the active workspace when it is empty.
// The pass holds the workspace lock throughout and is not interrupted once
// started. On error the returned stats describe the work done before it.
func (e *Engine) Sync(ctx context.Context, workspaceID string) (models.SyncStats, error) {
	if err := ctx.Err(); err != nil {
		return models.SyncStats{}, err
	}
	ws, err := e.resolver.Resolve(ctx, workspaceID)
	if err != nil {
		return models.SyncStats{}, fmt.Errorf("reconcile: %w", err)
	}

	unlock := e.locker.Lock(ws.ID)
	defer unlock()

	start := time.Now()
	stats, err := e.pass(ctx, ws)
	elapsed := time.Since(start)
	stats.DurationMS = elapsed.Milliseconds()
	metrics.RecordSync(elapsed.Seconds(), stats.Created, stats.Updated, stats.Deleted, err)

	if err != nil {
		e.logger.Error("sync: pass failed",
			slog.String("workspace_id", ws.ID),
			slog.String("error", err.Error()))
		return stats, err
	}
	e.logger.Info("sync: pass complete",
		slog.String("workspace_id", ws.ID),
		slog.Int("created", stats.Created),
		slog.Int("updated", stats.Updated),
		slog.Int("deleted", stats.Deleted),
		slog.Int64("duration_ms", stats.DurationMS))
	return stats, nil
}

type touched struct {
	id      string
	content []byte
}

func (e *Engine) pass(ctx context.Context, ws models.Workspace) (models.SyncStats, error) {
	var stats models.SyncStats

	tree, err := e.scanner.Scan(ws.FolderPath)
	if err != nil {
		return stats, fmt.Errorf("reconcile: scan: %w", err)
	}
	fsys, err := e.open(ws.FolderPath)
	if err != nil {
		return stats, fmt.Errorf("reconcile: open workspace: %w", err)
	}
	notes, err := e.store.ListNotes(ctx, ws.ID, true)
	if err != nil {
		return stats, fmt.Errorf("reconcile: load notes: %w", err)
	}

	byPath := make(map[string]*models.Note, len(notes))
	for i := range notes {
		n := &notes[i]
		if n.FilePath == "" {
			continue
		}
		if prev, ok := byPath[n.FilePath]; ok && !prev.IsDeleted {
			continue
		}
		byPath[n.FilePath] = n
	}

	now := e.now()
	visited := make(map[string]bool, len(tree.Files))
	var changed []touched

	for _, f := range tree.Files {
		visited[f.Path] = true
		rec, ok := byPath[f.Path]
		if ok && !rec.IsDeleted && !truncate(rec.UpdatedAt).Before(truncate(f.ModifiedAt)) {
			continue
		}

		data, err := fsys.Read(f.Path)
		if err != nil {
			e.logger.Warn("sync: read failed", slog.String("path", f.Path), slog.String("error", err.Error()))
			continue
		}
		title := Title(f.Path, data)
		stamp := later(now, f.ModifiedAt)

		if !ok {
			n := models.Note{
				Title:       title,
				FilePath:    f.Path,
				WorkspaceID: ws.ID,
				CreatedAt:   now,
				UpdatedAt:   stamp,
			}
			if err := e.store.CreateNote(ctx, &n); err != nil {
				return stats, fmt.Errorf("reconcile: create %s: %w", f.Path, err)
			}
			stats.Created++
			changed = append(changed, touched{id: n.ID, content: data})
			e.logger.Debug("sync: created", slog.String("path", f.Path))
			continue
		}

		upd := *rec
		upd.Title = title
		upd.UpdatedAt = stamp
		upd.IsDeleted = false
		upd.DeletedAt = nil
		if err := e.store.UpdateNote(ctx, &upd); err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				e.logger.Warn("sync: note changed concurrently", slog.String("path", f.Path))
				continue
			}
			return stats, fmt.Errorf("reconcile: update %s: %w", f.Path, err)
		}
		stats.Updated++
		changed = append(changed, touched{id: upd.ID, content: data})
		e.logger.Debug("sync: updated", slog.String("path", f.Path), slog.Bool("restored", rec.IsDeleted))
	}

	for _, n := range notes {
		if n.IsDeleted || n.FilePath == "" || visited[n.FilePath] {
			continue
		}
		// An unreadable entry says nothing about the files below it.
		if tree.Unscanned(n.FilePath) {
			e.logger.Debug("sync: kept unreadable", slog.String("path", n.FilePath))
			continue
		}
		ok, err := e.store.SoftDeleteNote(ctx, n.ID, now)
		if err != nil {
			return stats, fmt.Errorf("reconcile: soft delete %s: %w", n.FilePath, err)
		}
		if ok {
			stats.Deleted++
			e.logger.Debug("sync: soft deleted", slog.String("path", n.FilePath))
		}
	}

	// Links resolve by title, so they are derived once every row exists.
	for _, t := range changed {
		if _, err := e.linker.UpdateLinksFor(ctx, t.id, string(t.content)); err != nil {
			e.logger.Warn("sync: update links failed", slog.String("note_id", t.id), slog.String("error", err.Error()))
		}
	}
	return stats, nil
}

// Title derives a note title from its path and content. Journal entries are
// always titled by their file name.
func Title(rel string, content []byte) string {
	stem := pathutil.Stem(rel)
	if scanner.IsJournal(rel) {
		return stem
	}
	return parser.Title(content, stem)
}

// truncate drops sub-millisecond precision so timestamps compare equal after
// a database round trip.
func truncate(t time.Time) time.Time {
	return t.Truncate(time.Millisecond)
}

func later(a, b time.Time) time.Time {
	if b.After(a) {
		return b.UTC()
	}
	return a
}
