// Package noteservice implements the note edit commands: create, read,
// content update, permanent delete and journal capture. Each command writes
// the file and the record together under the workspace lock.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/linkgraph"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/parser"
	"github.com/starford/folio/internal/pathutil"
	"github.com/starford/folio/internal/reconcile"
	"github.com/starford/folio/internal/scanner"
	"github.com/starford/folio/internal/storage"
	"github.com/starford/folio/internal/workspace"
)

// NoteDetail is a note record together with its current file content.
type NoteDetail struct {
	models.Note
	Content     string           `json:"content"`
	Checksum    string           `json:"checksum"`
	Tags        []string         `json:"tags"`
	Frontmatter map[string]any   `json:"frontmatter,omitempty"`
	Backlinks   []models.NoteRef `json:"backlinks"`
	Unresolved  []string         `json:"unresolved_links,omitempty"`
}

// Store is the note persistence the service needs.
type Store interface {
	CreateNote(ctx context.Context, n *models.Note) error
	GetNote(ctx context.Context, id string) (models.Note, error)
	FindNoteByPath(ctx context.Context, workspaceID, path string) (models.Note, error)
	UpdateNote(ctx context.Context, n *models.Note) error
	DeleteNote(ctx context.Context, id string) error
}

// Resolver finds workspaces.
type Resolver interface {
	Resolve(ctx context.Context, id string) (models.Workspace, error)
}

// Linker maintains links derived from content.
type Linker interface {
	UpdateLinksFor(ctx context.Context, noteID, content string) (linkgraph.Result, error)
	Backlinks(ctx context.Context, noteID string) ([]models.NoteRef, error)
}

// Service coordinates files, records and links.
type Service struct {
	store    Store
	resolver Resolver
	linker   Linker
	locker   *workspace.Locker
	open     storage.Opener
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a note service over the local file system.
func NewService(store Store, resolver Resolver, linker Linker, locker *workspace.Locker, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		resolver: resolver,
		linker:   linker,
		locker:   locker,
		open:     storage.OpenFS,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateInput describes a new note.
type CreateInput struct {
	WorkspaceID string `json:"workspace_id"`
	Path        string `json:"path"`
	Content     string `json:"content"`
	NotebookID  string `json:"notebook_id"`
}

func (in CreateInput) validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Path, validation.Required, validation.By(markdownPath)),
	)
}

func markdownPath(value any) error {
	p, _ := value.(string)
	if path.Clean(p) != p || p == ".." || strings.HasPrefix(p, "../") {
		return errors.New("must be a clean relative path")
	}
	if !pathutil.IsMarkdown(p) {
		return fmt.Errorf("must end in %s", pathutil.MarkdownExt)
	}
	return nil
}

// Create writes a new file and its record. A soft-deleted record at the same
// path is restored instead of duplicated.
func (s *Service) Create(ctx context.Context, in CreateInput) (*NoteDetail, error) {
	ws, err := s.resolver.Resolve(ctx, in.WorkspaceID)
	if err != nil {
		return nil, fmt.Errorf("noteservice: create: %w", err)
	}
	in.Path = pathutil.Normalize(in.Path, ws.FolderPath)
	if err := in.validate(); err != nil {
		return nil, fmt.Errorf("noteservice: create: %w: %w", apperr.ErrValidation, err)
	}

	unlock := s.locker.Lock(ws.ID)
	defer unlock()

	fsys, err := s.open(ws.FolderPath)
	if err != nil {
		return nil, fmt.Errorf("noteservice: create: %w", err)
	}
	exists, err := fsys.Exists(in.Path)
	if err != nil {
		return nil, fmt.Errorf("noteservice: create: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("noteservice: create %s: %w", in.Path, apperr.ErrAlreadyExists)
	}

	content := []byte(in.Content)
	if err := fsys.Write(in.Path, content); err != nil {
		return nil, fmt.Errorf("noteservice: create: %w", err)
	}
	note, links, err := s.saveRecord(ctx, ws, in.Path, in.NotebookID, content)
	if err != nil {
		return nil, err
	}
	s.logger.Info("note: created", slog.String("id", note.ID), slog.String("path", in.Path))
	return s.detail(ctx, note, content, links.Unresolved)
}

// saveRecord creates, refreshes or restores the record for rel and derives
// its links. Callers hold the workspace lock and have written the file.
func (s *Service) saveRecord(ctx context.Context, ws models.Workspace, rel, notebookID string, content []byte) (models.Note, linkgraph.Result, error) {
	now := s.now()
	title := reconcile.Title(rel, content)

	note, err := s.store.FindNoteByPath(ctx, ws.ID, rel)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		note = models.Note{
			Title:       title,
			FilePath:    rel,
			WorkspaceID: ws.ID,
			NotebookID:  notebookID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.store.CreateNote(ctx, &note); err != nil {
			return models.Note{}, linkgraph.Result{}, fmt.Errorf("noteservice: save %s: %w", rel, err)
		}
	case err != nil:
		return models.Note{}, linkgraph.Result{}, fmt.Errorf("noteservice: save %s: %w", rel, err)
	default:
		note.Title = title
		note.UpdatedAt = now
		note.IsDeleted = false
		note.DeletedAt = nil
		if notebookID != "" {
			note.NotebookID = notebookID
		}
		if err := s.store.UpdateNote(ctx, &note); err != nil {
			return models.Note{}, linkgraph.Result{}, fmt.Errorf("noteservice: save %s: %w", rel, err)
		}
	}

	links, err := s.linker.UpdateLinksFor(ctx, note.ID, string(content))
	if err != nil {
		return models.Note{}, linkgraph.Result{}, fmt.Errorf("noteservice: links for %s: %w", rel, err)
	}
	return note, links, nil
}

// Get returns the record and file content of a note.
func (s *Service) Get(ctx context.Context, id string) (*NoteDetail, error) {
	note, ws, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	var content []byte
	if note.FilePath != "" {
		fsys, err := s.open(ws.FolderPath)
		if err != nil {
			return nil, fmt.Errorf("noteservice: get: %w", err)
		}
		content, err = fsys.Read(note.FilePath)
		if err != nil && !(note.IsDeleted && errors.Is(err, apperr.ErrNotFound)) {
			return nil, fmt.Errorf("noteservice: get: %w", err)
		}
	}
	return s.detail(ctx, note, content, nil)
}

// UpdateContent replaces the file content of a note. A non-empty ifMatch
// must equal the checksum of the current file, otherwise ErrConflict.
func (s *Service) UpdateContent(ctx context.Context, id, content, ifMatch string) (*NoteDetail, error) {
	note, ws, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if note.IsDeleted || note.FilePath == "" {
		return nil, fmt.Errorf("noteservice: update %s: note has no live file: %w", id, apperr.ErrNotFound)
	}

	unlock := s.locker.Lock(ws.ID)
	defer unlock()

	fsys, err := s.open(ws.FolderPath)
	if err != nil {
		return nil, fmt.Errorf("noteservice: update: %w", err)
	}
	existing, err := fsys.Read(note.FilePath)
	if err != nil {
		return nil, fmt.Errorf("noteservice: update: %w", err)
	}
	if ifMatch != "" && ifMatch != storage.Checksum(existing) {
		return nil, fmt.Errorf("noteservice: update %s: %w", id, apperr.ErrConflict)
	}

	data := []byte(content)
	if err := fsys.Write(note.FilePath, data); err != nil {
		return nil, fmt.Errorf("noteservice: update: %w", err)
	}
	note, links, err := s.saveRecord(ctx, ws, note.FilePath, "", data)
	if err != nil {
		return nil, err
	}
	s.logger.Info("note: updated", slog.String("id", id), slog.Int64("version", note.Version))
	return s.detail(ctx, note, data, links.Unresolved)
}

// PermanentDelete removes the file and the record. Links cascade.
func (s *Service) PermanentDelete(ctx context.Context, id string) error {
	note, ws, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	unlock := s.locker.Lock(ws.ID)
	defer unlock()

	if note.FilePath != "" {
		fsys, err := s.open(ws.FolderPath)
		if err != nil {
			return fmt.Errorf("noteservice: delete: %w", err)
		}
		if err := fsys.Delete(note.FilePath); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return fmt.Errorf("noteservice: delete: %w", err)
		}
	}
	if err := s.store.DeleteNote(ctx, id); err != nil {
		return fmt.Errorf("noteservice: delete: %w", err)
	}
	s.logger.Info("note: deleted permanently", slog.String("id", id), slog.String("path", note.FilePath))
	return nil
}

// Move renames the file of a note and points its record at the new path.
// Links are kept since they reference the note by id.
func (s *Service) Move(ctx context.Context, id, newPath string) (*NoteDetail, error) {
	note, ws, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if note.IsDeleted || note.FilePath == "" {
		return nil, fmt.Errorf("noteservice: move %s: note has no live file: %w", id, apperr.ErrNotFound)
	}
	newPath = pathutil.Normalize(newPath, ws.FolderPath)
	if err := validation.Validate(newPath, validation.Required, validation.By(markdownPath)); err != nil {
		return nil, fmt.Errorf("noteservice: move: path: %w: %w", apperr.ErrValidation, err)
	}

	unlock := s.locker.Lock(ws.ID)
	defer unlock()

	fsys, err := s.open(ws.FolderPath)
	if err != nil {
		return nil, fmt.Errorf("noteservice: move: %w", err)
	}
	content, err := fsys.Read(note.FilePath)
	if err != nil {
		return nil, fmt.Errorf("noteservice: move: %w", err)
	}
	if newPath == note.FilePath {
		return s.detail(ctx, note, content, nil)
	}
	exists, err := fsys.Exists(newPath)
	if err != nil {
		return nil, fmt.Errorf("noteservice: move: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("noteservice: move to %s: %w", newPath, apperr.ErrAlreadyExists)
	}

	if err := fsys.Move(note.FilePath, newPath); err != nil {
		return nil, fmt.Errorf("noteservice: move: %w", err)
	}
	oldPath := note.FilePath
	note.FilePath = newPath
	note.Title = reconcile.Title(newPath, content)
	note.UpdatedAt = s.now()
	if err := s.store.UpdateNote(ctx, &note); err != nil {
		// Put the file back so disk and record agree.
		if rbErr := fsys.Move(newPath, oldPath); rbErr != nil {
			s.logger.Error("note: move rollback failed", slog.String("id", id), slog.String("error", rbErr.Error()))
		}
		return nil, fmt.Errorf("noteservice: move: %w", err)
	}
	s.logger.Info("note: moved", slog.String("id", id), slog.String("from", oldPath), slog.String("to", newPath))
	return s.detail(ctx, note, content, nil)
}

// JournalPath is the workspace-relative file of the entry for day.
func JournalPath(day time.Time) string {
	return scanner.JournalDir + "/" + day.Format("2006-01-02") + pathutil.MarkdownExt
}

// CaptureJournal appends text to the journal entry for at, creating the
// entry on first capture of the day.
func (s *Service) CaptureJournal(ctx context.Context, workspaceID, text string, at time.Time) (*NoteDetail, error) {
	if err := validation.Validate(strings.TrimSpace(text), validation.Required); err != nil {
		return nil, fmt.Errorf("noteservice: journal text: %w: %w", apperr.ErrValidation, err)
	}
	ws, err := s.resolver.Resolve(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("noteservice: journal: %w", err)
	}

	unlock := s.locker.Lock(ws.ID)
	defer unlock()

	fsys, err := s.open(ws.FolderPath)
	if err != nil {
		return nil, fmt.Errorf("noteservice: journal: %w", err)
	}
	rel := JournalPath(at)
	existing, err := fsys.Read(rel)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("noteservice: journal: %w", err)
	}

	var b strings.Builder
	b.Write(existing)
	if len(existing) > 0 && !strings.HasSuffix(string(existing), "\n") {
		b.WriteString("\n")
	}
	if len(existing) > 0 {
		b.WriteString("\n")
	}
	b.WriteString(strings.TrimRight(text, "\n"))
	b.WriteString("\n")
	content := []byte(b.String())

	if err := fsys.Write(rel, content); err != nil {
		return nil, fmt.Errorf("noteservice: journal: %w", err)
	}
	note, links, err := s.saveRecord(ctx, ws, rel, "", content)
	if err != nil {
		return nil, err
	}
	s.logger.Info("note: journal captured", slog.String("id", note.ID), slog.String("path", rel))
	return s.detail(ctx, note, content, links.Unresolved)
}

func (s *Service) load(ctx context.Context, id string) (models.Note, models.Workspace, error) {
	note, err := s.store.GetNote(ctx, id)
	if err != nil {
		return models.Note{}, models.Workspace{}, fmt.Errorf("noteservice: %w", err)
	}
	if note.WorkspaceID == "" {
		return models.Note{}, models.Workspace{}, fmt.Errorf("noteservice: note %s has no workspace: %w", id, apperr.ErrValidation)
	}
	ws, err := s.resolver.Resolve(ctx, note.WorkspaceID)
	if err != nil {
		return models.Note{}, models.Workspace{}, fmt.Errorf("noteservice: %w", err)
	}
	return note, ws, nil
}

func (s *Service) detail(ctx context.Context, note models.Note, content []byte, unresolved []string) (*NoteDetail, error) {
	res := parser.Parse(content)
	bl, err := s.linker.Backlinks(ctx, note.ID)
	if err != nil {
		return nil, fmt.Errorf("noteservice: backlinks: %w", err)
	}
	return &NoteDetail{
		Note:        note,
		Content:     string(content),
		Checksum:    storage.Checksum(content),
		Tags:        nonNilSlice(res.Tags),
		Frontmatter: res.Frontmatter,
		Backlinks:   nonNilSlice(bl),
		Unresolved:  unresolved,
	}, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
