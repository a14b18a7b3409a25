// Package linkgraph maintains note-to-note links derived from content and
// answers backlink, forward-link and graph queries.
package linkgraph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/parser"
)

// Store is the persistence the index needs.
type Store interface {
	GetNote(ctx context.Context, id string) (models.Note, error)
	ListNotes(ctx context.Context, workspaceID string, includeDeleted bool) ([]models.Note, error)
	ReplaceOutgoing(ctx context.Context, noteID string, links []models.NoteLink, tags []string) error
	Backlinks(ctx context.Context, noteID string) ([]models.NoteRef, error)
	ForwardLinks(ctx context.Context, noteID string) ([]models.NoteRef, error)
	WorkspaceEdges(ctx context.Context, workspaceID string) ([]models.NoteLink, error)
	WorkspaceTags(ctx context.Context, workspaceID string) ([]models.TagCount, error)
}

// Index resolves link titles to notes and persists the resulting edges.
type Index struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// New returns an Index over store.
func New(store Store, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Index{store: store, logger: logger, now: time.Now}
}

// Result describes one link refresh.
type Result struct {
	NoteID     string   `json:"note_id"`
	Linked     []string `json:"linked"`
	Unresolved []string `json:"unresolved,omitempty"`
	Tags       []string `json:"tags"`
}

// UpdateLinksFor replaces every outgoing edge and tag of noteID with those
// derived from content. Targets match live notes of the same workspace by
// case-insensitive title; self references and titles without a match are
// skipped. Unmatched titles are reported in Result.Unresolved.
func (ix *Index) UpdateLinksFor(ctx context.Context, noteID, content string) (Result, error) {
	note, err := ix.store.GetNote(ctx, noteID)
	if err != nil {
		return Result{}, fmt.Errorf("linkgraph: load note: %w", err)
	}
	notes, err := ix.store.ListNotes(ctx, note.WorkspaceID, false)
	if err != nil {
		return Result{}, fmt.Errorf("linkgraph: list notes: %w", err)
	}

	byTitle := make(map[string][]string, len(notes))
	for _, n := range notes {
		key := strings.ToLower(n.Title)
		byTitle[key] = append(byTitle[key], n.ID)
	}

	parsed := parser.Parse([]byte(content))
	res := Result{NoteID: noteID, Linked: []string{}, Tags: parsed.Tags}
	if res.Tags == nil {
		res.Tags = []string{}
	}

	now := ix.now()
	seen := make(map[string]bool)
	var links []models.NoteLink
	for _, title := range Extract(parsed.Body) {
		ids, ok := byTitle[strings.ToLower(title)]
		if !ok {
			res.Unresolved = append(res.Unresolved, title)
			continue
		}
		for _, target := range ids {
			if seen[target] {
				continue
			}
			link, err := models.NewNoteLink(noteID, target, now)
			if err != nil {
				continue // self reference
			}
			seen[target] = true
			links = append(links, link)
			res.Linked = append(res.Linked, target)
		}
	}

	if err := ix.store.ReplaceOutgoing(ctx, noteID, links, res.Tags); err != nil {
		return Result{}, fmt.Errorf("linkgraph: replace links: %w", err)
	}
	if len(res.Unresolved) > 0 {
		ix.logger.Debug("linkgraph: unresolved links",
			slog.String("note_id", noteID),
			slog.Any("titles", res.Unresolved))
	}
	return res, nil
}

// Backlinks returns live notes linking to noteID.
func (ix *Index) Backlinks(ctx context.Context, noteID string) ([]models.NoteRef, error) {
	if _, err := ix.store.GetNote(ctx, noteID); err != nil {
		return nil, fmt.Errorf("linkgraph: backlinks: %w", err)
	}
	refs, err := ix.store.Backlinks(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("linkgraph: backlinks: %w", err)
	}
	return refs, nil
}

// ForwardLinks returns live notes noteID links to.
func (ix *Index) ForwardLinks(ctx context.Context, noteID string) ([]models.NoteRef, error) {
	if _, err := ix.store.GetNote(ctx, noteID); err != nil {
		return nil, fmt.Errorf("linkgraph: forward links: %w", err)
	}
	refs, err := ix.store.ForwardLinks(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("linkgraph: forward links: %w", err)
	}
	return refs, nil
}

// Tags returns the tag usage of a workspace.
func (ix *Index) Tags(ctx context.Context, workspaceID string) ([]models.TagCount, error) {
	tags, err := ix.store.WorkspaceTags(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("linkgraph: tags: %w", err)
	}
	return tags, nil
}
