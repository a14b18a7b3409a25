package api

import (
	"github.com/starford/folio/internal/folio"
	"github.com/starford/folio/internal/linkgraph"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/noteservice"
)

// RegisterWorkspaceRequest is the body of POST /workspaces.
type RegisterWorkspaceRequest struct {
	FolderPath string `json:"folder_path" example:"/home/me/notes"`
	Activate   bool   `json:"activate"`
}

// CreateNoteRequest is the body of POST /notes.
type CreateNoteRequest = noteservice.CreateInput

// UpdateNoteRequest is the body of PUT /notes/{id}.
type UpdateNoteRequest struct {
	Content string `json:"content" example:"# Updated\nContent"`
}

// MoveNoteRequest is the body of PUT /notes/{id}/path.
type MoveNoteRequest struct {
	Path string `json:"path" example:"archive/old.md"`
}

// UpdateLinksRequest is the body of PUT /notes/{id}/links.
type UpdateLinksRequest struct {
	Content string `json:"content"`
}

// JournalRequest is the body of POST /journal.
type JournalRequest struct {
	WorkspaceID string `json:"workspace_id"`
	Text        string `json:"text" example:"Met with the team"`
}

// CreateNotebookRequest is the body of POST /notebooks.
type CreateNotebookRequest struct {
	Name        string  `json:"name" example:"Projects"`
	ParentID    *string `json:"parent_id"`
	WorkspaceID string  `json:"workspace_id"`
	FolderPath  string  `json:"folder_path"`
}

// MoveNotebookRequest is the body of PUT /notebooks/{id}/parent. A null
// parent moves the notebook to the root level.
type MoveNotebookRequest struct {
	ParentID *string `json:"parent_id"`
}

// AncestorsResponse lists the parent chain of a notebook, nearest first.
type AncestorsResponse struct {
	AncestorIDs []string `json:"ancestor_ids"`
}

// Response aliases from the domain layer.
type (
	NoteDetail   = noteservice.NoteDetail
	ScanResponse = folio.ScanResult
	LinksResult  = linkgraph.Result
	GraphData    = models.GraphData
)

// NoteRefsResponse wraps backlink and forward-link listings.
type NoteRefsResponse struct {
	Notes []models.NoteRef `json:"notes"`
}

// WatchResponse reports watch state for a workspace.
type WatchResponse struct {
	WorkspaceID string `json:"workspace_id"`
	Watching    bool   `json:"watching"`
}
