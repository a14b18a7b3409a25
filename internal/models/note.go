package models

import (
	"errors"
	"time"
)

// ErrSelfLink is returned when a link would point a note at itself.
var ErrSelfLink = errors.New("note link: source and target are the same note")

// Note is the metadata record of a document. The body lives only in the
// file at FilePath; FilePath is workspace-relative and empty when the note
// has no backing file.
type Note struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	FilePath    string     `json:"file_path,omitempty"`
	WorkspaceID string     `json:"workspace_id,omitempty"`
	NotebookID  string     `json:"notebook_id,omitempty"`
	IsDeleted   bool       `json:"is_deleted"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	Version     int64      `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NoteRef is the lightweight form returned by link queries.
type NoteRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// NoteLink is a directed edge between two notes.
type NoteLink struct {
	SourceNoteID string    `json:"source_note_id"`
	TargetNoteID string    `json:"target_note_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewNoteLink builds an edge, rejecting self references.
func NewNoteLink(source, target string, at time.Time) (NoteLink, error) {
	if source == target {
		return NoteLink{}, ErrSelfLink
	}
	return NoteLink{SourceNoteID: source, TargetNoteID: target, CreatedAt: at}, nil
}
