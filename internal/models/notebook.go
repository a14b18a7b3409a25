package models

import "time"

// Notebook is a node in the folder-like notebook tree.
type Notebook struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ParentID    *string   `json:"parent_id,omitempty"` // nil = root level
	WorkspaceID string    `json:"workspace_id,omitempty"`
	FolderPath  string    `json:"folder_path,omitempty"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"created_at"`
}
