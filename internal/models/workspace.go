// Package models defines the domain types for Folio.
package models

import "time"

// Workspace is a registered root folder. At most one is active at a time.
type Workspace struct {
	ID         string    `json:"id"`
	FolderPath string    `json:"folder_path"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

// FileSnapshot is one entry observed by a scan. It is never persisted.
type FileSnapshot struct {
	Path        string    `json:"path"`
	IsDirectory bool      `json:"is_directory"`
	Size        int64     `json:"size"`
	ModifiedAt  time.Time `json:"modified_at"`
}

// SyncStats summarises one reconciliation pass.
type SyncStats struct {
	Created    int   `json:"created"`
	Updated    int   `json:"updated"`
	Deleted    int   `json:"deleted"`
	DurationMS int64 `json:"duration_ms"`
}

// Changed reports whether the pass touched any record.
func (s SyncStats) Changed() bool {
	return s.Created+s.Updated+s.Deleted > 0
}
