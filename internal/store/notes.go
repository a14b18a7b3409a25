package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/models"
)

const noteColumns = `id, title, file_path, workspace_id, notebook_id, is_deleted, deleted_at, version, created_at, updated_at`

func scanNote(row interface{ Scan(...any) error }) (models.Note, error) {
	var (
		n                      models.Note
		filePath, ws, notebook sql.NullString
		deleted                int
		deletedAt              sql.NullTime
	)
	if err := row.Scan(&n.ID, &n.Title, &filePath, &ws, &notebook, &deleted, &deletedAt,
		&n.Version, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return models.Note{}, err
	}
	n.FilePath = filePath.String
	n.WorkspaceID = ws.String
	n.NotebookID = notebook.String
	n.IsDeleted = deleted == 1
	if deletedAt.Valid {
		t := deletedAt.Time
		n.DeletedAt = &t
	}
	return n, nil
}

// CreateNote inserts n, assigning an id and timestamps when missing.
func (db *DB) CreateNote(ctx context.Context, n *models.Note) error {
	if n.ID == "" {
		n.ID = newID()
	}
	now := db.now()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = now
	}
	n.Version = 1
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO notes (`+noteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.Title, nullString(n.FilePath), nullString(n.WorkspaceID), nullString(n.NotebookID),
		boolToInt(n.IsDeleted), nullTime(n.DeletedAt), n.Version, n.CreatedAt.UTC(), n.UpdatedAt.UTC())
	if err != nil {
		return dbErr("insert note", err)
	}
	return nil
}

// GetNote returns a note by id, deleted or not.
func (db *DB) GetNote(ctx context.Context, id string) (models.Note, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if err != nil {
		return models.Note{}, scanErr("note", id, err)
	}
	return n, nil
}

// ListNotes returns the notes of a workspace ordered by path then id.
func (db *DB) ListNotes(ctx context.Context, workspaceID string, includeDeleted bool) ([]models.Note, error) {
	q := `SELECT ` + noteColumns + ` FROM notes WHERE workspace_id = ?`
	if !includeDeleted {
		q += ` AND is_deleted = 0`
	}
	q += ` ORDER BY file_path, id`
	rows, err := db.conn.QueryContext(ctx, q, workspaceID)
	if err != nil {
		return nil, dbErr("list notes", err)
	}
	defer rows.Close()

	var out []models.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, dbErr("scan note", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("list notes", err)
	}
	return out, nil
}

// FindNoteByPath returns the record for a workspace-relative path. Live
// records win over soft-deleted ones.
func (db *DB) FindNoteByPath(ctx context.Context, workspaceID, path string) (models.Note, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+noteColumns+` FROM notes
		WHERE workspace_id = ? AND file_path = ?
		ORDER BY is_deleted, updated_at DESC
		LIMIT 1
	`, workspaceID, path)
	n, err := scanNote(row)
	if err != nil {
		return models.Note{}, scanErr("note", path, err)
	}
	return n, nil
}

// UpdateNote writes every mutable column of n provided the stored version
// still equals n.Version. On success n.Version is advanced. A stale version
// yields apperr.ErrConflict.
func (db *DB) UpdateNote(ctx context.Context, n *models.Note) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE notes SET
			title       = ?,
			file_path   = ?,
			notebook_id = ?,
			is_deleted  = ?,
			deleted_at  = ?,
			updated_at  = ?,
			version     = version + 1
		WHERE id = ? AND version = ?
	`, n.Title, nullString(n.FilePath), nullString(n.NotebookID), boolToInt(n.IsDeleted),
		nullTime(n.DeletedAt), n.UpdatedAt.UTC(), n.ID, n.Version)
	if err != nil {
		return dbErr("update note", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		if _, getErr := db.GetNote(ctx, n.ID); getErr != nil {
			return getErr
		}
		return fmt.Errorf("store: note %s changed since version %d: %w", n.ID, n.Version, apperr.ErrConflict)
	}
	n.Version++
	return nil
}

// SoftDeleteNote flags a note deleted. It reports false when the note was
// already deleted.
func (db *DB) SoftDeleteNote(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE notes SET is_deleted = 1, deleted_at = ?, version = version + 1
		WHERE id = ? AND is_deleted = 0
	`, at.UTC(), id)
	if err != nil {
		return false, dbErr("soft delete note", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		if _, err := db.GetNote(ctx, id); err != nil {
			return false, err
		}
	}
	return affected > 0, nil
}

// DeleteNote removes the row permanently; links and tags cascade.
func (db *DB) DeleteNote(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return dbErr("delete note", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("note", id)
	}
	return nil
}
