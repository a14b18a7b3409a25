package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/models"
)

const notebookColumns = `id, name, parent_id, workspace_id, folder_path, position, created_at`

func scanNotebook(row interface{ Scan(...any) error }) (models.Notebook, error) {
	var (
		nb               models.Notebook
		parent, ws, path sql.NullString
	)
	if err := row.Scan(&nb.ID, &nb.Name, &parent, &ws, &path, &nb.Position, &nb.CreatedAt); err != nil {
		return models.Notebook{}, err
	}
	if parent.Valid {
		p := parent.String
		nb.ParentID = &p
	}
	nb.WorkspaceID = ws.String
	nb.FolderPath = path.String
	return nb, nil
}

// CreateNotebook inserts nb at the end of its sibling list.
func (db *DB) CreateNotebook(ctx context.Context, nb *models.Notebook) error {
	if nb.ID == "" {
		nb.ID = newID()
	}
	if nb.CreatedAt.IsZero() {
		nb.CreatedAt = db.now()
	}
	pos, err := db.nextPosition(ctx, db.conn, nb.ParentID)
	if err != nil {
		return err
	}
	nb.Position = pos
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO notebooks (`+notebookColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
	`, nb.ID, nb.Name, nullStringPtr(nb.ParentID), nullString(nb.WorkspaceID),
		nullString(nb.FolderPath), nb.Position, nb.CreatedAt.UTC())
	if err != nil {
		return dbErr("insert notebook", err)
	}
	return nil
}

// GetNotebook returns a notebook by id.
func (db *DB) GetNotebook(ctx context.Context, id string) (models.Notebook, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+notebookColumns+` FROM notebooks WHERE id = ?`, id)
	nb, err := scanNotebook(row)
	if err != nil {
		return models.Notebook{}, scanErr("notebook", id, err)
	}
	return nb, nil
}

// ListNotebooks returns all notebooks of a workspace ordered for display.
// An empty workspaceID lists notebooks not bound to any workspace.
func (db *DB) ListNotebooks(ctx context.Context, workspaceID string) ([]models.Notebook, error) {
	return db.queryNotebooks(ctx, `
		SELECT `+notebookColumns+` FROM notebooks
		WHERE COALESCE(workspace_id, '') = ?
		ORDER BY COALESCE(parent_id, ''), position, name
	`, workspaceID)
}

// ChildNotebooks returns the direct children of parentID.
func (db *DB) ChildNotebooks(ctx context.Context, parentID string) ([]models.Notebook, error) {
	return db.queryNotebooks(ctx, `
		SELECT `+notebookColumns+` FROM notebooks
		WHERE parent_id = ?
		ORDER BY position, name
	`, parentID)
}

func (db *DB) queryNotebooks(ctx context.Context, query string, args ...any) ([]models.Notebook, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbErr("query notebooks", err)
	}
	defer rows.Close()

	out := []models.Notebook{}
	for rows.Next() {
		nb, err := scanNotebook(rows)
		if err != nil {
			return nil, dbErr("scan notebook", err)
		}
		out = append(out, nb)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("query notebooks", err)
	}
	return out, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (db *DB) nextPosition(ctx context.Context, q querier, parentID *string) (int, error) {
	var maxPos sql.NullInt64
	var err error
	if parentID == nil {
		err = q.QueryRowContext(ctx, `SELECT MAX(position) FROM notebooks WHERE parent_id IS NULL`).Scan(&maxPos)
	} else {
		err = q.QueryRowContext(ctx, `SELECT MAX(position) FROM notebooks WHERE parent_id = ?`, *parentID).Scan(&maxPos)
	}
	if err != nil {
		return 0, dbErr("next position", err)
	}
	if !maxPos.Valid {
		return 0, nil
	}
	return int(maxPos.Int64) + 1, nil
}

// MoveNotebook re-parents id under newParent (nil = root) and appends it to
// the new sibling list. Only the direct self-parent case is rejected here;
// deeper cycle checks belong to the caller.
func (db *DB) MoveNotebook(ctx context.Context, id string, newParent *string) (models.Notebook, error) {
	if newParent != nil && *newParent == id {
		return models.Notebook{}, fmt.Errorf("store: notebook %s cannot be its own parent: %w", id, apperr.ErrValidation)
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return models.Notebook{}, dbErr("begin move notebook", err)
	}
	defer tx.Rollback() //nolint:errcheck

	pos, err := db.nextPosition(ctx, tx, newParent)
	if err != nil {
		return models.Notebook{}, err
	}
	res, err := tx.ExecContext(ctx, `UPDATE notebooks SET parent_id = ?, position = ? WHERE id = ?`,
		nullStringPtr(newParent), pos, id)
	if err != nil {
		return models.Notebook{}, dbErr("move notebook", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Notebook{}, notFound("notebook", id)
	}
	if err := tx.Commit(); err != nil {
		return models.Notebook{}, dbErr("commit move notebook", err)
	}
	return db.GetNotebook(ctx, id)
}

// DeleteNotebook removes a notebook. Its children move to its parent and
// notes inside it lose their notebook reference.
func (db *DB) DeleteNotebook(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return dbErr("begin delete notebook", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var parent sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT parent_id FROM notebooks WHERE id = ?`, id).Scan(&parent)
	if err != nil {
		return scanErr("notebook", id, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE notebooks SET parent_id = ? WHERE parent_id = ?`, parent, id); err != nil {
		return dbErr("reparent children", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE notes SET notebook_id = NULL WHERE notebook_id = ?`, id); err != nil {
		return dbErr("detach notes", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM notebooks WHERE id = ?`, id); err != nil {
		return dbErr("delete notebook", err)
	}
	if err := tx.Commit(); err != nil {
		return dbErr("commit delete notebook", err)
	}
	return nil
}
