package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"

	"github.com/starford/folio/internal/models"
)

const workspaceColumns = `id, folder_path, is_active, created_at`

func scanWorkspace(row interface{ Scan(...any) error }) (models.Workspace, error) {
	var w models.Workspace
	var active int
	if err := row.Scan(&w.ID, &w.FolderPath, &active, &w.CreatedAt); err != nil {
		return models.Workspace{}, err
	}
	w.IsActive = active == 1
	return w, nil
}

// RegisterWorkspace records folderPath as a workspace. Registering the same
// folder twice returns the existing record.
func (db *DB) RegisterWorkspace(ctx context.Context, folderPath string) (models.Workspace, error) {
	abs, err := filepath.Abs(folderPath)
	if err != nil {
		return models.Workspace{}, dbErr("resolve workspace path", err)
	}
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+workspaceColumns+` FROM workspaces WHERE folder_path = ?`, abs)
	w, err := scanWorkspace(row)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Workspace{}, dbErr("find workspace", err)
	}

	w = models.Workspace{ID: newID(), FolderPath: abs, CreatedAt: db.now()}
	if _, err := db.conn.ExecContext(ctx,
		`INSERT INTO workspaces (id, folder_path, is_active, created_at) VALUES (?, ?, 0, ?)`,
		w.ID, w.FolderPath, w.CreatedAt); err != nil {
		return models.Workspace{}, dbErr("insert workspace", err)
	}
	return w, nil
}

// GetWorkspace returns a workspace by id.
func (db *DB) GetWorkspace(ctx context.Context, id string) (models.Workspace, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+workspaceColumns+` FROM workspaces WHERE id = ?`, id)
	w, err := scanWorkspace(row)
	if err != nil {
		return models.Workspace{}, scanErr("workspace", id, err)
	}
	return w, nil
}

// ActiveWorkspace returns the single active workspace.
func (db *DB) ActiveWorkspace(ctx context.Context) (models.Workspace, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+workspaceColumns+` FROM workspaces WHERE is_active = 1 LIMIT 1`)
	w, err := scanWorkspace(row)
	if err != nil {
		return models.Workspace{}, scanErr("workspace", "(active)", err)
	}
	return w, nil
}

// ActivateWorkspace makes id the only active workspace.
func (db *DB) ActivateWorkspace(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return dbErr("begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.ExecContext(ctx, `UPDATE workspaces SET is_active = 0 WHERE is_active = 1`); err != nil {
		return dbErr("clear active workspace", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE workspaces SET is_active = 1 WHERE id = ?`, id)
	if err != nil {
		return dbErr("activate workspace", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("workspace", id)
	}
	if err := tx.Commit(); err != nil {
		return dbErr("commit", err)
	}
	return nil
}

// ListWorkspaces returns every registered workspace.
func (db *DB) ListWorkspaces(ctx context.Context) ([]models.Workspace, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+workspaceColumns+` FROM workspaces ORDER BY created_at, id`)
	if err != nil {
		return nil, dbErr("list workspaces", err)
	}
	defer rows.Close()

	var out []models.Workspace
	for rows.Next() {
		w, err := scanWorkspace(rows)
		if err != nil {
			return nil, dbErr("scan workspace", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
