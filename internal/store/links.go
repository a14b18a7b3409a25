package store

import (
	"context"

	"github.com/starford/folio/internal/models"
)

// ReplaceOutgoing swaps every outgoing edge and tag of noteID for the given
// sets inside one transaction.
func (db *DB) ReplaceOutgoing(ctx context.Context, noteID string, links []models.NoteLink, tags []string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return dbErr("begin replace links", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM note_links WHERE source_note_id = ?`, noteID); err != nil {
		return dbErr("clear links", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM note_tags WHERE note_id = ?`, noteID); err != nil {
		return dbErr("clear tags", err)
	}

	linkStmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO note_links (source_note_id, target_note_id, created_at) VALUES (?, ?, ?)`)
	if err != nil {
		return dbErr("prepare link insert", err)
	}
	defer linkStmt.Close()
	for _, l := range links {
		if l.SourceNoteID != noteID {
			continue
		}
		if _, err := linkStmt.ExecContext(ctx, l.SourceNoteID, l.TargetNoteID, l.CreatedAt.UTC()); err != nil {
			return dbErr("insert link", err)
		}
	}

	tagStmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO note_tags (note_id, tag) VALUES (?, ?)`)
	if err != nil {
		return dbErr("prepare tag insert", err)
	}
	defer tagStmt.Close()
	for _, tag := range tags {
		if _, err := tagStmt.ExecContext(ctx, noteID, tag); err != nil {
			return dbErr("insert tag", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return dbErr("commit replace links", err)
	}
	return nil
}

// Backlinks returns live notes linking to noteID.
func (db *DB) Backlinks(ctx context.Context, noteID string) ([]models.NoteRef, error) {
	return db.refs(ctx, `
		SELECT n.id, n.title FROM note_links l
		JOIN notes n ON n.id = l.source_note_id
		WHERE l.target_note_id = ? AND n.is_deleted = 0
		ORDER BY n.title, n.id
	`, noteID)
}

// ForwardLinks returns live notes noteID links to.
func (db *DB) ForwardLinks(ctx context.Context, noteID string) ([]models.NoteRef, error) {
	return db.refs(ctx, `
		SELECT n.id, n.title FROM note_links l
		JOIN notes n ON n.id = l.target_note_id
		WHERE l.source_note_id = ? AND n.is_deleted = 0
		ORDER BY n.title, n.id
	`, noteID)
}

func (db *DB) refs(ctx context.Context, query, noteID string) ([]models.NoteRef, error) {
	rows, err := db.conn.QueryContext(ctx, query, noteID)
	if err != nil {
		return nil, dbErr("query links", err)
	}
	defer rows.Close()

	out := []models.NoteRef{}
	for rows.Next() {
		var r models.NoteRef
		if err := rows.Scan(&r.ID, &r.Title); err != nil {
			return nil, dbErr("scan link", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("query links", err)
	}
	return out, nil
}

// WorkspaceEdges returns every edge whose endpoints are both live notes of
// the workspace.
func (db *DB) WorkspaceEdges(ctx context.Context, workspaceID string) ([]models.NoteLink, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT l.source_note_id, l.target_note_id, l.created_at
		FROM note_links l
		JOIN notes s ON s.id = l.source_note_id
		JOIN notes t ON t.id = l.target_note_id
		WHERE s.workspace_id = ? AND t.workspace_id = ?
		  AND s.is_deleted = 0 AND t.is_deleted = 0
		ORDER BY l.source_note_id, l.target_note_id
	`, workspaceID, workspaceID)
	if err != nil {
		return nil, dbErr("query edges", err)
	}
	defer rows.Close()

	var out []models.NoteLink
	for rows.Next() {
		var l models.NoteLink
		if err := rows.Scan(&l.SourceNoteID, &l.TargetNoteID, &l.CreatedAt); err != nil {
			return nil, dbErr("scan edge", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("query edges", err)
	}
	return out, nil
}

// WorkspaceTags counts the live notes carrying each tag in a workspace,
// most used first.
func (db *DB) WorkspaceTags(ctx context.Context, workspaceID string) ([]models.TagCount, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT t.tag, COUNT(*) FROM note_tags t
		JOIN notes n ON n.id = t.note_id
		WHERE n.workspace_id = ? AND n.is_deleted = 0
		GROUP BY t.tag
		ORDER BY COUNT(*) DESC, t.tag
	`, workspaceID)
	if err != nil {
		return nil, dbErr("query tags", err)
	}
	defer rows.Close()

	tags := []models.TagCount{}
	for rows.Next() {
		var tc models.TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, dbErr("scan tag", err)
		}
		tags = append(tags, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("query tags", err)
	}
	return tags, nil
}
