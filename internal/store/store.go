// Package store provides the SQLite-backed record store for workspaces,
// notes, notebooks, links and tags.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/folio/internal/apperr"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS workspaces (
	id          TEXT PRIMARY KEY,
	folder_path TEXT NOT NULL UNIQUE,
	is_active   INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS notebooks (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	parent_id    TEXT REFERENCES notebooks(id) ON DELETE SET NULL,
	workspace_id TEXT REFERENCES workspaces(id) ON DELETE CASCADE,
	folder_path  TEXT,
	position     INTEGER NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS notes (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL DEFAULT '',
	file_path    TEXT,
	workspace_id TEXT REFERENCES workspaces(id) ON DELETE CASCADE,
	notebook_id  TEXT REFERENCES notebooks(id) ON DELETE SET NULL,
	is_deleted   INTEGER NOT NULL DEFAULT 0,
	deleted_at   DATETIME,
	version      INTEGER NOT NULL DEFAULT 1,
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS note_links (
	source_note_id TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
	target_note_id TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
	created_at     DATETIME NOT NULL,
	PRIMARY KEY (source_note_id, target_note_id),
	CHECK (source_note_id <> target_note_id)
);

CREATE TABLE IF NOT EXISTS note_tags (
	note_id TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
	tag     TEXT NOT NULL,
	PRIMARY KEY (note_id, tag)
);

CREATE INDEX IF NOT EXISTS idx_notes_workspace_path ON notes(workspace_id, file_path);
CREATE INDEX IF NOT EXISTS idx_notebooks_parent ON notebooks(parent_id);
CREATE INDEX IF NOT EXISTS idx_note_links_target ON note_links(target_note_id);
CREATE INDEX IF NOT EXISTS idx_note_tags_tag ON note_tags(tag);
`

// DB wraps a sql.DB with record-store operations.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, dbErr("open db", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, dbErr("ping", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, dbErr("apply schema", err)
	}
	return &DB{conn: conn, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the connection; used by the readiness probe.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return dbErr("ping", err)
	}
	return nil
}

func newID() string {
	return uuid.New().String()
}

func dbErr(op string, err error) error {
	return fmt.Errorf("store: %s: %w: %w", op, apperr.ErrDatabase, err)
}

func notFound(kind, id string) error {
	return fmt.Errorf("store: %s %s: %w", kind, id, apperr.ErrNotFound)
}

// scanErr maps sql.ErrNoRows to a not-found error.
func scanErr(kind, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(kind, id)
	}
	return dbErr("get "+kind, err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return nullString(*s)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
