// Package store provides SQLite-backed memo persistence with optional FTS5 full-text search.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS memos (
	id            TEXT PRIMARY KEY,
	owner_id      TEXT NOT NULL,
	audio_url     TEXT NOT NULL DEFAULT '',
	transcription TEXT NOT NULL DEFAULT '',
	summary       TEXT NOT NULL DEFAULT '',
	tags          TEXT NOT NULL DEFAULT '[]',
	embedding     BLOB,
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL,
	deleted_at    DATETIME
);

CREATE INDEX IF NOT EXISTS idx_memos_owner_created ON memos(owner_id, created_at);

CREATE TABLE IF NOT EXISTS related (
	source TEXT NOT NULL,
	target TEXT NOT NULL,
	pos    INTEGER NOT NULL,
	UNIQUE(source, target)
);

CREATE INDEX IF NOT EXISTS idx_related_source ON related(source, pos);
CREATE INDEX IF NOT EXISTS idx_related_target ON related(target);
`

// DB wraps a sql.DB with memo-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Ping reports whether the database is reachable. Used by the readiness probe.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
