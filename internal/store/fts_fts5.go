//go:build sqlite_fts5

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS memos_fts USING fts5(
			id UNINDEXED,
			summary,
			transcription,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, id, summary, transcription string, tags []string) error {
	_, _ = tx.Exec(`DELETE FROM memos_fts WHERE id = ?`, id)
	_, err := tx.Exec(`INSERT INTO memos_fts (id, summary, transcription, tags) VALUES (?, ?, ?, ?)`,
		id, summary, transcription, strings.Join(tags, " "))
	if err != nil {
		return fmt.Errorf("store: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, id string) error {
	if _, err := tx.Exec(`DELETE FROM memos_fts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete fts: %w", err)
	}
	return nil
}

// Search performs an FTS5 full-text search and returns matching results with snippets.
func (db *DB) Search(ctx context.Context, ownerID, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT f.id,
		       m.summary,
		       snippet(memos_fts, 2, '<b>', '</b>', '...', 64)
		FROM memos_fts f
		JOIN memos m ON m.id = f.id
		WHERE memos_fts MATCH ? AND m.owner_id = ? AND m.deleted_at IS NULL
		ORDER BY rank
		LIMIT ?
	`, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Summary, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
