package store

import (
	"context"
	"fmt"

	"github.com/starford/echolog/internal/models"
)

// relatedChunk bounds the number of bound parameters per IN (...) query.
const relatedChunk = 500

// FetchCandidates returns every live memo of ownerID that carries an
// embedding, except excludeID, in creation order.
func (db *DB) FetchCandidates(ctx context.Context, ownerID, excludeID string) ([]models.Memo, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+memoColumns+`
		FROM memos
		WHERE owner_id = ? AND id <> ? AND deleted_at IS NULL AND embedding IS NOT NULL
		ORDER BY created_at, rowid
	`, ownerID, excludeID)
	if err != nil {
		return nil, fmt.Errorf("store: fetch candidates: %w", err)
	}
	memos, err := collectMemos(rows)
	if err != nil {
		return nil, fmt.Errorf("store: fetch candidates: %w", err)
	}
	return memos, nil
}

// ReplaceRelated sets the ordered related list of id in one transaction.
func (db *DB) ReplaceRelated(ctx context.Context, id string, related []string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM related WHERE source = ?`, id); err != nil {
		return fmt.Errorf("store: clear related: %w", err)
	}
	if len(related) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO related (source, target, pos) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("store: prepare related insert: %w", err)
		}
		defer stmt.Close()
		for pos, target := range related {
			if _, err := stmt.ExecContext(ctx, id, target, pos); err != nil {
				return fmt.Errorf("store: insert related: %w", err)
			}
		}
	}
	return tx.Commit()
}

// AddRelatedIfAbsent appends relatedID to the end of id's related list unless
// it is already present. Unknown ids are ignored.
func (db *DB) AddRelatedIfAbsent(ctx context.Context, id, relatedID string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT OR IGNORE INTO related (source, target, pos)
		SELECT ?1, ?2, (SELECT COALESCE(MAX(pos) + 1, 0) FROM related WHERE source = ?1)
		WHERE EXISTS (SELECT 1 FROM memos WHERE id = ?1)
	`, id, relatedID)
	if err != nil {
		return fmt.Errorf("store: add related: %w", err)
	}
	return nil
}

// RemoveRelatedEverywhere drops id from every memo's related list.
func (db *DB) RemoveRelatedEverywhere(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM related WHERE target = ?`, id); err != nil {
		return fmt.Errorf("store: remove related: %w", err)
	}
	return nil
}

// FetchByIDs returns the live memos among ids, in the order given. Missing
// and deleted ids are omitted.
func (db *DB) FetchByIDs(ctx context.Context, ids []string) ([]models.Memo, error) {
	byID := make(map[string]models.Memo, len(ids))
	for start := 0; start < len(ids); start += relatedChunk {
		chunk := ids[start:min(start+relatedChunk, len(ids))]
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		rows, err := db.conn.QueryContext(ctx, `
			SELECT `+memoColumns+`
			FROM memos
			WHERE deleted_at IS NULL AND id IN (`+placeholders(len(chunk))+`)
		`, args...)
		if err != nil {
			return nil, fmt.Errorf("store: fetch by ids: %w", err)
		}
		memos, err := collectMemos(rows)
		if err != nil {
			return nil, fmt.Errorf("store: fetch by ids: %w", err)
		}
		for _, m := range memos {
			byID[m.ID] = m
		}
	}

	out := make([]models.Memo, 0, len(byID))
	seen := make(map[string]struct{}, len(byID))
	for _, id := range ids {
		m, ok := byID[id]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, m)
	}
	if err := db.attachRelated(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// loadRelated returns the ordered related lists of the given sources.
func (db *DB) loadRelated(ctx context.Context, ids []string) (map[string][]string, error) {
	out := make(map[string][]string, len(ids))
	for start := 0; start < len(ids); start += relatedChunk {
		chunk := ids[start:min(start+relatedChunk, len(ids))]
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		rows, err := db.conn.QueryContext(ctx, `
			SELECT source, target FROM related
			WHERE source IN (`+placeholders(len(chunk))+`)
			ORDER BY source, pos
		`, args...)
		if err != nil {
			return nil, fmt.Errorf("store: load related: %w", err)
		}
		for rows.Next() {
			var src, dst string
			if err := rows.Scan(&src, &dst); err != nil {
				rows.Close()
				return nil, err
			}
			out[src] = append(out[src], dst)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("store: load related: %w", err)
		}
	}
	return out, nil
}

func (db *DB) attachRelated(ctx context.Context, memos []models.Memo) error {
	if len(memos) == 0 {
		return nil
	}
	ids := make([]string, len(memos))
	for i := range memos {
		ids[i] = memos[i].ID
	}
	related, err := db.loadRelated(ctx, ids)
	if err != nil {
		return err
	}
	for i := range memos {
		memos[i].RelatedIDs = related[memos[i].ID]
	}
	return nil
}
