package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/starford/echolog/internal/apperr"
	"github.com/starford/echolog/internal/models"
)

const memoColumns = `id, owner_id, audio_url, transcription, summary, tags, embedding, created_at, updated_at, deleted_at`

// SearchResult represents one full-text search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
	Snippet string `json:"snippet"`
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMemo(s scanner) (models.Memo, error) {
	var (
		m        models.Memo
		tagsJSON string
		blob     []byte
		deleted  sql.NullTime
	)
	err := s.Scan(&m.ID, &m.OwnerID, &m.AudioURL, &m.Transcription, &m.Summary,
		&tagsJSON, &blob, &m.CreatedAt, &m.UpdatedAt, &deleted)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &m.Tags); err != nil {
		return m, fmt.Errorf("store: decode tags of %s: %w", m.ID, err)
	}
	if m.Embedding, err = decodeEmbedding(blob); err != nil {
		return m, err
	}
	if deleted.Valid {
		at := deleted.Time
		m.DeletedAt = &at
	}
	return m, nil
}

func collectMemos(rows *sql.Rows) ([]models.Memo, error) {
	defer rows.Close()
	var out []models.Memo
	for rows.Next() {
		m, err := scanMemo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func tagsJSON(tags []string) string {
	if tags == nil {
		tags = []string{}
	}
	b, _ := json.Marshal(tags)
	return string(b)
}

// InsertMemo stores a new memo together with its FTS entry.
func (db *DB) InsertMemo(ctx context.Context, m *models.Memo) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.ExecContext(ctx, `
		INSERT INTO memos (id, owner_id, audio_url, transcription, summary, tags, embedding, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.OwnerID, m.AudioURL, m.Transcription, m.Summary, tagsJSON(m.Tags),
		encodeEmbedding(m.Embedding), m.CreatedAt.UTC(), m.UpdatedAt.UTC())
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("store: insert memo %s: %w", m.ID, apperr.ErrAlreadyExists)
		}
		return fmt.Errorf("store: insert memo: %w", err)
	}

	if err := ftsUpsert(tx, m.ID, m.Summary, m.Transcription, m.Tags); err != nil {
		return err
	}
	return tx.Commit()
}

// GetMemo returns a live memo owned by ownerID, including its related list.
func (db *DB) GetMemo(ctx context.Context, ownerID, id string) (*models.Memo, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+memoColumns+`
		FROM memos
		WHERE id = ? AND owner_id = ? AND deleted_at IS NULL
	`, id, ownerID)
	m, err := scanMemo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get memo: %w", err)
	}
	related, err := db.loadRelated(ctx, []string{m.ID})
	if err != nil {
		return nil, err
	}
	m.RelatedIDs = related[m.ID]
	return &m, nil
}

// UpdateMemo overwrites the mutable fields of a live memo. The related list
// is owned by the linker and is not touched here.
func (db *DB) UpdateMemo(ctx context.Context, m *models.Memo) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `
		UPDATE memos SET
			transcription = ?,
			summary       = ?,
			tags          = ?,
			embedding     = ?,
			updated_at    = ?
		WHERE id = ? AND owner_id = ? AND deleted_at IS NULL
	`, m.Transcription, m.Summary, tagsJSON(m.Tags), encodeEmbedding(m.Embedding),
		m.UpdatedAt.UTC(), m.ID, m.OwnerID)
	if err != nil {
		return fmt.Errorf("store: update memo: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	if err := ftsUpsert(tx, m.ID, m.Summary, m.Transcription, m.Tags); err != nil {
		return err
	}
	return tx.Commit()
}

// SoftDeleteMemo marks a memo deleted. Its row and outgoing related list stay
// in place; other memos' references are removed by the linker's cleanup.
func (db *DB) SoftDeleteMemo(ctx context.Context, ownerID, id string, at time.Time) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `
		UPDATE memos SET deleted_at = ?
		WHERE id = ? AND owner_id = ? AND deleted_at IS NULL
	`, at.UTC(), id, ownerID)
	if err != nil {
		return fmt.Errorf("store: soft delete memo: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	if err := ftsDelete(tx, id); err != nil {
		return err
	}
	return tx.Commit()
}

// ListRecent returns live memos newest first, together with the total count.
func (db *DB) ListRecent(ctx context.Context, ownerID string, limit, skip int) ([]models.Memo, int, error) {
	var total int
	err := db.conn.QueryRowContext(ctx,
		`SELECT count(*) FROM memos WHERE owner_id = ? AND deleted_at IS NULL`, ownerID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("store: count memos: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+memoColumns+`
		FROM memos
		WHERE owner_id = ? AND deleted_at IS NULL
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`, ownerID, limit, skip)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list memos: %w", err)
	}
	memos, err := collectMemos(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list memos: %w", err)
	}
	if err := db.attachRelated(ctx, memos); err != nil {
		return nil, 0, err
	}
	return memos, total, nil
}

// ListEmbedded returns up to limit live memos that carry an embedding.
func (db *DB) ListEmbedded(ctx context.Context, ownerID string, limit int) ([]models.Memo, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+memoColumns+`
		FROM memos
		WHERE owner_id = ? AND deleted_at IS NULL AND embedding IS NOT NULL
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list embedded: %w", err)
	}
	memos, err := collectMemos(rows)
	if err != nil {
		return nil, fmt.Errorf("store: list embedded: %w", err)
	}
	return memos, nil
}

// ListForGraph returns the newest live memos for graph construction,
// optionally restricted to those carrying tag.
func (db *DB) ListForGraph(ctx context.Context, ownerID, tag string, limit int) ([]models.Memo, error) {
	query := `SELECT ` + memoColumns + ` FROM memos WHERE owner_id = ? AND deleted_at IS NULL`
	args := []any{ownerID}
	if tag != "" {
		query += ` AND EXISTS (SELECT 1 FROM json_each(memos.tags) WHERE json_each.value = ?)`
		args = append(args, tag)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list for graph: %w", err)
	}
	memos, err := collectMemos(rows)
	if err != nil {
		return nil, fmt.Errorf("store: list for graph: %w", err)
	}
	if err := db.attachRelated(ctx, memos); err != nil {
		return nil, err
	}
	return memos, nil
}

// Owners returns every owner that has at least one live memo.
func (db *DB) Owners(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT DISTINCT owner_id FROM memos WHERE deleted_at IS NULL ORDER BY owner_id`)
	if err != nil {
		return nil, fmt.Errorf("store: owners: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var o string
		if err := rows.Scan(&o); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
