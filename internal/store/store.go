package store

import (
	"context"
	"time"

	"github.com/starford/echolog/internal/models"
)

// MemoStore defines the memo persistence operations used by the service layer.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type MemoStore interface {
	InsertMemo(ctx context.Context, m *models.Memo) error
	GetMemo(ctx context.Context, ownerID, id string) (*models.Memo, error)
	UpdateMemo(ctx context.Context, m *models.Memo) error
	SoftDeleteMemo(ctx context.Context, ownerID, id string, at time.Time) error
	ListRecent(ctx context.Context, ownerID string, limit, skip int) ([]models.Memo, int, error)
	ListEmbedded(ctx context.Context, ownerID string, limit int) ([]models.Memo, error)
	ListForGraph(ctx context.Context, ownerID, tag string, limit int) ([]models.Memo, error)
	Search(ctx context.Context, ownerID, query string, limit int) ([]SearchResult, error)
	FetchByIDs(ctx context.Context, ids []string) ([]models.Memo, error)
	Owners(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// Verify *DB satisfies MemoStore at compile time.
var _ MemoStore = (*DB)(nil)
