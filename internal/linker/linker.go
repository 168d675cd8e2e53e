// Package linker maintains the bounded "related memos" relation between a
// memo and its most similar peers of the same owner.
package linker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"

	"github.com/starford/echolog/internal/models"
	"github.com/starford/echolog/internal/vecmath"
)

// Store is the persistence surface the linker needs.
type Store interface {
	// FetchCandidates returns the owner's live, embedded memos except excludeID,
	// in a stable enumeration order.
	FetchCandidates(ctx context.Context, ownerID, excludeID string) ([]models.Memo, error)
	// ReplaceRelated overwrites the ordered related list of id.
	ReplaceRelated(ctx context.Context, id string, related []string) error
	// AddRelatedIfAbsent appends relatedID to id's list unless present.
	AddRelatedIfAbsent(ctx context.Context, id, relatedID string) error
	// RemoveRelatedEverywhere drops id from every related list.
	RemoveRelatedEverywhere(ctx context.Context, id string) error
	// FetchByIDs returns the live memos among ids; missing ids are omitted.
	FetchByIDs(ctx context.Context, ids []string) ([]models.Memo, error)
}

// Params controls neighbour selection.
type Params struct {
	Threshold    float64
	MaxNeighbors int
}

// DefaultParams returns the stock linking parameters.
func DefaultParams() Params {
	return Params{Threshold: 0.75, MaxNeighbors: 10}
}

// Neighbor is one selected peer and its similarity to the subject.
type Neighbor struct {
	ID    string
	Score float64
}

// Linker recomputes related lists.
type Linker struct {
	store  Store
	params atomic.Pointer[Params]
	locks  *keyedMutex
	logger *slog.Logger
}

// New creates a Linker.
func New(store Store, p Params, logger *slog.Logger) *Linker {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Linker{store: store, locks: newKeyedMutex(), logger: logger}
	l.SetParams(p)
	return l
}

// SetParams swaps the parameters used by subsequent Relink calls.
func (l *Linker) SetParams(p Params) {
	l.params.Store(&p)
}

// Params returns the current parameters.
func (l *Linker) Params() Params {
	return *l.params.Load()
}

// Relink recomputes the related list of m and adds m to every selected
// neighbour's list. A memo without an embedding, or one no longer live in the
// store, is left untouched.
//
// Neighbours are the owner's other embedded memos with similarity at or above
// the threshold, best first, ties in enumeration order, capped at
// MaxNeighbors. Neighbour lists are appended to without re-ranking or capping.
func (l *Linker) Relink(ctx context.Context, m models.Memo) ([]Neighbor, error) {
	if !m.HasEmbedding() {
		return nil, nil
	}

	unlock := l.locks.Lock(m.ID)
	defer unlock()

	// Work from the stored copy; the subject may have been edited or deleted
	// since the task was queued.
	fresh, err := l.store.FetchByIDs(ctx, []string{m.ID})
	if err != nil {
		return nil, fmt.Errorf("linker: load %s: %w", m.ID, err)
	}
	if len(fresh) == 0 || !fresh[0].HasEmbedding() {
		l.logger.Debug("linker: subject gone or unembedded", slog.String("memo", m.ID))
		return nil, nil
	}
	m = fresh[0]

	p := l.Params()

	candidates, err := l.store.FetchCandidates(ctx, m.OwnerID, m.ID)
	if err != nil {
		return nil, fmt.Errorf("linker: fetch candidates for %s: %w", m.ID, err)
	}

	var selected []Neighbor
	for _, c := range candidates {
		sim, err := vecmath.Cosine(m.Embedding, c.Embedding)
		if err != nil {
			l.logger.Warn("linker: skipping candidate",
				slog.String("memo", m.ID),
				slog.String("candidate", c.ID),
				slog.String("error", err.Error()))
			continue
		}
		if sim >= p.Threshold {
			selected = append(selected, Neighbor{ID: c.ID, Score: sim})
		}
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Score > selected[j].Score
	})
	if p.MaxNeighbors >= 0 && len(selected) > p.MaxNeighbors {
		selected = selected[:p.MaxNeighbors]
	}

	ids := make([]string, len(selected))
	for i, n := range selected {
		ids[i] = n.ID
	}
	if err := l.store.ReplaceRelated(ctx, m.ID, ids); err != nil {
		return nil, fmt.Errorf("linker: replace related of %s: %w", m.ID, err)
	}

	var errs []error
	for _, id := range ids {
		if err := l.store.AddRelatedIfAbsent(ctx, id, m.ID); err != nil {
			errs = append(errs, fmt.Errorf("linker: add %s to %s: %w", m.ID, id, err))
		}
	}

	l.logger.Debug("linker: relinked",
		slog.String("memo", m.ID),
		slog.Int("candidates", len(candidates)),
		slog.Int("neighbors", len(ids)))

	return selected, errors.Join(errs...)
}

// Cleanup removes id from every memo's related list.
func (l *Linker) Cleanup(ctx context.Context, id string) error {
	if err := l.store.RemoveRelatedEverywhere(ctx, id); err != nil {
		return fmt.Errorf("linker: cleanup %s: %w", id, err)
	}
	return nil
}

// RelinkOwner relinks every embedded memo of ownerID in enumeration order.
// Failures are logged and counted; the sweep continues past them.
func (l *Linker) RelinkOwner(ctx context.Context, ownerID string) (relinked, failed int, err error) {
	memos, err := l.store.FetchCandidates(ctx, ownerID, "")
	if err != nil {
		return 0, 0, fmt.Errorf("linker: list memos of %s: %w", ownerID, err)
	}
	for _, m := range memos {
		if err := ctx.Err(); err != nil {
			return relinked, failed, err
		}
		if _, err := l.Relink(ctx, m); err != nil {
			failed++
			l.logger.Error("linker: relink failed",
				slog.String("memo", m.ID),
				slog.String("error", err.Error()))
			continue
		}
		relinked++
	}
	return relinked, failed, nil
}
