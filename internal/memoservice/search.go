package memoservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/starford/echolog/internal/apperr"
	"github.com/starford/echolog/internal/models"
	"github.com/starford/echolog/internal/store"
	"github.com/starford/echolog/internal/vecmath"
)

const (
	defaultTextLimit    = 20
	defaultSimilarLimit = 5
	maxSimilarLimit     = 50
	similarityFloor     = 0.7
	unlimitedScan       = -1
)

// ScoredMemo is a memo returned by embedding search.
type ScoredMemo struct {
	models.Memo
	Similarity float64 `json:"similarity"`
}

// SearchText runs a text query over owner's memos.
func (s *Service) SearchText(ctx context.Context, owner, query string, limit int) ([]store.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", apperr.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = defaultTextLimit
	}
	results, err := s.store.Search(ctx, owner, query, limit)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []store.SearchResult{}
	}
	return results, nil
}

// SearchSimilar returns owner's memos whose cosine similarity to vec exceeds
// 0.7, best first. The scan is linear over every embedded memo.
func (s *Service) SearchSimilar(ctx context.Context, owner string, vec []float32, limit int) ([]ScoredMemo, error) {
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: embedding is required", apperr.ErrInvalidInput)
	}
	if s.cfg.EmbeddingDim > 0 && len(vec) != s.cfg.EmbeddingDim {
		return nil, fmt.Errorf("%w: embedding must have %d dimensions", apperr.ErrInvalidInput, s.cfg.EmbeddingDim)
	}
	if limit == 0 {
		limit = defaultSimilarLimit
	}
	if limit < 1 || limit > maxSimilarLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", apperr.ErrInvalidInput, maxSimilarLimit)
	}

	memos, err := s.store.ListEmbedded(ctx, owner, unlimitedScan)
	if err != nil {
		return nil, err
	}

	out := make([]ScoredMemo, 0, limit)
	for i := range memos {
		sim, err := vecmath.Cosine(vec, memos[i].Embedding)
		if errors.Is(err, vecmath.ErrDimensionMismatch) {
			s.logger.Debug("memoservice: skipping memo with foreign dimension", slog.String("id", memos[i].ID))
			continue
		}
		if sim > similarityFloor {
			out = append(out, ScoredMemo{Memo: *brief(&memos[i]), Similarity: sim})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
