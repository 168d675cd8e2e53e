package memoservice

import (
	"context"
	"fmt"

	"github.com/starford/echolog/internal/apperr"
	"github.com/starford/echolog/internal/enrich"
	"github.com/starford/echolog/internal/graph"
)

const maxSuggestionMemos = 50

// SetLayoutParams swaps the layout constants used by Graph.
func (s *Service) SetLayoutParams(p graph.LayoutParams) {
	s.layout.Store(&p)
}

// LayoutParams returns the layout constants currently in use.
func (s *Service) LayoutParams() graph.LayoutParams {
	return *s.layout.Load()
}

// Graph builds and lays out the relation graph of owner's most recent memos,
// optionally restricted to memos carrying tag. Edges to memos outside the
// selection are dropped.
//
// Edge weights are the configured constant since similarity scores are not
// stored; with UseLiveScores the cosine of the two stored vectors is used.
func (s *Service) Graph(ctx context.Context, owner, tag string, limit int) (graph.Graph, error) {
	if limit <= 0 || limit > s.cfg.GraphMaxItems {
		limit = s.cfg.GraphMaxItems
	}
	memos, err := s.store.ListForGraph(ctx, owner, tag, limit)
	if err != nil {
		return graph.Graph{}, err
	}

	opts := []graph.BuildOption{graph.WithDefaultWeight(s.cfg.DefaultEdgeWeight)}
	if s.cfg.UseLiveScores {
		opts = append(opts, graph.WithWeigher(graph.CosineWeight))
	}
	return graph.Layout(graph.Build(memos, opts...), s.LayoutParams()), nil
}

// Suggestions groups the given memos of owner into suggestions. Unknown,
// deleted and foreign ids are ignored.
func (s *Service) Suggestions(ctx context.Context, owner string, ids []string) ([]enrich.Suggestion, error) {
	if len(ids) > maxSuggestionMemos {
		return nil, fmt.Errorf("%w: at most %d memo ids", apperr.ErrInvalidInput, maxSuggestionMemos)
	}
	if len(ids) == 0 {
		return []enrich.Suggestion{}, nil
	}
	memos, err := s.store.FetchByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return s.enr.Suggestions(ctx, ownedBy(memos, owner)), nil
}
