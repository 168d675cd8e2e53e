package graph

import (
	"unicode/utf8"

	"github.com/starford/echolog/internal/models"
	"github.com/starford/echolog/internal/vecmath"
)

// DefaultEdgeWeight is used when no similarity score is available. Scores are
// not persisted alongside related lists.
const DefaultEdgeWeight = 0.8

const labelRunes = 30

// Weigher returns the weight of the edge between a and b. ok=false falls back
// to the default weight.
type Weigher func(a, b *models.Memo) (weight float64, ok bool)

type buildOptions struct {
	defaultWeight float64
	weigher       Weigher
}

// BuildOption configures Build.
type BuildOption func(*buildOptions)

// WithDefaultWeight overrides DefaultEdgeWeight.
func WithDefaultWeight(w float64) BuildOption {
	return func(o *buildOptions) { o.defaultWeight = w }
}

// WithWeigher supplies live edge weights, for callers that have the raw
// vectors in hand.
func WithWeigher(fn Weigher) BuildOption {
	return func(o *buildOptions) { o.weigher = fn }
}

// CosineWeight weighs an edge by the cosine similarity of the two embeddings.
func CosineWeight(a, b *models.Memo) (float64, bool) {
	if !a.HasEmbedding() || !b.HasEmbedding() {
		return 0, false
	}
	sim, err := vecmath.Cosine(a.Embedding, b.Embedding)
	if err != nil {
		return 0, false
	}
	return sim, true
}

// Build creates one node per memo, in input order, and one edge per related
// pair whose endpoints are both present. Both directions of a pair collapse
// into a single edge; self references are ignored. Positions are left at zero.
func Build(memos []models.Memo, opts ...BuildOption) Graph {
	o := buildOptions{defaultWeight: DefaultEdgeWeight}
	for _, opt := range opts {
		opt(&o)
	}

	g := Graph{
		Nodes: make([]Node, 0, len(memos)),
		Edges: []Edge{},
	}
	index := make(map[string]int, len(memos))
	for i := range memos {
		m := &memos[i]
		if _, dup := index[m.ID]; dup {
			continue
		}
		index[m.ID] = i
		g.Nodes = append(g.Nodes, Node{
			ID:              m.ID,
			Label:           label(m),
			Tags:            m.Tags,
			ConnectionCount: len(m.RelatedIDs),
			CreatedAt:       m.CreatedAt,
		})
	}

	emitted := make(map[string]struct{})
	for i := range memos {
		m := &memos[i]
		for _, rid := range m.RelatedIDs {
			if rid == m.ID {
				continue
			}
			j, ok := index[rid]
			if !ok {
				continue
			}
			key := EdgeKey(m.ID, rid)
			if _, seen := emitted[key]; seen {
				continue
			}
			emitted[key] = struct{}{}

			w := o.defaultWeight
			if o.weigher != nil {
				if live, ok := o.weigher(m, &memos[j]); ok {
					w = live
				}
			}
			g.Edges = append(g.Edges, Edge{ID: key, Source: m.ID, Target: rid, Weight: w})
		}
	}
	return g
}

// FilterByTag keeps the memos carrying tag. An empty tag keeps everything.
func FilterByTag(memos []models.Memo, tag string) []models.Memo {
	if tag == "" {
		return memos
	}
	out := make([]models.Memo, 0, len(memos))
	for _, m := range memos {
		if m.HasTag(tag) {
			out = append(out, m)
		}
	}
	return out
}

func label(m *models.Memo) string {
	if m.Summary != "" {
		return m.Summary
	}
	s := m.Transcription
	if utf8.RuneCountInString(s) <= labelRunes {
		return s
	}
	r := []rune(s)
	return string(r[:labelRunes]) + "..."
}
