package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/starford/echolog/internal/models"
	"github.com/starford/echolog/internal/vecmath"
)

// SuggestionType classifies a suggestion.
type SuggestionType string

const (
	SuggestionConnection SuggestionType = "connection"
	SuggestionInsight    SuggestionType = "insight"
)

// Suggestion points the user at a group of memos worth revisiting together.
type Suggestion struct {
	ID             string         `json:"id"`
	Type           SuggestionType `json:"type"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	RelatedMemoIDs []string       `json:"related_memo_ids"`
	Priority       int            `json:"priority"`
	CreatedAt      time.Time      `json:"created_at"`
	IsActioned     bool           `json:"is_actioned"`
}

const (
	maxSuggestions       = 5
	maxTagGroups         = 3
	maxSimilarityGroups  = 2
	similarityGroupFloor = 0.75
	insightMinMemos      = 3
	insightMaxMemos      = 10
)

// Suggestions groups memos by shared tags and by embedding similarity, adds a
// model-written insight when possible, and returns the five highest-priority
// suggestions. Fewer than two memos yield none.
func (e *Enricher) Suggestions(ctx context.Context, memos []models.Memo) []Suggestion {
	if len(memos) < 2 {
		return []Suggestion{}
	}
	now := e.now()
	var out []Suggestion

	for _, g := range tagGroups(memos) {
		out = append(out, Suggestion{
			ID:             "tag-" + g.tag,
			Type:           SuggestionConnection,
			Title:          fmt.Sprintf("「%s」に関するメモ", g.tag),
			Description:    fmt.Sprintf("%d件のメモが「%s」タグで関連しています", len(g.ids), g.tag),
			RelatedMemoIDs: g.ids,
			Priority:       min(len(g.ids), 5),
			CreatedAt:      now,
		})
	}

	for _, g := range similarityGroups(memos) {
		out = append(out, Suggestion{
			ID:             "similarity-" + g[0],
			Type:           SuggestionConnection,
			Title:          "類似したテーマのメモ",
			Description:    fmt.Sprintf("%d件のメモに類似したテーマが見つかりました", len(g)),
			RelatedMemoIDs: g,
			Priority:       4,
			CreatedAt:      now,
		})
	}

	if e.llm != nil && len(memos) >= insightMinMemos && len(memos) <= insightMaxMemos {
		if s, ok := e.insight(ctx, memos); ok {
			s.CreatedAt = now
			out = append(out, s)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	if out == nil {
		out = []Suggestion{}
	}
	return out
}

type tagGroup struct {
	tag string
	ids []string
}

// tagGroups returns tags shared by at least two memos, most shared first,
// ties in first-seen order, at most three.
func tagGroups(memos []models.Memo) []tagGroup {
	var order []string
	byTag := make(map[string][]string)
	for _, m := range memos {
		for _, t := range m.Tags {
			if _, ok := byTag[t]; !ok {
				order = append(order, t)
			}
			byTag[t] = append(byTag[t], m.ID)
		}
	}

	var groups []tagGroup
	for _, t := range order {
		if ids := byTag[t]; len(ids) >= 2 {
			groups = append(groups, tagGroup{tag: t, ids: ids})
		}
	}
	sort.SliceStable(groups, func(i, j int) bool { return len(groups[i].ids) > len(groups[j].ids) })
	if len(groups) > maxTagGroups {
		groups = groups[:maxTagGroups]
	}
	return groups
}

// similarityGroups greedily collects, for each unclaimed embedded memo, the
// later unclaimed memos more similar than the floor. At most two groups.
func similarityGroups(memos []models.Memo) [][]string {
	var groups [][]string
	claimed := make(map[string]bool)
	for i := range memos {
		a := &memos[i]
		if !a.HasEmbedding() || claimed[a.ID] {
			continue
		}
		group := []string{a.ID}
		for j := i + 1; j < len(memos); j++ {
			b := &memos[j]
			if !b.HasEmbedding() || claimed[b.ID] {
				continue
			}
			sim, err := vecmath.Cosine(a.Embedding, b.Embedding)
			if err != nil {
				continue
			}
			if sim > similarityGroupFloor {
				group = append(group, b.ID)
				claimed[b.ID] = true
			}
		}
		if len(group) >= 2 {
			groups = append(groups, group)
			claimed[a.ID] = true
		}
		if len(groups) >= maxSimilarityGroups {
			break
		}
	}
	return groups
}

func (e *Enricher) insight(ctx context.Context, memos []models.Memo) (Suggestion, bool) {
	var summaries []string
	for _, m := range memos {
		s := m.Summary
		if s == "" {
			s = truncateRunes(m.Transcription, 100)
		}
		if s != "" {
			summaries = append(summaries, s)
		}
		if len(summaries) == 5 {
			break
		}
	}
	if len(summaries) < insightMinMemos {
		return Suggestion{}, false
	}

	var list strings.Builder
	for i, s := range summaries {
		fmt.Fprintf(&list, "%d. %s\n", i+1, s)
	}
	out, err := e.llm.Complete(ctx, Prompt{
		System: "あなたはメモの分析専門家です。複数のメモから共通のパターンや洞察を見つけます。",
		User: "以下のメモから共通のテーマやパターンを見つけて、簡潔な洞察を提供してください。\n\nメモ:\n" + list.String() +
			"\n以下の形式でJSONで回答してください:\n{\n  \"title\": \"発見したパターンのタイトル（15文字以内）\",\n  \"description\": \"洞察の説明（50文字以内）\"\n}",
		MaxTokens:   150,
		Temperature: 0.7,
	})
	if err != nil {
		e.logger.Warn("enrich: insight generation failed", slog.String("error", err.Error()))
		return Suggestion{}, false
	}

	var reply struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	raw := jsonRe.FindString(out)
	if raw == "" || json.Unmarshal([]byte(raw), &reply) != nil || reply.Title == "" {
		return Suggestion{}, false
	}

	ids := make([]string, 0, 5)
	for _, m := range memos[:min(5, len(memos))] {
		ids = append(ids, m.ID)
	}
	return Suggestion{
		ID:             "insight-ai",
		Type:           SuggestionInsight,
		Title:          reply.Title,
		Description:    reply.Description,
		RelatedMemoIDs: ids,
		Priority:       5,
	}, true
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
