// Package enrich derives titles, tags, dates and embeddings for memos, using a
// language model when one is configured and local heuristics otherwise.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/starford/echolog/internal/cache"
	"github.com/starford/echolog/internal/checksum"
	"github.com/starford/echolog/internal/parser"
)

// Prompt is one chat completion request.
type Prompt struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float32
}

// Completer answers a prompt with plain text.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

const maxTags = 5

var (
	tagSplitRe = regexp.MustCompile(`[,、]`)
	jsonRe     = regexp.MustCompile(`(?s)\{.*\}`)
)

// Enricher generates memo metadata. A nil Completer selects the local
// heuristics; a nil Embedder disables embedding generation.
type Enricher struct {
	llm    Completer
	emb    Embedder
	cache  cache.Cache
	now    func() time.Time
	logger *slog.Logger
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithCompleter enables model-backed title, tag and date extraction.
func WithCompleter(c Completer) Option { return func(e *Enricher) { e.llm = c } }

// WithEmbedder enables embedding generation.
func WithEmbedder(em Embedder) Option { return func(e *Enricher) { e.emb = em } }

// WithCache stores generated titles and tags.
func WithCache(c cache.Cache) Option { return func(e *Enricher) { e.cache = c } }

// WithClock overrides time.Now for relative date resolution.
func WithClock(now func() time.Time) Option { return func(e *Enricher) { e.now = now } }

// New creates an Enricher.
func New(logger *slog.Logger, opts ...Option) *Enricher {
	e := &Enricher{now: time.Now, logger: logger}
	for _, o := range opts {
		o(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// ModelBacked reports whether a language model is configured.
func (e *Enricher) ModelBacked() bool { return e.llm != nil }

// CanEmbed reports whether an embedder is configured.
func (e *Enricher) CanEmbed() bool { return e.emb != nil }

// Title returns a short title for content.
func (e *Enricher) Title(ctx context.Context, content string) (string, error) {
	if e.llm == nil {
		return parser.Title(content), nil
	}

	key := checksum.Key("title", content)
	if v, ok := e.cacheGet(key); ok {
		e.logger.Debug("enrich: cache hit", slog.String("kind", "title"))
		return v, nil
	}

	out, err := e.llm.Complete(ctx, Prompt{
		System:      "あなたはメモのタイトルを生成する専門家です。与えられたメモの内容から、簡潔で分かりやすい日本語のタイトルを1つ生成してください。タイトルは30文字以内にしてください。",
		User:        "以下のメモの内容から適切なタイトルを生成してください:\n\n" + content,
		MaxTokens:   50,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("enrich: title: %w", err)
	}
	if out == "" {
		out = parser.UntitledTitle
	}
	e.cacheSet(key, out)
	return out, nil
}

// Tags returns up to five topic tags for content.
func (e *Enricher) Tags(ctx context.Context, content string) ([]string, error) {
	if e.llm == nil {
		return parser.Tags(content), nil
	}

	key := checksum.Key("tags", content)
	if v, ok := e.cacheGet(key); ok {
		var tags []string
		if err := json.Unmarshal([]byte(v), &tags); err == nil {
			e.logger.Debug("enrich: cache hit", slog.String("kind", "tags"))
			return tags, nil
		}
	}

	out, err := e.llm.Complete(ctx, Prompt{
		System:      "あなたはメモの内容を分析してタグを抽出する専門家です。与えられたメモの内容から、関連性の高いタグを3〜5個抽出してください。タグは日本語で、カテゴリーやトピックを表す単語にしてください。",
		User:        "以下のメモの内容から適切なタグを抽出してください。タグはカンマ区切りで出力してください:\n\n" + content,
		MaxTokens:   50,
		Temperature: 0.5,
	})
	if err != nil {
		return nil, fmt.Errorf("enrich: tags: %w", err)
	}

	var tags []string
	for _, t := range tagSplitRe.Split(out, -1) {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
		if len(tags) == maxTags {
			break
		}
	}
	if len(tags) == 0 {
		tags = []string{parser.DefaultTag}
	}
	if b, err := json.Marshal(tags); err == nil {
		e.cacheSet(key, string(b))
	}
	return tags, nil
}

// DateTime finds a date expression in content and resolves it against now.
func (e *Enricher) DateTime(ctx context.Context, content string) (parser.DateTime, error) {
	now := e.now()
	if e.llm == nil {
		return parser.ExtractDateTime(content, now), nil
	}

	out, err := e.llm.Complete(ctx, Prompt{
		System: "あなたは日本語テキストから日時情報を抽出する専門家です。\n" +
			"現在の日時: " + now.Format(time.RFC3339) + "\n" +
			"テキストから日時に関する表現を見つけて、ISO8601形式の日時に変換してください。\n" +
			"「明日」「来週」「3日後」などの相対的な表現も正確に解釈してください。\n" +
			"日時情報が見つからない場合はnullを返してください。",
		User: "以下のテキストから日時情報を抽出してJSON形式で返してください:\n\n" + content +
			"\n\n形式: {\"datetime\": \"ISO8601形式またはnull\", \"original\": \"元のテキスト表現またはnull\", \"hasDateTime\": true/false}",
		MaxTokens:   100,
		Temperature: 0.3,
	})
	if err != nil {
		return parser.DateTime{}, fmt.Errorf("enrich: datetime: %w", err)
	}

	var reply struct {
		HasDateTime bool    `json:"hasDateTime"`
		DateTime    *string `json:"datetime"`
		Original    *string `json:"original"`
	}
	raw := jsonRe.FindString(out)
	if raw == "" || json.Unmarshal([]byte(raw), &reply) != nil || !reply.HasDateTime || reply.DateTime == nil {
		return parser.DateTime{}, nil
	}
	at, err := time.Parse(time.RFC3339, *reply.DateTime)
	if err != nil {
		e.logger.Warn("enrich: unparseable datetime from model", slog.String("value", *reply.DateTime))
		return parser.DateTime{}, nil
	}
	dt := parser.DateTime{Found: true, At: at}
	if reply.Original != nil {
		dt.Original = *reply.Original
	}
	return dt, nil
}

// Embed returns the embedding of text, or nil when no embedder is configured.
func (e *Enricher) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.emb == nil {
		return nil, nil
	}
	v, err := e.emb.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("enrich: embed: %w", err)
	}
	return v, nil
}

func (e *Enricher) cacheGet(key string) (string, bool) {
	if e.cache == nil {
		return "", false
	}
	return e.cache.Get(key)
}

func (e *Enricher) cacheSet(key, value string) {
	if e.cache != nil {
		e.cache.Set(key, value)
	}
}
