// Package memoservice coordinates memo persistence, enrichment, linking and
// live events.
package memoservice

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/echolog/internal/apperr"
	"github.com/starford/echolog/internal/checksum"
	"github.com/starford/echolog/internal/enrich"
	"github.com/starford/echolog/internal/graph"
	"github.com/starford/echolog/internal/models"
	"github.com/starford/echolog/internal/parser"
	"github.com/starford/echolog/internal/sse"
	"github.com/starford/echolog/internal/store"
)

const (
	maxTags          = 10
	defaultListLimit = 10
	maxListLimit     = 100
)

// Linking receives memo lifecycle events for background relation upkeep.
// *linker.Dispatcher implements it.
type Linking interface {
	OnItemCreatedOrReembedded(m models.Memo)
	OnItemDeleted(id string)
}

// Publisher announces memo changes to live clients. *sse.Broker implements it.
type Publisher interface {
	PublishMemoEvent(owner, kind, id string)
}

type nopLinking struct{}

func (nopLinking) OnItemCreatedOrReembedded(models.Memo) {}
func (nopLinking) OnItemDeleted(string)                  {}

type nopPublisher struct{}

func (nopPublisher) PublishMemoEvent(string, string, string) {}

// Config holds the service knobs taken from application config.
type Config struct {
	EmbeddingDim      int     // 0 accepts any length
	GraphMaxItems     int     // most recent memos considered for the graph
	DefaultEdgeWeight float64 // weight of edges when live scores are off
	UseLiveScores     bool    // weigh graph edges by cosine of stored vectors
}

// Option configures a Service.
type Option func(*Service)

// WithLinking routes create, re-embed and delete events to l.
func WithLinking(l Linking) Option { return func(s *Service) { s.links = l } }

// WithPublisher routes change events to p.
func WithPublisher(p Publisher) Option { return func(s *Service) { s.events = p } }

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// Service implements memo use cases on top of a MemoStore.
type Service struct {
	store  store.MemoStore
	enr    *enrich.Enricher
	links  Linking
	events Publisher
	cfg    Config
	layout atomic.Pointer[graph.LayoutParams]
	now    func() time.Time
	logger *slog.Logger
}

// New creates a Service. Without options linking and events are no-ops.
func New(st store.MemoStore, enr *enrich.Enricher, cfg Config, opts ...Option) *Service {
	if cfg.GraphMaxItems <= 0 {
		cfg.GraphMaxItems = 100
	}
	if cfg.DefaultEdgeWeight <= 0 {
		cfg.DefaultEdgeWeight = graph.DefaultEdgeWeight
	}
	s := &Service{
		store:  st,
		enr:    enr,
		links:  nopLinking{},
		events: nopPublisher{},
		cfg:    cfg,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.enr == nil {
		s.enr = enrich.New(s.logger)
	}
	p := graph.DefaultLayoutParams()
	s.layout.Store(&p)
	return s
}

// CreateInput carries the fields of a new memo. Summary, Tags and Embedding
// are generated when empty.
type CreateInput struct {
	AudioURL      string    `json:"audio_url"`
	Transcription string    `json:"transcription"`
	Summary       string    `json:"summary"`
	Tags          []string  `json:"tags"`
	Embedding     []float32 `json:"embedding"`
}

func (in *CreateInput) validate(dim int) error {
	err := validation.ValidateStruct(in,
		validation.Field(&in.Transcription, validation.Required),
		validation.Field(&in.Tags, validation.Length(0, maxTags), validation.Each(validation.Required)),
		validation.Field(&in.Embedding, validation.When(dim > 0, validation.Length(dim, dim))),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	return nil
}

// UpdateInput carries a partial update. Nil fields are left unchanged.
type UpdateInput struct {
	Transcription *string    `json:"transcription"`
	Summary       *string    `json:"summary"`
	Tags          *[]string  `json:"tags"`
	Embedding     *[]float32 `json:"embedding"`
}

func (in *UpdateInput) validate(dim int) error {
	err := validation.ValidateStruct(in,
		validation.Field(&in.Transcription, validation.NilOrNotEmpty),
		validation.Field(&in.Tags, validation.By(func(v any) error {
			tags, _ := v.(*[]string)
			if tags == nil {
				return nil
			}
			return validation.Validate(*tags, validation.Length(0, maxTags), validation.Each(validation.Required))
		})),
		validation.Field(&in.Embedding, validation.When(dim > 0, validation.Length(dim, dim))),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	return nil
}

// Page is one page of the recent-memos listing.
type Page struct {
	Data       []models.Memo `json:"data"`
	Pagination Pagination    `json:"pagination"`
}

// Pagination describes the position of a Page.
type Pagination struct {
	Total   int  `json:"total"`
	Skip    int  `json:"skip"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"has_more"`
}

// Version returns the digest used as the memo's ETag.
func Version(m *models.Memo) string {
	return checksum.Fields(m.ID, m.UpdatedAt.UTC().Format(time.RFC3339Nano),
		m.Transcription, m.Summary, strings.Join(m.Tags, "\x1f"))
}

// ValidID reports whether id has the shape of a memo ID.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Create stores a new memo and schedules its linking. The memo is returned
// before any related list is computed.
func (s *Service) Create(ctx context.Context, owner string, in CreateInput) (*models.Memo, error) {
	in.Transcription = strings.TrimSpace(in.Transcription)
	if err := in.validate(s.cfg.EmbeddingDim); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	m := &models.Memo{
		ID:            uuid.NewString(),
		OwnerID:       owner,
		AudioURL:      in.AudioURL,
		Transcription: in.Transcription,
		Summary:       strings.TrimSpace(in.Summary),
		Tags:          in.Tags,
		Embedding:     in.Embedding,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.fillGenerated(ctx, m)

	if err := s.store.InsertMemo(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info("memoservice: memo created",
		slog.String("id", m.ID),
		slog.String("owner", owner),
		slog.Bool("embedded", m.HasEmbedding()))

	s.events.PublishMemoEvent(owner, sse.MemoCreated, m.ID)
	s.links.OnItemCreatedOrReembedded(*m)
	return present(m), nil
}

// fillGenerated derives missing summary, tags and embedding. Model failures
// fall back to local heuristics; a failed embedding leaves the memo unlinked.
func (s *Service) fillGenerated(ctx context.Context, m *models.Memo) {
	if m.Summary == "" {
		title, err := s.enr.Title(ctx, m.Transcription)
		if err != nil {
			s.logger.Warn("memoservice: title generation failed", slog.String("error", err.Error()))
			title = parser.Title(m.Transcription)
		}
		m.Summary = title
	}
	if len(m.Tags) == 0 {
		tags, err := s.enr.Tags(ctx, m.Transcription)
		if err != nil {
			s.logger.Warn("memoservice: tag generation failed", slog.String("error", err.Error()))
			tags = parser.Tags(m.Transcription)
		}
		m.Tags = tags
	}
	if !m.HasEmbedding() && s.enr.CanEmbed() {
		s.embed(ctx, m)
	}
}

func (s *Service) embed(ctx context.Context, m *models.Memo) bool {
	v, err := s.enr.Embed(ctx, m.Transcription)
	if err != nil {
		s.logger.Warn("memoservice: embedding failed", slog.String("id", m.ID), slog.String("error", err.Error()))
		return false
	}
	if s.cfg.EmbeddingDim > 0 && len(v) != s.cfg.EmbeddingDim {
		s.logger.Warn("memoservice: embedding has unexpected dimension",
			slog.String("id", m.ID), slog.Int("got", len(v)), slog.Int("want", s.cfg.EmbeddingDim))
		return false
	}
	m.Embedding = v
	return len(v) > 0
}

// Get returns a live memo of owner.
func (s *Service) Get(ctx context.Context, owner, id string) (*models.Memo, error) {
	m, err := s.store.GetMemo(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	return present(m), nil
}

// List returns owner's memos newest first. A zero limit selects the default.
func (s *Service) List(ctx context.Context, owner string, limit, skip int) (*Page, error) {
	if limit == 0 {
		limit = defaultListLimit
	}
	if limit < 1 || limit > maxListLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", apperr.ErrInvalidInput, maxListLimit)
	}
	if skip < 0 {
		return nil, fmt.Errorf("%w: skip must be non-negative", apperr.ErrInvalidInput)
	}

	memos, total, err := s.store.ListRecent(ctx, owner, limit, skip)
	if err != nil {
		return nil, err
	}
	for i := range memos {
		brief(&memos[i])
	}
	if memos == nil {
		memos = []models.Memo{}
	}
	return &Page{
		Data: memos,
		Pagination: Pagination{
			Total:   total,
			Skip:    skip,
			Limit:   limit,
			HasMore: skip+len(memos) < total,
		},
	}, nil
}

// Update applies a partial update. A non-empty ifMatch must name the current
// version or ErrConflict is returned. A changed embedding triggers a relink;
// changed transcription is re-embedded when an embedder is configured and no
// embedding was supplied.
func (s *Service) Update(ctx context.Context, owner, id string, in UpdateInput, ifMatch string) (*models.Memo, error) {
	if err := in.validate(s.cfg.EmbeddingDim); err != nil {
		return nil, err
	}

	m, err := s.store.GetMemo(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && !checksum.MatchETag(ifMatch, Version(m)) {
		return nil, apperr.ErrConflict
	}

	reembed := false
	textChanged := false
	if in.Transcription != nil && *in.Transcription != m.Transcription {
		m.Transcription = *in.Transcription
		textChanged = true
	}
	if in.Summary != nil {
		m.Summary = *in.Summary
	}
	if in.Tags != nil {
		m.Tags = *in.Tags
	}
	switch {
	case in.Embedding != nil:
		if !slices.Equal(*in.Embedding, m.Embedding) {
			m.Embedding = *in.Embedding
			reembed = true
		}
	case textChanged && s.enr.CanEmbed():
		reembed = s.embed(ctx, m)
	}
	m.UpdatedAt = s.now().UTC()

	if err := s.store.UpdateMemo(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info("memoservice: memo updated", slog.String("id", id), slog.Bool("reembedded", reembed))

	s.events.PublishMemoEvent(owner, sse.MemoUpdated, id)
	if reembed {
		s.links.OnItemCreatedOrReembedded(*m)
	}
	return present(m), nil
}

// Delete soft-deletes a memo and schedules its removal from related lists.
func (s *Service) Delete(ctx context.Context, owner, id string) error {
	if err := s.store.SoftDeleteMemo(ctx, owner, id, s.now().UTC()); err != nil {
		return err
	}
	s.logger.Info("memoservice: memo deleted", slog.String("id", id))
	s.events.PublishMemoEvent(owner, sse.MemoDeleted, id)
	s.links.OnItemDeleted(id)
	return nil
}

// Related resolves a memo's related list. Missing or deleted ids are skipped.
func (s *Service) Related(ctx context.Context, owner, id string) ([]models.Memo, error) {
	m, err := s.store.GetMemo(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if len(m.RelatedIDs) == 0 {
		return []models.Memo{}, nil
	}
	memos, err := s.store.FetchByIDs(ctx, m.RelatedIDs)
	if err != nil {
		return nil, err
	}
	out := ownedBy(memos, owner)
	for i := range out {
		brief(&out[i])
	}
	return out, nil
}

// Ready reports whether the backing store is reachable.
func (s *Service) Ready(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("memoservice: ping store: %w", err)
	}
	return nil
}

func ownedBy(memos []models.Memo, owner string) []models.Memo {
	out := make([]models.Memo, 0, len(memos))
	for i := range memos {
		if memos[i].OwnerID == owner {
			out = append(out, *present(&memos[i]))
		}
	}
	return out
}

// brief prepares a memo for collection responses, which omit the vector.
func brief(m *models.Memo) *models.Memo {
	m.Embedding = nil
	return present(m)
}

// present replaces nil slices so they encode as [].
func present(m *models.Memo) *models.Memo {
	if m.Tags == nil {
		m.Tags = []string{}
	}
	if m.RelatedIDs == nil {
		m.RelatedIDs = []string{}
	}
	return m
}
