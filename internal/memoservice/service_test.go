package memoservice

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/echolog/internal/apperr"
	"github.com/starford/echolog/internal/checksum"
	"github.com/starford/echolog/internal/enrich"
	"github.com/starford/echolog/internal/graph"
	"github.com/starford/echolog/internal/models"
	"github.com/starford/echolog/internal/sse"
	"github.com/starford/echolog/internal/store"
	"github.com/starford/echolog/internal/testutil"
)

type recorder struct {
	mu       sync.Mutex
	relinked []string
	deleted  []string
	events   []string
}

func (r *recorder) OnItemCreatedOrReembedded(m models.Memo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.relinked = append(r.relinked, m.ID)
}

func (r *recorder) OnItemDeleted(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, id)
}

func (r *recorder) PublishMemoEvent(owner, kind, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, owner+" "+kind+" "+id)
}

type fixedEmbedder struct{ v []float32 }

func (f fixedEmbedder) Embed(context.Context, string) ([]float32, error) { return f.v, nil }

// tickingClock returns a clock that advances one second per call.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

type env struct {
	db  *store.DB
	svc *Service
	rec *recorder
}

func newEnv(t *testing.T, cfg Config, enrOpts ...enrich.Option) env {
	t.Helper()
	db := testutil.TestDB(t)
	rec := &recorder{}
	svc := New(db, enrich.New(testutil.Logger(), enrOpts...), cfg,
		WithLinking(rec),
		WithPublisher(rec),
		WithLogger(testutil.Logger()),
		WithClock(tickingClock()),
	)
	return env{db: db, svc: svc, rec: rec}
}

func mustCreate(t *testing.T, svc *Service, owner string, in CreateInput) *models.Memo {
	t.Helper()
	m, err := svc.Create(context.Background(), owner, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return m
}

func TestCreate_FillsGeneratedFields(t *testing.T) {
	e := newEnv(t, Config{})
	m := mustCreate(t, e.svc, "alice", CreateInput{Transcription: "買い物リスト。牛乳と卵を買う"})

	if !ValidID(m.ID) {
		t.Errorf("ID %q is not a UUID", m.ID)
	}
	if m.Summary != "買い物リスト" {
		t.Errorf("Summary = %q", m.Summary)
	}
	if len(m.Tags) == 0 || len(m.Tags) > 5 {
		t.Errorf("Tags = %v, want 1..5 generated tags", m.Tags)
	}
	if len(m.RelatedIDs) != 0 || m.RelatedIDs == nil {
		t.Errorf("RelatedIDs = %#v, want empty non-nil", m.RelatedIDs)
	}
	if len(e.rec.events) != 1 || e.rec.events[0] != "alice "+sse.MemoCreated+" "+m.ID {
		t.Errorf("events = %v", e.rec.events)
	}
	if len(e.rec.relinked) != 1 {
		t.Errorf("relink notifications = %v", e.rec.relinked)
	}

	got, err := e.svc.Get(context.Background(), "alice", m.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Summary != m.Summary || got.Transcription != m.Transcription {
		t.Errorf("stored memo = %+v", got)
	}
}

func TestCreate_KeepsProvidedFields(t *testing.T) {
	e := newEnv(t, Config{EmbeddingDim: 3})
	m := mustCreate(t, e.svc, "alice", CreateInput{
		AudioURL:      "https://example.com/a.m4a",
		Transcription: "meeting notes",
		Summary:       "Weekly sync",
		Tags:          []string{"work"},
		Embedding:     []float32{1, 0, 0},
	})
	if m.Summary != "Weekly sync" || len(m.Tags) != 1 || m.Tags[0] != "work" {
		t.Errorf("memo = %+v", m)
	}
	if !m.HasEmbedding() {
		t.Error("embedding dropped")
	}
}

func TestCreate_Validation(t *testing.T) {
	e := newEnv(t, Config{EmbeddingDim: 3})
	ctx := context.Background()

	cases := map[string]CreateInput{
		"empty transcription": {Transcription: "   "},
		"too many tags":       {Transcription: "x", Tags: strings.Split("a,b,c,d,e,f,g,h,i,j,k", ",")},
		"blank tag":           {Transcription: "x", Tags: []string{"ok", ""}},
		"wrong dimension":     {Transcription: "x", Embedding: []float32{1, 2}},
	}
	for name, in := range cases {
		if _, err := e.svc.Create(ctx, "alice", in); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("%s: err = %v, want ErrInvalidInput", name, err)
		}
	}
	if len(e.rec.events) != 0 || len(e.rec.relinked) != 0 {
		t.Errorf("rejected input must not notify: %v %v", e.rec.events, e.rec.relinked)
	}
}

func TestCreate_UsesEmbedder(t *testing.T) {
	e := newEnv(t, Config{EmbeddingDim: 3}, enrich.WithEmbedder(fixedEmbedder{v: []float32{0, 1, 0}}))
	m := mustCreate(t, e.svc, "alice", CreateInput{Transcription: "hello"})
	if len(m.Embedding) != 3 || m.Embedding[1] != 1 {
		t.Errorf("Embedding = %v", m.Embedding)
	}
}

func TestCreate_IgnoresEmbeddingOfWrongDimension(t *testing.T) {
	e := newEnv(t, Config{EmbeddingDim: 3}, enrich.WithEmbedder(fixedEmbedder{v: []float32{1}}))
	m := mustCreate(t, e.svc, "alice", CreateInput{Transcription: "hello"})
	if m.HasEmbedding() {
		t.Errorf("Embedding = %v, want none", m.Embedding)
	}
}

func TestGet_ScopedToOwner(t *testing.T) {
	e := newEnv(t, Config{})
	m := mustCreate(t, e.svc, "alice", CreateInput{Transcription: "secret"})
	if _, err := e.svc.Get(context.Background(), "bob", m.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestList_Pagination(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()
	var ids []string
	for _, text := range []string{"one", "two", "three"} {
		ids = append(ids, mustCreate(t, e.svc, "alice", CreateInput{Transcription: text}).ID)
	}

	page, err := e.svc.List(ctx, "alice", 2, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Data) != 2 || page.Data[0].ID != ids[2] || page.Data[1].ID != ids[1] {
		t.Errorf("page 1 = %v, want newest first", page.Data)
	}
	if page.Pagination != (Pagination{Total: 3, Skip: 0, Limit: 2, HasMore: true}) {
		t.Errorf("pagination = %+v", page.Pagination)
	}

	page, err = e.svc.List(ctx, "alice", 2, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Data) != 1 || page.Pagination.HasMore {
		t.Errorf("page 2 = %+v", page)
	}

	page, err = e.svc.List(ctx, "alice", 0, 0)
	if err != nil || page.Pagination.Limit != defaultListLimit {
		t.Errorf("default limit: %+v, %v", page, err)
	}

	for _, bad := range [][2]int{{101, 0}, {-1, 0}, {10, -1}} {
		if _, err := e.svc.List(ctx, "alice", bad[0], bad[1]); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("List(%d, %d) err = %v, want ErrInvalidInput", bad[0], bad[1], err)
		}
	}
}

func TestList_EmptyIsNotNil(t *testing.T) {
	e := newEnv(t, Config{})
	page, err := e.svc.List(context.Background(), "nobody", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if page.Data == nil {
		t.Error("Data is nil")
	}
}

func TestUpdate_IfMatch(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()
	m := mustCreate(t, e.svc, "alice", CreateInput{Transcription: "draft", Summary: "v1"})

	v2 := "v2"
	if _, err := e.svc.Update(ctx, "alice", m.ID, UpdateInput{Summary: &v2}, `"stale"`); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("stale If-Match: err = %v, want ErrConflict", err)
	}

	updated, err := e.svc.Update(ctx, "alice", m.ID, UpdateInput{Summary: &v2}, checksum.ETag(Version(m)))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Summary != "v2" {
		t.Errorf("Summary = %q", updated.Summary)
	}
	if Version(updated) == Version(m) {
		t.Error("version did not change")
	}

	// The old version no longer matches.
	v3 := "v3"
	if _, err := e.svc.Update(ctx, "alice", m.ID, UpdateInput{Summary: &v3}, checksum.ETag(Version(m))); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("reused If-Match: err = %v, want ErrConflict", err)
	}

	got, _ := e.svc.Get(ctx, "alice", m.ID)
	if Version(got) != Version(updated) {
		t.Error("stored version differs from returned version")
	}
	if len(e.rec.relinked) != 1 {
		t.Errorf("summary change must not relink: %v", e.rec.relinked)
	}
}

func TestUpdate_NewEmbeddingRelinks(t *testing.T) {
	e := newEnv(t, Config{EmbeddingDim: 2})
	ctx := context.Background()
	m := mustCreate(t, e.svc, "alice", CreateInput{Transcription: "x", Embedding: []float32{1, 0}})

	same := []float32{1, 0}
	if _, err := e.svc.Update(ctx, "alice", m.ID, UpdateInput{Embedding: &same}, ""); err != nil {
		t.Fatal(err)
	}
	if len(e.rec.relinked) != 1 {
		t.Errorf("unchanged embedding relinked: %v", e.rec.relinked)
	}

	next := []float32{0, 1}
	if _, err := e.svc.Update(ctx, "alice", m.ID, UpdateInput{Embedding: &next}, ""); err != nil {
		t.Fatal(err)
	}
	if len(e.rec.relinked) != 2 {
		t.Errorf("changed embedding not relinked: %v", e.rec.relinked)
	}

	bad := []float32{1, 2, 3}
	if _, err := e.svc.Update(ctx, "alice", m.ID, UpdateInput{Embedding: &bad}, ""); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestUpdate_TranscriptionReembeds(t *testing.T) {
	e := newEnv(t, Config{}, enrich.WithEmbedder(fixedEmbedder{v: []float32{0.5, 0.5}}))
	ctx := context.Background()
	m := mustCreate(t, e.svc, "alice", CreateInput{Transcription: "before"})

	text := "after"
	got, err := e.svc.Update(ctx, "alice", m.ID, UpdateInput{Transcription: &text}, "")
	if err != nil {
		t.Fatal(err)
	}
	if got.Transcription != "after" || len(e.rec.relinked) != 2 {
		t.Errorf("transcription update: %+v, relinked %v", got, e.rec.relinked)
	}

	empty := ""
	if _, err := e.svc.Update(ctx, "alice", m.ID, UpdateInput{Transcription: &empty}, ""); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestUpdate_RejectsBlankTags(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()
	m := mustCreate(t, e.svc, "alice", CreateInput{Transcription: "x", Tags: []string{"work"}})

	blank := []string{"work", ""}
	if _, err := e.svc.Update(ctx, "alice", m.ID, UpdateInput{Tags: &blank}, ""); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("blank tag err = %v, want ErrInvalidInput", err)
	}
	tooMany := make([]string, maxTags+1)
	for i := range tooMany {
		tooMany[i] = fmt.Sprintf("t%d", i)
	}
	if _, err := e.svc.Update(ctx, "alice", m.ID, UpdateInput{Tags: &tooMany}, ""); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("too many tags err = %v, want ErrInvalidInput", err)
	}

	got, err := e.svc.Get(ctx, "alice", m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got.Tags, []string{"work"}) {
		t.Errorf("tags = %v after rejected updates", got.Tags)
	}

	cleared := []string{}
	if _, err := e.svc.Update(ctx, "alice", m.ID, UpdateInput{Tags: &cleared}, ""); err != nil {
		t.Errorf("clearing tags: %v", err)
	}
}

func TestCollections_OmitEmbedding(t *testing.T) {
	e := newEnv(t, Config{EmbeddingDim: 2})
	ctx := context.Background()
	a := mustCreate(t, e.svc, "alice", CreateInput{Transcription: "a", Embedding: []float32{1, 0}})
	b := mustCreate(t, e.svc, "alice", CreateInput{Transcription: "b", Embedding: []float32{1, 0.1}})
	if err := e.db.ReplaceRelated(ctx, a.ID, []string{b.ID}); err != nil {
		t.Fatal(err)
	}

	got, err := e.svc.Get(ctx, "alice", a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.HasEmbedding() {
		t.Error("single memo lost its embedding")
	}

	page, err := e.svc.List(ctx, "alice", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range page.Data {
		if m.HasEmbedding() {
			t.Errorf("list item %s carries embedding", m.ID)
		}
	}

	related, err := e.svc.Related(ctx, "alice", a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(related) != 1 || related[0].HasEmbedding() {
		t.Errorf("related = %+v, want one memo without embedding", related)
	}

	similar, err := e.svc.SearchSimilar(ctx, "alice", []float32{1, 0}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(similar) != 2 {
		t.Fatalf("similar = %d results, want 2", len(similar))
	}
	for _, m := range similar {
		if m.HasEmbedding() {
			t.Errorf("search result %s carries embedding", m.ID)
		}
	}
}

func TestUpdate_NotFound(t *testing.T) {
	e := newEnv(t, Config{})
	s := "x"
	if _, err := e.svc.Update(context.Background(), "alice", "missing", UpdateInput{Summary: &s}, ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()
	m := mustCreate(t, e.svc, "alice", CreateInput{Transcription: "bye"})

	if err := e.svc.Delete(ctx, "bob", m.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("foreign delete err = %v", err)
	}
	if err := e.svc.Delete(ctx, "alice", m.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := e.svc.Get(ctx, "alice", m.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get after delete: %v", err)
	}
	if len(e.rec.deleted) != 1 || e.rec.deleted[0] != m.ID {
		t.Errorf("cleanup notifications = %v", e.rec.deleted)
	}
	if last := e.rec.events[len(e.rec.events)-1]; last != "alice "+sse.MemoDeleted+" "+m.ID {
		t.Errorf("last event = %q", last)
	}
	if err := e.svc.Delete(ctx, "alice", m.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestRelated_SkipsMissingAndDeleted(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()
	a := mustCreate(t, e.svc, "alice", CreateInput{Transcription: "a"})
	b := mustCreate(t, e.svc, "alice", CreateInput{Transcription: "b"})
	c := mustCreate(t, e.svc, "alice", CreateInput{Transcription: "c"})

	if err := e.db.ReplaceRelated(ctx, a.ID, []string{c.ID, "missing", b.ID}); err != nil {
		t.Fatal(err)
	}
	if err := e.svc.Delete(ctx, "alice", b.ID); err != nil {
		t.Fatal(err)
	}

	related, err := e.svc.Related(ctx, "alice", a.ID)
	if err != nil {
		t.Fatalf("Related: %v", err)
	}
	if len(related) != 1 || related[0].ID != c.ID {
		t.Errorf("related = %v, want [%s]", related, c.ID)
	}

	none, err := e.svc.Related(ctx, "alice", c.ID)
	if err != nil || none == nil || len(none) != 0 {
		t.Errorf("Related(c) = %v, %v; want empty", none, err)
	}
	if _, err := e.svc.Related(ctx, "bob", a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("foreign related err = %v", err)
	}
}

func TestSearchText(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()
	m := mustCreate(t, e.svc, "alice", CreateInput{Transcription: "buy milk and eggs", Summary: "groceries"})
	mustCreate(t, e.svc, "alice", CreateInput{Transcription: "call the bank", Summary: "errands"})
	mustCreate(t, e.svc, "bob", CreateInput{Transcription: "milk for bob", Summary: "bob"})

	results, err := e.svc.SearchText(ctx, "alice", "milk", 0)
	if err != nil {
		t.Fatalf("SearchText: %v", err)
	}
	if len(results) != 1 || results[0].ID != m.ID {
		t.Errorf("results = %+v", results)
	}
	if _, err := e.svc.SearchText(ctx, "alice", " ", 0); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("empty query err = %v", err)
	}
}

func TestSearchSimilar(t *testing.T) {
	e := newEnv(t, Config{EmbeddingDim: 2})
	ctx := context.Background()
	exact := mustCreate(t, e.svc, "alice", CreateInput{Transcription: "a", Embedding: []float32{1, 0}})
	near := mustCreate(t, e.svc, "alice", CreateInput{Transcription: "b", Embedding: []float32{0.9, 0.2}})
	mustCreate(t, e.svc, "alice", CreateInput{Transcription: "c", Embedding: []float32{0, 1}})
	mustCreate(t, e.svc, "alice", CreateInput{Transcription: "d"})
	mustCreate(t, e.svc, "bob", CreateInput{Transcription: "e", Embedding: []float32{1, 0}})

	results, err := e.svc.SearchSimilar(ctx, "alice", []float32{1, 0}, 0)
	if err != nil {
		t.Fatalf("SearchSimilar: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ID != exact.ID || math.Abs(results[0].Similarity-1) > 1e-9 {
		t.Errorf("first = %s %.4f", results[0].ID, results[0].Similarity)
	}
	if results[1].ID != near.ID || results[1].Similarity <= similarityFloor {
		t.Errorf("second = %s %.4f", results[1].ID, results[1].Similarity)
	}

	limited, err := e.svc.SearchSimilar(ctx, "alice", []float32{1, 0}, 1)
	if err != nil || len(limited) != 1 {
		t.Errorf("limit 1: %v, %v", limited, err)
	}

	for name, call := range map[string]func() error{
		"empty":     func() error { _, err := e.svc.SearchSimilar(ctx, "alice", nil, 0); return err },
		"dimension": func() error { _, err := e.svc.SearchSimilar(ctx, "alice", []float32{1}, 0); return err },
		"limit":     func() error { _, err := e.svc.SearchSimilar(ctx, "alice", []float32{1, 0}, 51); return err },
	} {
		if err := call(); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("%s: err = %v, want ErrInvalidInput", name, err)
		}
	}
}

func TestGraph(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()
	a := mustCreate(t, e.svc, "alice", CreateInput{Transcription: "a", Tags: []string{"work"}})
	b := mustCreate(t, e.svc, "alice", CreateInput{Transcription: "b", Tags: []string{"work"}})
	c := mustCreate(t, e.svc, "alice", CreateInput{Transcription: "c", Tags: []string{"home"}})
	if err := e.db.ReplaceRelated(ctx, a.ID, []string{b.ID, c.ID}); err != nil {
		t.Fatal(err)
	}
	if err := e.db.ReplaceRelated(ctx, b.ID, []string{a.ID}); err != nil {
		t.Fatal(err)
	}

	g, err := e.svc.Graph(ctx, "alice", "", 0)
	if err != nil {
		t.Fatalf("Graph: %v", err)
	}
	if len(g.Nodes) != 3 || len(g.Edges) != 2 {
		t.Fatalf("graph = %d nodes, %d edges; want 3, 2", len(g.Nodes), len(g.Edges))
	}
	for _, edge := range g.Edges {
		if edge.Weight != graph.DefaultEdgeWeight {
			t.Errorf("edge %s weight = %v", edge.ID, edge.Weight)
		}
	}
	for _, n := range g.Nodes {
		if n.X == 0 && n.Y == 0 {
			t.Errorf("node %s was not placed", n.ID)
		}
	}

	work, err := e.svc.Graph(ctx, "alice", "work", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(work.Nodes) != 2 || len(work.Edges) != 1 {
		t.Errorf("tag graph = %d nodes, %d edges; want 2, 1", len(work.Nodes), len(work.Edges))
	}

	limited, err := e.svc.Graph(ctx, "alice", "", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited.Nodes) != 1 || limited.Nodes[0].ID != c.ID || len(limited.Edges) != 0 {
		t.Errorf("limited graph = %+v", limited)
	}
}

func TestGraph_LiveScores(t *testing.T) {
	e := newEnv(t, Config{UseLiveScores: true})
	ctx := context.Background()
	a := mustCreate(t, e.svc, "alice", CreateInput{Transcription: "a", Embedding: []float32{1, 0}})
	b := mustCreate(t, e.svc, "alice", CreateInput{Transcription: "b", Embedding: []float32{1, 1}})
	if err := e.db.ReplaceRelated(ctx, a.ID, []string{b.ID}); err != nil {
		t.Fatal(err)
	}

	g, err := e.svc.Graph(ctx, "alice", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Edges) != 1 || math.Abs(g.Edges[0].Weight-math.Sqrt2/2) > 1e-6 {
		t.Errorf("edges = %+v, want one edge weighted cos 45°", g.Edges)
	}
}

func TestSetLayoutParams(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()
	mustCreate(t, e.svc, "alice", CreateInput{Transcription: "only"})

	p := graph.DefaultLayoutParams()
	p.Iterations = 0
	p.CenterX, p.CenterY, p.Radius = 0, 0, 10
	e.svc.SetLayoutParams(p)
	if e.svc.LayoutParams() != p {
		t.Fatalf("LayoutParams = %+v", e.svc.LayoutParams())
	}

	g, err := e.svc.Graph(ctx, "alice", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if g.Nodes[0].X != 10 || g.Nodes[0].Y != 0 {
		t.Errorf("node at (%v, %v), want (10, 0)", g.Nodes[0].X, g.Nodes[0].Y)
	}
}

func TestSuggestions(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()
	a := mustCreate(t, e.svc, "alice", CreateInput{Transcription: "a", Tags: []string{"trip"}})
	b := mustCreate(t, e.svc, "alice", CreateInput{Transcription: "b", Tags: []string{"trip"}})
	foreign := mustCreate(t, e.svc, "bob", CreateInput{Transcription: "c", Tags: []string{"trip"}})

	got, err := e.svc.Suggestions(ctx, "alice", []string{a.ID, b.ID, foreign.ID, "missing"})
	if err != nil {
		t.Fatalf("Suggestions: %v", err)
	}
	if len(got) != 1 || got[0].ID != "tag-trip" {
		t.Fatalf("suggestions = %+v", got)
	}
	if len(got[0].RelatedMemoIDs) != 2 {
		t.Errorf("related = %v, want alice's two memos", got[0].RelatedMemoIDs)
	}

	none, err := e.svc.Suggestions(ctx, "alice", nil)
	if err != nil || none == nil || len(none) != 0 {
		t.Errorf("empty ids: %v, %v", none, err)
	}

	ids := make([]string, maxSuggestionMemos+1)
	if _, err := e.svc.Suggestions(ctx, "alice", ids); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestEnrichmentRequiresContent(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()
	if _, err := e.svc.Title(ctx, ""); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("Title err = %v", err)
	}
	if _, err := e.svc.Tags(ctx, " "); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("Tags err = %v", err)
	}
	if _, err := e.svc.DateTime(ctx, ""); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("DateTime err = %v", err)
	}
	title, err := e.svc.Title(ctx, "今日の予定。会議")
	if err != nil || title != "今日の予定" {
		t.Errorf("Title = %q, %v", title, err)
	}
}

func TestReady(t *testing.T) {
	e := newEnv(t, Config{})
	if err := e.svc.Ready(context.Background()); err != nil {
		t.Errorf("Ready: %v", err)
	}
}
