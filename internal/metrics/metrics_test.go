package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/echolog/internal/linker"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestObserver_CountsOutcomes(t *testing.T) {
	c := New()
	c.TaskQueued(linker.KindRelink)
	c.TaskQueued(linker.KindRelink)
	c.TaskDropped(linker.KindCleanup, "x")
	c.TaskDone(linker.Task{Kind: linker.KindRelink, ID: "a"}, []linker.Neighbor{{ID: "b"}, {ID: "c"}}, time.Millisecond, nil)
	c.TaskDone(linker.Task{Kind: linker.KindRelink, ID: "d"}, nil, time.Millisecond, errors.New("boom"))

	out := scrape(t, c)
	for _, want := range []string{
		`echolog_link_tasks_total{kind="relink",outcome="queued"} 2`,
		`echolog_link_tasks_total{kind="cleanup",outcome="dropped"} 1`,
		`echolog_link_tasks_total{kind="relink",outcome="succeeded"} 1`,
		`echolog_link_tasks_total{kind="relink",outcome="failed"} 1`,
		`echolog_related_list_size_sum 2`,
		`echolog_related_list_size_count 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	c := New()
	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/api/memos/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/memos/"+id, nil))
	}

	out := scrape(t, c)
	want := `echolog_http_requests_total{method="GET",route="/api/memos/{id}",status="404"} 2`
	if !strings.Contains(out, want) {
		t.Errorf("scrape missing %q", want)
	}
}

func TestRegisterGauge(t *testing.T) {
	c := New()
	c.RegisterGauge("cache_entries", "Entries in the enrichment cache", func() float64 { return 7 })
	if out := scrape(t, c); !strings.Contains(out, "echolog_cache_entries 7") {
		t.Error("gauge not exported")
	}
}
