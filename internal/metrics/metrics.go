// Package metrics exposes Prometheus metrics for the HTTP surface and the
// background linker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/starford/echolog/internal/linker"
)

const namespace = "echolog"

// Collector holds the application's metrics in its own registry.
type Collector struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	linkTasks    *prometheus.CounterVec
	linkDuration *prometheus.HistogramVec
	relatedSize  prometheus.Histogram
}

// New creates a Collector with Go runtime and process collectors attached.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		linkTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_tasks_total",
			Help:      "Background linking tasks by kind and outcome",
		}, []string{"kind", "outcome"}),
		linkDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "link_task_duration_seconds",
			Help:      "Background linking task duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"kind"}),
		relatedSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "related_list_size",
			Help:      "Neighbours selected per relink",
			Buckets:   prometheus.LinearBuckets(0, 1, 11),
		}),
	}
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.httpRequests, c.httpDuration,
		c.linkTasks, c.linkDuration, c.relatedSize,
	)
	return c
}

// RegisterGauge exposes a value sampled at scrape time.
func (c *Collector) RegisterGauge(name, help string, fn func() float64) {
	c.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Middleware records request counts and latency by chi route pattern.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// TaskQueued implements linker.Observer.
func (c *Collector) TaskQueued(kind linker.TaskKind) {
	c.linkTasks.WithLabelValues(string(kind), "queued").Inc()
}

// TaskDropped implements linker.Observer.
func (c *Collector) TaskDropped(kind linker.TaskKind, _ string) {
	c.linkTasks.WithLabelValues(string(kind), "dropped").Inc()
}

// TaskDone implements linker.Observer.
func (c *Collector) TaskDone(t linker.Task, neighbors []linker.Neighbor, took time.Duration, err error) {
	outcome := "succeeded"
	if err != nil {
		outcome = "failed"
	}
	c.linkTasks.WithLabelValues(string(t.Kind), outcome).Inc()
	c.linkDuration.WithLabelValues(string(t.Kind)).Observe(took.Seconds())
	if t.Kind == linker.KindRelink && err == nil {
		c.relatedSize.Observe(float64(len(neighbors)))
	}
}

var _ linker.Observer = (*Collector)(nil)
