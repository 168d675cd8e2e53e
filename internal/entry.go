// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/echolog/internal/api"
	"github.com/starford/echolog/internal/auth"
	"github.com/starford/echolog/internal/cache"
	"github.com/starford/echolog/internal/enrich"
	"github.com/starford/echolog/internal/linker"
	"github.com/starford/echolog/internal/memoservice"
	"github.com/starford/echolog/internal/metrics"
	"github.com/starford/echolog/internal/sse"
	"github.com/starford/echolog/internal/store"
	pkgconfig "github.com/starford/echolog/pkg/config"
)

// components is the object graph shared by every entry point.
type components struct {
	db         *store.DB
	cache      *cache.TTL
	enricher   *enrich.Enricher
	linker     *linker.Linker
	dispatcher *linker.Dispatcher
	metrics    *metrics.Collector
	broker     *sse.Broker
	service    *memoservice.Service
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// logger initializes the structured JSON logger and makes it the default.
func (a *application) logger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

func buildComponents(cfg *Config, logger *slog.Logger) (*components, error) {
	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	c := &components{db: db, metrics: metrics.New()}
	c.cache = cache.NewTTL(cfg.Cache.TTL)

	enrichOpts := []enrich.Option{enrich.WithCache(c.cache)}
	if cfg.OpenAI.Enabled() {
		oa := enrich.NewOpenAI(enrich.OpenAIConfig{
			APIKey:         cfg.OpenAI.APIKey,
			BaseURL:        cfg.OpenAI.BaseURL,
			ChatModel:      cfg.OpenAI.ChatModel,
			EmbeddingModel: cfg.OpenAI.EmbeddingModel,
			Timeout:        cfg.OpenAI.Timeout,
		})
		enrichOpts = append(enrichOpts, enrich.WithCompleter(oa))
		if cfg.OpenAI.Embeddings {
			enrichOpts = append(enrichOpts, enrich.WithEmbedder(oa))
		}
	}
	c.enricher = enrich.New(logger, enrichOpts...)

	c.broker = sse.NewBroker(cfg.SSE.GraphThrottle)
	c.linker = linker.New(db, cfg.Linking.Params(), logger)
	c.dispatcher = linker.NewDispatcher(c.linker, cfg.Linking.Dispatcher(),
		linker.Observers(c.metrics, c.broker), logger)
	c.metrics.RegisterGauge("link_queue_depth", "Linking tasks waiting for a worker",
		func() float64 { return float64(c.dispatcher.Pending()) })
	c.metrics.RegisterGauge("sse_clients", "Connected live event clients",
		func() float64 { return float64(c.broker.ClientCount()) })
	c.metrics.RegisterGauge("generation_cache_entries", "Cached generation results",
		func() float64 { return float64(c.cache.Len()) })

	c.service = memoservice.New(db, c.enricher, memoservice.Config{
		EmbeddingDim:      cfg.Linking.EmbeddingDim,
		GraphMaxItems:     cfg.Graph.MaxItems,
		DefaultEdgeWeight: cfg.Graph.DefaultEdgeWeight,
		UseLiveScores:     cfg.Graph.UseLiveScores,
	},
		memoservice.WithLinking(c.dispatcher),
		memoservice.WithPublisher(c.broker),
		memoservice.WithLogger(logger),
	)
	c.service.SetLayoutParams(cfg.Layout.Params())

	return c, nil
}

func (c *components) close() {
	c.broker.Close()
	_ = c.db.Close()
}

// applyReload pushes the hot-reloadable sections into running components.
func (c *components) applyReload(cfg *Config, logger *slog.Logger) {
	c.linker.SetParams(cfg.Linking.Params())
	c.service.SetLayoutParams(cfg.Layout.Params())
	logger.Info("config: reloaded",
		slog.Float64("threshold", cfg.Linking.Threshold),
		slog.Int("max_neighbors", cfg.Linking.MaxNeighbors),
		slog.Int("layout_iterations", cfg.Layout.Iterations))
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (c *components) router(cfg *Config) (http.Handler, error) {
	authn, err := auth.New(cfg.Auth.Authenticator())
	if err != nil {
		return nil, fmt.Errorf("init auth: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(c.metrics.Middleware)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := c.service.Ready(r.Context()); err != nil {
			slog.Error("health: store not ready", slog.String("error", err.Error()))
			writeStatus(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Handle("/metrics", c.metrics.Handler())

	r.Mount("/api", api.NewRouter(c.service, authn, c.broker))
	return r, nil
}

// Run starts the HTTP server and background workers with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.Bool("model_backed", cfg.OpenAI.Enabled()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c, err := buildComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer c.close()

	handler, err := c.router(cfg)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.dispatcher.Run(gCtx)
	})

	g.Go(func() error {
		return c.cache.RunSweeper(gCtx, cfg.Cache.SweepInterval, logger)
	})

	if app.configPath != "" {
		g.Go(func() error {
			err := pkgconfig.Watch(gCtx, app.configPath, pkgconfig.DefaultDebounce, NewDefaultConfig,
				func(next *Config) { c.applyReload(next, logger) }, logger)
			if err != nil {
				// Reload is optional; the server keeps running on the startup config.
				logger.Warn("config watcher disabled", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Event streams only end when their channels close.
		c.broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group context so background workers stop once the
// HTTP server is down.
var errShutdown = errors.New("shutdown")
