package internal

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/starford/echolog/internal/mcpserver"
)

// RunMCP serves the MCP tool surface over stdio as the configured default
// owner. Logs must not go to stdout in this mode; pass WithLogOutput.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger()

	c, err := buildComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer c.close()

	ctx, cancel := context.WithCancel(ctx)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.dispatcher.Run(gCtx)
	})

	logger.Info("mcp: serving on stdio", slog.String("owner", cfg.Auth.DefaultOwner))
	serveErr := mcpserver.New(c.service, cfg.Auth.DefaultOwner).ServeStdio()

	// Let queued linking work finish before the store closes.
	cancel()
	if err := g.Wait(); err != nil {
		return err
	}
	if serveErr != nil {
		return fmt.Errorf("mcp: serve: %w", serveErr)
	}
	return nil
}

// Relink recomputes related lists for one owner, or for every owner when
// owner is empty. Individual memo failures are logged and counted.
func Relink(ctx context.Context, owner string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.logger()

	c, err := buildComponents(app.config, logger)
	if err != nil {
		return err
	}
	defer c.close()

	owners := []string{owner}
	if owner == "" {
		owners, err = c.db.Owners(ctx)
		if err != nil {
			return fmt.Errorf("relink: list owners: %w", err)
		}
	}

	var total, failed int
	for _, o := range owners {
		n, f, err := c.linker.RelinkOwner(ctx, o)
		total += n
		failed += f
		if err != nil {
			return fmt.Errorf("relink: owner %s: %w", o, err)
		}
		logger.Info("relink: owner done",
			slog.String("owner", o),
			slog.Int("relinked", n),
			slog.Int("failed", f))
	}

	logger.Info("relink: finished",
		slog.Int("owners", len(owners)),
		slog.Int("relinked", total),
		slog.Int("failed", failed))
	if failed > 0 {
		return fmt.Errorf("relink: %d memos failed", failed)
	}
	return nil
}
