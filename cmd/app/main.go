package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/echolog/internal"
	pkgconfig "github.com/starford/echolog/pkg/config"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}
}

func loadConfig(cmd *cli.Command) (*internal.Config, string, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(configPath, cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, configPath, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, configPath, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}
	if cmd.Bool("watch") {
		opts = append(opts, internal.WithConfigPath(configPath))
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// Stdout carries the MCP protocol.
	return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
}

func relink(ctx context.Context, cmd *cli.Command) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.Relink(ctx, cmd.String("owner"), internal.WithConfig(cfg))
}

func main() {
	cmd := &cli.Command{
		Name:  "echolog",
		Usage: "Voice memo store that links related memos by embedding similarity and draws them as a graph",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, live events and background linking",
				Action: serve,
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "watch",
						Usage: "Reload linking and layout settings when the config file changes",
						Value: true,
					},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve memo tools to an MCP client over stdio",
				Action: serveMCP,
				Flags:  []cli.Flag{configFlag()},
			},
			{
				Name:   "relink",
				Usage:  "Recompute related memo lists from stored embeddings",
				Action: relink,
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "owner",
						Usage: "Only relink memos of this owner (default: every owner)",
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
