package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/appforge/internal/aiclient"
	"github.com/appforge/internal/api"
	"github.com/appforge/internal/apps"
	"github.com/appforge/internal/config"
	"github.com/appforge/internal/database"
	"github.com/appforge/internal/export"
	"github.com/appforge/internal/generator"
	"github.com/appforge/internal/jobqueue"
	"github.com/appforge/internal/logging"
	"github.com/appforge/internal/planner"
	"github.com/appforge/internal/secscan"
	"github.com/appforge/internal/sessions"
	"github.com/appforge/internal/templates"
)

// APICommand returns the CLI command for starting the API server
func APICommand() *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Start the AppForge API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the API server (overrides config)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (trace, debug, info, warn, error)",
				Value: "info",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Human-readable console logs instead of JSON",
			},
		},
		Action: runAPI,
	}
}

func runAPI(c *cli.Context) error {
	logging.Setup(c.String("log-level"), c.Bool("pretty"))

	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	port := cfg.Server.Port
	if c.Int("port") != 0 {
		port = c.Int("port")
	}

	ctx := context.Background()

	db, err := database.NewDB(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	pool, err := database.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	store := sessions.NewStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	appStore := apps.NewStore(pool)
	if err := appStore.EnsureSchema(ctx); err != nil {
		return err
	}

	registry := templates.NewRegistry()
	client := aiclient.NewClient(cfg.Providers)
	orchestrator := generator.NewOrchestrator(registry, client, generator.Defaults{
		Provider:    aiclient.Provider(cfg.Generation.DefaultProvider),
		Temperature: cfg.Generation.Temperature,
		MaxTokens:   cfg.Generation.MaxTokens,
	})
	executor := planner.NewExecutor(orchestrator, cfg.Generation.PhasesPerSecond)

	hub := sessions.NewHub()
	runner := sessions.NewRunner(store, hub, orchestrator, executor)

	scanner, err := secscan.NewScanner()
	if err != nil {
		return fmt.Errorf("failed to create secret scanner: %w", err)
	}

	exporter, err := export.NewGitLabExporter(export.GitLabConfig{
		URL:   cfg.Export.GitLabURL,
		Token: cfg.Export.GitLabToken,
	})
	if err != nil {
		return fmt.Errorf("failed to create exporter: %w", err)
	}

	queue, err := jobqueue.NewJobQueue(pool, store, cfg.Cleanup.RetentionDays)
	if err != nil {
		return fmt.Errorf("failed to create job queue: %w", err)
	}
	if err := queue.Start(ctx); err != nil {
		return fmt.Errorf("failed to start job queue: %w", err)
	}
	defer queue.Stop(ctx)

	log.Info().
		Int("port", port).
		Strs("providers", providerNames(client)).
		Msg("Starting AppForge API server")

	server := api.NewServer(api.Deps{
		Port:         port,
		JWTSecret:    cfg.Server.JWTSecret,
		Registry:     registry,
		Client:       client,
		Orchestrator: orchestrator,
		Store:        store,
		Hub:          hub,
		Runner:       runner,
		Apps:         appStore,
		Scanner:      scanner,
		Exporter:     exporter,
	})
	return server.Start()
}

func providerNames(client *aiclient.Client) []string {
	var names []string
	for _, p := range client.AvailableProviders() {
		names = append(names, string(p))
	}
	return names
}
