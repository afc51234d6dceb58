package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MikeSquared-Agency/reckon/internal/api"
	"github.com/MikeSquared-Agency/reckon/internal/config"
	"github.com/MikeSquared-Agency/reckon/internal/extractor"
	"github.com/MikeSquared-Agency/reckon/internal/hermes"
	"github.com/MikeSquared-Agency/reckon/internal/llm"
	"github.com/MikeSquared-Agency/reckon/internal/processor"
	"github.com/MikeSquared-Agency/reckon/internal/reconcile"
	"github.com/MikeSquared-Agency/reckon/internal/scheduler"
	"github.com/MikeSquared-Agency/reckon/internal/slack"
	"github.com/MikeSquared-Agency/reckon/internal/store"
	"github.com/MikeSquared-Agency/reckon/internal/tracker"
	"github.com/MikeSquared-Agency/reckon/internal/workflow"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)
	logger := slog.Default()

	logger.Info("reckon starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid RECKON_TIMEZONE", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	// Database
	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database connected")

	// LLM providers
	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		logger.Error("failed to configure llm providers", "error", err)
		os.Exit(1)
	}
	if len(registry.Names()) == 0 {
		logger.Warn("no llm providers configured, extraction will find nothing")
	} else {
		logger.Info("llm providers ready", "providers", registry.Names(), "default", registry.Default(), "fallback", cfg.FallbackOrder)
	}

	// Issue tracker (optional: runs report "not configured" without it)
	var tc tracker.Client
	plane, err := tracker.NewPlane(cfg.PlaneURL, cfg.PlaneAPIKey, cfg.PlaneWorkspace, cfg.TrackerRPS, logger)
	switch {
	case errors.Is(err, tracker.ErrNotConfigured):
		logger.Warn("issue tracker not configured")
	case err != nil:
		logger.Error("failed to configure issue tracker", "error", err)
		os.Exit(1)
	default:
		tc = plane
		logger.Info("issue tracker ready", "url", cfg.PlaneURL, "workspace", cfg.PlaneWorkspace)
	}

	// Reconciliation
	ext := extractor.New(registry, cfg.FallbackOrder, logger)
	engine := reconcile.NewEngine(db, db, ext, tc, loc, logger)
	executor := reconcile.NewExecutor(tc, db, logger)
	machine := workflow.NewMachine(engine, executor, cfg.JournalUserID, loc, logger)

	// NATS/Hermes
	hermesClient, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
	if err != nil {
		logger.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer hermesClient.Close()
	logger.Info("NATS connected", "url", cfg.NatsURL)

	// Slack poster (optional: without it replies are only returned over the API)
	var poster processor.Poster
	if cfg.SlackBotToken != "" {
		poster = slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, logger)
		logger.Info("slack poster ready", "channel", cfg.SlackChannel)
	} else {
		logger.Warn("slack not configured, replies will not be posted")
	}

	proc := processor.New(processor.Deps{
		Machine:  machine,
		States:   db,
		Poster:   poster,
		Runs:     db,
		Bus:      hermesClient,
		Messages: db,
		Channel:  cfg.SlackChannel,
	}, logger)

	if err := hermesClient.Subscribe(hermes.SubjectInteraction, proc.HandleInteraction); err != nil {
		logger.Error("failed to subscribe to interactions", "error", err)
		os.Exit(1)
	}

	// Daily run
	sched := scheduler.New(loc, logger)
	if err := sched.Add("reckon", cfg.Schedule, func(ctx context.Context) error {
		_, err := proc.StartRun(ctx, "")
		return err
	}); err != nil {
		logger.Error("failed to schedule run", "error", err)
		os.Exit(1)
	}
	sched.Start(ctx)
	defer sched.Stop()

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, api.Deps{
		Runs:    proc,
		LLM:     registry,
		NextRun: sched.Next,
	}, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	// Announce registration
	if err := hermesClient.Publish(hermes.SubjectRegistered, map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"port":      cfg.Port,
		"providers": registry.Names(),
	}); err != nil {
		logger.Warn("failed to publish registration", "error", err)
	}

	logger.Info("reckon ready", "port", cfg.Port, "schedule", cfg.Schedule, "timezone", cfg.Timezone)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown", "error", err)
	}
	cancel()
	logger.Info("reckon stopped")
}

// buildRegistry registers every configured provider behind a circuit
// breaker. The providers file wins over the *_API_KEY variables.
func buildRegistry(cfg config.Config, logger *slog.Logger) (*llm.Registry, error) {
	entries := cfg.EnvProviders()
	if cfg.ProvidersFile != "" {
		fromFile, err := config.LoadProviders(cfg.ProvidersFile)
		if err != nil {
			return nil, err
		}
		entries = fromFile
	}

	registry := llm.NewRegistry()
	for _, e := range entries {
		if e.APIKey == "" {
			logger.Warn("provider has no api key, skipping", "provider", e.Name)
			continue
		}
		p, err := llm.NewProvider(e.Kind, e.Name, e.ProviderConfig, logger)
		if err != nil {
			return nil, err
		}
		registry.Register(e.Name, llm.NewBreakerProvider(p, e.Breaker, logger), e.Default)
	}
	return registry, nil
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
