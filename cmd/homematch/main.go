package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hearthside/homematch/internal/api"
	"github.com/hearthside/homematch/internal/config"
	"github.com/hearthside/homematch/internal/criteria"
	"github.com/hearthside/homematch/internal/events"
	"github.com/hearthside/homematch/internal/explain"
	"github.com/hearthside/homematch/internal/learning"
	"github.com/hearthside/homematch/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Criteria load is fail-closed: a malformed decision model must never
	// degrade into silent default scoring.
	crit, err := criteria.Load(cfg.Scoring.CriteriaPath)
	if err != nil {
		logger.Error("failed to load criteria", "path", cfg.Scoring.CriteriaPath, "error", err)
		os.Exit(1)
	}
	logger.Info("criteria loaded", "mode", crit.Mode, "criteria", len(crit.Criteria))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := store.NewPostgresStore(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	// Events (optional)
	var eventsClient events.Client
	if cfg.Events.URL != "" {
		ec, err := events.NewNATSClient(ctx, cfg.Events.URL, cfg.EventRetention(), logger)
		if err != nil {
			logger.Warn("failed to connect to event bus, running without events", "error", err)
		} else {
			eventsClient = ec
			defer ec.Close()
			logger.Info("connected to event bus")
		}
	}

	// Enrichment (optional)
	var enricher *explain.Enricher
	if cfg.Enrichment.Enabled {
		primary, err := explain.NewGeminiProvider(ctx, cfg.Enrichment.APIKey, cfg.Enrichment.Model)
		if err != nil {
			logger.Warn("failed to init enrichment provider, running without enrichment", "error", err)
		} else {
			var fallback explain.Provider
			if cfg.Enrichment.FallbackURL != "" {
				fallback = explain.NewHTTPProvider(cfg.Enrichment.FallbackURL, cfg.Enrichment.FallbackToken)
			}
			enricher = explain.NewEnricher(primary, fallback, cfg.EnrichmentTimeout(), cfg.Enrichment.TopN, logger)
			logger.Info("enrichment enabled", "model", cfg.Enrichment.Model, "top_n", cfg.Enrichment.TopN)
		}
	}

	// Learning
	learner := learning.NewLearner(db, learning.Params{
		MinLikes:    cfg.Learning.MinLikes,
		MinDislikes: cfg.Learning.MinDislikes,
		TopK:        cfg.Learning.TopK,
		Delta:       cfg.Learning.Delta,
	}, logger)

	worker := learning.NewWorker(db, learner, eventsClient, cfg.RecomputeInterval(), logger)
	worker.Start(ctx)
	defer worker.Stop()
	worker.SetupSubscriptions(ctx)
	logger.Info("recompute worker started", "interval", cfg.RecomputeInterval())

	// API server
	router := api.NewRouter(db, eventsClient, crit, enricher, learner, cfg, logger)
	apiServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Metrics server
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: api.NewMetricsRouter(),
	}

	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("API server error", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}
