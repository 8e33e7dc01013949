// Package main is the entry point for the PXI service: it ingests the
// macro-financial indicator panel on a minute cadence, maintains rolling
// statistical baselines, folds them into the composite stress index and
// serves the result over a small read API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/pxi/internal/clients/alphavantage"
	"github.com/aristath/pxi/internal/clients/coingecko"
	"github.com/aristath/pxi/internal/clients/fred"
	"github.com/aristath/pxi/internal/clients/twelvedata"
	"github.com/aristath/pxi/internal/composite"
	"github.com/aristath/pxi/internal/config"
	"github.com/aristath/pxi/internal/database"
	"github.com/aristath/pxi/internal/providers"
	"github.com/aristath/pxi/internal/regime"
	"github.com/aristath/pxi/internal/scheduler"
	"github.com/aristath/pxi/internal/server"
	"github.com/aristath/pxi/internal/stats"
	"github.com/aristath/pxi/internal/store"
	"github.com/aristath/pxi/internal/technical"
	"github.com/aristath/pxi/internal/validation"
	"github.com/aristath/pxi/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: os.Getenv("LOG_PRETTY") == "true",
	})
	logger.SetGlobalLogger(log)

	// Database and repositories.
	dbCfg := database.DefaultConfig(cfg.DatabaseURL)
	dbCfg.MaxOpenConns = cfg.DBPoolMax
	dbCfg.MaxIdleConns = cfg.DBPoolMin
	db, err := database.New(dbCfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	st := store.New(db, log)

	// Provider clients and the fetch registry.
	fredClient := fred.NewClient(cfg.FREDAPIKey, log)
	cgClient := coingecko.NewClient(cfg.CoinGeckoBase, log)
	tdClient := twelvedata.NewClient(cfg.TwelveDataAPIKey, log)
	avClient := alphavantage.NewClient(cfg.AlphaVantageAPIKey, log)

	registry, err := providers.NewRegistry(fredClient, cgClient, tdClient, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build provider registry")
	}

	// Pipeline services.
	statsSvc := stats.NewService(st, cfg.WindowDays, cfg.OutlierZThreshold, log)
	compositeSvc := composite.NewService(st, cfg.MaxMetricContribution, log)
	regimeSvc := regime.NewService(st, log)
	technicalSvc := technical.NewService(avClient, st, log)
	validator := validation.New(log)

	sched := scheduler.New(scheduler.Config{
		IngestCron:   cfg.IngestCron,
		AlertEnabled: cfg.AlertEnabled,
		WebhookURL:   cfg.AlertWebhookURL,
		Registry:     registry,
		Validator:    validator,
		Stats:        statsSvc,
		Composite:    compositeSvc,
		Regime:       regimeSvc,
		Technical:    technicalSvc,
	}, log)

	// Seed the previous regime label so a transition across a restart still
	// fires the webhook.
	if row, err := st.Regimes.Latest(context.Background()); err != nil {
		log.Warn().Err(err).Msg("Could not seed previous regime")
	} else if row != nil {
		sched.State().SeedRegime(row.Regime)
	}

	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	srv := server.New(cfg, db, st, sched.State(), log)
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	log.Info().
		Int("indicators", registry.Count()).
		Str("ingest_cron", cfg.IngestCron).
		Int("window_days", cfg.WindowDays).
		Msg("PXI service started")

	// Wait for shutdown signal.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown failed")
	}
	log.Info().Msg("Shutdown complete")
}
