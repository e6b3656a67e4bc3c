// Stackprice - Personalization Pricing Engine
// Copyright 2026 Stackprice Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stackprice/stackprice

// Package main is the entry point for the Stackprice pricing server.
//
// Stackprice computes personalized prices by combining a prioritized business
// rule set, live market-demand signals, and cached behavioral predictions.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered Koanf v2 loading (defaults, YAML file, env vars)
//  2. Stores: rule source (memory or PostgreSQL), prediction cache and user
//     profiles (memory or Redis), audit store (memory or BadgerDB)
//  3. Rule snapshot store: initial load plus periodic supervised refresh
//  4. Pricing engine: rules, market data, enrichment, predictions
//  5. Audit logger: async fire-and-forget decision recording
//  6. HTTP server: Chi-routed REST API plus Prometheus metrics
//
// All long-running components run under a Suture supervisor tree, so a crash
// in the refresher or the HTTP server is restarted with backoff instead of
// taking the process down.
//
// # Standalone Mode
//
// With the default configuration no external services are required: rules and
// audit records live in memory and enrichment/predictions are disabled. Point
// STACKPRICE_RULES_SOURCE=postgres, STACKPRICE_ENRICHMENT_SOURCE=redis, etc.
// at real backends for production.
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server drains
// in-flight requests, the audit buffer is flushed to its store, and external
// connections are closed.
package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/stackprice/stackprice/internal/api"
	"github.com/stackprice/stackprice/internal/audit"
	"github.com/stackprice/stackprice/internal/config"
	"github.com/stackprice/stackprice/internal/logging"
	"github.com/stackprice/stackprice/internal/pricing"
	"github.com/stackprice/stackprice/internal/store"
	"github.com/stackprice/stackprice/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use the default logger for config errors (config not yet available).
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	logger := logging.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("Server exited with error")
	}
	logger.Info().Msg("Server stopped")
}

//nolint:gocyclo // Sequential component wiring
func run(ctx context.Context, cfg *config.Config) error {
	logger := logging.Logger()

	// Rule source.
	ruleSource, pgPool, err := buildRuleSource(ctx, cfg)
	if err != nil {
		return err
	}
	if pgPool != nil {
		defer pgPool.Close()
	}

	snapshots := pricing.NewSnapshotStore(ctx, ruleSource, cfg.Rules.RefreshTimeout, logger)
	market := pricing.NewMarketData(cfg.Market.Seed, logger)

	engine, err := pricing.NewEngine(cfg.Engine.Pricing(), snapshots, market, logger)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	// Context enrichment.
	if cfg.Enrichment.Source != "none" {
		enricher, closeFn, err := buildEnricher(cfg)
		if err != nil {
			return err
		}
		if closeFn != nil {
			defer closeFn()
		}
		engine.SetEnricher(enricher)
	}

	// Behavioral predictions.
	if cfg.Predictions.Source != "none" {
		predictions, closeFn, err := buildPredictionSource(cfg)
		if err != nil {
			return err
		}
		if closeFn != nil {
			defer closeFn()
		}
		engine.SetPredictionSource(predictions)
	}

	// Audit trail.
	var auditLogger *audit.Logger
	if cfg.Audit.Enabled {
		auditStore, err := buildAuditStore(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := auditStore.Close(); err != nil {
				logger.Warn().Err(err).Msg("Failed to close audit store")
			}
		}()

		auditLogger = audit.NewLogger(auditStore, &audit.Config{
			Enabled:         true,
			BufferSize:      cfg.Audit.BufferSize,
			WriteTimeout:    5 * time.Second,
			RetentionDays:   cfg.Audit.RetentionDays,
			CleanupInterval: cfg.Audit.CleanupInterval,
		})
		defer func() {
			if err := auditLogger.Close(); err != nil {
				logger.Warn().Err(err).Msg("Failed to flush audit logger")
			}
		}()

		auditLogger.StartCleanupRoutine(ctx)
		engine.SetAuditSink(auditLogger)
	}

	// HTTP surface.
	handler := api.NewHandler(engine, snapshots, auditLogger)
	mw := api.NewMiddleware(&api.MiddlewareConfig{
		CORSAllowedOrigins: cfg.Server.CORSOrigins,
		CORSAllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "Authorization"},
		CORSMaxAge:         86400,
		RateLimitRequests:  cfg.Server.RateLimitReqs,
		RateLimitWindow:    cfg.Server.RateLimitWindow,
	})
	routes := api.NewRouter(handler, mw).Setup()

	// Supervisor tree.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddDataService(pricing.NewRefresher(snapshots, cfg.Rules.RefreshInterval))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	tree.AddAPIService(supervisor.NewHTTPService(addr, routes, cfg.Server.Timeout))

	logger.Info().
		Str("addr", addr).
		Str("rules_source", cfg.Rules.Source).
		Str("enrichment_source", cfg.Enrichment.Source).
		Str("predictions_source", cfg.Predictions.Source).
		Bool("audit_enabled", cfg.Audit.Enabled).
		Msg("Stackprice starting")

	err = tree.Serve(ctx)

	if unstopped, reportErr := tree.UnstoppedServiceReport(); reportErr == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logger.Warn().Str("service", svc.Name).Msg("Service did not stop within timeout")
		}
	}
	return err
}

// buildRuleSource creates the configured rule source. The returned pool is
// non-nil only for the postgres source and must be closed by the caller.
func buildRuleSource(ctx context.Context, cfg *config.Config) (pricing.RuleSource, *pgxpool.Pool, error) {
	switch cfg.Rules.Source {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Rules.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		return store.NewPostgresRuleStore(pool), pool, nil
	default:
		return store.NewMemoryRuleStore(nil), nil, nil
	}
}

func buildEnricher(cfg *config.Config) (*pricing.Enricher, func(), error) {
	logger := logging.Logger()

	switch cfg.Enrichment.Source {
	case "redis":
		rdb, err := newRedisClient(cfg.Enrichment.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("enrichment redis: %w", err)
		}
		profiles := store.NewRedisProfileStore(rdb)
		closeFn := func() {
			if err := rdb.Close(); err != nil {
				logging.Warn().Err(err).Msg("Failed to close enrichment redis client")
			}
		}
		return pricing.NewEnricher(profiles, nil, cfg.Enrichment.Timeout, logger), closeFn, nil
	default:
		profiles := store.NewMemoryProfileStore()
		behavior := store.NewMemoryBehaviorStore()
		return pricing.NewEnricher(profiles, behavior, cfg.Enrichment.Timeout, logger), nil, nil
	}
}

func buildPredictionSource(cfg *config.Config) (pricing.PredictionSource, func(), error) {
	switch cfg.Predictions.Source {
	case "redis":
		rdb, err := newRedisClient(cfg.Predictions.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("predictions redis: %w", err)
		}
		closeFn := func() {
			if err := rdb.Close(); err != nil {
				logging.Warn().Err(err).Msg("Failed to close predictions redis client")
			}
		}
		return store.NewRedisPredictionCache(rdb), closeFn, nil
	default:
		return store.NewMemoryPredictionCache(), nil, nil
	}
}

func buildAuditStore(cfg *config.Config) (audit.Store, error) {
	switch cfg.Audit.Store {
	case "badger":
		retention := time.Duration(cfg.Audit.RetentionDays) * 24 * time.Hour
		badgerStore, err := audit.NewBadgerStore(cfg.Audit.Path, retention)
		if err != nil {
			return nil, fmt.Errorf("open audit store at %s: %w", cfg.Audit.Path, err)
		}
		return badgerStore, nil
	default:
		return audit.NewMemoryStore(0), nil
	}
}

func newRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}
