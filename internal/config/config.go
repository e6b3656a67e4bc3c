// Stackprice - Personalization Pricing Engine
// Copyright 2026 Stackprice Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stackprice/stackprice

// Package config loads the engine configuration with layered precedence:
// built-in defaults, then an optional YAML file, then STACKPRICE_* environment
// variables.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/stackprice/stackprice/internal/pricing"
)

// Config is the full server configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Engine      EngineConfig      `koanf:"engine"`
	Rules       RulesConfig       `koanf:"rules"`
	Market      MarketConfig      `koanf:"market"`
	Enrichment  EnrichmentConfig  `koanf:"enrichment"`
	Predictions PredictionsConfig `koanf:"predictions"`
	Audit       AuditConfig       `koanf:"audit"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout"`

	// RateLimitReqs requests per RateLimitWindow per client IP.
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// EngineConfig configures the pricing bounds and limits.
type EngineConfig struct {
	MaxDiscount       float64       `koanf:"max_discount" validate:"gte=0,lte=1"`
	MaxIncrease       float64       `koanf:"max_increase" validate:"gte=0"`
	MinMargin         float64       `koanf:"min_margin" validate:"gte=0"`
	ValidityWindow    time.Duration `koanf:"validity_window"`
	BatchConcurrency  int           `koanf:"batch_concurrency" validate:"min=1"`
	PredictionTimeout time.Duration `koanf:"prediction_timeout"`
}

// Pricing converts the section into the engine's own config type.
func (c EngineConfig) Pricing() *pricing.Config {
	return &pricing.Config{
		MaxDiscount:       c.MaxDiscount,
		MaxIncrease:       c.MaxIncrease,
		MinMargin:         c.MinMargin,
		ValidityWindow:    c.ValidityWindow,
		BatchConcurrency:  c.BatchConcurrency,
		PredictionTimeout: c.PredictionTimeout,
	}
}

// RulesConfig configures the rule persistence source.
type RulesConfig struct {
	// Source is "memory" or "postgres".
	Source          string        `koanf:"source" validate:"oneof=memory postgres"`
	PostgresURL     string        `koanf:"postgres_url" validate:"required_if=Source postgres"`
	RefreshInterval time.Duration `koanf:"refresh_interval"`
	RefreshTimeout  time.Duration `koanf:"refresh_timeout"`
}

// MarketConfig seeds the live demand table.
type MarketConfig struct {
	Seed map[string]float64 `koanf:"seed"`
}

// EnrichmentConfig configures the profile/behavior lookups.
type EnrichmentConfig struct {
	// Source is "none", "memory", or "redis".
	Source   string        `koanf:"source" validate:"oneof=none memory redis"`
	RedisURL string        `koanf:"redis_url" validate:"required_if=Source redis"`
	Timeout  time.Duration `koanf:"timeout"`
}

// PredictionsConfig configures the behavioral prediction cache.
type PredictionsConfig struct {
	// Source is "none", "memory", or "redis".
	Source   string `koanf:"source" validate:"oneof=none memory redis"`
	RedisURL string `koanf:"redis_url" validate:"required_if=Source redis"`
}

// AuditConfig configures decision recording.
type AuditConfig struct {
	Enabled bool `koanf:"enabled"`

	// Store is "memory" or "badger".
	Store           string        `koanf:"store" validate:"oneof=memory badger"`
	Path            string        `koanf:"path" validate:"required_if=Store badger"`
	BufferSize      int           `koanf:"buffer_size" validate:"min=1"`
	RetentionDays   int           `koanf:"retention_days" validate:"min=0"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// defaultConfig returns a Config with all defaults applied. Defaults favor
// standalone mode: no external stores required.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8094,
			Timeout:         30 * time.Second,
			RateLimitReqs:   300,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Engine: EngineConfig{
			MaxDiscount:       0.5,
			MaxIncrease:       0.3,
			MinMargin:         0.1,
			ValidityWindow:    15 * time.Minute,
			BatchConcurrency:  8,
			PredictionTimeout: 2 * time.Second,
		},
		Rules: RulesConfig{
			Source:          "memory",
			RefreshInterval: 30 * time.Minute,
			RefreshTimeout:  10 * time.Second,
		},
		Enrichment: EnrichmentConfig{
			Source:  "none",
			Timeout: 2 * time.Second,
		},
		Predictions: PredictionsConfig{
			Source: "none",
		},
		Audit: AuditConfig{
			Enabled:         true,
			Store:           "memory",
			Path:            "/data/stackprice/audit",
			BufferSize:      1024,
			RetentionDays:   90,
			CleanupInterval: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration using struct tags plus cross-field rules
// the tags can't express.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Rules.RefreshInterval < time.Minute {
		return fmt.Errorf("rules.refresh_interval must be at least 1m, got %s", c.Rules.RefreshInterval)
	}
	if c.Engine.MaxDiscount == 1 {
		return fmt.Errorf("engine.max_discount of 1.0 would allow free products")
	}
	return nil
}
