// Stackprice - Personalization Pricing Engine
// Copyright 2026 Stackprice Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stackprice/stackprice

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8094 {
		t.Errorf("Server.Port = %d, want 8094", cfg.Server.Port)
	}
	if cfg.Engine.MaxDiscount != 0.5 || cfg.Engine.MaxIncrease != 0.3 || cfg.Engine.MinMargin != 0.1 {
		t.Errorf("engine bounds = %v/%v/%v", cfg.Engine.MaxDiscount, cfg.Engine.MaxIncrease, cfg.Engine.MinMargin)
	}
	if cfg.Rules.Source != "memory" {
		t.Errorf("Rules.Source = %s, want memory", cfg.Rules.Source)
	}
	if cfg.Rules.RefreshInterval != 30*time.Minute {
		t.Errorf("Rules.RefreshInterval = %s", cfg.Rules.RefreshInterval)
	}
	if cfg.Enrichment.Source != "none" || cfg.Predictions.Source != "none" {
		t.Errorf("external sources should default to none, got %s/%s", cfg.Enrichment.Source, cfg.Predictions.Source)
	}
	if !cfg.Audit.Enabled || cfg.Audit.Store != "memory" {
		t.Errorf("audit defaults = %v/%s", cfg.Audit.Enabled, cfg.Audit.Store)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging defaults = %s/%s", cfg.Logging.Level, cfg.Logging.Format)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("STACKPRICE_PORT", "9000")
	t.Setenv("STACKPRICE_MAX_DISCOUNT", "0.3")
	t.Setenv("STACKPRICE_LOG_LEVEL", "debug")
	t.Setenv("STACKPRICE_RULES_REFRESH_INTERVAL", "5m")
	t.Setenv("STACKPRICE_CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Engine.MaxDiscount != 0.3 {
		t.Errorf("Engine.MaxDiscount = %v, want 0.3", cfg.Engine.MaxDiscount)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %s, want debug", cfg.Logging.Level)
	}
	if cfg.Rules.RefreshInterval != 5*time.Minute {
		t.Errorf("Rules.RefreshInterval = %s, want 5m", cfg.Rules.RefreshInterval)
	}
	want := []string{"https://a.example.com", "https://b.example.com"}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[0] != want[0] || cfg.Server.CORSOrigins[1] != want[1] {
		t.Errorf("Server.CORSOrigins = %v, want %v", cfg.Server.CORSOrigins, want)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9100
engine:
  max_discount: 0.25
rules:
  source: memory
  refresh_interval: 10m
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want 9100 from file", cfg.Server.Port)
	}
	if cfg.Engine.MaxDiscount != 0.25 {
		t.Errorf("Engine.MaxDiscount = %v, want 0.25 from file", cfg.Engine.MaxDiscount)
	}
	if cfg.Rules.RefreshInterval != 10*time.Minute {
		t.Errorf("Rules.RefreshInterval = %s, want 10m from file", cfg.Rules.RefreshInterval)
	}

	t.Run("environment beats file", func(t *testing.T) {
		t.Setenv("STACKPRICE_PORT", "9200")
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Server.Port != 9200 {
			t.Errorf("Server.Port = %d, want env override 9200", cfg.Server.Port)
		}
	})
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
	}{
		{"zero port", func(cfg *Config) { cfg.Server.Port = 0 }},
		{"refresh interval too short", func(cfg *Config) { cfg.Rules.RefreshInterval = 30 * time.Second }},
		{"full discount", func(cfg *Config) { cfg.Engine.MaxDiscount = 1 }},
		{"discount above one", func(cfg *Config) { cfg.Engine.MaxDiscount = 1.5 }},
		{"unknown log level", func(cfg *Config) { cfg.Logging.Level = "verbose" }},
		{"unknown rules source", func(cfg *Config) { cfg.Rules.Source = "mysql" }},
		{"postgres without url", func(cfg *Config) { cfg.Rules.Source = "postgres"; cfg.Rules.PostgresURL = "" }},
		{"badger without path", func(cfg *Config) { cfg.Audit.Store = "badger"; cfg.Audit.Path = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() should reject this configuration")
			}
		})
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"STACKPRICE_MAX_DISCOUNT", "engine.max_discount"},
		{"STACKPRICE_RULES_POSTGRES_URL", "rules.postgres_url"},
		{"STACKPRICE_LOG_FORMAT", "logging.format"},
		{"STACKPRICE_UNKNOWN_KNOB", ""}, // unknown variables are dropped
	}
	for _, tt := range tests {
		if got := envTransform(tt.key); got != tt.want {
			t.Errorf("envTransform(%s) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
