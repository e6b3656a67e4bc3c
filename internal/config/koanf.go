// Stackprice - Personalization Pricing Engine
// Copyright 2026 Stackprice Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stackprice/stackprice

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the config file locations searched in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/stackprice/config.yaml",
	"/etc/stackprice/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "STACKPRICE_CONFIG"

// envPrefix namespaces all engine environment variables.
const envPrefix = "STACKPRICE_"

// envMappings maps STACKPRICE_* variable suffixes (lowercased) to koanf
// paths. Explicit mapping keeps section names with underscores unambiguous.
var envMappings = map[string]string{
	"host":              "server.host",
	"port":              "server.port",
	"server_timeout":    "server.timeout",
	"rate_limit_reqs":   "server.rate_limit_reqs",
	"rate_limit_window": "server.rate_limit_window",
	"cors_origins":      "server.cors_origins",

	"max_discount":       "engine.max_discount",
	"max_increase":       "engine.max_increase",
	"min_margin":         "engine.min_margin",
	"validity_window":    "engine.validity_window",
	"batch_concurrency":  "engine.batch_concurrency",
	"prediction_timeout": "engine.prediction_timeout",

	"rules_source":           "rules.source",
	"rules_postgres_url":     "rules.postgres_url",
	"rules_refresh_interval": "rules.refresh_interval",
	"rules_refresh_timeout":  "rules.refresh_timeout",

	"enrichment_source":    "enrichment.source",
	"enrichment_redis_url": "enrichment.redis_url",
	"enrichment_timeout":   "enrichment.timeout",

	"predictions_source":    "predictions.source",
	"predictions_redis_url": "predictions.redis_url",

	"audit_enabled":          "audit.enabled",
	"audit_store":            "audit.store",
	"audit_path":             "audit.path",
	"audit_buffer_size":      "audit.buffer_size",
	"audit_retention_days":   "audit.retention_days",
	"audit_cleanup_interval": "audit.cleanup_interval",

	"log_level":  "logging.level",
	"log_format": "logging.format",
}

// Load builds the configuration from defaults, an optional YAML file, and
// STACKPRICE_* environment variables, in ascending precedence.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := normalizeCORSOrigins(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransform maps STACKPRICE_MAX_DISCOUNT to engine.max_discount and so on.
// Unknown variables are dropped rather than guessed at.
func envTransform(key string) string {
	suffix := strings.ToLower(strings.TrimPrefix(key, envPrefix))
	if path, ok := envMappings[suffix]; ok {
		return path
	}
	return ""
}

// normalizeCORSOrigins splits a comma-separated env value into a slice.
func normalizeCORSOrigins(k *koanf.Koanf) error {
	val := k.Get("server.cors_origins")
	strVal, ok := val.(string)
	if !ok || strVal == "" {
		return nil
	}

	parts := strings.Split(strVal, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	if err := k.Set("server.cors_origins", origins); err != nil {
		return fmt.Errorf("set cors origins: %w", err)
	}
	return nil
}
