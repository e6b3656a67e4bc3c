// Stackprice - Personalization Pricing Engine
// Copyright 2026 Stackprice Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stackprice/stackprice

// Package store provides the persistence implementations behind the engine's
// source interfaces: PostgreSQL for the rule store, Redis for the prediction
// cache and user profiles, and in-memory variants for tests and standalone
// mode.
package store

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stackprice/stackprice/internal/logging"
	"github.com/stackprice/stackprice/internal/pricing"
)

// PostgresRuleStore implements pricing.RuleSource over a pgx pool. Rule
// conditions are stored as JSONB; rows that fail to decode are skipped
// individually so one bad row can't poison a refresh.
type PostgresRuleStore struct {
	pool *pgxpool.Pool
}

// NewPostgresRuleStore creates a PostgreSQL-backed rule store.
func NewPostgresRuleStore(pool *pgxpool.Pool) *PostgresRuleStore {
	return &PostgresRuleStore{pool: pool}
}

// ListActiveRules returns all active rules ordered by descending priority.
func (s *PostgresRuleStore) ListActiveRules(ctx context.Context) ([]pricing.PricingRule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, conditions, adjustment_kind, adjustment_value, priority
		 FROM pricing_rules
		 WHERE active
		 ORDER BY priority DESC`)
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	defer rows.Close()

	rules := make([]pricing.PricingRule, 0, 16)
	for rows.Next() {
		var (
			rule           pricing.PricingRule
			conditionsJSON []byte
			kind           string
		)
		if err := rows.Scan(&rule.ID, &rule.Name, &conditionsJSON, &kind, &rule.Adjustment.Value, &rule.Priority); err != nil {
			return nil, fmt.Errorf("scan rule row: %w", err)
		}

		if err := json.Unmarshal(conditionsJSON, &rule.Conditions); err != nil {
			logging.Warn().Err(err).Str("rule_id", rule.ID).Msg("undecodable rule conditions, skipping row")
			continue
		}
		rule.Adjustment.Kind = pricing.AdjustmentKind(kind)
		rule.Active = true

		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rule rows: %w", err)
	}

	return rules, nil
}
