// Stackprice - Personalization Pricing Engine
// Copyright 2026 Stackprice Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stackprice/stackprice

package pricing

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/stackprice/stackprice/internal/metrics"
)

// RuleSource is the persistence boundary for pricing rules. Implementations
// return all active rules ordered by descending priority; the snapshot store
// re-sorts defensively and skips rules that fail load-time validation.
type RuleSource interface {
	ListActiveRules(ctx context.Context) ([]PricingRule, error)
}

// ruleSnapshot is an immutable view of the active rule set. It is replaced
// wholesale by Refresh and never mutated in place.
type ruleSnapshot struct {
	rules    []PricingRule
	loadedAt time.Time
}

// SnapshotStore holds the currently active rule set behind a single atomic
// reference. Readers never lock and never observe a partially-updated list;
// a failed refresh keeps the last good snapshot.
type SnapshotStore struct {
	source         RuleSource
	snap           atomic.Pointer[ruleSnapshot]
	invalidate     chan struct{}
	refreshTimeout time.Duration
	logger         zerolog.Logger
}

// NewSnapshotStore creates the store and performs the initial load. A failed
// initial load logs and leaves an empty snapshot in place - rule evaluation
// must never fail because of a refresh error.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSnapshotStore(ctx context.Context, source RuleSource, refreshTimeout time.Duration, logger zerolog.Logger) *SnapshotStore {
	if refreshTimeout <= 0 {
		refreshTimeout = 10 * time.Second
	}

	s := &SnapshotStore{
		source:         source,
		invalidate:     make(chan struct{}, 1),
		refreshTimeout: refreshTimeout,
		logger:         logger.With().Str("component", "snapshot").Logger(),
	}
	s.snap.Store(&ruleSnapshot{rules: []PricingRule{}})

	if err := s.Refresh(ctx); err != nil {
		s.logger.Error().Err(err).Msg("initial rule load failed, starting with empty snapshot")
	}
	return s
}

// Rules returns the current snapshot's rule list, ordered by descending
// priority. Callers must not mutate the returned slice.
func (s *SnapshotStore) Rules() []PricingRule {
	return s.snap.Load().rules
}

// LoadedAt returns when the current snapshot was loaded. Zero when the
// initial load has not yet succeeded.
func (s *SnapshotStore) LoadedAt() time.Time {
	return s.snap.Load().loadedAt
}

// Refresh fetches active rules from the source and atomically swaps the
// snapshot. On failure the previous snapshot keeps serving.
func (s *SnapshotStore) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.refreshTimeout)
	defer cancel()

	rules, err := s.source.ListActiveRules(ctx)
	if err != nil {
		metrics.SnapshotRefreshTotal.WithLabelValues("error").Inc()
		s.logger.Warn().Err(err).Msg("rule refresh failed, keeping last good snapshot")
		return err
	}

	valid := make([]PricingRule, 0, len(rules))
	for i := range rules {
		rule := rules[i]
		if !rule.Active {
			continue
		}
		if err := rule.Validate(); err != nil {
			s.logger.Warn().Err(err).Str("rule_id", rule.ID).Msg("skipping malformed rule")
			continue
		}
		valid = append(valid, rule)
	}

	// Source is expected to order by priority already; re-sort so a sloppy
	// source can't change explanation order.
	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Priority > valid[j].Priority
	})

	s.snap.Store(&ruleSnapshot{rules: valid, loadedAt: time.Now()})

	metrics.SnapshotRefreshTotal.WithLabelValues("ok").Inc()
	metrics.SnapshotRules.Set(float64(len(valid)))
	metrics.SnapshotLastSuccess.SetToCurrentTime()

	s.logger.Info().Int("rules", len(valid)).Msg("rule snapshot refreshed")
	return nil
}

// Invalidate requests an out-of-band refresh from the Refresher. Non-blocking;
// coalesces with a pending request.
func (s *SnapshotStore) Invalidate() {
	select {
	case s.invalidate <- struct{}{}:
	default:
	}
}

// Refresher periodically refreshes a SnapshotStore. It implements
// suture.Service and is run under the supervisor tree.
type Refresher struct {
	store    *SnapshotStore
	interval time.Duration
}

// NewRefresher creates a refresher for the given store.
func NewRefresher(store *SnapshotStore, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &Refresher{store: store, interval: interval}
}

// Serve runs the refresh loop until the context is canceled. Refresh errors
// are logged by the store and do not terminate the service.
func (r *Refresher) Serve(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = r.store.Refresh(ctx)
		case <-r.store.invalidate:
			_ = r.store.Refresh(ctx)
		}
	}
}

func (r *Refresher) String() string {
	return "rule-refresher"
}
