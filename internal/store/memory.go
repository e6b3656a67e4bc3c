// Stackprice - Personalization Pricing Engine
// Copyright 2026 Stackprice Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stackprice/stackprice

package store

import (
	"context"
	"sync"

	"github.com/stackprice/stackprice/internal/pricing"
)

// MemoryRuleStore implements pricing.RuleSource in memory. Used in
// standalone mode and tests.
type MemoryRuleStore struct {
	mu    sync.RWMutex
	rules []pricing.PricingRule
}

// NewMemoryRuleStore creates a rule store seeded with the given rules.
func NewMemoryRuleStore(rules []pricing.PricingRule) *MemoryRuleStore {
	return &MemoryRuleStore{rules: rules}
}

// ListActiveRules returns the stored rules.
func (s *MemoryRuleStore) ListActiveRules(_ context.Context) ([]pricing.PricingRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]pricing.PricingRule, len(s.rules))
	copy(out, s.rules)
	return out, nil
}

// SetRules replaces the stored rules; the next snapshot refresh picks them up.
func (s *MemoryRuleStore) SetRules(rules []pricing.PricingRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = rules
}

// MemoryPredictionCache implements pricing.PredictionSource in memory.
type MemoryPredictionCache struct {
	mu          sync.RWMutex
	predictions map[string]*pricing.Predictions
}

// NewMemoryPredictionCache creates an empty prediction cache.
func NewMemoryPredictionCache() *MemoryPredictionCache {
	return &MemoryPredictionCache{predictions: make(map[string]*pricing.Predictions)}
}

// GetUserPredictions returns cached predictions, or (nil, nil) when absent.
func (c *MemoryPredictionCache) GetUserPredictions(_ context.Context, userID string) (*pricing.Predictions, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.predictions[userID], nil
}

// Put stores predictions for a user.
func (c *MemoryPredictionCache) Put(userID string, preds *pricing.Predictions) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.predictions[userID] = preds
}

// MemoryProfileStore implements pricing.ProfileStore in memory.
type MemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]*pricing.Profile
}

// NewMemoryProfileStore creates an empty profile store.
func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{profiles: make(map[string]*pricing.Profile)}
}

// GetProfile returns the user's profile, or (nil, nil) when absent.
func (s *MemoryProfileStore) GetProfile(_ context.Context, userID string) (*pricing.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profiles[userID], nil
}

// Put stores a profile for a user.
func (s *MemoryProfileStore) Put(userID string, profile *pricing.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[userID] = profile
}

// MemoryBehaviorStore implements pricing.BehaviorStore in memory.
type MemoryBehaviorStore struct {
	mu     sync.RWMutex
	orders map[string][]pricing.OrderSummary
}

// NewMemoryBehaviorStore creates an empty behavior store.
func NewMemoryBehaviorStore() *MemoryBehaviorStore {
	return &MemoryBehaviorStore{orders: make(map[string][]pricing.OrderSummary)}
}

// RecentOrders returns up to limit most recent orders for a user.
func (s *MemoryBehaviorStore) RecentOrders(_ context.Context, userID string, limit int) ([]pricing.OrderSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := s.orders[userID]
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	out := make([]pricing.OrderSummary, len(orders))
	copy(out, orders)
	return out, nil
}

// Put stores a user's order history, newest first.
func (s *MemoryBehaviorStore) Put(userID string, orders []pricing.OrderSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[userID] = orders
}
