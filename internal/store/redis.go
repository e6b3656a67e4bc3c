// Stackprice - Personalization Pricing Engine
// Copyright 2026 Stackprice Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stackprice/stackprice

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/stackprice/stackprice/internal/pricing"
)

const (
	predictionKeyPrefix = "stackprice:predictions:"
	profileKeyPrefix    = "stackprice:profile:"
)

// RedisPredictionCache implements pricing.PredictionSource over Redis. The
// behavioral pipeline writes prediction JSON under a per-user key; a missing
// key is the valid "no predictions" result.
type RedisPredictionCache struct {
	rdb *redis.Client
}

// NewRedisPredictionCache creates a Redis-backed prediction cache.
func NewRedisPredictionCache(rdb *redis.Client) *RedisPredictionCache {
	return &RedisPredictionCache{rdb: rdb}
}

// GetUserPredictions returns the cached predictions for a user, or (nil, nil)
// when none exist.
func (c *RedisPredictionCache) GetUserPredictions(ctx context.Context, userID string) (*pricing.Predictions, error) {
	data, err := c.rdb.Get(ctx, predictionKeyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get predictions for %s: %w", userID, err)
	}

	var preds pricing.Predictions
	if err := json.Unmarshal(data, &preds); err != nil {
		return nil, fmt.Errorf("decode predictions for %s: %w", userID, err)
	}
	return &preds, nil
}

// RedisProfileStore implements pricing.ProfileStore over Redis.
type RedisProfileStore struct {
	rdb *redis.Client
}

// NewRedisProfileStore creates a Redis-backed profile store.
func NewRedisProfileStore(rdb *redis.Client) *RedisProfileStore {
	return &RedisProfileStore{rdb: rdb}
}

// GetProfile returns the user's profile, or (nil, nil) when none exists.
func (s *RedisProfileStore) GetProfile(ctx context.Context, userID string) (*pricing.Profile, error) {
	data, err := s.rdb.Get(ctx, profileKeyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile for %s: %w", userID, err)
	}

	var profile pricing.Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("decode profile for %s: %w", userID, err)
	}
	return &profile, nil
}
