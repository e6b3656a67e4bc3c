// Stackprice - Personalization Pricing Engine
// Copyright 2026 Stackprice Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stackprice/stackprice

package pricing

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Demand tier breakpoints. The mapping is deliberately a coarse lookup table,
// not a continuous function; tests pin these exact values.
const (
	demandHot     = 0.9
	demandWarm    = 0.8
	demandCool    = 0.7
	adjustHot  = 0.15
	adjustWarm = 0.05
	adjustCool = -0.10
)

// MarketData is the live demand-score table keyed by item-type tag, style
// tag, or product ID (one namespace). Updates build a new map and swap a
// single reference, so concurrent readers always see a complete, consistent
// table and never block.
type MarketData struct {
	table  atomic.Pointer[map[string]float64]
	logger zerolog.Logger
}

// NewMarketData creates a demand table seeded with the given scores.
// A nil seed starts empty.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewMarketData(seed map[string]float64, logger zerolog.Logger) *MarketData {
	m := &MarketData{logger: logger.With().Str("component", "market").Logger()}
	table := make(map[string]float64, len(seed))
	for k, v := range seed {
		table[k] = v
	}
	m.table.Store(&table)
	return m
}

// Get returns the demand score for a key, if one is known.
func (m *MarketData) Get(key string) (float64, bool) {
	table := *m.table.Load()
	v, ok := table[key]
	return v, ok
}

// Len returns the number of keys in the current table.
func (m *MarketData) Len() int {
	return len(*m.table.Load())
}

// Update merges the given scores into the table copy-on-write. Out-of-range
// scores are dropped with a warning; the rest of the batch still applies.
func (m *MarketData) Update(updates map[string]float64) {
	old := *m.table.Load()
	next := make(map[string]float64, len(old)+len(updates))
	for k, v := range old {
		next[k] = v
	}

	applied := 0
	for k, v := range updates {
		if v < 0 || v > 1 {
			m.logger.Warn().Str("key", k).Float64("score", v).Msg("demand score out of range, dropped")
			continue
		}
		next[k] = v
		applied++
	}
	m.table.Store(&next)

	m.logger.Debug().Int("applied", applied).Int("total", len(next)).Msg("market data updated")
}

// Adjustment derives the demand-based price adjustment for a product.
//
// The effective demand averages the product's own demand score, the mean
// demand of its tags, and its style tag's demand when present; tag and style
// demands come from the live table and are skipped when unknown. The result
// maps to a fixed adjustment tier.
func (m *MarketData) Adjustment(product *ProductInfo) float64 {
	components := []float64{product.DemandScore}

	var tagSum float64
	tagCount := 0
	for _, tag := range product.Tags {
		if score, ok := m.Get(tag); ok {
			tagSum += score
			tagCount++
		}
	}
	if tagCount > 0 {
		components = append(components, tagSum/float64(tagCount))
	}

	if product.Style != "" {
		if score, ok := m.Get(product.Style); ok {
			components = append(components, score)
		}
	}

	var sum float64
	for _, c := range components {
		sum += c
	}
	return demandTier(sum / float64(len(components)))
}

// demandTier maps an effective demand score to its adjustment band.
func demandTier(demand float64) float64 {
	switch {
	case demand > demandHot:
		return adjustHot
	case demand > demandWarm:
		return adjustWarm
	case demand < demandCool:
		return adjustCool
	default:
		return 0
	}
}
