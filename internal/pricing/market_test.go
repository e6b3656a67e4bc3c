// Stackprice - Personalization Pricing Engine
// Copyright 2026 Stackprice Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stackprice/stackprice

package pricing

import (
	"testing"

	"github.com/rs/zerolog"
)

// TestDemandTierBreakpoints pins the exact tier boundaries. The tiering is a
// coarse lookup table; these values are part of the contract.
func TestDemandTierBreakpoints(t *testing.T) {
	tests := []struct {
		demand float64
		want   float64
	}{
		{0.95, 0.15},
		{0.91, 0.15},
		{0.90, 0.05}, // not strictly above hot
		{0.85, 0.05},
		{0.81, 0.05},
		{0.80, 0}, // not strictly above warm
		{0.75, 0},
		{0.70, 0}, // not strictly below cool
		{0.69, -0.10},
		{0.50, -0.10},
		{0.0, -0.10},
	}

	for _, tt := range tests {
		if got := demandTier(tt.demand); !almostEqual(got, tt.want) {
			t.Errorf("demandTier(%v) = %v, want %v", tt.demand, got, tt.want)
		}
	}
}

func TestMarketAdjustmentAveraging(t *testing.T) {
	market := NewMarketData(map[string]float64{
		"minimalist": 0.9,
		"wall-art":   0.7,
		"modern":     0.95,
	}, zerolog.Nop())

	t.Run("averages product tags and style", func(t *testing.T) {
		product := testProduct()
		product.DemandScore = 0.6
		// components: 0.6, mean(0.9, 0.7)=0.8, 0.95 -> effective 0.7833..
		// not above warm, not below cool -> 0
		if got := market.Adjustment(product); !almostEqual(got, 0) {
			t.Errorf("Adjustment() = %v, want 0", got)
		}
	})

	t.Run("unknown tags are skipped", func(t *testing.T) {
		product := &ProductInfo{
			ID: "p", BasePrice: 10, EstimatedCost: 5,
			Tags:        []string{"unlisted"},
			DemandScore: 0.95,
		}
		// only the product's own score contributes -> hot tier
		if got := market.Adjustment(product); !almostEqual(got, 0.15) {
			t.Errorf("Adjustment() = %v, want 0.15", got)
		}
	})

	t.Run("cool tier from low demand", func(t *testing.T) {
		product := &ProductInfo{ID: "p", BasePrice: 10, EstimatedCost: 5, DemandScore: 0.3}
		if got := market.Adjustment(product); !almostEqual(got, -0.10) {
			t.Errorf("Adjustment() = %v, want -0.10", got)
		}
	})
}

func TestMarketDataUpdate(t *testing.T) {
	market := NewMarketData(map[string]float64{"a": 0.5}, zerolog.Nop())

	market.Update(map[string]float64{
		"a":       0.8,
		"b":       0.6,
		"invalid": 1.5, // dropped
		"neg":     -0.1,
	})

	if v, ok := market.Get("a"); !ok || !almostEqual(v, 0.8) {
		t.Errorf("Get(a) = %v, %v; want 0.8, true", v, ok)
	}
	if v, ok := market.Get("b"); !ok || !almostEqual(v, 0.6) {
		t.Errorf("Get(b) = %v, %v; want 0.6, true", v, ok)
	}
	if _, ok := market.Get("invalid"); ok {
		t.Error("out-of-range score should have been dropped")
	}
	if _, ok := market.Get("neg"); ok {
		t.Error("negative score should have been dropped")
	}
	if market.Len() != 2 {
		t.Errorf("Len() = %d, want 2", market.Len())
	}
}

func TestMarketDataConcurrentReaders(t *testing.T) {
	market := NewMarketData(map[string]float64{"tag": 0.5}, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			market.Update(map[string]float64{"tag": float64(i%100) / 100})
		}
	}()

	product := &ProductInfo{ID: "p", BasePrice: 10, EstimatedCost: 5, Tags: []string{"tag"}, DemandScore: 0.5}
	for i := 0; i < 1000; i++ {
		market.Adjustment(product)
	}
	<-done
}
