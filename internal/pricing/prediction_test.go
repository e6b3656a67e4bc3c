// Stackprice - Personalization Pricing Engine
// Copyright 2026 Stackprice Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stackprice/stackprice

package pricing

import "testing"

func TestPredictionAdjustment(t *testing.T) {
	product := testProduct() // tags: minimalist, wall-art; style: modern

	tests := []struct {
		name  string
		preds *Predictions
		want  float64
	}{
		{
			name:  "nil predictions are no signal",
			preds: nil,
			want:  0,
		},
		{
			name: "high priority with strong match",
			preds: &Predictions{
				Strategy: StrategyHighPriority,
				RecommendedContent: []RecommendedContent{
					{ID: "c1", Type: "minimalist", RelevanceScore: 0.9},
				},
			},
			want: 0.08,
		},
		{
			name: "medium priority with moderate match",
			preds: &Predictions{
				Strategy: StrategyMedium,
				RecommendedContent: []RecommendedContent{
					{ID: "c1", Type: "modern", RelevanceScore: 0.7},
				},
			},
			want: 0.03,
		},
		{
			name: "high priority but weak match falls to medium tier",
			preds: &Predictions{
				Strategy: StrategyHighPriority,
				RecommendedContent: []RecommendedContent{
					{ID: "c1", Type: "minimalist", RelevanceScore: 0.65},
				},
			},
			want: 0.03,
		},
		{
			name: "unknown strategy with no overlap",
			preds: &Predictions{
				Strategy: "exploratory",
				RecommendedContent: []RecommendedContent{
					{ID: "c1", Type: "rustic", RelevanceScore: 0.95},
				},
			},
			want: 0,
		},
		{
			name: "match score averages overlapping entries only",
			preds: &Predictions{
				Strategy: StrategyHighPriority,
				RecommendedContent: []RecommendedContent{
					{ID: "c1", Type: "minimalist", RelevanceScore: 0.9},
					{ID: "c2", Type: "wall-art", RelevanceScore: 0.9},
					{ID: "c3", Type: "rustic", RelevanceScore: 0.1}, // no overlap, ignored
				},
			},
			want: 0.08,
		},
		{
			name: "empty recommendations give zero match",
			preds: &Predictions{
				Strategy: StrategyHighPriority,
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := predictionAdjustment(tt.preds, product); !almostEqual(got, tt.want) {
				t.Errorf("predictionAdjustment() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStrategyBucket(t *testing.T) {
	tests := []struct {
		strategy string
		want     float64
	}{
		{StrategyHighPriority, 0.8},
		{StrategyMedium, 0.6},
		{"anything-else", 0.4},
		{"", 0.4},
	}

	for _, tt := range tests {
		if got := strategyBucket(tt.strategy); !almostEqual(got, tt.want) {
			t.Errorf("strategyBucket(%q) = %v, want %v", tt.strategy, got, tt.want)
		}
	}
}

func TestContentMatchScore(t *testing.T) {
	product := testProduct()

	t.Run("style counts as a tag", func(t *testing.T) {
		content := []RecommendedContent{{ID: "c", Type: "modern", RelevanceScore: 0.8}}
		if got := contentMatchScore(content, product); !almostEqual(got, 0.8) {
			t.Errorf("contentMatchScore() = %v, want 0.8", got)
		}
	})

	t.Run("no overlap is zero", func(t *testing.T) {
		content := []RecommendedContent{{ID: "c", Type: "industrial", RelevanceScore: 0.99}}
		if got := contentMatchScore(content, product); !almostEqual(got, 0) {
			t.Errorf("contentMatchScore() = %v, want 0", got)
		}
	})
}
