// Stackprice - Personalization Pricing Engine
// Copyright 2026 Stackprice Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stackprice/stackprice

package pricing

import "context"

// Recommendation strategy hints carried by cached predictions.
const (
	StrategyHighPriority = "high_priority"
	StrategyMedium       = "medium"
)

// Purchase-probability buckets derived from the strategy hint.
const (
	probHigh = 0.8
	probMed  = 0.6
	probLow  = 0.4
)

// PredictionSource serves cached behavioral/ML predictions. A (nil, nil)
// return is the valid "no predictions for this user" result.
type PredictionSource interface {
	GetUserPredictions(ctx context.Context, userID string) (*Predictions, error)
}

// predictionAdjustment derives a price adjustment from cached predictions.
//
// The purchase probability comes from the strategy bucket; the match score is
// the mean relevance of recommended content whose type overlaps the product's
// tags or style (0 with no overlap). The combined tiering is a fixed lookup:
// strong probability and strong match nudge the price up, weak probability
// nudges it down.
func predictionAdjustment(preds *Predictions, product *ProductInfo) float64 {
	if preds == nil {
		return 0
	}

	probability := strategyBucket(preds.Strategy)
	match := contentMatchScore(preds.RecommendedContent, product)

	switch {
	case probability > 0.7 && match > 0.8:
		return 0.08
	case probability > 0.5 && match > 0.6:
		return 0.03
	case probability < 0.4:
		return -0.05
	default:
		return 0
	}
}

func strategyBucket(strategy string) float64 {
	switch strategy {
	case StrategyHighPriority:
		return probHigh
	case StrategyMedium:
		return probMed
	default:
		return probLow
	}
}

// contentMatchScore is the mean relevance of recommended entries whose type
// matches one of the product's tags or its style.
func contentMatchScore(content []RecommendedContent, product *ProductInfo) float64 {
	tags := make(map[string]struct{}, len(product.Tags)+1)
	for _, tag := range product.Tags {
		tags[tag] = struct{}{}
	}
	if product.Style != "" {
		tags[product.Style] = struct{}{}
	}

	var sum float64
	matched := 0
	for _, entry := range content {
		if _, ok := tags[entry.Type]; ok {
			sum += entry.RelevanceScore
			matched++
		}
	}
	if matched == 0 {
		return 0
	}
	return sum / float64(matched)
}
