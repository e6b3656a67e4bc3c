// Stackprice - Personalization Pricing Engine
// Copyright 2026 Stackprice Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stackprice/stackprice

package api

import (
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/stackprice/stackprice/internal/pricing"
)

// maxRequestBody bounds request payloads to 1 MiB.
const maxRequestBody = 1 << 20

// maxBatchProducts bounds the number of products in one batch request.
const maxBatchProducts = 250

// CalculateRequest is the payload for POST /api/v1/pricing/calculate.
type CalculateRequest struct {
	Product pricing.ProductInfo `json:"product"`
	Context pricing.UserContext `json:"context"`
}

// BatchRequest is the payload for POST /api/v1/pricing/batch.
type BatchRequest struct {
	Products []pricing.ProductInfo `json:"products"`
	Context  pricing.UserContext   `json:"context"`
}

// Validate checks batch-level constraints. Per-product validation happens
// inside the engine so one malformed product never rejects the batch.
func (r *BatchRequest) Validate() error {
	if len(r.Products) == 0 {
		return fmt.Errorf("products must not be empty")
	}
	if len(r.Products) > maxBatchProducts {
		return fmt.Errorf("too many products: %d exceeds limit of %d", len(r.Products), maxBatchProducts)
	}
	return nil
}

// BatchResponse is the result of a batch pricing request. Products that
// failed individually are absent from Results and listed in Skipped.
type BatchResponse struct {
	Results   map[string]*pricing.PricingResult `json:"results"`
	Requested int                               `json:"requested"`
	Priced    int                               `json:"priced"`
	Skipped   []string                          `json:"skipped,omitempty"`
}

// MarketDataRequest is the payload for PUT /api/v1/market-data.
type MarketDataRequest struct {
	DemandScores map[string]float64 `json:"demand_scores"`
}

// Validate checks that the update carries at least one score.
func (r *MarketDataRequest) Validate() error {
	if len(r.DemandScores) == 0 {
		return fmt.Errorf("demand_scores must not be empty")
	}
	return nil
}

// decodeJSON reads and decodes a bounded JSON request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
