// Stackprice - Personalization Pricing Engine
// Copyright 2026 Stackprice Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stackprice/stackprice

// Package audit records pricing decisions asynchronously for analytics and
// compliance. Recording is strictly best-effort: a full buffer drops the
// event, a failing store logs locally, and nothing here ever delays or fails
// a pricing request.
package audit

import (
	"context"
	"time"
)

// Decision is one recorded pricing decision.
type Decision struct {
	// ID is a unique identifier for this record.
	ID string `json:"id"`

	// Timestamp when the decision was made.
	Timestamp time.Time `json:"timestamp"`

	// UserID and SessionID identify the priced-for user.
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`

	// ProductID identifies the priced product.
	ProductID string `json:"product_id"`

	OriginalPrice   float64 `json:"original_price"`
	AdjustedPrice   float64 `json:"adjusted_price"`
	DiscountPercent float64 `json:"discount_percent"`

	// AppliedRules lists the names of the rules that contributed, in
	// evaluation order.
	AppliedRules []string `json:"applied_rules"`

	Confidence float64 `json:"confidence"`
}

// QueryFilter selects decisions for Query and Count.
type QueryFilter struct {
	UserID    string
	ProductID string
	Since     time.Time
	Until     time.Time
	Limit     int
}

// Store persists decisions. Implementations must be safe for concurrent use.
type Store interface {
	// Save persists one decision.
	Save(ctx context.Context, d *Decision) error

	// Query returns decisions matching the filter, newest first.
	Query(ctx context.Context, filter QueryFilter) ([]Decision, error)

	// Count returns the number of decisions matching the filter.
	Count(ctx context.Context, filter QueryFilter) (int64, error)

	// DeleteBefore removes decisions older than the cutoff and returns how
	// many were removed.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases store resources.
	Close() error
}

func (f QueryFilter) matches(d *Decision) bool {
	if f.UserID != "" && d.UserID != f.UserID {
		return false
	}
	if f.ProductID != "" && d.ProductID != f.ProductID {
		return false
	}
	if !f.Since.IsZero() && d.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && d.Timestamp.After(f.Until) {
		return false
	}
	return true
}
