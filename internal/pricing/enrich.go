// Stackprice - Personalization Pricing Engine
// Copyright 2026 Stackprice Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stackprice/stackprice

package pricing

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// Profile holds the per-user scores maintained by the behavioral pipeline.
type Profile struct {
	EngagementScore     float64            `json:"engagement_score"`
	CategoryAffinity    map[string]float64 `json:"category_affinity"`
	DesignPreferences   map[string]float64 `json:"design_preferences"`
	PurchaseProbability float64            `json:"purchase_probability"`
	SignupDate          time.Time          `json:"signup_date"`
}

// ProfileStore serves user profiles. A (nil, nil) return means no profile
// exists for the user.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
}

// BehaviorStore serves a bounded window of a user's recent orders.
type BehaviorStore interface {
	RecentOrders(ctx context.Context, userID string, limit int) ([]OrderSummary, error)
}

// recentOrderLimit bounds the behavior window attached to a context.
const recentOrderLimit = 10

// Enricher augments a caller-supplied context with profile scores and recent
// behavior. Every lookup is boundable by a timeout and guarded by a circuit
// breaker; on any failure the original context is returned unchanged so
// pricing degrades instead of failing.
type Enricher struct {
	profiles ProfileStore
	behavior BehaviorStore
	breaker  *gobreaker.CircuitBreaker[*Profile]
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewEnricher creates an enricher. behavior may be nil when no order history
// source is configured.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewEnricher(profiles ProfileStore, behavior BehaviorStore, timeout time.Duration, logger zerolog.Logger) *Enricher {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	log := logger.With().Str("component", "enricher").Logger()

	breaker := gobreaker.NewCircuitBreaker[*Profile](gobreaker.Settings{
		Name:    "profile-store",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})

	return &Enricher{
		profiles: profiles,
		behavior: behavior,
		breaker:  breaker,
		timeout:  timeout,
		logger:   log,
	}
}

// Enrich returns a copy of the context with enrichment fields populated.
// Lookup failures leave the corresponding fields absent; the caller's fields
// are never modified.
func (e *Enricher) Enrich(ctx context.Context, uctx UserContext) UserContext {
	if e == nil || uctx.UserID == "" {
		return uctx
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if e.profiles != nil {
		profile, err := e.breaker.Execute(func() (*Profile, error) {
			return e.profiles.GetProfile(ctx, uctx.UserID)
		})
		switch {
		case err != nil:
			e.logger.Warn().Err(err).Str("user_id", uctx.UserID).Msg("profile lookup failed, pricing without enrichment")
		case profile != nil:
			applyProfile(&uctx, profile)
		}
	}

	if e.behavior != nil {
		orders, err := e.behavior.RecentOrders(ctx, uctx.UserID, recentOrderLimit)
		if err != nil {
			e.logger.Warn().Err(err).Str("user_id", uctx.UserID).Msg("order history lookup failed")
		} else {
			uctx.RecentOrders = orders
		}
	}

	return uctx
}

func applyProfile(uctx *UserContext, profile *Profile) {
	engagement := profile.EngagementScore
	uctx.EngagementScore = &engagement

	probability := profile.PurchaseProbability
	uctx.PurchaseProbability = &probability

	if profile.CategoryAffinity != nil {
		uctx.CategoryAffinity = profile.CategoryAffinity
	}
	if profile.DesignPreferences != nil {
		uctx.DesignPreferences = profile.DesignPreferences
	}
	if !profile.SignupDate.IsZero() {
		days := int(time.Since(profile.SignupDate).Hours() / 24)
		uctx.DaysSinceSignup = &days
	}
}
