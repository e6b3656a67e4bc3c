// Stackprice - Personalization Pricing Engine
// Copyright 2026 Stackprice Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stackprice/stackprice

package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeProfileStore struct {
	profile *Profile
	err     error
	calls   int
}

func (f *fakeProfileStore) GetProfile(_ context.Context, _ string) (*Profile, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.profile, nil
}

type fakeBehaviorStore struct {
	orders []OrderSummary
	err    error
}

func (f *fakeBehaviorStore) RecentOrders(_ context.Context, _ string, limit int) ([]OrderSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && len(f.orders) > limit {
		return f.orders[:limit], nil
	}
	return f.orders, nil
}

func TestEnrichPopulatesFields(t *testing.T) {
	signup := time.Now().AddDate(0, 0, -45)
	profiles := &fakeProfileStore{profile: &Profile{
		EngagementScore:     0.72,
		CategoryAffinity:    map[string]float64{"minimalist": 0.9},
		DesignPreferences:   map[string]float64{"modern": 0.8},
		PurchaseProbability: 0.65,
		SignupDate:          signup,
	}}
	behavior := &fakeBehaviorStore{orders: []OrderSummary{{OrderID: "o1", Total: 50}}}

	enricher := NewEnricher(profiles, behavior, time.Second, zerolog.Nop())
	got := enricher.Enrich(context.Background(), UserContext{UserID: "u1", CartValue: 10})

	if got.EngagementScore == nil || !almostEqual(*got.EngagementScore, 0.72) {
		t.Errorf("EngagementScore = %v, want 0.72", got.EngagementScore)
	}
	if got.PurchaseProbability == nil || !almostEqual(*got.PurchaseProbability, 0.65) {
		t.Errorf("PurchaseProbability = %v, want 0.65", got.PurchaseProbability)
	}
	if got.CategoryAffinity["minimalist"] != 0.9 {
		t.Errorf("CategoryAffinity = %v", got.CategoryAffinity)
	}
	if got.DaysSinceSignup == nil || *got.DaysSinceSignup != 45 {
		t.Errorf("DaysSinceSignup = %v, want 45", got.DaysSinceSignup)
	}
	if len(got.RecentOrders) != 1 {
		t.Errorf("RecentOrders len = %d, want 1", len(got.RecentOrders))
	}
	if got.CartValue != 10 {
		t.Error("caller-supplied fields must be preserved")
	}
}

func TestEnrichDegradesOnProfileFailure(t *testing.T) {
	profiles := &fakeProfileStore{err: errors.New("profile store down")}
	enricher := NewEnricher(profiles, nil, time.Second, zerolog.Nop())

	got := enricher.Enrich(context.Background(), UserContext{UserID: "u1", MembershipTier: "premium"})

	if got.EngagementScore != nil || got.PurchaseProbability != nil || got.CategoryAffinity != nil {
		t.Error("enrichment fields should be absent after a failed lookup")
	}
	if got.MembershipTier != "premium" {
		t.Error("caller-supplied fields must survive enrichment failure")
	}
}

func TestEnrichMissingProfileIsNotAnError(t *testing.T) {
	profiles := &fakeProfileStore{profile: nil}
	enricher := NewEnricher(profiles, nil, time.Second, zerolog.Nop())

	got := enricher.Enrich(context.Background(), UserContext{UserID: "unknown"})
	if got.EngagementScore != nil {
		t.Error("no profile should leave enrichment fields absent")
	}
}

func TestEnrichSkipsEmptyUserID(t *testing.T) {
	profiles := &fakeProfileStore{profile: &Profile{EngagementScore: 0.9}}
	enricher := NewEnricher(profiles, nil, time.Second, zerolog.Nop())

	got := enricher.Enrich(context.Background(), UserContext{})
	if got.EngagementScore != nil {
		t.Error("anonymous context should not be enriched")
	}
	if profiles.calls != 0 {
		t.Errorf("profile store called %d times for anonymous context", profiles.calls)
	}
}

func TestEnrichBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	profiles := &fakeProfileStore{err: errors.New("profile store down")}
	enricher := NewEnricher(profiles, nil, time.Second, zerolog.Nop())

	for i := 0; i < 10; i++ {
		enricher.Enrich(context.Background(), UserContext{UserID: "u1"})
	}

	// The breaker trips at 5 consecutive failures; later calls short-circuit
	// without reaching the store.
	if profiles.calls >= 10 {
		t.Errorf("store calls = %d, breaker should have short-circuited", profiles.calls)
	}
}

func TestEnrichBehaviorFailureLeavesOrdersAbsent(t *testing.T) {
	profiles := &fakeProfileStore{profile: &Profile{EngagementScore: 0.5}}
	behavior := &fakeBehaviorStore{err: errors.New("behavior store down")}
	enricher := NewEnricher(profiles, behavior, time.Second, zerolog.Nop())

	got := enricher.Enrich(context.Background(), UserContext{UserID: "u1"})
	if got.RecentOrders != nil {
		t.Error("RecentOrders should be absent after lookup failure")
	}
	if got.EngagementScore == nil {
		t.Error("profile enrichment should still apply")
	}
}
