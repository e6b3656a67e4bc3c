// Stackprice - Personalization Pricing Engine
// Copyright 2026 Stackprice Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stackprice/stackprice

// Package pricing implements the personalization pricing engine: it turns a
// catalog price into a per-user, per-moment price by combining a prioritized
// rule set, live market-demand signals, and cached behavioral predictions.
//
// Rule application is additive, not exclusive: every matching rule's
// adjustment is summed into the total, and priority governs only the order in
// which applied rules are listed and explained. Stacking is why the total is
// clamped to hard global bounds before the margin floor is enforced.
package pricing

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/stackprice/stackprice/internal/metrics"
)

// Confidence heuristic parameters. Confidence reflects breadth of
// corroborating signals, not statistical certainty.
const (
	baseConfidence        = 0.8
	ruleConfidenceStep    = 0.05
	predConfidenceBonus   = 0.1
	defaultValidityWindow = 15 * time.Minute

	// floatTolerance absorbs float64 noise in price comparisons; far below a
	// cent, far above accumulated arithmetic error.
	floatTolerance = 1e-9
)

// Config holds the engine's bounds and operational limits.
type Config struct {
	// MaxDiscount is the largest total downward adjustment, as a fraction.
	MaxDiscount float64 `koanf:"max_discount"`

	// MaxIncrease is the largest total upward adjustment, as a fraction.
	MaxIncrease float64 `koanf:"max_increase"`

	// MinMargin is the minimum margin over estimated cost; the floor
	// price is cost * (1 + MinMargin), enforced after the clamp.
	MinMargin float64 `koanf:"min_margin"`

	// ValidityWindow is how long a PricingResult stays valid.
	ValidityWindow time.Duration `koanf:"validity_window"`

	// BatchConcurrency bounds parallel product evaluation in a batch.
	BatchConcurrency int `koanf:"batch_concurrency"`

	// PredictionTimeout bounds the prediction-cache lookup per request.
	PredictionTimeout time.Duration `koanf:"prediction_timeout"`
}

// DefaultConfig returns the production defaults: 50% max discount, 30% max
// increase, 10% minimum margin.
func DefaultConfig() *Config {
	return &Config{
		MaxDiscount:       0.5,
		MaxIncrease:       0.3,
		MinMargin:         0.1,
		ValidityWindow:    defaultValidityWindow,
		BatchConcurrency:  8,
		PredictionTimeout: 2 * time.Second,
	}
}

// Validate checks the config for values that would break the bound
// invariants.
func (c *Config) Validate() error {
	if c.MaxDiscount < 0 || c.MaxDiscount > 1 {
		return fmt.Errorf("max_discount must be in [0,1], got %v", c.MaxDiscount)
	}
	if c.MaxIncrease < 0 {
		return fmt.Errorf("max_increase must be non-negative, got %v", c.MaxIncrease)
	}
	if c.MinMargin < 0 {
		return fmt.Errorf("min_margin must be non-negative, got %v", c.MinMargin)
	}
	if c.BatchConcurrency <= 0 {
		return fmt.Errorf("batch_concurrency must be positive, got %d", c.BatchConcurrency)
	}
	return nil
}

// AuditSink receives pricing decisions fire-and-forget. Implementations must
// not block and must swallow their own errors; a sink failure never affects
// the returned price.
type AuditSink interface {
	RecordDecision(userID, sessionID string, result *PricingResult)
}

// Engine computes personalized prices. It is safe for concurrent use: the
// rule snapshot and market table are atomic-swap values, and everything else
// per request is pure computation over already-fetched data.
type Engine struct {
	config      *Config
	snapshots   *SnapshotStore
	market      *MarketData
	enricher    *Enricher
	predictions PredictionSource
	audit       AuditSink
	logger      zerolog.Logger
}

// NewEngine creates a pricing engine over a rule snapshot store and a market
// data table.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewEngine(cfg *Config, snapshots *SnapshotStore, market *MarketData, logger zerolog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.ValidityWindow <= 0 {
		cfg.ValidityWindow = defaultValidityWindow
	}
	if snapshots == nil {
		return nil, fmt.Errorf("snapshot store is required")
	}
	if market == nil {
		return nil, fmt.Errorf("market data table is required")
	}

	return &Engine{
		config:    cfg,
		snapshots: snapshots,
		market:    market,
		logger:    logger.With().Str("component", "engine").Logger(),
	}, nil
}

// SetEnricher attaches a context enricher. Optional; without one, pricing
// uses the caller-supplied context as-is.
func (e *Engine) SetEnricher(enricher *Enricher) {
	e.enricher = enricher
}

// SetPredictionSource attaches a behavioral prediction cache. Optional.
func (e *Engine) SetPredictionSource(src PredictionSource) {
	e.predictions = src
}

// SetAuditSink attaches a decision audit sink. Optional.
func (e *Engine) SetAuditSink(sink AuditSink) {
	e.audit = sink
}

// UpdateMarketData merges new demand scores into the live market table.
func (e *Engine) UpdateMarketData(updates map[string]float64) {
	e.market.Update(updates)
}

// Invalidate requests an out-of-band rule refresh.
func (e *Engine) Invalidate() {
	e.snapshots.Invalidate()
}

// CalculatePrice prices one product for one user context. The only error is
// malformed product input; every upstream fault (refresh, enrichment,
// predictions, audit) degrades instead of surfacing.
func (e *Engine) CalculatePrice(ctx context.Context, product ProductInfo, uctx UserContext) (*PricingResult, error) {
	start := time.Now()

	if err := product.Validate(); err != nil {
		metrics.CalculationsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	enriched := e.enrichContext(ctx, uctx)
	preds := e.fetchPredictions(ctx, uctx.UserID)

	result := e.price(&product, &enriched, preds)
	e.recordDecision(&uctx, result)

	metrics.CalculationsTotal.WithLabelValues("ok").Inc()
	metrics.CalculationDuration.Observe(time.Since(start).Seconds())
	return result, nil
}

// CalculateBatch prices many products for one user context, enriching and
// fetching predictions once. Per-product failures (malformed input, panics)
// are logged and excluded from the result map; they never abort the batch.
func (e *Engine) CalculateBatch(ctx context.Context, products []ProductInfo, uctx UserContext) map[string]*PricingResult {
	start := time.Now()

	enriched := e.enrichContext(ctx, uctx)
	preds := e.fetchPredictions(ctx, uctx.UserID)

	var mu sync.Mutex
	results := make(map[string]*PricingResult, len(products))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(e.config.BatchConcurrency)

	for i := range products {
		product := products[i]
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					metrics.CalculationsTotal.WithLabelValues("panic").Inc()
					e.logger.Error().Str("product_id", product.ID).Interface("panic", r).
						Msg("pricing panicked, product excluded from batch")
				}
			}()

			if err := product.Validate(); err != nil {
				metrics.CalculationsTotal.WithLabelValues("invalid").Inc()
				e.logger.Warn().Err(err).Str("product_id", product.ID).
					Msg("malformed product excluded from batch")
				return nil
			}

			result := e.price(&product, &enriched, preds)

			mu.Lock()
			results[product.ID] = result
			mu.Unlock()

			e.recordDecision(&uctx, result)
			metrics.CalculationsTotal.WithLabelValues("ok").Inc()
			return nil
		})
	}
	_ = g.Wait()

	metrics.BatchSize.Observe(float64(len(products)))
	e.logger.Debug().
		Int("requested", len(products)).
		Int("priced", len(results)).
		Int64("latency_ms", time.Since(start).Milliseconds()).
		Msg("batch complete")

	return results
}

// price runs the single-product pipeline over already-fetched data. Pure
// except for logging and metrics.
func (e *Engine) price(product *ProductInfo, uctx *UserContext, preds *Predictions) *PricingResult {
	rules := e.snapshots.Rules()

	applied := make([]AppliedRule, 0, 4)
	var ruleTotal float64
	for i := range rules {
		rule := &rules[i]
		outcome, err := evaluateRule(rule, uctx, product)
		if err != nil {
			// Fault isolation: a broken rule is non-applicable, the rest
			// still evaluate.
			metrics.RuleEvalErrors.Inc()
			e.logger.Warn().Err(err).Str("rule_id", rule.ID).Msg("rule evaluation failed, skipping")
			continue
		}
		if !outcome.applies {
			continue
		}
		applied = append(applied, AppliedRule{
			RuleName:   rule.Name,
			Adjustment: outcome.adjustment,
			Reason:     outcome.reason,
		})
		ruleTotal += outcome.adjustment
	}

	marketAdj := e.market.Adjustment(product)
	predAdj := predictionAdjustment(preds, product)

	total := clamp(ruleTotal+marketAdj+predAdj, -e.config.MaxDiscount, e.config.MaxIncrease)

	// Clamp first, then floor: the margin floor can reduce the effective
	// discount below what the clamp allowed. A binding floor rounds up to the
	// next cent, so rounding can never push the price under it; the epsilon
	// keeps float noise in cost*(1+margin) from forcing a spurious extra cent.
	price := roundCents(product.BasePrice * (1 + total))
	if floor := product.EstimatedCost * (1 + e.config.MinMargin); price < floor-floatTolerance {
		price = math.Ceil((floor-floatTolerance)*100) / 100
	}

	discount := roundCents(product.BasePrice - price)
	discountPct := discount / product.BasePrice * 100

	metrics.RulesApplied.Observe(float64(len(applied)))

	return &PricingResult{
		ProductID:       product.ID,
		OriginalPrice:   product.BasePrice,
		AdjustedPrice:   price,
		DiscountAmount:  discount,
		DiscountPercent: discountPct,
		AppliedRules:    applied,
		Confidence:      confidence(len(applied), predAdj),
		ValidUntil:      time.Now().Add(e.config.ValidityWindow),
		Explanation:     explain(applied, discountPct),
	}
}

func (e *Engine) enrichContext(ctx context.Context, uctx UserContext) UserContext {
	if e.enricher == nil {
		return uctx
	}
	return e.enricher.Enrich(ctx, uctx)
}

// fetchPredictions reads the prediction cache best-effort. Absence and
// failure both degrade to "no signal".
func (e *Engine) fetchPredictions(ctx context.Context, userID string) *Predictions {
	if e.predictions == nil || userID == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.PredictionTimeout)
	defer cancel()

	preds, err := e.predictions.GetUserPredictions(ctx, userID)
	if err != nil {
		e.logger.Warn().Err(err).Str("user_id", userID).Msg("prediction lookup failed, pricing without signal")
		return nil
	}
	return preds
}

func (e *Engine) recordDecision(uctx *UserContext, result *PricingResult) {
	if e.audit == nil {
		return
	}
	e.audit.RecordDecision(uctx.UserID, uctx.SessionID, result)
}

// confidence accumulates the signal-breadth heuristic: 0.8 base, +0.05 per
// applied rule, +0.1 for a non-zero prediction contribution, capped at 1.
func confidence(appliedRules int, predAdj float64) float64 {
	c := baseConfidence + ruleConfidenceStep*float64(appliedRules)
	if predAdj != 0 {
		c += predConfidenceBonus
	}
	if c > 1 {
		c = 1
	}
	return c
}

// explain renders the dominant (first-listed) applied rule into one message,
// with phrasing bands by net discount magnitude.
func explain(applied []AppliedRule, discountPct float64) string {
	if len(applied) == 0 {
		return "Standard pricing applies to this item."
	}

	reason := applied[0].Reason
	switch {
	case discountPct > 20:
		return fmt.Sprintf("Great deal: %s brings this price down %.0f%%.", reason, discountPct)
	case discountPct > 10:
		return fmt.Sprintf("%s takes %.0f%% off this item.", reason, discountPct)
	case discountPct > 0:
		return fmt.Sprintf("%s gives you a small %.0f%% discount.", reason, discountPct)
	default:
		return fmt.Sprintf("%s applies; current demand keeps this at or above list price.", reason)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
