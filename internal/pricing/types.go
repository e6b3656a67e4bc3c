// Stackprice - Personalization Pricing Engine
// Copyright 2026 Stackprice Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stackprice/stackprice

package pricing

import (
	"fmt"
	"time"
)

// ConditionField identifies the context or product attribute a rule condition
// reads. The set is closed; rule loading rejects unknown fields.
type ConditionField string

// Supported condition fields.
const (
	FieldMembershipTier  ConditionField = "membership_tier"
	FieldEngagementScore ConditionField = "engagement_score"
	FieldDaysSinceSignup ConditionField = "days_since_signup"
	FieldCartValue       ConditionField = "cart_value"
	FieldMaxItemAffinity ConditionField = "max_item_affinity"
)

// ConditionOp is a comparison operator in a rule condition.
type ConditionOp string

// Supported condition operators.
const (
	OpEq  ConditionOp = "eq"
	OpGt  ConditionOp = "gt"
	OpGte ConditionOp = "gte"
	OpLt  ConditionOp = "lt"
	OpLte ConditionOp = "lte"
)

// Condition is one predicate of a rule's condition set. For OpEq the match
// value is StringValue; the numeric operators compare against NumberValue.
type Condition struct {
	Op          ConditionOp `json:"op"`
	StringValue string      `json:"string_value,omitempty"`
	NumberValue float64     `json:"number_value,omitempty"`
}

// AdjustmentKind discriminates the one-of adjustment spec of a rule.
type AdjustmentKind string

// Supported adjustment kinds.
const (
	AdjustPercentDiscount AdjustmentKind = "percent_discount"
	AdjustMultiplier      AdjustmentKind = "multiplier"
	AdjustFixedDiscount   AdjustmentKind = "fixed_discount"
)

// Adjustment is the price effect of a matched rule. Exactly one kind is set
// per rule; Value is the percentage, factor, or fixed amount respectively.
type Adjustment struct {
	Kind  AdjustmentKind `json:"kind"`
	Value float64        `json:"value"`
}

// PricingRule is a named condition set plus one adjustment. Rules are
// immutable once loaded into a snapshot; refresh replaces them wholesale.
// Priority orders presentation of applied rules only - it never makes rule
// application exclusive.
type PricingRule struct {
	ID         string                       `json:"id"`
	Name       string                       `json:"name"`
	Conditions map[ConditionField]Condition `json:"conditions"`
	Adjustment Adjustment                   `json:"adjustment"`
	Priority   int                          `json:"priority"`
	Active     bool                         `json:"active"`
}

// Validate checks the rule's tagged-union fields at load time so evaluation
// never needs runtime type probing.
func (r *PricingRule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule has no id")
	}
	if len(r.Conditions) == 0 {
		return fmt.Errorf("rule %s: empty condition set", r.ID)
	}

	for field, cond := range r.Conditions {
		switch field {
		case FieldMembershipTier:
			if cond.Op != OpEq {
				return fmt.Errorf("rule %s: field %s supports only %q, got %q", r.ID, field, OpEq, cond.Op)
			}
		case FieldEngagementScore, FieldDaysSinceSignup, FieldCartValue, FieldMaxItemAffinity:
			switch cond.Op {
			case OpGt, OpGte, OpLt, OpLte:
			default:
				return fmt.Errorf("rule %s: field %s: unsupported operator %q", r.ID, field, cond.Op)
			}
		default:
			return fmt.Errorf("rule %s: unknown condition field %q", r.ID, field)
		}
	}

	switch r.Adjustment.Kind {
	case AdjustPercentDiscount, AdjustMultiplier, AdjustFixedDiscount:
	default:
		return fmt.Errorf("rule %s: unknown adjustment kind %q", r.ID, r.Adjustment.Kind)
	}

	return nil
}

// OrderSummary is one entry of a user's bounded recent-order window.
type OrderSummary struct {
	OrderID  string    `json:"order_id"`
	Total    float64   `json:"total"`
	PlacedAt time.Time `json:"placed_at"`
}

// UserContext carries the caller-supplied request context plus optional
// enrichment fields. Enrichment fields are pointers (or nil-able maps): absent
// means "unknown", which is distinct from zero. Rules that read an absent
// field are treated as non-applicable.
type UserContext struct {
	UserID         string       `json:"user_id"`
	SessionID      string       `json:"session_id"`
	MembershipTier string       `json:"membership_tier"`
	CartValue      float64      `json:"cart_value"`
	TimeOfDay      int          `json:"time_of_day"`
	DayOfWeek      time.Weekday `json:"day_of_week"`

	// Enrichment-only fields; absent on enrichment failure.
	EngagementScore     *float64           `json:"engagement_score,omitempty"`
	CategoryAffinity    map[string]float64 `json:"category_affinity,omitempty"`
	DesignPreferences   map[string]float64 `json:"design_preferences,omitempty"`
	PurchaseProbability *float64           `json:"purchase_probability,omitempty"`
	DaysSinceSignup     *int               `json:"days_since_signup,omitempty"`
	RecentOrders        []OrderSummary     `json:"recent_orders,omitempty"`
}

// ProductInfo describes the item being priced.
type ProductInfo struct {
	ID             string   `json:"id"`
	BasePrice      float64  `json:"base_price"`
	Category       string   `json:"category"`
	ComplexityTier string   `json:"complexity_tier"`
	Tags           []string `json:"tags"`
	Style          string   `json:"style,omitempty"`
	EstimatedCost  float64  `json:"estimated_cost"`
	DemandScore    float64  `json:"demand_score"`
}

// Validate reports whether the product is well-formed enough to price.
// This is the only input error CalculatePrice surfaces to the caller.
func (p *ProductInfo) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("product has no id")
	}
	if p.BasePrice <= 0 {
		return fmt.Errorf("product %s: base price must be positive, got %v", p.ID, p.BasePrice)
	}
	if p.EstimatedCost <= 0 {
		return fmt.Errorf("product %s: estimated cost must be positive, got %v", p.ID, p.EstimatedCost)
	}
	if p.DemandScore < 0 || p.DemandScore > 1 {
		return fmt.Errorf("product %s: demand score out of range: %v", p.ID, p.DemandScore)
	}
	return nil
}

// RecommendedContent is one entry of a user's cached content recommendations.
type RecommendedContent struct {
	ID             string  `json:"id"`
	Type           string  `json:"type"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Predictions is the cached behavioral/ML output for a user. A nil Predictions
// is a valid "no signal" state, not an error.
type Predictions struct {
	// Strategy is the cached recommendation strategy hint
	// ("high_priority", "medium", or anything else for low).
	Strategy string `json:"strategy"`

	RecommendedContent []RecommendedContent `json:"recommended_content"`

	GeneratedAt time.Time `json:"generated_at"`
}

// AppliedRule records one rule that contributed to a price, in the order the
// rules were evaluated (descending priority).
type AppliedRule struct {
	RuleName   string  `json:"rule_name"`
	Adjustment float64 `json:"adjustment"`
	Reason     string  `json:"reason"`
}

// PricingResult is the per-request output of the engine. It is a value
// object: produced fresh per call, never mutated after construction, and
// expires at ValidUntil.
type PricingResult struct {
	ProductID       string        `json:"product_id"`
	OriginalPrice   float64       `json:"original_price"`
	AdjustedPrice   float64       `json:"adjusted_price"`
	DiscountAmount  float64       `json:"discount_amount"`
	DiscountPercent float64       `json:"discount_percent"`
	AppliedRules    []AppliedRule `json:"applied_rules"`
	Confidence      float64       `json:"confidence"`
	ValidUntil      time.Time     `json:"valid_until"`
	Explanation     string        `json:"explanation,omitempty"`
}
