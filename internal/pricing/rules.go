// Stackprice - Personalization Pricing Engine
// Copyright 2026 Stackprice Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stackprice/stackprice

package pricing

import "fmt"

// ruleOutcome is the result of evaluating one rule against one request.
type ruleOutcome struct {
	applies    bool
	adjustment float64
	reason     string
}

// evaluateRule checks every condition of the rule against the enriched
// context and the product, then resolves the adjustment. It is pure: no side
// effects, no I/O. A rule applies only if all of its conditions hold; a
// condition over an absent enrichment field fails closed.
//
// An error means the rule itself is malformed; callers isolate it (skip and
// log) so one bad rule never aborts evaluation of the rest.
func evaluateRule(rule *PricingRule, uctx *UserContext, product *ProductInfo) (ruleOutcome, error) {
	for field, cond := range rule.Conditions {
		ok, err := matchCondition(field, cond, uctx, product)
		if err != nil {
			return ruleOutcome{}, fmt.Errorf("rule %s: %w", rule.ID, err)
		}
		if !ok {
			return ruleOutcome{}, nil
		}
	}

	adj, err := resolveAdjustment(rule.Adjustment, product.BasePrice)
	if err != nil {
		return ruleOutcome{}, fmt.Errorf("rule %s: %w", rule.ID, err)
	}

	return ruleOutcome{
		applies:    true,
		adjustment: adj,
		reason:     describeAdjustment(rule.Adjustment),
	}, nil
}

// describeAdjustment renders an adjustment spec for applied-rule entries and
// explanations.
func describeAdjustment(adj Adjustment) string {
	switch adj.Kind {
	case AdjustPercentDiscount:
		return fmt.Sprintf("%g%% off", adj.Value)
	case AdjustMultiplier:
		return fmt.Sprintf("price multiplier %g", adj.Value)
	case AdjustFixedDiscount:
		return fmt.Sprintf("%g off list price", adj.Value)
	default:
		return string(adj.Kind)
	}
}

// matchCondition evaluates a single predicate. Absent enrichment fields make
// the predicate false rather than erroring - pricing degrades to the rules
// that don't need enrichment.
func matchCondition(field ConditionField, cond Condition, uctx *UserContext, product *ProductInfo) (bool, error) {
	switch field {
	case FieldMembershipTier:
		if cond.Op != OpEq {
			return false, fmt.Errorf("field %s: unsupported operator %q", field, cond.Op)
		}
		return uctx.MembershipTier == cond.StringValue, nil

	case FieldEngagementScore:
		if uctx.EngagementScore == nil {
			return false, nil
		}
		return compareNumber(cond.Op, *uctx.EngagementScore, cond.NumberValue)

	case FieldDaysSinceSignup:
		if uctx.DaysSinceSignup == nil {
			return false, nil
		}
		return compareNumber(cond.Op, float64(*uctx.DaysSinceSignup), cond.NumberValue)

	case FieldCartValue:
		return compareNumber(cond.Op, uctx.CartValue, cond.NumberValue)

	case FieldMaxItemAffinity:
		affinity, ok := maxItemAffinity(uctx, product)
		if !ok {
			return false, nil
		}
		return compareNumber(cond.Op, affinity, cond.NumberValue)

	default:
		return false, fmt.Errorf("unknown condition field %q", field)
	}
}

// maxItemAffinity returns the highest affinity score across the product's
// tags and style. The second return is false when affinity data is absent or
// no tag has a score.
func maxItemAffinity(uctx *UserContext, product *ProductInfo) (float64, bool) {
	if uctx.CategoryAffinity == nil {
		return 0, false
	}

	best := 0.0
	found := false
	for _, tag := range product.Tags {
		if score, ok := uctx.CategoryAffinity[tag]; ok && (!found || score > best) {
			best = score
			found = true
		}
	}
	if product.Style != "" {
		if score, ok := uctx.CategoryAffinity[product.Style]; ok && (!found || score > best) {
			best = score
			found = true
		}
	}
	return best, found
}

func compareNumber(op ConditionOp, actual, threshold float64) (bool, error) {
	switch op {
	case OpGt:
		return actual > threshold, nil
	case OpGte:
		return actual >= threshold, nil
	case OpLt:
		return actual < threshold, nil
	case OpLte:
		return actual <= threshold, nil
	case OpEq:
		return actual == threshold, nil
	default:
		return false, fmt.Errorf("unsupported numeric operator %q", op)
	}
}

// resolveAdjustment converts a matched rule's adjustment spec into a signed
// fraction of the base price.
func resolveAdjustment(adj Adjustment, basePrice float64) (float64, error) {
	switch adj.Kind {
	case AdjustPercentDiscount:
		return -adj.Value / 100, nil
	case AdjustMultiplier:
		return adj.Value - 1, nil
	case AdjustFixedDiscount:
		if basePrice <= 0 {
			return 0, fmt.Errorf("fixed discount needs positive base price, got %v", basePrice)
		}
		return -adj.Value / basePrice, nil
	default:
		return 0, fmt.Errorf("unknown adjustment kind %q", adj.Kind)
	}
}
