// Package risk gates order actions against account limits. Rules are
// pure functions over a RiskContext; the evaluator runs them in a fixed
// order and short-circuits on the first block so the reported reason is
// deterministic when several limits fire at once.
package risk

import (
	"AlphaPipe/internal/domain/models"
)

// Rule inspects a context and either allows or blocks with a reason.
type Rule func(ctx models.RiskContext) (allow bool, reason string)

// MaxDailyLoss blocks once realized pnl breaches the daily loss limit.
func MaxDailyLoss(ctx models.RiskContext) (bool, string) {
	if ctx.PnL < -ctx.MaxDailyLoss {
		return false, "max daily loss"
	}
	return true, ""
}

// MaxExposure blocks when open exposure exceeds the cap.
func MaxExposure(ctx models.RiskContext) (bool, string) {
	if ctx.Exposure > ctx.MaxExposure {
		return false, "max exposure"
	}
	return true, ""
}

// MaxLeverage blocks when account leverage exceeds the cap.
func MaxLeverage(ctx models.RiskContext) (bool, string) {
	if ctx.Leverage > ctx.MaxLeverage {
		return false, "max leverage"
	}
	return true, ""
}

// StaleFeed blocks all actions while the market feed is stale.
func StaleFeed(ctx models.RiskContext) (bool, string) {
	if ctx.FeedStale {
		return false, "stale feed"
	}
	return true, ""
}

// Evaluator composes the rule pack. Stateless and safe for concurrent
// use.
type Evaluator struct {
	rules []Rule
}

// NewEvaluator builds the shipped rule pack in its fixed order.
func NewEvaluator() *Evaluator {
	return &Evaluator{rules: []Rule{MaxDailyLoss, MaxExposure, MaxLeverage, StaleFeed}}
}

// Evaluate gates one action. The shipped rules only allow or block;
// verdicts carry an Adjusted slot so future rules can shrink an action
// instead of rejecting it.
func (e *Evaluator) Evaluate(action *models.Action, ctx models.RiskContext) models.RiskVerdict {
	for _, rule := range e.rules {
		if allow, reason := rule(ctx); !allow {
			return models.RiskVerdict{Allow: false, Reason: reason}
		}
	}
	return models.RiskVerdict{Allow: true}
}
