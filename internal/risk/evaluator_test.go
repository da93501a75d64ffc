package risk

import (
	"testing"

	"AlphaPipe/internal/domain/models"
)

func baseCtx() models.RiskContext {
	return models.RiskContext{
		Symbol:       "BTCUSDT",
		Exchange:     "binance",
		PnL:          0,
		Exposure:     1000,
		Leverage:     1,
		MaxDailyLoss: 100,
		MaxExposure:  10000,
		MaxLeverage:  3,
	}
}

func action() *models.Action {
	return &models.Action{
		SignalID: "ar4-1700000000",
		Symbol:   "BTCUSDT",
		Side:     models.SideBuy,
		Size:     0.02,
		Price:    50000,
	}
}

func TestDailyLossBoundary(t *testing.T) {
	e := NewEvaluator()

	ctx := baseCtx()
	ctx.PnL = -101
	v := e.Evaluate(action(), ctx)
	if v.Allow {
		t.Fatalf("pnl -101 under limit 100 must block")
	}
	if v.Reason != "max daily loss" {
		t.Fatalf("reason: got %q", v.Reason)
	}

	ctx.PnL = -99
	v = e.Evaluate(action(), ctx)
	if !v.Allow {
		t.Fatalf("pnl -99 under limit 100 must allow, got %q", v.Reason)
	}

	// exactly at the limit is still allowed
	ctx.PnL = -100
	if v = e.Evaluate(action(), ctx); !v.Allow {
		t.Fatalf("pnl at the limit must allow, got %q", v.Reason)
	}
}

func TestExposureCap(t *testing.T) {
	e := NewEvaluator()
	ctx := baseCtx()
	ctx.Exposure = 10001
	v := e.Evaluate(action(), ctx)
	if v.Allow || v.Reason != "max exposure" {
		t.Fatalf("verdict: %+v", v)
	}
}

func TestLeverageCap(t *testing.T) {
	e := NewEvaluator()
	ctx := baseCtx()
	ctx.Leverage = 3.5
	v := e.Evaluate(action(), ctx)
	if v.Allow || v.Reason != "max leverage" {
		t.Fatalf("verdict: %+v", v)
	}
}

func TestStaleFeedBlocks(t *testing.T) {
	e := NewEvaluator()
	ctx := baseCtx()
	ctx.FeedStale = true
	v := e.Evaluate(action(), ctx)
	if v.Allow || v.Reason != "stale feed" {
		t.Fatalf("verdict: %+v", v)
	}
}

func TestFirstBlockingRuleWinsReason(t *testing.T) {
	e := NewEvaluator()
	ctx := baseCtx()
	ctx.PnL = -500
	ctx.Exposure = 99999
	ctx.Leverage = 10
	ctx.FeedStale = true
	v := e.Evaluate(action(), ctx)
	if v.Allow {
		t.Fatalf("all limits breached must block")
	}
	if v.Reason != "max daily loss" {
		t.Fatalf("fixed rule order: got %q want max daily loss", v.Reason)
	}
}

func TestCleanContextAllows(t *testing.T) {
	e := NewEvaluator()
	v := e.Evaluate(action(), baseCtx())
	if !v.Allow || v.Reason != "" || v.Adjusted != nil {
		t.Fatalf("verdict: %+v", v)
	}
}
