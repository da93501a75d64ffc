package policy

import (
	"testing"

	"AlphaPipe/internal/domain/models"
	"AlphaPipe/internal/features"
)

func sig(ts int64, score float64) *models.AlphaSignal {
	return &models.AlphaSignal{
		ID:         models.SignalID("ar4", ts),
		Timestamp:  ts,
		Symbol:     "BTCUSDT",
		Exchange:   "binance",
		Timeframe:  "1m",
		Score:      score,
		Confidence: 0.9,
		HorizonSec: 300,
	}
}

func fvWith(close, atr float64) *models.FeatureVector {
	return &models.FeatureVector{
		Timestamp: 1700000000,
		Exchange:  "binance",
		Symbol:    "BTCUSDT",
		Timeframe: "1m",
		Features: map[string]float64{
			features.FeatClose: close,
			features.FeatATR:   atr,
		},
	}
}

func TestNewDecisionPolicyRejectsInvertedThresholds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnterThreshold = 0.2
	cfg.ExitThreshold = 0.4
	if _, err := NewDecisionPolicy(cfg); err == nil {
		t.Fatalf("expected error for enter < exit")
	}
}

func TestOpenLongWithBrackets(t *testing.T) {
	p, err := NewDecisionPolicy(DefaultConfig())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	a, err := p.GenerateAction(sig(1700000000, 0.8), fvWith(50000, 500))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if a == nil {
		t.Fatalf("expected an open action")
	}
	if a.Side != models.SideBuy {
		t.Fatalf("side: got %s want buy", a.Side)
	}
	if a.Reason != models.ReasonEntrySignal {
		t.Fatalf("reason: got %s", a.Reason)
	}
	if a.TakeProfit <= a.Price {
		t.Fatalf("long take-profit must be above entry: tp=%v price=%v", a.TakeProfit, a.Price)
	}
	if a.StopLoss >= a.Price {
		t.Fatalf("long stop-loss must be below entry: sl=%v price=%v", a.StopLoss, a.Price)
	}
	if want := 1000.0 / 50000; a.Size != want {
		t.Fatalf("size: got %v want %v", a.Size, want)
	}
	if a.ATR != 500 {
		t.Fatalf("atr metadata: got %v", a.ATR)
	}
	if st := p.State(); st.Side != PositionLong || st.Size != a.Size {
		t.Fatalf("state after open: %+v", st)
	}
}

func TestReversalEmitsOnlyNewOpen(t *testing.T) {
	p, err := NewDecisionPolicy(DefaultConfig())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := p.GenerateAction(sig(1700000000, 0.8), fvWith(50000, 500)); err != nil {
		t.Fatalf("open: %v", err)
	}
	a, err := p.GenerateAction(sig(1700000060, -0.9), fvWith(49800, 500))
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if a == nil || a.Side != models.SideSell {
		t.Fatalf("reversal action: %+v", a)
	}
	if a.Reason != models.ReasonReversal {
		t.Fatalf("reason: got %s want reversal", a.Reason)
	}
	if a.TakeProfit >= a.Price || a.StopLoss <= a.Price {
		t.Fatalf("short brackets: tp=%v sl=%v price=%v", a.TakeProfit, a.StopLoss, a.Price)
	}
	if st := p.State(); st.Side != PositionShort || st.Size <= 0 {
		t.Fatalf("state after reversal: %+v", st)
	}
}

func TestExitBelowThreshold(t *testing.T) {
	p, err := NewDecisionPolicy(DefaultConfig())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	open, err := p.GenerateAction(sig(1700000000, 0.8), fvWith(50000, 500))
	if err != nil || open == nil {
		t.Fatalf("open: %v %v", open, err)
	}
	a, err := p.GenerateAction(sig(1700000060, 0.2), fvWith(50100, 500))
	if err != nil {
		t.Fatalf("exit: %v", err)
	}
	if a == nil || a.Side != models.SideSell {
		t.Fatalf("close action: %+v", a)
	}
	if a.Reason != models.ReasonExitThreshold {
		t.Fatalf("reason: got %s want exit_threshold", a.Reason)
	}
	if a.Size != open.Size {
		t.Fatalf("close size: got %v want %v", a.Size, open.Size)
	}
	if st := p.State(); !st.Flat() || st.Side != "" {
		t.Fatalf("state after exit: %+v", st)
	}
}

func TestHoldInsideHysteresisBand(t *testing.T) {
	p, err := NewDecisionPolicy(DefaultConfig())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := p.GenerateAction(sig(1700000000, 0.8), fvWith(50000, 500)); err != nil {
		t.Fatalf("open: %v", err)
	}
	before := p.State()
	a, err := p.GenerateAction(sig(1700000060, 0.4), fvWith(50100, 500))
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	if a != nil {
		t.Fatalf("hold must emit nothing, got %+v", a)
	}
	if p.State() != before {
		t.Fatalf("state changed during hold")
	}
	// a weak opposite signal inside the band also holds
	a, err = p.GenerateAction(sig(1700000120, -0.4), fvWith(50100, 500))
	if err != nil || a != nil {
		t.Fatalf("weak opposite must hold: %+v %v", a, err)
	}
	if p.State() != before {
		t.Fatalf("state changed on weak opposite signal")
	}
}

func TestFlatBelowEnterDoesNothing(t *testing.T) {
	p, err := NewDecisionPolicy(DefaultConfig())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	a, err := p.GenerateAction(sig(1700000000, 0.4), fvWith(50000, 500))
	if err != nil || a != nil {
		t.Fatalf("below enter threshold: %+v %v", a, err)
	}
	if !p.State().Flat() {
		t.Fatalf("state must stay flat")
	}
}

func TestMissingFeaturesAbstainWithoutStateChange(t *testing.T) {
	p, err := NewDecisionPolicy(DefaultConfig())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	fv := &models.FeatureVector{
		Timestamp: 1700000000,
		Features:  map[string]float64{features.FeatClose: 50000},
	}
	a, err := p.GenerateAction(sig(1700000000, 0.8), fv)
	if err != nil || a != nil {
		t.Fatalf("missing atr: %+v %v", a, err)
	}
	if !p.State().Flat() {
		t.Fatalf("state must not change without atr")
	}
}

func TestATRScaledSizingClampedToMaxSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SizingMode = SizingATRScaled
	cfg.SizingMultiplier = 2.0
	cfg.MaxSize = 0.5
	p, err := NewDecisionPolicy(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	a, err := p.GenerateAction(sig(1700000000, 0.8), fvWith(100, 0.01))
	if err != nil || a == nil {
		t.Fatalf("open: %+v %v", a, err)
	}
	// 1000 / (100 * 0.01 * 2) = 500, clamped
	if a.Size != 0.5 {
		t.Fatalf("size: got %v want clamp 0.5", a.Size)
	}
}

func TestPolicyDeterminism(t *testing.T) {
	p1, _ := NewDecisionPolicy(DefaultConfig())
	p2, _ := NewDecisionPolicy(DefaultConfig())
	scores := []float64{0.8, 0.4, -0.9, -0.5, 0.1, 0.7, 0.2}
	for i, s := range scores {
		ts := int64(1700000000 + i*60)
		a1, err1 := p1.GenerateAction(sig(ts, s), fvWith(50000+float64(i), 500))
		a2, err2 := p2.GenerateAction(sig(ts, s), fvWith(50000+float64(i), 500))
		if err1 != nil || err2 != nil {
			t.Fatalf("step %d: %v %v", i, err1, err2)
		}
		if (a1 == nil) != (a2 == nil) {
			t.Fatalf("step %d: emission differs", i)
		}
		if a1 != nil && *a1 != *a2 {
			t.Fatalf("step %d: actions differ", i)
		}
	}
	if p1.State() != p2.State() {
		t.Fatalf("final state differs: %+v vs %+v", p1.State(), p2.State())
	}
}
