package usecase

import (
	"context"
	"testing"

	"AlphaPipe/internal/alpha"
	"AlphaPipe/internal/domain/models"
	"AlphaPipe/internal/features"
	"AlphaPipe/internal/policy"
)

type fakePublisher struct {
	features []*models.FeatureVector
	signals  []*models.AlphaSignal
	actions  []*models.Action
	verdicts []models.RiskVerdict
}

func (p *fakePublisher) PublishFeatures(_ context.Context, fv *models.FeatureVector) error {
	p.features = append(p.features, fv)
	return nil
}

func (p *fakePublisher) PublishSignal(_ context.Context, s *models.AlphaSignal) error {
	p.signals = append(p.signals, s)
	return nil
}

func (p *fakePublisher) PublishAction(_ context.Context, a *models.Action) error {
	p.actions = append(p.actions, a)
	return nil
}

func (p *fakePublisher) PublishVerdict(_ context.Context, _ *models.Action, v *models.RiskVerdict) error {
	p.verdicts = append(p.verdicts, *v)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type fakeOutbox struct {
	types    []string
	payloads []interface{}
}

func (o *fakeOutbox) PublishMessage(_ context.Context, msgType string, payload interface{}) error {
	o.types = append(o.types, msgType)
	o.payloads = append(o.payloads, payload)
	return nil
}

type fakeMetrics struct {
	records map[string]int
	errors  map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{records: make(map[string]int), errors: make(map[string]int)}
}

func (m *fakeMetrics) RecordRecord(kind, _ string)       { m.records[kind]++ }
func (m *fakeMetrics) RecordError(kind string)           { m.errors[kind]++ }
func (m *fakeMetrics) RecordLastPrice(_ string, _ float64) {}
func (m *fakeMetrics) RecordLatency(_ string, _ float64)   {}

type fakeRisk struct {
	ctx models.RiskContext
}

func (r *fakeRisk) Snapshot(_ context.Context, exchange, symbol string) models.RiskContext {
	out := r.ctx
	out.Exchange = exchange
	out.Symbol = symbol
	return out
}

// testPipelineConfig keeps the warmup short and silences the AR model so
// the MACD histogram path drives every decision.
func testPipelineConfig() PipelineConfig {
	cfg := DefaultPipelineConfig()
	cfg.Features = features.Config{
		Window:           6,
		RSIPeriod:        3,
		ATRPeriod:        3,
		MACDFast:         3,
		MACDSlow:         5,
		MACDSignal:       2,
		VolatileVolRatio: 2.0,
		TrendThreshold:   0.6,
	}
	cfg.AR4 = alpha.AR4Config{FitWindow: 50, MinRSquared: 0.999999, HorizonSec: 60}
	cfg.MACD = alpha.MACDConfig{MinHistogram: 1e-6, HorizonSec: 60, CrossoverMode: false}
	cfg.Policy = policy.Config{
		EnterThreshold: 0.05,
		ExitThreshold:  0.02,
		SizingMode:     policy.SizingSimple,
		FixedNotional:  1000,
		MaxSize:        10,
	}
	cfg.Risk = RiskLimits{MaxDailyLoss: 1000, MaxExposure: 1e9, MaxLeverage: 10}
	return cfg
}

func trendBar(i int) *models.Bar {
	c := 100 + 0.5*float64(i)
	return &models.Bar{
		Timestamp: int64(1700000000 + 60*i),
		Open:      c - 0.25,
		High:      c + 1,
		Low:       c - 1,
		Close:     c,
		Volume:    10,
		Exchange:  "binance",
		Symbol:    "BTCUSDT",
		Timeframe: "1m",
	}
}

func TestSessionWarmupProducesNoFeatures(t *testing.T) {
	sess, err := NewDecisionSession(testPipelineConfig(), nil)
	if err != nil {
		t.Fatalf("NewDecisionSession: %v", err)
	}

	for i := 0; i < 5; i++ {
		rec, err := sess.Step(context.Background(), *trendBar(i), models.RiskContext{})
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if rec.Features != nil || rec.Signal != nil || rec.Action != nil {
			t.Fatalf("step %d: expected bare record during warmup, got %+v", i, rec)
		}
	}

	rec, err := sess.Step(context.Background(), *trendBar(5), models.RiskContext{})
	if err != nil {
		t.Fatalf("step 5: %v", err)
	}
	if rec.Features == nil {
		t.Fatal("expected features once the window filled")
	}
}

func TestSessionRejectsOutOfOrderBars(t *testing.T) {
	sess, err := NewDecisionSession(testPipelineConfig(), nil)
	if err != nil {
		t.Fatalf("NewDecisionSession: %v", err)
	}

	if _, err := sess.Step(context.Background(), *trendBar(3), models.RiskContext{}); err != nil {
		t.Fatalf("first step: %v", err)
	}
	if _, err := sess.Step(context.Background(), *trendBar(1), models.RiskContext{}); err == nil {
		t.Fatal("expected an error for a bar older than the last accepted one")
	}
}

func TestSessionDeterminism(t *testing.T) {
	run := func() ([]DecisionRecord, policy.PolicyState) {
		sess, err := NewDecisionSession(testPipelineConfig(), nil)
		if err != nil {
			t.Fatalf("NewDecisionSession: %v", err)
		}
		var recs []DecisionRecord
		for i := 0; i < 18; i++ {
			rec, err := sess.Step(context.Background(), *trendBar(i), models.RiskContext{})
			if err != nil {
				t.Fatalf("step %d: %v", i, err)
			}
			recs = append(recs, *rec)
		}
		return recs, sess.PolicyState()
	}

	recs1, st1 := run()
	recs2, st2 := run()

	if st1 != st2 {
		t.Fatalf("final policy state diverged: %+v vs %+v", st1, st2)
	}
	for i := range recs1 {
		s1, s2 := recs1[i].Signal, recs2[i].Signal
		if (s1 == nil) != (s2 == nil) {
			t.Fatalf("step %d: signal presence diverged", i)
		}
		if s1 != nil && (s1.Score != s2.Score || s1.Confidence != s2.Confidence || s1.ID != s2.ID) {
			t.Fatalf("step %d: signal diverged: %+v vs %+v", i, s1, s2)
		}
		a1, a2 := recs1[i].Action, recs2[i].Action
		if (a1 == nil) != (a2 == nil) {
			t.Fatalf("step %d: action presence diverged", i)
		}
		if a1 != nil && (a1.Side != a2.Side || a1.Size != a2.Size || a1.Price != a2.Price) {
			t.Fatalf("step %d: action diverged: %+v vs %+v", i, a1, a2)
		}
	}
}

func TestPipelineAllowedActionsReachOutbox(t *testing.T) {
	pub := &fakePublisher{}
	outbox := &fakeOutbox{}
	m := newFakeMetrics()
	riskSrc := &fakeRisk{ctx: models.RiskContext{PnL: 0, Exposure: 0, Leverage: 1}}

	p := NewDecisionPipeline(testPipelineConfig(), nil, riskSrc, pub, outbox, m, nil)
	for i := 0; i < 18; i++ {
		if _, err := p.OnBar(context.Background(), trendBar(i)); err != nil {
			t.Fatalf("bar %d: %v", i, err)
		}
	}

	if len(pub.actions) == 0 {
		t.Fatal("expected at least one action on a steady uptrend")
	}
	if len(pub.verdicts) != len(pub.actions) {
		t.Fatalf("verdict count %d != action count %d", len(pub.verdicts), len(pub.actions))
	}
	allowed := 0
	for _, v := range pub.verdicts {
		if v.Allow {
			allowed++
		} else {
			t.Fatalf("unexpected block: %q", v.Reason)
		}
	}
	if len(outbox.types) != allowed {
		t.Fatalf("outbox got %d messages, want %d", len(outbox.types), allowed)
	}
	for _, typ := range outbox.types {
		if typ != ActionExecuteType {
			t.Fatalf("outbox message type = %q, want %q", typ, ActionExecuteType)
		}
	}
	if m.records["features"] == 0 || m.records["action"] == 0 {
		t.Fatalf("missing record metrics: %+v", m.records)
	}
}

func TestPipelineBlockedActionsSkipOutbox(t *testing.T) {
	pub := &fakePublisher{}
	outbox := &fakeOutbox{}
	m := newFakeMetrics()
	// daily loss breached: every proposed action must be blocked
	riskSrc := &fakeRisk{ctx: models.RiskContext{PnL: -1e9}}

	p := NewDecisionPipeline(testPipelineConfig(), nil, riskSrc, pub, outbox, m, nil)
	for i := 0; i < 18; i++ {
		if _, err := p.OnBar(context.Background(), trendBar(i)); err != nil {
			t.Fatalf("bar %d: %v", i, err)
		}
	}

	if len(pub.actions) == 0 {
		t.Fatal("expected actions to be proposed before risk gating")
	}
	for _, v := range pub.verdicts {
		if v.Allow {
			t.Fatal("expected every verdict to block")
		}
		if v.Reason != "max daily loss" {
			t.Fatalf("verdict reason = %q, want %q", v.Reason, "max daily loss")
		}
	}
	if len(outbox.types) != 0 {
		t.Fatalf("blocked actions must not reach the outbox, got %d", len(outbox.types))
	}
}

func TestPipelineSessionPerStream(t *testing.T) {
	p := NewDecisionPipeline(testPipelineConfig(), nil, nil, &fakePublisher{}, nil, newFakeMetrics(), nil)

	s1, err := p.Session("binance", "BTCUSDT", "1m")
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	s2, err := p.Session("binance", "BTCUSDT", "1m")
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if s1 != s2 {
		t.Fatal("same stream key must reuse the session")
	}
	s3, err := p.Session("binance", "ETHUSDT", "1m")
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if s3 == s1 {
		t.Fatal("different symbols must get independent sessions")
	}
}
