package alpha

import (
	"math"
	"strings"
	"testing"

	"AlphaPipe/internal/domain/models"
	"AlphaPipe/internal/features"
)

func macdFV(ts int64, macd, signal, hist float64) *models.FeatureVector {
	return &models.FeatureVector{
		Timestamp: ts,
		Exchange:  "binance",
		Symbol:    "BTCUSDT",
		Timeframe: "1m",
		Features: map[string]float64{
			features.FeatMACD:       macd,
			features.FeatMACDSignal: signal,
			features.FeatMACDHist:   hist,
		},
	}
}

func TestMACDBullishCrossover(t *testing.T) {
	m := NewMACDModel(DefaultMACDConfig())
	if _, err := m.GenerateSignal(macdFV(1700000000, -0.01, 0.0, -0.01)); err != nil {
		t.Fatalf("first: %v", err)
	}
	sig, err := m.GenerateSignal(macdFV(1700000060, 0.01, 0.0, 0.01))
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if sig == nil {
		t.Fatalf("expected crossover signal")
	}
	if sig.Score != 1 {
		t.Fatalf("score: got %v want 1", sig.Score)
	}
	if sig.Confidence != 0.8 {
		t.Fatalf("confidence: got %v want 0.8", sig.Confidence)
	}
	if !strings.Contains(sig.Rationale, "bullish crossover") {
		t.Fatalf("rationale: %q", sig.Rationale)
	}
}

func TestMACDBearishCrossover(t *testing.T) {
	m := NewMACDModel(DefaultMACDConfig())
	if _, err := m.GenerateSignal(macdFV(1700000000, 0.02, 0.0, 0.02)); err != nil {
		t.Fatalf("first: %v", err)
	}
	sig, err := m.GenerateSignal(macdFV(1700000060, -0.02, 0.0, -0.02))
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if sig == nil || sig.Score != -1 || sig.Confidence != 0.8 {
		t.Fatalf("bearish crossover: %+v", sig)
	}
	if !strings.Contains(sig.Rationale, "bearish crossover") {
		t.Fatalf("rationale: %q", sig.Rationale)
	}
}

func TestMACDRejectsNaNWithoutStateUpdate(t *testing.T) {
	m := NewMACDModel(DefaultMACDConfig())
	sig, err := m.GenerateSignal(macdFV(1700000000, math.NaN(), 0, 0))
	if err != nil || sig != nil {
		t.Fatalf("nan input: %v %v", sig, err)
	}
	if m.State().PrevMACD != nil {
		t.Fatalf("state must not update on invalid values")
	}
}

func TestMACDBelowThresholdUpdatesState(t *testing.T) {
	m := NewMACDModel(DefaultMACDConfig())
	sig, err := m.GenerateSignal(macdFV(1700000000, 0.00004, 0.0, 0.00004))
	if err != nil || sig != nil {
		t.Fatalf("below threshold: %v %v", sig, err)
	}
	st := m.State()
	if st.PrevHistogram == nil || *st.PrevHistogram != 0.00004 {
		t.Fatalf("state after no-signal: %+v", st)
	}
}

func TestMACDHistogramMomentumConfidence(t *testing.T) {
	cfg := DefaultMACDConfig()
	cfg.CrossoverMode = false
	m := NewMACDModel(cfg)

	sig, err := m.GenerateSignal(macdFV(1700000000, 0.001, 0.0005, 0.0005))
	if err != nil || sig == nil {
		t.Fatalf("first observation: %v %v", sig, err)
	}
	if sig.Confidence != 0.5 {
		t.Fatalf("first-observation confidence: got %v want 0.5", sig.Confidence)
	}
	if sig.Score != clamp(0.0005*1000, -1, 1) {
		t.Fatalf("score: got %v", sig.Score)
	}

	sig, err = m.GenerateSignal(macdFV(1700000060, 0.002, 0.001, 0.001))
	if err != nil || sig == nil {
		t.Fatalf("strengthening: %v %v", sig, err)
	}
	if sig.Confidence != 0.7 {
		t.Fatalf("strengthening confidence: got %v want 0.7", sig.Confidence)
	}

	sig, err = m.GenerateSignal(macdFV(1700000120, 0.001, 0.0014, -0.0004))
	if err != nil || sig == nil {
		t.Fatalf("weakening: %v %v", sig, err)
	}
	if sig.Confidence != 0.3 {
		t.Fatalf("weakening confidence: got %v want 0.3", sig.Confidence)
	}
	if sig.Score >= 0 {
		t.Fatalf("negative histogram must score negative: %v", sig.Score)
	}
}

func TestMACDResetClearsState(t *testing.T) {
	m := NewMACDModel(DefaultMACDConfig())
	if _, err := m.GenerateSignal(macdFV(1700000000, 0.01, 0.0, 0.01)); err != nil {
		t.Fatalf("generate: %v", err)
	}
	m.Reset()
	if st := m.State(); st.PrevMACD != nil || st.PrevSignal != nil || st.PrevHistogram != nil {
		t.Fatalf("state after reset: %+v", st)
	}
}
