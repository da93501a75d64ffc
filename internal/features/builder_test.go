package features

import (
	"context"
	"math"
	"testing"

	"AlphaPipe/internal/domain/models"
)

func mkBars(closes []float64) []models.Bar {
	bars := make([]models.Bar, len(closes))
	for i, c := range closes {
		bars[i] = models.Bar{
			Timestamp: int64(1700000000 + i*60),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    10,
			Exchange:  "binance",
			Symbol:    "BTCUSDT",
			Timeframe: "1m",
		}
	}
	return bars
}

func TestBuildRejectsShortWindow(t *testing.T) {
	b := NewBuilder(DefaultConfig(), nil)
	_, err := b.Build(context.Background(), mkBars([]float64{1, 2, 3}))
	if err == nil {
		t.Fatalf("expected error for short window")
	}
}

func TestBuildProducesFeatures(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.5
	}
	b := NewBuilder(DefaultConfig(), nil)
	fv, err := b.Build(context.Background(), mkBars(closes))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if fv.Symbol != "BTCUSDT" || fv.Timestamp != 1700000000+59*60 {
		t.Fatalf("anchor: %s %d", fv.Symbol, fv.Timestamp)
	}
	for _, name := range []string{FeatClose, FeatSimpleReturn, FeatLogReturn, FeatSMA20, FeatRSI, FeatATR, FeatMACD, FeatMACDSignal, FeatMACDHist, FeatStdDev, FeatTrendStrength, FeatZScore} {
		v, ok := fv.Get(name)
		if !ok {
			t.Fatalf("missing feature %s", name)
		}
		if math.IsNaN(v) {
			t.Fatalf("feature %s unexpectedly NaN", name)
		}
	}
	if fv.Features[FeatClose] != closes[len(closes)-1] {
		t.Fatalf("close: %v", fv.Features[FeatClose])
	}
	// steady uptrend with tiny ATR-relative noise trends up
	if fv.Regime != models.RegimeTrendingUp && fv.Regime != models.RegimeRanging {
		t.Fatalf("regime: %s", fv.Regime)
	}
}

func TestBuildDeterministic(t *testing.T) {
	closes := make([]float64, 80)
	x := 100.0
	for i := range closes {
		x += math.Sin(float64(i) * 0.9)
		closes[i] = x
	}
	b1 := NewBuilder(DefaultConfig(), nil)
	b2 := NewBuilder(DefaultConfig(), nil)
	fv1, err := b1.Build(context.Background(), mkBars(closes))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	fv2, err := b2.Build(context.Background(), mkBars(closes))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for k, v := range fv1.Features {
		w := fv2.Features[k]
		if v != w && !(math.IsNaN(v) && math.IsNaN(w)) {
			t.Fatalf("feature %s differs: %v vs %v", k, v, w)
		}
	}
	if fv1.Regime != fv2.Regime {
		t.Fatalf("regime differs: %s vs %s", fv1.Regime, fv2.Regime)
	}
}

func TestClassify(t *testing.T) {
	cfg := DefaultConfig()
	if got := Classify(0.1, 250, 100, cfg); got != models.RegimeVolatile {
		t.Fatalf("volatile: got %s", got)
	}
	if got := Classify(0.7, 1, 100, cfg); got != models.RegimeTrendingUp {
		t.Fatalf("trending up: got %s", got)
	}
	if got := Classify(-0.7, 1, 100, cfg); got != models.RegimeTrendingDown {
		t.Fatalf("trending down: got %s", got)
	}
	if got := Classify(0.1, 1, 100, cfg); got != models.RegimeRanging {
		t.Fatalf("ranging: got %s", got)
	}
	if got := Classify(math.NaN(), math.NaN(), 100, cfg); got != models.RegimeRanging {
		t.Fatalf("nan inputs: got %s", got)
	}
}

// fakeNormCache records reads/writes for cache interaction tests.
type fakeNormCache struct {
	mean, std   float64
	hit         bool
	setMeanKeys []string
	setStdKeys  []string
}

func (f *fakeNormCache) GetMean(_ context.Context, _ string) (float64, bool)   { return f.mean, f.hit }
func (f *fakeNormCache) GetStdDev(_ context.Context, _ string) (float64, bool) { return f.std, f.hit }
func (f *fakeNormCache) SetMean(key string, _ float64)                         { f.setMeanKeys = append(f.setMeanKeys, key) }
func (f *fakeNormCache) SetStdDev(key string, _ float64)                       { f.setStdKeys = append(f.setStdKeys, key) }

func TestZScoreUsesCachedStats(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100
	}
	closes[len(closes)-1] = 110

	fc := &fakeNormCache{mean: 100, std: 5, hit: true}
	b := NewBuilder(DefaultConfig(), fc)
	fv, err := b.Build(context.Background(), mkBars(closes))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := fv.Features[FeatZScore]; math.Abs(got-2.0) > 1e-9 {
		t.Fatalf("zscore from cache: got %v want 2", got)
	}
	if len(fc.setMeanKeys) != 0 {
		t.Fatalf("cache hit must not write back")
	}
}

func TestZScoreMissFallsBackAndWritesBack(t *testing.T) {
	closes := make([]float64, 40)
	x := 100.0
	for i := range closes {
		x += math.Cos(float64(i))
		closes[i] = x
	}
	fc := &fakeNormCache{hit: false}
	b := NewBuilder(DefaultConfig(), fc)
	fv, err := b.Build(context.Background(), mkBars(closes))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if math.IsNaN(fv.Features[FeatZScore]) {
		t.Fatalf("zscore fallback should be defined")
	}
	if len(fc.setMeanKeys) != 1 || fc.setMeanKeys[0] != NormKey("binance", "BTCUSDT", "1m") {
		t.Fatalf("write-back keys: %v", fc.setMeanKeys)
	}
}
