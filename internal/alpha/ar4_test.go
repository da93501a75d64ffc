package alpha

import (
	"math"
	"testing"

	"AlphaPipe/internal/domain/models"
	"AlphaPipe/internal/features"
)

func retFV(ts int64, ret float64) *models.FeatureVector {
	return &models.FeatureVector{
		Timestamp: ts,
		Exchange:  "binance",
		Symbol:    "BTCUSDT",
		Timeframe: "1m",
		Features:  map[string]float64{features.FeatLogReturn: ret},
	}
}

// two sinusoids satisfy an exact order-4 linear recurrence, so AR(4)
// fits them with R2 near 1
func sinusoidReturn(i int) float64 {
	return 0.005*math.Sin(float64(i)*0.7) + 0.003*math.Cos(float64(i)*1.3)
}

func TestAR4EmitsOnWellFittedSeries(t *testing.T) {
	m := NewAR4Model(DefaultAR4Config())
	var last *models.AlphaSignal
	for i := 0; i < 100; i++ {
		sig, err := m.GenerateSignal(retFV(int64(1700000000+i*60), sinusoidReturn(i)))
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if sig != nil {
			last = sig
		}
	}
	if last == nil {
		t.Fatalf("expected signals from a perfectly autoregressive series")
	}
	if last.Score < -1 || last.Score > 1 {
		t.Fatalf("score out of range: %v", last.Score)
	}
	if last.Confidence < 0.1 || last.Confidence > 1 {
		t.Fatalf("confidence: %v", last.Confidence)
	}
	if err := last.Validate(); err != nil {
		t.Fatalf("signal invalid: %v", err)
	}
	if want := models.SignalID("ar4", last.Timestamp); last.ID != want {
		t.Fatalf("id: got %s want %s", last.ID, want)
	}
}

func TestAR4Determinism(t *testing.T) {
	m1 := NewAR4Model(DefaultAR4Config())
	m2 := NewAR4Model(DefaultAR4Config())
	for i := 0; i < 120; i++ {
		fv := retFV(int64(1700000000+i*60), sinusoidReturn(i))
		s1, err1 := m1.GenerateSignal(fv)
		s2, err2 := m2.GenerateSignal(fv)
		if err1 != nil || err2 != nil {
			t.Fatalf("generate: %v %v", err1, err2)
		}
		if (s1 == nil) != (s2 == nil) {
			t.Fatalf("step %d: emission differs", i)
		}
		if s1 != nil && *s1 != *s2 {
			t.Fatalf("step %d: signals differ: %+v vs %+v", i, s1, s2)
		}
	}
}

func TestAR4ConstantReturnsDegradeToIdentity(t *testing.T) {
	m := NewAR4Model(DefaultAR4Config())
	for i := 0; i < 40; i++ {
		sig, err := m.GenerateSignal(retFV(int64(1700000000+i*60), 0.01))
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		// collinear design matrix: identity fallback, flat targets, R2=0
		if sig != nil {
			t.Fatalf("step %d: expected abstention, got %+v", i, sig)
		}
	}
	st := m.State()
	if !st.Fitted {
		t.Fatalf("model should have fitted")
	}
	if st.RSquared != 0 {
		t.Fatalf("r2: got %v want 0", st.RSquared)
	}
}

func TestAR4FIFOCapped(t *testing.T) {
	m := NewAR4Model(AR4Config{FitWindow: 10, MinRSquared: 0.1, HorizonSec: 60})
	for i := 0; i < 35; i++ {
		if _, err := m.GenerateSignal(retFV(int64(1700000000+i*60), sinusoidReturn(i))); err != nil {
			t.Fatalf("generate: %v", err)
		}
	}
	if n := len(m.State().Returns); n != 10 {
		t.Fatalf("fifo length: got %d want 10", n)
	}
}

func TestAR4SkipsUndefinedReturns(t *testing.T) {
	m := NewAR4Model(DefaultAR4Config())
	fv := retFV(1700000000, math.NaN())
	sig, err := m.GenerateSignal(fv)
	if err != nil || sig != nil {
		t.Fatalf("nan return: %v %v", sig, err)
	}
	if len(m.State().Returns) != 0 {
		t.Fatalf("nan return must not be accumulated")
	}
}

func TestInvertDiagonal(t *testing.T) {
	inv := invert([][]float64{{2, 0}, {0, 4}})
	if math.Abs(inv[0][0]-0.5) > 1e-12 || math.Abs(inv[1][1]-0.25) > 1e-12 {
		t.Fatalf("inverse: %v", inv)
	}
	if inv[0][1] != 0 || inv[1][0] != 0 {
		t.Fatalf("inverse off-diagonal: %v", inv)
	}
}

func TestInvertSingularFallsBackToIdentity(t *testing.T) {
	inv := invert([][]float64{{1, 2}, {2, 4}})
	if inv[0][0] != 1 || inv[1][1] != 1 || inv[0][1] != 0 || inv[1][0] != 0 {
		t.Fatalf("singular fallback: %v", inv)
	}
}

func TestSolveNormalEquationsRecoversLine(t *testing.T) {
	// y = 3 + 2x
	x := [][]float64{{1, 0}, {1, 1}, {1, 2}, {1, 3}}
	y := []float64{3, 5, 7, 9}
	beta := solveNormalEquations(x, y)
	if math.Abs(beta[0]-3) > 1e-9 || math.Abs(beta[1]-2) > 1e-9 {
		t.Fatalf("beta: %v", beta)
	}
}
