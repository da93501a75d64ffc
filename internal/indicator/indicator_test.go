package indicator

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSMA(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5}
	if got := SMA(vals, 3); !almostEqual(got, 4) {
		t.Fatalf("sma period 3: got %v want 4", got)
	}
	if got := SMA(vals, 5); !almostEqual(got, 3) {
		t.Fatalf("sma period 5: got %v want 3", got)
	}
	if got := SMA([]float64{1, 2}, 3); !math.IsNaN(got) {
		t.Fatalf("sma insufficient data: got %v want NaN", got)
	}
	if got := SMA(vals, 0); !math.IsNaN(got) {
		t.Fatalf("sma zero period: got %v want NaN", got)
	}
}

func TestEMASeedsFromSMA(t *testing.T) {
	vals := []float64{1, 2, 3}
	if got := EMA(vals, 3); !almostEqual(got, 2) {
		t.Fatalf("ema seed: got %v want 2", got)
	}
	if got := EMA([]float64{1, 2}, 3); !math.IsNaN(got) {
		t.Fatalf("ema insufficient data: got %v want NaN", got)
	}
	// continuation: k=0.5 for period 3
	next := EMAStep(4, 2, 3)
	if !almostEqual(next, 3) {
		t.Fatalf("ema step: got %v want 3", next)
	}
	// full-series form must match fold over the same inputs
	if got := EMA([]float64{1, 2, 3, 4}, 3); !almostEqual(got, next) {
		t.Fatalf("ema fold mismatch: %v vs %v", got, next)
	}
}

func TestWMA(t *testing.T) {
	// weights 1,2,3 over [1,2,3] -> (1+4+9)/6
	if got := WMA([]float64{1, 2, 3}, 3); !almostEqual(got, 14.0/6.0) {
		t.Fatalf("wma: got %v", got)
	}
}

func TestStdDev(t *testing.T) {
	vals := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	// sample stddev of the set is ~2.138
	got := StdDev(vals, 8)
	if math.Abs(got-2.13808993) > 1e-6 {
		t.Fatalf("stddev: got %v", got)
	}
	if got := Variance(vals, 1); !math.IsNaN(got) {
		t.Fatalf("variance period 1: got %v want NaN", got)
	}
}

func TestATRFirstBarTrueRange(t *testing.T) {
	if got := ATR([]float64{50}, []float64{45}, []float64{48}, 1); !almostEqual(got, 5) {
		t.Fatalf("atr first bar: got %v want 5", got)
	}
}

func TestATRUsesPrevClose(t *testing.T) {
	highs := []float64{50, 52}
	lows := []float64{45, 51}
	closes := []float64{48, 51.5}
	// TR[0]=5, TR[1]=max(1, |52-48|=4, |51-48|=3)=4 -> ATR(2)=4.5
	if got := ATR(highs, lows, closes, 2); !almostEqual(got, 4.5) {
		t.Fatalf("atr: got %v want 4.5", got)
	}
}

func TestATRUnequalLengths(t *testing.T) {
	got := ATR([]float64{50, 52}, []float64{45}, []float64{48, 51}, 1)
	if !almostEqual(got, 5) {
		t.Fatalf("atr min common length: got %v want 5", got)
	}
}

func TestRSIFlatSeries(t *testing.T) {
	vals := make([]float64, 20)
	for i := range vals {
		vals[i] = 50
	}
	if got := RSI(vals, 14); !almostEqual(got, 50) {
		t.Fatalf("rsi flat: got %v want 50", got)
	}
}

func TestRSIAllGains(t *testing.T) {
	vals := make([]float64, 15)
	for i := range vals {
		vals[i] = float64(i + 1)
	}
	if got := RSI(vals, 14); !almostEqual(got, 100) {
		t.Fatalf("rsi ascending: got %v want 100", got)
	}
}

func TestRSIInsufficientData(t *testing.T) {
	if got := RSI([]float64{1, 2, 3}, 14); !math.IsNaN(got) {
		t.Fatalf("rsi insufficient: got %v want NaN", got)
	}
}

func TestMACDUndefinedUntilSlow(t *testing.T) {
	vals := make([]float64, 25)
	for i := range vals {
		vals[i] = float64(i)
	}
	m, s, h := MACD(vals, 12, 26, 9)
	if !math.IsNaN(m) || !math.IsNaN(s) || !math.IsNaN(h) {
		t.Fatalf("macd before slow: got %v %v %v want NaN", m, s, h)
	}
}

func TestMACDDefined(t *testing.T) {
	vals := make([]float64, 60)
	for i := range vals {
		vals[i] = 100 + float64(i)*0.5
	}
	m, s, h := MACD(vals, 12, 26, 9)
	if math.IsNaN(m) || math.IsNaN(s) || math.IsNaN(h) {
		t.Fatalf("macd defined: got %v %v %v", m, s, h)
	}
	if !almostEqual(h, m-s) {
		t.Fatalf("histogram: got %v want %v", h, m-s)
	}
	// steadily rising prices keep the fast EMA above the slow one
	if m <= 0 {
		t.Fatalf("macd line for uptrend: got %v want > 0", m)
	}
}

func TestReturns(t *testing.T) {
	if got := SimpleReturn(100, 110); !almostEqual(got, 0.1) {
		t.Fatalf("simple return: got %v", got)
	}
	if got := PercentChange(100, 110); !almostEqual(got, 10) {
		t.Fatalf("percent change: got %v", got)
	}
	if got := LogReturn(100, 110); !almostEqual(got, math.Log(1.1)) {
		t.Fatalf("log return: got %v", got)
	}
	if got := SimpleReturn(0, 110); !math.IsNaN(got) {
		t.Fatalf("simple return zero prev: got %v want NaN", got)
	}
	if got := LogReturn(100, 0); !math.IsNaN(got) {
		t.Fatalf("log return zero cur: got %v want NaN", got)
	}
}

func TestDeterminism(t *testing.T) {
	vals := make([]float64, 100)
	x := 100.0
	for i := range vals {
		// fixed pseudo-random walk, no rand dependency
		x += math.Sin(float64(i)*1.7) * 2
		vals[i] = x
	}
	m1, s1, h1 := MACD(vals, 12, 26, 9)
	m2, s2, h2 := MACD(vals, 12, 26, 9)
	if m1 != m2 || s1 != s2 || h1 != h2 {
		t.Fatalf("macd not deterministic")
	}
	if RSI(vals, 14) != RSI(vals, 14) {
		t.Fatalf("rsi not deterministic")
	}
}
