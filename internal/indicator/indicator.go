// Package indicator provides pure technical indicator functions over
// chronologically ordered (oldest-first) value slices. Insufficient data
// and degenerate inputs yield NaN rather than errors; callers must check
// with math.IsNaN before using a value. No function mutates its inputs,
// and all accumulate left-to-right so results are exactly reproducible.
package indicator

import "math"

// SMA returns the mean of the last period values, or NaN when period <= 0
// or fewer than period values are available.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period)
}

// EMA computes an exponential moving average over the full series with
// smoothing factor 2/(period+1), seeded from the SMA of the first period
// values. Returns NaN when fewer than period values are available.
func EMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return math.NaN()
	}
	k := 2.0 / (float64(period) + 1.0)
	ema := SMA(values[:period], period)
	for _, v := range values[period:] {
		ema = v*k + ema*(1-k)
	}
	return ema
}

// EMAStep advances a previously computed EMA by one value (continuation
// mode). Callers are responsible for feeding one value at a time.
func EMAStep(value, prevEMA float64, period int) float64 {
	if period <= 0 || math.IsNaN(prevEMA) {
		return math.NaN()
	}
	k := 2.0 / (float64(period) + 1.0)
	return value*k + prevEMA*(1-k)
}

// WMA returns the linearly weighted moving average of the last period
// values, weight = rank (1-indexed from the oldest value in the window).
func WMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return math.NaN()
	}
	window := values[len(values)-period:]
	num := 0.0
	den := 0.0
	for i, v := range window {
		w := float64(i + 1)
		num += v * w
		den += w
	}
	return num / den
}

// Variance returns the sample variance (n-1 denominator) of the last
// period values. Requires period >= 2.
func Variance(values []float64, period int) float64 {
	if period < 2 || len(values) < period {
		return math.NaN()
	}
	window := values[len(values)-period:]
	mean := SMA(window, period)
	sum := 0.0
	for _, v := range window {
		d := v - mean
		sum += d * d
	}
	return sum / float64(period-1)
}

// StdDev returns the sample standard deviation of the last period values.
func StdDev(values []float64, period int) float64 {
	v := Variance(values, period)
	if math.IsNaN(v) {
		return math.NaN()
	}
	return math.Sqrt(v)
}

// ATR returns the average true range over period. The true range of the
// first bar is high-low; subsequent bars use the max of high-low,
// |high-prevClose| and |low-prevClose|. Unequal slice lengths are
// tolerated: the minimum common length is used.
func ATR(highs, lows, closes []float64, period int) float64 {
	n := len(highs)
	if len(lows) < n {
		n = len(lows)
	}
	if len(closes) < n {
		n = len(closes)
	}
	if period <= 0 || n == 0 {
		return math.NaN()
	}
	trs := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		tr := highs[i] - lows[i]
		if i > 0 {
			prevClose := closes[i-1]
			if hc := math.Abs(highs[i] - prevClose); hc > tr {
				tr = hc
			}
			if lc := math.Abs(lows[i] - prevClose); lc > tr {
				tr = lc
			}
		}
		trs = append(trs, tr)
	}
	return SMA(trs, period)
}

// RSI returns the relative strength index over the last period deltas.
// When the average loss is zero it returns 100 if there were gains and
// 50 for a flat series (convention, not NaN).
func RSI(values []float64, period int) float64 {
	if period <= 0 || len(values) < period+1 {
		return math.NaN()
	}
	window := values[len(values)-period-1:]
	gains := 0.0
	losses := 0.0
	for i := 1; i < len(window); i++ {
		d := window[i] - window[i-1]
		if d > 0 {
			gains += d
		} else {
			losses -= d
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		if avgGain > 0 {
			return 100
		}
		return 50
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACD returns the MACD line, signal line and histogram for the latest
// value. The MACD history needed for the signal line is reconstructed by
// re-running EMA over every trailing sub-window: O(n^2), but simple and
// exactly reproducible. All three are NaN until slow values are
// available; the signal line and histogram additionally need signal
// MACD points.
func MACD(values []float64, fast, slow, signal int) (macd, signalLine, histogram float64) {
	macd = math.NaN()
	signalLine = math.NaN()
	histogram = math.NaN()
	if fast <= 0 || slow <= 0 || signal <= 0 || len(values) < slow {
		return
	}
	series := make([]float64, 0, len(values)-slow+1)
	for i := slow; i <= len(values); i++ {
		series = append(series, EMA(values[:i], fast)-EMA(values[:i], slow))
	}
	macd = series[len(series)-1]
	signalLine = EMA(series, signal)
	if !math.IsNaN(signalLine) {
		histogram = macd - signalLine
	}
	return
}

// PercentChange returns the percentage change from the previous to the
// latest value, NaN when the previous value is <= 0.
func PercentChange(prev, cur float64) float64 {
	if prev <= 0 {
		return math.NaN()
	}
	return (cur - prev) / prev * 100
}

// SimpleReturn returns (cur-prev)/prev, NaN when prev <= 0.
func SimpleReturn(prev, cur float64) float64 {
	if prev <= 0 {
		return math.NaN()
	}
	return (cur - prev) / prev
}

// LogReturn returns ln(cur/prev), NaN when prev <= 0 or cur <= 0.
func LogReturn(prev, cur float64) float64 {
	if prev <= 0 || cur <= 0 {
		return math.NaN()
	}
	return math.Log(cur / prev)
}
