// Package features turns bar windows into normalized feature vectors
// with a market regime label. All computation is deterministic; the
// optional normalization cache is a best-effort optimization and never
// affects correctness.
package features

import (
	"context"
	"fmt"
	"math"

	"AlphaPipe/internal/domain/models"
	domsvc "AlphaPipe/internal/domain/service"
	"AlphaPipe/internal/indicator"
)

// Feature vector keys.
const (
	FeatClose         = "close"
	FeatSimpleReturn  = "simple_return"
	FeatLogReturn     = "log_return"
	FeatSMA20         = "sma_20"
	FeatEMAFast       = "ema_fast"
	FeatEMASlow       = "ema_slow"
	FeatRSI           = "rsi"
	FeatATR           = "atr"
	FeatMACD          = "macd"
	FeatMACDSignal    = "macd_signal"
	FeatMACDHist      = "macd_hist"
	FeatStdDev        = "stddev"
	FeatTrendStrength = "trend_strength"
	FeatZScore        = "zscore"
)

// Config holds feature computation periods and regime thresholds.
type Config struct {
	Window           int     // minimum bars per build, rolling-stat period
	RSIPeriod        int
	ATRPeriod        int
	MACDFast         int
	MACDSlow         int
	MACDSignal       int
	VolatileVolRatio float64 // stddev/meanClose above this is VOLATILE
	TrendThreshold   float64 // |trend strength| above this is TRENDING
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Window:           20,
		RSIPeriod:        14,
		ATRPeriod:        14,
		MACDFast:         12,
		MACDSlow:         26,
		MACDSignal:       9,
		VolatileVolRatio: 2.0,
		TrendThreshold:   0.6,
	}
}

// Builder computes feature vectors for one symbol/timeframe stream.
// The normalization cache may be nil.
type Builder struct {
	cfg   Config
	cache domsvc.NormalizationCache
}

// NewBuilder creates a feature builder. cache may be nil to disable
// external normalization.
func NewBuilder(cfg Config, cache domsvc.NormalizationCache) *Builder {
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	return &Builder{cfg: cfg, cache: cache}
}

// Build produces one feature vector anchored at the last bar. It rejects
// (does not truncate) windows shorter than the configured minimum.
func (b *Builder) Build(ctx context.Context, bars []models.Bar) (*models.FeatureVector, error) {
	if len(bars) < b.cfg.Window {
		return nil, fmt.Errorf("feature window: got %d bars, need %d", len(bars), b.cfg.Window)
	}

	closes := make([]float64, len(bars))
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
		highs[i] = bar.High
		lows[i] = bar.Low
	}
	last := bars[len(bars)-1]
	prevClose := closes[len(closes)-2]
	curClose := closes[len(closes)-1]

	feats := map[string]float64{
		FeatClose:        curClose,
		FeatSimpleReturn: indicator.SimpleReturn(prevClose, curClose),
		FeatLogReturn:    indicator.LogReturn(prevClose, curClose),
		FeatSMA20:        indicator.SMA(closes, 20),
		FeatEMAFast:      indicator.EMA(closes, b.cfg.MACDFast),
		FeatEMASlow:      indicator.EMA(closes, b.cfg.MACDSlow),
		FeatRSI:          indicator.RSI(closes, b.cfg.RSIPeriod),
		FeatATR:          indicator.ATR(highs, lows, closes, b.cfg.ATRPeriod),
		FeatStdDev:       indicator.StdDev(closes, b.cfg.Window),
	}
	macd, macdSignal, macdHist := indicator.MACD(closes, b.cfg.MACDFast, b.cfg.MACDSlow, b.cfg.MACDSignal)
	feats[FeatMACD] = macd
	feats[FeatMACDSignal] = macdSignal
	feats[FeatMACDHist] = macdHist

	feats[FeatTrendStrength] = trendStrength(closes, feats[FeatATR])
	feats[FeatZScore] = b.zScore(ctx, last, curClose, feats[FeatSMA20], feats[FeatStdDev])

	fv := &models.FeatureVector{
		Timestamp: last.Timestamp,
		Exchange:  last.Exchange,
		Symbol:    last.Symbol,
		Timeframe: last.Timeframe,
		Features:  feats,
	}
	// classified last so the classifier sees final feature values
	fv.Regime = Classify(feats[FeatTrendStrength], feats[FeatStdDev], indicator.SMA(closes, b.cfg.Window), b.cfg)
	return fv, nil
}

// trendStrength is clamp(-1,1, (EMA10-EMA20)/ATR); NaN when ATR is zero
// or either EMA is undefined.
func trendStrength(closes []float64, atr float64) float64 {
	ema10 := indicator.EMA(closes, 10)
	ema20 := indicator.EMA(closes, 20)
	if math.IsNaN(ema10) || math.IsNaN(ema20) || math.IsNaN(atr) || atr == 0 {
		return math.NaN()
	}
	return clamp((ema10-ema20)/atr, -1, 1)
}

// zScore normalizes the latest close against cached mean/stddev when
// available, falling back to the in-window statistics. The write-back is
// fire-and-forget: cache failures never fail feature construction.
func (b *Builder) zScore(ctx context.Context, bar models.Bar, close, windowMean, windowStd float64) float64 {
	mean, std := windowMean, windowStd
	if b.cache != nil {
		key := NormKey(bar.Exchange, bar.Symbol, bar.Timeframe)
		cachedMean, okMean := b.cache.GetMean(ctx, key)
		cachedStd, okStd := b.cache.GetStdDev(ctx, key)
		if okMean && okStd {
			mean, std = cachedMean, cachedStd
		} else if !math.IsNaN(windowMean) && !math.IsNaN(windowStd) {
			b.cache.SetMean(key, windowMean)
			b.cache.SetStdDev(key, windowStd)
		}
	}
	if math.IsNaN(mean) || math.IsNaN(std) || std == 0 {
		return math.NaN()
	}
	return (close - mean) / std
}

// NormKey builds the normalization cache key.
func NormKey(exchange, symbol, timeframe string) string {
	return fmt.Sprintf("%s:%s:%s", exchange, symbol, timeframe)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
