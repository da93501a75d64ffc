package service

import (
	"context"

	"AlphaPipe/internal/domain/models"
)

// AlphaModel produces at most one directional signal per feature vector.
// Implementations hold private per-symbol state and must be single-owner;
// concurrent calls require external mutual exclusion.
type AlphaModel interface {
	// Name identifies the model and prefixes deterministic signal ids.
	Name() string

	// GenerateSignal consumes one feature vector and returns a signal,
	// or nil when the model abstains. Errors are contract violations
	// only, never "not enough data".
	GenerateSignal(fv *models.FeatureVector) (*models.AlphaSignal, error)

	// Reset clears accumulated state.
	Reset()
}

// NormalizationCache is the optional external mean/stddev cache keyed by
// exchange:symbol:timeframe. Reads are awaited; writes are best-effort
// and must never block or fail the caller. A nil implementation is
// allowed everywhere it is consumed.
type NormalizationCache interface {
	GetMean(ctx context.Context, key string) (float64, bool)
	GetStdDev(ctx context.Context, key string) (float64, bool)
	SetMean(key string, v float64)
	SetStdDev(key string, v float64)
}

// RiskSource supplies fresh risk context snapshots for a symbol.
type RiskSource interface {
	Snapshot(ctx context.Context, exchange, symbol string) models.RiskContext
}
