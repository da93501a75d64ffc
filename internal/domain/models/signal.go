package models

import "fmt"

// AlphaSignal is a directional prediction from one alpha model.
// ID is deterministic (model name + timestamp) so replays of the same
// input sequence produce identical records.
type AlphaSignal struct {
	ID         string
	Timestamp  int64
	Symbol     string
	Exchange   string
	Timeframe  string
	Score      float64 // [-1, 1], sign is direction
	Confidence float64 // [0, 1]
	HorizonSec int     // validity horizon in seconds
	Rationale  string
}

// SignalID derives the deterministic signal identifier.
func SignalID(model string, ts int64) string {
	return fmt.Sprintf("%s-%d", model, ts)
}

// Validate checks the signal contract. Out-of-range score/confidence is
// a producer bug: models must emit nil instead of clamping silently
// (except where a model documents its own clamping).
func (s *AlphaSignal) Validate() error {
	if s == nil {
		return fmt.Errorf("signal is nil")
	}
	if s.ID == "" {
		return fmt.Errorf("signal id: empty")
	}
	if s.Symbol == "" {
		return fmt.Errorf("signal symbol: empty")
	}
	if s.Timestamp <= 0 {
		return fmt.Errorf("signal timestamp: %d (must be > 0)", s.Timestamp)
	}
	if s.Score < -1 || s.Score > 1 {
		return fmt.Errorf("signal score: %v (must be in [-1,1])", s.Score)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("signal confidence: %v (must be in [0,1])", s.Confidence)
	}
	return nil
}
