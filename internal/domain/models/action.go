package models

import "fmt"

// Order sides.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Action reasons.
const (
	ReasonEntrySignal   = "entry_signal"
	ReasonExitThreshold = "exit_threshold"
	ReasonReversal      = "reversal"
)

// Action is a sized, bracketed order proposal produced by the decision
// policy. It carries the originating signal's id, score and confidence,
// and the ATR used for sizing/brackets, for auditability downstream.
type Action struct {
	SignalID   string
	Timestamp  int64
	Symbol     string
	Exchange   string
	Timeframe  string
	Side       string // buy or sell
	Size       float64
	Price      float64
	TakeProfit float64 // zero for close actions
	StopLoss   float64 // zero for close actions
	Reason     string
	Score      float64
	Confidence float64
	ATR        float64
}

// Validate checks the action contract.
func (a *Action) Validate() error {
	if a == nil {
		return fmt.Errorf("action is nil")
	}
	if a.Side != SideBuy && a.Side != SideSell {
		return fmt.Errorf("action side: %q (must be buy or sell)", a.Side)
	}
	if a.Size <= 0 {
		return fmt.Errorf("action size: %v (must be > 0)", a.Size)
	}
	if a.Price <= 0 {
		return fmt.Errorf("action price: %v (must be > 0)", a.Price)
	}
	if a.SignalID == "" {
		return fmt.Errorf("action signal id: empty")
	}
	return nil
}
