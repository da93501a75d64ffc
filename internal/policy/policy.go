// Package policy converts alpha signals into sized order actions under
// a hysteresis state machine. The machine itself is a pure transition
// function over an explicit PolicyState so replays can snapshot and
// seed positions directly.
package policy

import (
	"fmt"
	"math"

	"AlphaPipe/internal/domain/models"
	"AlphaPipe/internal/features"
)

// Position sides held by the state machine. Side is empty iff size is
// exactly zero.
const (
	PositionLong  = "long"
	PositionShort = "short"
)

// SizingMode selects how the open size is derived from price and ATR.
type SizingMode string

const (
	SizingSimple    SizingMode = "simple"     // fixedNotional / price
	SizingATRScaled SizingMode = "atr_scaled" // fixedNotional / (price * atr * multiplier)
)

// Config parameterizes the hysteresis thresholds, sizing and brackets.
type Config struct {
	EnterThreshold   float64
	ExitThreshold    float64
	SizingMode       SizingMode
	FixedNotional    float64
	SizingMultiplier float64
	ATRTPMultiplier  float64
	ATRSLMultiplier  float64
	MaxSize          float64
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		EnterThreshold:   0.5,
		ExitThreshold:    0.3,
		SizingMode:       SizingSimple,
		FixedNotional:    1000,
		SizingMultiplier: 1.0,
		ATRTPMultiplier:  2.0,
		ATRSLMultiplier:  1.0,
		MaxSize:          10,
	}
}

// PolicyState is the cross-call mutable state: the open side and size.
type PolicyState struct {
	Side string
	Size float64
}

// Flat reports whether no position is held.
func (s PolicyState) Flat() bool { return s.Size == 0 }

// DecisionPolicy owns one PolicyState per instance. Instances are
// single-owner per symbol; concurrent callers need external locking.
type DecisionPolicy struct {
	cfg   Config
	state PolicyState
}

// NewDecisionPolicy validates the hysteresis invariant and builds a
// flat policy. EnterThreshold below ExitThreshold is a configuration
// error, never a runtime condition.
func NewDecisionPolicy(cfg Config) (*DecisionPolicy, error) {
	def := DefaultConfig()
	if cfg.EnterThreshold == 0 {
		cfg.EnterThreshold = def.EnterThreshold
	}
	if cfg.ExitThreshold == 0 {
		cfg.ExitThreshold = def.ExitThreshold
	}
	if cfg.SizingMode == "" {
		cfg.SizingMode = def.SizingMode
	}
	if cfg.FixedNotional <= 0 {
		cfg.FixedNotional = def.FixedNotional
	}
	if cfg.SizingMultiplier <= 0 {
		cfg.SizingMultiplier = def.SizingMultiplier
	}
	if cfg.ATRTPMultiplier <= 0 {
		cfg.ATRTPMultiplier = def.ATRTPMultiplier
	}
	if cfg.ATRSLMultiplier <= 0 {
		cfg.ATRSLMultiplier = def.ATRSLMultiplier
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = def.MaxSize
	}
	if cfg.EnterThreshold < cfg.ExitThreshold {
		return nil, fmt.Errorf("policy: enter threshold %v below exit threshold %v", cfg.EnterThreshold, cfg.ExitThreshold)
	}
	return &DecisionPolicy{cfg: cfg}, nil
}

// State returns a copy of the current position state.
func (p *DecisionPolicy) State() PolicyState { return p.state }

// Reset flattens the position.
func (p *DecisionPolicy) Reset() { p.state = PolicyState{} }

// GenerateAction feeds one signal through the state machine and returns
// at most one action. Missing or non-numeric atr/close abstain with no
// state change.
func (p *DecisionPolicy) GenerateAction(sig *models.AlphaSignal, fv *models.FeatureVector) (*models.Action, error) {
	if sig == nil {
		return nil, fmt.Errorf("policy: signal is nil")
	}
	if fv == nil {
		return nil, fmt.Errorf("policy: feature vector is nil")
	}
	next, action := Transition(p.state, p.cfg, sig, fv)
	p.state = next
	return action, nil
}

// Transition is the pure hysteresis step: (state, signal) -> (state,
// action). It never mutates its inputs.
func Transition(st PolicyState, cfg Config, sig *models.AlphaSignal, fv *models.FeatureVector) (PolicyState, *models.Action) {
	atr, okA := fv.Get(features.FeatATR)
	price, okC := fv.Get(features.FeatClose)
	if !okA || !okC || math.IsNaN(atr) || math.IsNaN(price) || price <= 0 {
		return st, nil
	}

	abs := math.Abs(sig.Score)
	switch {
	case st.Flat():
		if abs < cfg.EnterThreshold {
			return st, nil
		}
		return open(cfg, sig, price, atr, models.ReasonEntrySignal)

	case opposes(st.Side, sig.Score) && abs >= cfg.EnterThreshold:
		// reversal collapses to flat and reopens in one step; the
		// implicit close leg is not emitted, only the new open
		return open(cfg, sig, price, atr, models.ReasonReversal)

	case abs < cfg.ExitThreshold:
		return PolicyState{}, closeAction(st, sig, price)

	default:
		// hysteresis band: hold
		return st, nil
	}
}

func opposes(side string, score float64) bool {
	return (side == PositionLong && score < 0) || (side == PositionShort && score > 0)
}

func open(cfg Config, sig *models.AlphaSignal, price, atr float64, reason string) (PolicyState, *models.Action) {
	size := cfg.FixedNotional / price
	if cfg.SizingMode == SizingATRScaled && atr > 0 {
		size = cfg.FixedNotional / (price * atr * cfg.SizingMultiplier)
	}
	if size > cfg.MaxSize {
		size = cfg.MaxSize
	}

	side := models.SideBuy
	posSide := PositionLong
	tp := price + cfg.ATRTPMultiplier*atr
	sl := price - cfg.ATRSLMultiplier*atr
	if sig.Score < 0 {
		side = models.SideSell
		posSide = PositionShort
		tp = price - cfg.ATRTPMultiplier*atr
		sl = price + cfg.ATRSLMultiplier*atr
	}

	return PolicyState{Side: posSide, Size: size}, &models.Action{
		SignalID:   sig.ID,
		Timestamp:  sig.Timestamp,
		Symbol:     sig.Symbol,
		Exchange:   sig.Exchange,
		Timeframe:  sig.Timeframe,
		Side:       side,
		Size:       size,
		Price:      price,
		TakeProfit: tp,
		StopLoss:   sl,
		Reason:     reason,
		Score:      sig.Score,
		Confidence: sig.Confidence,
		ATR:        atr,
	}
}

func closeAction(st PolicyState, sig *models.AlphaSignal, price float64) *models.Action {
	side := models.SideSell
	if st.Side == PositionShort {
		side = models.SideBuy
	}
	return &models.Action{
		SignalID:   sig.ID,
		Timestamp:  sig.Timestamp,
		Symbol:     sig.Symbol,
		Exchange:   sig.Exchange,
		Timeframe:  sig.Timeframe,
		Side:       side,
		Size:       st.Size,
		Price:      price,
		Reason:     models.ReasonExitThreshold,
		Score:      sig.Score,
		Confidence: sig.Confidence,
	}
}
