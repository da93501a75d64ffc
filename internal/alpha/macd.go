package alpha

import (
	"fmt"
	"math"

	"AlphaPipe/internal/domain/models"
	domsvc "AlphaPipe/internal/domain/service"
	"AlphaPipe/internal/features"
)

const macdModelName = "macd"

// MACDConfig configures the crossover/momentum model.
type MACDConfig struct {
	MinHistogram  float64 // abstain when |histogram| is below this
	HorizonSec    int
	CrossoverMode bool // emit fixed-confidence signals on line crossings
}

// DefaultMACDConfig returns the documented defaults.
func DefaultMACDConfig() MACDConfig {
	return MACDConfig{MinHistogram: 0.0001, HorizonSec: 300, CrossoverMode: true}
}

// MACDState tracks the previous MACD/signal/histogram values, nullable
// until the first valid observation.
type MACDState struct {
	PrevMACD      *float64
	PrevSignal    *float64
	PrevHistogram *float64
}

// MACDModel turns the MACD triple into directional signals: sign
// crossings in crossover mode, histogram momentum otherwise.
type MACDModel struct {
	cfg   MACDConfig
	state MACDState
}

// NewMACDModel creates a MACD model.
func NewMACDModel(cfg MACDConfig) *MACDModel {
	def := DefaultMACDConfig()
	if cfg.MinHistogram <= 0 {
		cfg.MinHistogram = def.MinHistogram
	}
	if cfg.HorizonSec <= 0 {
		cfg.HorizonSec = def.HorizonSec
	}
	return &MACDModel{cfg: cfg}
}

func (m *MACDModel) Name() string { return macdModelName }

// Reset clears crossover state.
func (m *MACDModel) Reset() { m.state = MACDState{} }

// State returns a copy of the current crossover state.
func (m *MACDModel) State() MACDState {
	s := MACDState{}
	if m.state.PrevMACD != nil {
		v := *m.state.PrevMACD
		s.PrevMACD = &v
	}
	if m.state.PrevSignal != nil {
		v := *m.state.PrevSignal
		s.PrevSignal = &v
	}
	if m.state.PrevHistogram != nil {
		v := *m.state.PrevHistogram
		s.PrevHistogram = &v
	}
	return s
}

// GenerateSignal inspects the MACD triple from the feature vector.
// Invalid values abstain without touching state; valid below-threshold
// values abstain but still update state so the next crossover check has
// fresh history.
func (m *MACDModel) GenerateSignal(fv *models.FeatureVector) (*models.AlphaSignal, error) {
	if fv == nil {
		return nil, fmt.Errorf("macd: feature vector is nil")
	}
	macd, okM := fv.Get(features.FeatMACD)
	signalLine, okS := fv.Get(features.FeatMACDSignal)
	hist, okH := fv.Get(features.FeatMACDHist)
	if !okM || !okS || !okH || math.IsNaN(macd) || math.IsNaN(signalLine) || math.IsNaN(hist) {
		return nil, nil
	}

	prev := m.state
	m.update(macd, signalLine, hist)

	if math.Abs(hist) < m.cfg.MinHistogram {
		return nil, nil
	}

	if m.cfg.CrossoverMode && prev.PrevMACD != nil && prev.PrevSignal != nil {
		prevDiff := *prev.PrevMACD - *prev.PrevSignal
		curDiff := macd - signalLine
		if prevDiff*curDiff < 0 {
			score := 1.0
			direction := "bullish"
			if curDiff < 0 {
				score = -1.0
				direction = "bearish"
			}
			return m.signal(fv, score, 0.8, fmt.Sprintf("%s crossover of macd over signal line", direction)), nil
		}
	}

	// histogram fallback: direction from sign, momentum from magnitude
	score := clamp(hist*1000, -1, 1)
	conf := 0.5
	if prev.PrevHistogram != nil {
		if math.Abs(hist) > math.Abs(*prev.PrevHistogram) {
			conf = 0.7
		} else {
			conf = 0.3
		}
	}
	direction := "bullish"
	if hist < 0 {
		direction = "bearish"
	}
	return m.signal(fv, score, conf, fmt.Sprintf("%s histogram momentum %.6f", direction, hist)), nil
}

func (m *MACDModel) update(macd, signalLine, hist float64) {
	m.state.PrevMACD = &macd
	m.state.PrevSignal = &signalLine
	m.state.PrevHistogram = &hist
}

func (m *MACDModel) signal(fv *models.FeatureVector, score, conf float64, rationale string) *models.AlphaSignal {
	return &models.AlphaSignal{
		ID:         models.SignalID(macdModelName, fv.Timestamp),
		Timestamp:  fv.Timestamp,
		Symbol:     fv.Symbol,
		Exchange:   fv.Exchange,
		Timeframe:  fv.Timeframe,
		Score:      score,
		Confidence: conf,
		HorizonSec: m.cfg.HorizonSec,
		Rationale:  rationale,
	}
}

var _ domsvc.AlphaModel = (*MACDModel)(nil)
