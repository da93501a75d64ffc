// Package alpha contains the signal-generating models. Each model owns
// private per-symbol state and emits at most one signal per feature
// vector; insufficient data or a weak fit means abstaining (nil), not an
// error.
package alpha

import (
	"fmt"
	"math"

	"AlphaPipe/internal/domain/models"
	domsvc "AlphaPipe/internal/domain/service"
	"AlphaPipe/internal/features"
)

const (
	ar4ModelName = "ar4"
	ar4Lags      = 4
	ar4RefitEvery = 20
)

// AR4Config configures the autoregressive model.
type AR4Config struct {
	FitWindow   int     // FIFO capacity of accumulated returns
	MinRSquared float64 // abstain below this goodness of fit
	HorizonSec  int     // validity horizon of emitted signals
}

// DefaultAR4Config returns the documented defaults.
func DefaultAR4Config() AR4Config {
	return AR4Config{FitWindow: 100, MinRSquared: 0.1, HorizonSec: 300}
}

// AR4State is the full mutable state of the model, exposed as an
// explicit struct so tests can snapshot it and replays can seed it.
type AR4State struct {
	Returns  []float64  // bounded FIFO, oldest first
	Coeffs   [5]float64 // intercept + four lag weights
	RSquared float64    // clamped to [0,1]
	Fitted   bool
}

// AR4Model predicts the next single-step return from the previous four
// via OLS on the normal equations. Refitting happens every 20
// accumulated returns (or on the first opportunity), a deliberate
// staleness window.
type AR4Model struct {
	cfg   AR4Config
	state AR4State
}

// NewAR4Model creates an AR(4) model.
func NewAR4Model(cfg AR4Config) *AR4Model {
	def := DefaultAR4Config()
	if cfg.FitWindow <= 0 {
		cfg.FitWindow = def.FitWindow
	}
	if cfg.MinRSquared <= 0 {
		cfg.MinRSquared = def.MinRSquared
	}
	if cfg.HorizonSec <= 0 {
		cfg.HorizonSec = def.HorizonSec
	}
	return &AR4Model{cfg: cfg}
}

func (m *AR4Model) Name() string { return ar4ModelName }

// Reset clears accumulated returns and the fitted coefficients.
func (m *AR4Model) Reset() { m.state = AR4State{} }

// State returns a copy of the current model state.
func (m *AR4Model) State() AR4State {
	s := m.state
	s.Returns = append([]float64(nil), m.state.Returns...)
	return s
}

// GenerateSignal appends the latest return, refits when due, and emits a
// signal when the model is fitted well enough.
func (m *AR4Model) GenerateSignal(fv *models.FeatureVector) (*models.AlphaSignal, error) {
	if fv == nil {
		return nil, fmt.Errorf("ar4: feature vector is nil")
	}
	ret, ok := fv.Get(features.FeatLogReturn)
	if !ok || math.IsNaN(ret) {
		return nil, nil
	}

	m.state.Returns = append(m.state.Returns, ret)
	if len(m.state.Returns) > m.cfg.FitWindow {
		m.state.Returns = m.state.Returns[1:]
	}

	if !m.state.Fitted || len(m.state.Returns)%ar4RefitEvery == 0 {
		m.refit()
	}

	if len(m.state.Returns) < ar4Lags || !m.state.Fitted {
		return nil, nil
	}
	if m.state.RSquared < m.cfg.MinRSquared {
		return nil, nil
	}

	pred := m.predict()
	score := clamp(pred*100, -1, 1)
	return &models.AlphaSignal{
		ID:         models.SignalID(ar4ModelName, fv.Timestamp),
		Timestamp:  fv.Timestamp,
		Symbol:     fv.Symbol,
		Exchange:   fv.Exchange,
		Timeframe:  fv.Timeframe,
		Score:      score,
		Confidence: m.state.RSquared,
		HorizonSec: m.cfg.HorizonSec,
		Rationale:  fmt.Sprintf("ar4 predicted return %.6f (r2=%.3f)", pred, m.state.RSquared),
	}, nil
}

// refit solves beta = (X^T X)^-1 X^T y over all valid lag rows. With
// fewer than 5 returns there are no rows and the model stays unfitted.
func (m *AR4Model) refit() {
	r := m.state.Returns
	n := len(r)
	if n < ar4Lags+1 {
		return
	}

	rows := n - ar4Lags
	x := make([][]float64, rows)
	y := make([]float64, rows)
	for t := ar4Lags; t < n; t++ {
		row := make([]float64, ar4Lags+1)
		row[0] = 1
		for i := 1; i <= ar4Lags; i++ {
			row[i] = r[t-i]
		}
		x[t-ar4Lags] = row
		y[t-ar4Lags] = r[t]
	}

	beta := solveNormalEquations(x, y)
	copy(m.state.Coeffs[:], beta)
	m.state.RSquared = rSquared(x, y, beta)
	m.state.Fitted = true
}

// predict applies the fitted coefficients to the 4 most recent returns.
func (m *AR4Model) predict() float64 {
	r := m.state.Returns
	n := len(r)
	pred := m.state.Coeffs[0]
	for i := 1; i <= ar4Lags; i++ {
		pred += m.state.Coeffs[i] * r[n-i]
	}
	return pred
}

func rSquared(x [][]float64, y []float64, beta []float64) float64 {
	mean := 0.0
	for _, v := range y {
		mean += v
	}
	mean /= float64(len(y))

	ssRes := 0.0
	ssTot := 0.0
	for i, row := range x {
		pred := 0.0
		for j, b := range beta {
			pred += b * row[j]
		}
		dRes := y[i] - pred
		dTot := y[i] - mean
		ssRes += dRes * dRes
		ssTot += dTot * dTot
	}
	if ssTot == 0 {
		return 0
	}
	// clamped, not rejected: a negative out-of-sample R2 collapses to 0
	return clamp(1-ssRes/ssTot, 0, 1)
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

var _ domsvc.AlphaModel = (*AR4Model)(nil)
