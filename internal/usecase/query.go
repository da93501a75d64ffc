package usecase

import (
	"context"
	"fmt"

	"AlphaPipe/internal/alpha"
	"AlphaPipe/internal/domain/models"
	domrepo "AlphaPipe/internal/domain/repository"
	domsvc "AlphaPipe/internal/domain/service"
	"AlphaPipe/internal/features"
)

// QueryUseCase answers read-API questions by recomputing over stored
// bars with fresh, throwaway sessions. Nothing here touches the live
// per-symbol sessions, so reads never perturb the decision stream.
type QueryUseCase struct {
	store domrepo.BarStore
	cfg   PipelineConfig
	cache domsvc.NormalizationCache
}

func NewQueryUseCase(store domrepo.BarStore, cfg PipelineConfig, cache domsvc.NormalizationCache) *QueryUseCase {
	return &QueryUseCase{store: store, cfg: cfg, cache: cache}
}

// Features computes the feature vector anchored at the latest stored bar.
func (uc *QueryUseCase) Features(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) (*models.FeatureVector, error) {
	bars, err := uc.latest(ctx, symbol, n, tf)
	if err != nil {
		return nil, err
	}
	return features.NewBuilder(uc.cfg.Features, uc.cache).Build(ctx, bars)
}

// SignalResult is the last signal a fresh model run produced, if any.
type SignalResult struct {
	Model   string
	Signal  *models.AlphaSignal
	BarsRun int
}

// Signal replays the latest N bars through a fresh instance of the
// requested model and returns its last emission.
func (uc *QueryUseCase) Signal(ctx context.Context, symbol, model string, n int, tf domrepo.Timeframe) (*SignalResult, error) {
	var m domsvc.AlphaModel
	switch model {
	case "ar4":
		m = alpha.NewAR4Model(uc.cfg.AR4)
	case "macd":
		m = alpha.NewMACDModel(uc.cfg.MACD)
	default:
		return nil, fmt.Errorf("unknown model: %s", model)
	}

	bars, err := uc.latest(ctx, symbol, n, tf)
	if err != nil {
		return nil, err
	}
	builder := features.NewBuilder(uc.cfg.Features, uc.cache)

	res := &SignalResult{Model: model}
	for i := uc.cfg.Features.Window; i <= len(bars); i++ {
		fv, err := builder.Build(ctx, bars[:i])
		if err != nil {
			return nil, err
		}
		sig, err := m.GenerateSignal(fv)
		if err != nil {
			return nil, err
		}
		if sig != nil {
			res.Signal = sig
		}
		res.BarsRun++
	}
	return res, nil
}

// DecideResult is the outcome of a throwaway full-pipeline run.
type DecideResult struct {
	BarsRun   int
	Features  *models.FeatureVector
	Signal    *models.AlphaSignal
	Action    *models.Action
	Verdict   *models.RiskVerdict
	FinalSide string
	FinalSize float64
}

// Decide runs the latest N bars through a fresh full session and
// reports the last record plus the final position state.
func (uc *QueryUseCase) Decide(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) (*DecideResult, error) {
	bars, err := uc.latest(ctx, symbol, n, tf)
	if err != nil {
		return nil, err
	}
	sess, err := NewDecisionSession(uc.cfg, uc.cache)
	if err != nil {
		return nil, err
	}

	riskCtx := models.RiskContext{Symbol: symbol}
	res := &DecideResult{}
	for i := range bars {
		rec, err := sess.Step(ctx, bars[i], riskCtx)
		if err != nil {
			return nil, fmt.Errorf("bar %d: %w", i, err)
		}
		res.BarsRun++
		if rec.Features != nil {
			res.Features = rec.Features
		}
		if rec.Signal != nil {
			res.Signal = rec.Signal
		}
		if rec.Action != nil {
			res.Action = rec.Action
			res.Verdict = rec.Verdict
		}
	}

	st := sess.PolicyState()
	res.FinalSide = st.Side
	res.FinalSize = st.Size
	return res, nil
}

func (uc *QueryUseCase) latest(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Bar, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if n <= 0 {
		n = 600
	}
	bars, err := uc.store.GetLatestNBars(ctx, symbol, n, tf)
	if err != nil {
		return nil, fmt.Errorf("load bars: %w", err)
	}
	if len(bars) < uc.cfg.Features.Window {
		return nil, fmt.Errorf("not enough bars: got %d, need %d", len(bars), uc.cfg.Features.Window)
	}
	return bars, nil
}
