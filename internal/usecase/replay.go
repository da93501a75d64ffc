package usecase

import (
	"context"
	"fmt"
	"time"

	"AlphaPipe/internal/domain/models"
	domrepo "AlphaPipe/internal/domain/repository"
	"AlphaPipe/pkg/util"
)

// ReplayUseCase re-runs the decision pipeline over stored bars with a
// fresh session. Same bar sequence, same configuration, same output
// sequence; nothing is published and no live risk context is consulted,
// which is what makes replays comparable across runs.
type ReplayUseCase struct {
	store domrepo.BarStore
	cfg   PipelineConfig
}

func NewReplayUseCase(store domrepo.BarStore, cfg PipelineConfig) *ReplayUseCase {
	return &ReplayUseCase{store: store, cfg: cfg}
}

type ReplayParams struct {
	Symbol    string
	From      time.Time
	To        time.Time
	Timeframe domrepo.Timeframe
}

type ReplayResult struct {
	Symbol    string
	Timeframe string
	Bars      int
	Records   []DecisionRecord
	FinalSide string
	FinalSize float64
}

func (uc *ReplayUseCase) Replay(ctx context.Context, p ReplayParams) (*ReplayResult, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if p.From.After(p.To) {
		return nil, fmt.Errorf("from must be <= to")
	}

	from, to := util.AlignFromTo(p.From, p.To, string(p.Timeframe))
	bars, err := uc.store.GetBars(ctx, p.Symbol, from, to, p.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("load bars: %w", err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars for %s in range", p.Symbol)
	}

	// normalization cache deliberately nil: replays must not depend on
	// cache contents
	sess, err := NewDecisionSession(uc.cfg, nil)
	if err != nil {
		return nil, err
	}

	riskCtx := models.RiskContext{Symbol: p.Symbol}
	records := make([]DecisionRecord, 0, len(bars))
	for i := range bars {
		rec, err := sess.Step(ctx, bars[i], riskCtx)
		if err != nil {
			return nil, fmt.Errorf("bar %d: %w", i, err)
		}
		records = append(records, *rec)
	}

	st := sess.PolicyState()
	return &ReplayResult{
		Symbol:    p.Symbol,
		Timeframe: string(p.Timeframe),
		Bars:      len(bars),
		Records:   records,
		FinalSide: st.Side,
		FinalSize: st.Size,
	}, nil
}
