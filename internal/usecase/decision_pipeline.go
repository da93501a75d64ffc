package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"AlphaPipe/internal/alpha"
	"AlphaPipe/internal/domain/models"
	domrepo "AlphaPipe/internal/domain/repository"
	domsvc "AlphaPipe/internal/domain/service"
	"AlphaPipe/internal/features"
	"AlphaPipe/internal/policy"
	"AlphaPipe/internal/risk"
	applogger "AlphaPipe/pkg/logger"
	"AlphaPipe/pkg/queue"
)

// ActionExecuteType is the outbox message type for allowed actions.
const ActionExecuteType = "action.execute"

// PipelineConfig bundles per-stage configuration for one session.
type PipelineConfig struct {
	Features features.Config
	AR4      alpha.AR4Config
	MACD     alpha.MACDConfig
	Policy   policy.Config
	Risk     RiskLimits
}

// RiskLimits are the account-level caps applied to every snapshot.
type RiskLimits struct {
	MaxDailyLoss float64
	MaxExposure  float64
	MaxLeverage  float64
}

// DefaultPipelineConfig returns the documented defaults for every stage.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Features: features.DefaultConfig(),
		AR4:      alpha.DefaultAR4Config(),
		MACD:     alpha.DefaultMACDConfig(),
		Policy:   policy.DefaultConfig(),
		Risk:     RiskLimits{MaxDailyLoss: 1000, MaxExposure: 100000, MaxLeverage: 3},
	}
}

// DecisionRecord is everything one bar produced: the feature vector,
// the chosen signal (nil when both models abstain), the policy action
// (nil on hold) and the risk verdict (nil without an action).
type DecisionRecord struct {
	Bar      models.Bar
	Features *models.FeatureVector
	Signal   *models.AlphaSignal
	Action   *models.Action
	Verdict  *models.RiskVerdict
}

// DecisionSession is the single-owner pipeline state for one
// symbol/timeframe stream: bar window, both alpha models and the
// position state machine. Calls must be serialized by the owner.
type DecisionSession struct {
	cfg     PipelineConfig
	window  []models.Bar
	builder *features.Builder
	models  []domsvc.AlphaModel
	policy  *policy.DecisionPolicy
	risk    *risk.Evaluator
	lastTS  int64
}

// NewDecisionSession builds a fresh session. cache may be nil.
func NewDecisionSession(cfg PipelineConfig, cache domsvc.NormalizationCache) (*DecisionSession, error) {
	pol, err := policy.NewDecisionPolicy(cfg.Policy)
	if err != nil {
		return nil, err
	}
	return &DecisionSession{
		cfg:     cfg,
		builder: features.NewBuilder(cfg.Features, cache),
		models: []domsvc.AlphaModel{
			alpha.NewAR4Model(cfg.AR4),
			alpha.NewMACDModel(cfg.MACD),
		},
		policy: pol,
		risk:   risk.NewEvaluator(),
	}, nil
}

// PolicyState exposes the current position for the read API.
func (s *DecisionSession) PolicyState() policy.PolicyState { return s.policy.State() }

// Step feeds one bar through the full pipeline stage chain. Bars older
// than the last accepted one are rejected; the caller owns ordering.
func (s *DecisionSession) Step(ctx context.Context, bar models.Bar, riskCtx models.RiskContext) (*DecisionRecord, error) {
	if err := bar.Validate(); err != nil {
		return nil, err
	}
	if bar.Timestamp < s.lastTS {
		return nil, fmt.Errorf("bar out of order: %d after %d", bar.Timestamp, s.lastTS)
	}
	s.lastTS = bar.Timestamp

	s.window = append(s.window, bar)
	if max := s.cfg.Features.Window * 3; len(s.window) > max {
		s.window = s.window[len(s.window)-max:]
	}

	rec := &DecisionRecord{Bar: bar}
	if len(s.window) < s.cfg.Features.Window {
		return rec, nil
	}

	fv, err := s.builder.Build(ctx, s.window)
	if err != nil {
		return nil, err
	}
	rec.Features = fv

	rec.Signal, err = s.selectSignal(fv)
	if err != nil {
		return nil, err
	}
	if rec.Signal == nil {
		return rec, nil
	}

	rec.Action, err = s.policy.GenerateAction(rec.Signal, fv)
	if err != nil {
		return nil, err
	}
	if rec.Action == nil {
		return rec, nil
	}

	riskCtx.MaxDailyLoss = s.cfg.Risk.MaxDailyLoss
	riskCtx.MaxExposure = s.cfg.Risk.MaxExposure
	riskCtx.MaxLeverage = s.cfg.Risk.MaxLeverage
	v := s.risk.Evaluate(rec.Action, riskCtx)
	rec.Verdict = &v
	return rec, nil
}

// selectSignal runs every model and keeps the most confident signal.
// Ties break on score magnitude, then on model order (AR first), so
// selection stays deterministic.
func (s *DecisionSession) selectSignal(fv *models.FeatureVector) (*models.AlphaSignal, error) {
	var best *models.AlphaSignal
	for _, m := range s.models {
		sig, err := m.GenerateSignal(fv)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.Name(), err)
		}
		if sig == nil {
			continue
		}
		if best == nil || sig.Confidence > best.Confidence ||
			(sig.Confidence == best.Confidence && math.Abs(sig.Score) > math.Abs(best.Score)) {
			best = sig
		}
	}
	return best, nil
}

// Reset flattens the policy and clears all model state and the window.
func (s *DecisionSession) Reset() {
	s.window = nil
	s.lastTS = 0
	for _, m := range s.models {
		m.Reset()
	}
	s.policy.Reset()
}

// DecisionPipeline owns one session per symbol and fans records out to
// the publisher, the action outbox and metrics. Sessions are only
// touched from the bar-consuming goroutine, so no locking here.
type DecisionPipeline struct {
	cfg      PipelineConfig
	cache    domsvc.NormalizationCache
	riskSrc  domsvc.RiskSource
	pub      domrepo.RecordPublisher
	outbox   queue.QueueService
	metrics  domrepo.Metrics
	l        *applogger.Logger
	sessions map[string]*DecisionSession
}

func NewDecisionPipeline(
	cfg PipelineConfig,
	cache domsvc.NormalizationCache,
	riskSrc domsvc.RiskSource,
	pub domrepo.RecordPublisher,
	outbox queue.QueueService,
	metrics domrepo.Metrics,
	l *applogger.Logger,
) *DecisionPipeline {
	return &DecisionPipeline{
		cfg:      cfg,
		cache:    cache,
		riskSrc:  riskSrc,
		pub:      pub,
		outbox:   outbox,
		metrics:  metrics,
		l:        l,
		sessions: make(map[string]*DecisionSession),
	}
}

// Session returns (creating on demand) the session for a symbol stream.
func (p *DecisionPipeline) Session(exchange, symbol, timeframe string) (*DecisionSession, error) {
	key := exchange + ":" + symbol + ":" + timeframe
	if s, ok := p.sessions[key]; ok {
		return s, nil
	}
	s, err := NewDecisionSession(p.cfg, p.cache)
	if err != nil {
		return nil, err
	}
	p.sessions[key] = s
	return s, nil
}

// OnBar runs one bar end to end and publishes whatever the pipeline
// produced. Publish failures are logged and counted, never fatal: the
// decision stream must not stall on a slow broker.
func (p *DecisionPipeline) OnBar(ctx context.Context, bar *models.Bar) (*DecisionRecord, error) {
	if bar == nil {
		return nil, fmt.Errorf("bar is nil")
	}
	start := time.Now()
	sess, err := p.Session(bar.Exchange, bar.Symbol, bar.Timeframe)
	if err != nil {
		return nil, err
	}

	var riskCtx models.RiskContext
	if p.riskSrc != nil {
		riskCtx = p.riskSrc.Snapshot(ctx, bar.Exchange, bar.Symbol)
	}

	rec, err := sess.Step(ctx, *bar, riskCtx)
	if err != nil {
		p.metrics.RecordError("pipeline_step")
		return nil, err
	}

	p.publish(ctx, rec)
	p.metrics.RecordLatency("pipeline_step", time.Since(start).Seconds())
	return rec, nil
}

func (p *DecisionPipeline) publish(ctx context.Context, rec *DecisionRecord) {
	if rec.Features != nil {
		if err := p.pub.PublishFeatures(ctx, rec.Features); err != nil {
			p.logPublishErr("features", rec.Bar.Symbol, err)
		} else {
			p.metrics.RecordRecord("features", rec.Bar.Symbol)
		}
	}
	if rec.Signal != nil {
		if err := p.pub.PublishSignal(ctx, rec.Signal); err != nil {
			p.logPublishErr("signal", rec.Bar.Symbol, err)
		} else {
			p.metrics.RecordRecord("signal", rec.Bar.Symbol)
		}
	}
	if rec.Action != nil {
		if err := p.pub.PublishAction(ctx, rec.Action); err != nil {
			p.logPublishErr("action", rec.Bar.Symbol, err)
		} else {
			p.metrics.RecordRecord("action", rec.Bar.Symbol)
		}
	}
	if rec.Verdict != nil {
		if err := p.pub.PublishVerdict(ctx, rec.Action, rec.Verdict); err != nil {
			p.logPublishErr("verdict", rec.Bar.Symbol, err)
		} else {
			p.metrics.RecordRecord("verdict", rec.Bar.Symbol)
		}
		if rec.Verdict.Allow && p.outbox != nil {
			if err := p.outbox.PublishMessage(ctx, ActionExecuteType, rec.Action); err != nil {
				p.logPublishErr("outbox", rec.Bar.Symbol, err)
			}
		}
		if !rec.Verdict.Allow && p.l != nil {
			p.l.Warn("action blocked",
				applogger.String("symbol", rec.Bar.Symbol),
				applogger.String("reason", rec.Verdict.Reason),
				applogger.String("signal_id", rec.Action.SignalID),
			)
		}
	}
}

func (p *DecisionPipeline) logPublishErr(kind, symbol string, err error) {
	p.metrics.RecordError("publish_" + kind)
	if p.l != nil {
		p.l.Error("publish failed",
			applogger.String("kind", kind),
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
	}
}
