package usecase

import (
	"context"
	"fmt"
	"time"

	"AlphaPipe/internal/domain/models"
	drepo "AlphaPipe/internal/domain/repository"
)

// BarProcessor persists each closed bar and drives the decision
// pipeline with it. Persistence failures are fatal for the bar (the
// replay store must stay complete); pipeline errors are reported but do
// not block later bars.
type BarProcessor struct {
	store    drepo.BarWriter
	pipeline *DecisionPipeline
	metrics  drepo.Metrics
}

// NewBarProcessor creates a new BarProcessor instance.
func NewBarProcessor(store drepo.BarWriter, pipeline *DecisionPipeline, metrics drepo.Metrics) *BarProcessor {
	return &BarProcessor{store: store, pipeline: pipeline, metrics: metrics}
}

// Process stores one bar and steps the pipeline.
func (p *BarProcessor) Process(ctx context.Context, b *models.Bar) error {
	if b == nil {
		return fmt.Errorf("bar is nil")
	}

	start := time.Now()
	if p.store != nil {
		if err := p.store.Store(ctx, b); err != nil {
			p.metrics.RecordError("store_bar")
			return fmt.Errorf("store bar: %w", err)
		}
	}

	if p.pipeline != nil {
		if _, err := p.pipeline.OnBar(ctx, b); err != nil {
			p.metrics.RecordError("pipeline_bar")
			return fmt.Errorf("pipeline bar: %w", err)
		}
	}

	p.metrics.RecordRecord("bar", b.Symbol)
	p.metrics.RecordLatency("process_bar", time.Since(start).Seconds())
	return nil
}

// ProcessBatch stores a batch, then steps the pipeline bar by bar to
// preserve per-symbol ordering.
func (p *BarProcessor) ProcessBatch(ctx context.Context, bars []*models.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	start := time.Now()
	if p.store != nil {
		if err := p.store.StoreBatch(ctx, bars); err != nil {
			p.metrics.RecordError("store_batch")
			return fmt.Errorf("store batch: %w", err)
		}
	}
	if p.pipeline != nil {
		for _, b := range bars {
			if _, err := p.pipeline.OnBar(ctx, b); err != nil {
				p.metrics.RecordError("pipeline_bar")
				return fmt.Errorf("pipeline bar: %w", err)
			}
		}
	}

	for _, b := range bars {
		p.metrics.RecordRecord("bar", b.Symbol)
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())
	return nil
}

// Close closes underlying resources if available.
func (p *BarProcessor) Close() {
	if p.store != nil {
		_ = p.store.Close()
	}
}
