package repository

import (
	"context"

	"AlphaPipe/internal/domain/models"
)

// MarketStream is the upstream market-data collaborator delivering
// closed bars in non-decreasing timestamp order per symbol.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Bar, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// RecordPublisher publishes pipeline output records onto the event bus.
// Subject naming and transport are the publisher's concern.
type RecordPublisher interface {
	PublishFeatures(ctx context.Context, fv *models.FeatureVector) error
	PublishSignal(ctx context.Context, s *models.AlphaSignal) error
	PublishAction(ctx context.Context, a *models.Action) error
	PublishVerdict(ctx context.Context, a *models.Action, v *models.RiskVerdict) error
	Close() error
}

// BarWriter persists bars for replay and golden-file regression.
type BarWriter interface {
	Store(ctx context.Context, b *models.Bar) error
	StoreBatch(ctx context.Context, bars []*models.Bar) error
	Health(ctx context.Context) error
	Close() error
}

// Metrics records operational measurements.
type Metrics interface {
	RecordRecord(kind, symbol string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
