package repository

import (
	"context"
	"fmt"

	"AlphaPipe/internal/domain/models"
	domrepo "AlphaPipe/internal/domain/repository"
	pkgkafka "AlphaPipe/pkg/kafka"
)

// RecordTopics names the destination topic per record kind.
type RecordTopics struct {
	Features string
	Signals  string
	Actions  string
	Verdicts string
}

// KafkaRecordPublisher fans pipeline records out to Kafka, keyed by
// symbol so per-symbol ordering survives partitioning.
type KafkaRecordPublisher struct {
	producer *pkgkafka.Producer
	topics   RecordTopics
}

func NewKafkaRecordPublisher(producer *pkgkafka.Producer, topics RecordTopics) *KafkaRecordPublisher {
	return &KafkaRecordPublisher{producer: producer, topics: topics}
}

func (p *KafkaRecordPublisher) PublishFeatures(ctx context.Context, fv *models.FeatureVector) error {
	return p.producer.Publish(ctx, p.topics.Features, []byte(fv.Symbol), map[string]interface{}{
		"ts":       fv.Timestamp,
		"exchange": fv.Exchange,
		"symbol":   fv.Symbol,
		"tf":       fv.Timeframe,
		"features": fv.Features,
		"regime":   string(fv.Regime),
	})
}

func (p *KafkaRecordPublisher) PublishSignal(ctx context.Context, s *models.AlphaSignal) error {
	return p.producer.Publish(ctx, p.topics.Signals, []byte(s.Symbol), map[string]interface{}{
		"id":          s.ID,
		"ts":          s.Timestamp,
		"symbol":      s.Symbol,
		"exchange":    s.Exchange,
		"tf":          s.Timeframe,
		"score":       s.Score,
		"confidence":  s.Confidence,
		"horizon_sec": s.HorizonSec,
		"rationale":   s.Rationale,
	})
}

func (p *KafkaRecordPublisher) PublishAction(ctx context.Context, a *models.Action) error {
	return p.producer.Publish(ctx, p.topics.Actions, []byte(a.Symbol), actionPayload(a))
}

func (p *KafkaRecordPublisher) PublishVerdict(ctx context.Context, a *models.Action, v *models.RiskVerdict) error {
	if v == nil {
		return fmt.Errorf("verdict is nil")
	}
	payload := map[string]interface{}{
		"allow":  v.Allow,
		"reason": v.Reason,
		"action": actionPayload(a),
	}
	if v.Adjusted != nil {
		payload["adjusted"] = actionPayload(v.Adjusted)
	}
	return p.producer.Publish(ctx, p.topics.Verdicts, []byte(a.Symbol), payload)
}

func (p *KafkaRecordPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

func actionPayload(a *models.Action) map[string]interface{} {
	return map[string]interface{}{
		"signal_id":   a.SignalID,
		"ts":          a.Timestamp,
		"symbol":      a.Symbol,
		"exchange":    a.Exchange,
		"tf":          a.Timeframe,
		"side":        a.Side,
		"size":        a.Size,
		"price":       a.Price,
		"take_profit": a.TakeProfit,
		"stop_loss":   a.StopLoss,
		"reason":      a.Reason,
		"score":       a.Score,
		"confidence":  a.Confidence,
		"atr":         a.ATR,
	}
}

var _ domrepo.RecordPublisher = (*KafkaRecordPublisher)(nil)
