package usecase

import (
	"context"
	"encoding/json"
	"time"

	"AlphaPipe/internal/domain/models"
	domrepo "AlphaPipe/internal/domain/repository"
	pkgkafka "AlphaPipe/pkg/kafka"
)

// KafkaBarsHandler consumes bar messages from Kafka and writes them to
// storage, an alternative ingestion path to the websocket feed.
type KafkaBarsHandler struct {
	topic   string
	storage domrepo.BarWriter
	metrics domrepo.Metrics
}

func NewKafkaBarsHandler(topic string, storage domrepo.BarWriter, metrics domrepo.Metrics) *KafkaBarsHandler {
	return &KafkaBarsHandler{topic: topic, storage: storage, metrics: metrics}
}

func (h *KafkaBarsHandler) Topic() string { return h.topic }

// incoming message schema: {exchange, symbol, tf, t, o, h, l, c, v}
func (h *KafkaBarsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Exchange  string  `json:"exchange"`
		Symbol    string  `json:"symbol"`
		Timeframe string  `json:"tf"`
		T         int64   `json:"t"`
		O         float64 `json:"o"`
		H         float64 `json:"h"`
		L         float64 `json:"l"`
		C         float64 `json:"c"`
		V         float64 `json:"v"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.T > 1e11 { // ms
		m.T = m.T / 1000
	}
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(time.Unix(m.T, 0)).Seconds())

	bar := &models.Bar{
		Timestamp: m.T,
		Open:      m.O,
		High:      m.H,
		Low:       m.L,
		Close:     m.C,
		Volume:    m.V,
		Exchange:  m.Exchange,
		Symbol:    m.Symbol,
		Timeframe: m.Timeframe,
	}
	if err := bar.Validate(); err != nil {
		h.metrics.RecordError("consumer_validate")
		return err
	}

	start := time.Now()
	err := h.storage.Store(ctx, bar)
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordRecord("bar_ingest", m.Symbol)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaBarsHandler)(nil)
