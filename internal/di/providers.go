package di

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"AlphaPipe/internal/alpha"
	"AlphaPipe/internal/domain/repository"
	domsvc "AlphaPipe/internal/domain/service"
	"AlphaPipe/internal/features"
	"AlphaPipe/internal/handler/api"
	mid "AlphaPipe/internal/middleware"
	"AlphaPipe/internal/policy"
	internalrepo "AlphaPipe/internal/repository"
	"AlphaPipe/internal/service/account"
	icache "AlphaPipe/internal/service/cache"
	"AlphaPipe/internal/service/feed"
	"AlphaPipe/internal/usecase"
	pkgcache "AlphaPipe/pkg/cache"
	pkgch "AlphaPipe/pkg/clickhouse"
	"AlphaPipe/pkg/config"
	xhttp "AlphaPipe/pkg/http"
	pkgkafka "AlphaPipe/pkg/kafka"
	applogger "AlphaPipe/pkg/logger"
	"AlphaPipe/pkg/metrics"
	"AlphaPipe/pkg/queue"
	"AlphaPipe/pkg/server"

	"github.com/labstack/echo/v4"
	"github.com/segmentio/kafka-go"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	if cfg.Environment == "development" {
		level = "debug"
	}
	return applogger.New(&applogger.Config{Level: level, Format: "console", Output: "stdout"})
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	// Initialize schema
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	const barTable = "(bucket DateTime, exchange String, symbol String, open Float64, high Float64, low Float64, close Float64, vol Float64) ENGINE=MergeTree ORDER BY (symbol, bucket)"
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS alphapipe",
		"CREATE TABLE IF NOT EXISTS alphapipe.rt_bars_1s " + barTable,
		"CREATE TABLE IF NOT EXISTS alphapipe.rt_bars_1m " + barTable,
		"CREATE TABLE IF NOT EXISTS alphapipe.rt_bars_5m " + barTable,
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideBarRepository creates the ClickHouse bar store.
func ProvideBarRepository(chClient *pkgch.Client, l *applogger.Logger) *internalrepo.ClickHouseBarStore {
	s := internalrepo.NewClickHouseBarStore(chClient)
	s.SetLogger(l)
	return s
}

// ProvideRecordPublisher creates the Kafka record publisher.
func ProvideRecordPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.RecordPublisher {
	return internalrepo.NewKafkaRecordPublisher(producer, internalrepo.RecordTopics{
		Features: cfg.Kafka.Topics.Features,
		Signals:  cfg.Kafka.Topics.Signals,
		Actions:  cfg.Kafka.Topics.Actions,
		Verdicts: cfg.Kafka.Topics.Verdicts,
	})
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaBarsHandler registers the handler for the bars topic.
func ProvideKafkaBarsHandler(store *internalrepo.ClickHouseBarStore, m repository.Metrics, cfg *config.Config) *usecase.KafkaBarsHandler {
	return usecase.NewKafkaBarsHandler(cfg.Kafka.Topics.Bars, store, m)
}

// ProvideFeedStream creates the exchange WebSocket bar stream.
func ProvideFeedStream(cfg *config.Config) *feed.Client {
	return feed.New(
		cfg.Feed.APIKey,
		cfg.Feed.WebSocketURL,
		cfg.Feed.Exchange,
		cfg.Feed.Symbols,
		cfg.Feed.Timeframe,
		cfg.Feed.ReconnectDelay,
		cfg.Feed.PingInterval,
		cfg.Feed.StaleAfter,
	)
}

// ProvideRedisCache connects to Redis, or returns nil when disabled.
func ProvideRedisCache(cfg *config.Config, l *applogger.Logger) (*pkgcache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	host, port := splitHostPort(cfg.Redis.Addr)
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		// degraded mode: normalization cache and outbox are optional
		l.Warn("redis unavailable, continuing without it", applogger.Error(err))
		return nil, nil
	}
	return rc, nil
}

// ProvideNormCache creates the normalization cache. The Redis layer is
// fronted by an in-process LRU so hot keys skip the network round trip.
func ProvideNormCache(rc *pkgcache.RedisCache, l *applogger.Logger) *features.RedisNormCache {
	if rc == nil {
		return nil
	}
	return features.NewRedisNormCache(pkgcache.NewLayeredCache(rc), l)
}

// ProvideActionOutbox creates the producer-only action queue.
func ProvideActionOutbox(rc *pkgcache.RedisCache, cfg *config.Config, l *applogger.Logger) *queue.RedisQueue {
	if rc == nil {
		return nil
	}
	prefix := cfg.Redis.Outbox
	if prefix == "" {
		prefix = "alphapipe:actions"
	}
	return queue.NewRedisPublisher(l, rc.Client(), queue.WithKeyPrefix(prefix))
}

// ProvideRiskSource creates the account risk source. The feed client
// doubles as the staleness signal.
func ProvideRiskSource(cfg *config.Config, stream *feed.Client, l *applogger.Logger) domsvc.RiskSource {
	return account.New(cfg.Account.ServiceURL, cfg.Account.Timeout, cfg.Account.CacheTTL, stream, l)
}

// ProvidePipelineConfig maps YAML values onto stage configs, leaving
// zeros for each stage's own defaulting.
func ProvidePipelineConfig(cfg *config.Config) usecase.PipelineConfig {
	p := usecase.DefaultPipelineConfig()

	f := cfg.Pipeline.Features
	if f.Window > 0 {
		p.Features.Window = f.Window
	}
	if f.RSIPeriod > 0 {
		p.Features.RSIPeriod = f.RSIPeriod
	}
	if f.ATRPeriod > 0 {
		p.Features.ATRPeriod = f.ATRPeriod
	}
	if f.MACDFast > 0 && f.MACDSlow > 0 && f.MACDSignal > 0 {
		p.Features.MACDFast = f.MACDFast
		p.Features.MACDSlow = f.MACDSlow
		p.Features.MACDSignal = f.MACDSignal
	}
	if f.VolatileVolRatio > 0 {
		p.Features.VolatileVolRatio = f.VolatileVolRatio
	}
	if f.TrendThreshold > 0 {
		p.Features.TrendThreshold = f.TrendThreshold
	}

	a := cfg.Pipeline.AR4
	p.AR4 = alpha.AR4Config{FitWindow: a.FitWindow, MinRSquared: a.MinRSquared, HorizonSec: a.HorizonSec}

	m := cfg.Pipeline.MACD
	p.MACD = alpha.MACDConfig{MinHistogram: m.MinHistogram, HorizonSec: m.HorizonSec, CrossoverMode: m.CrossoverMode}

	pol := cfg.Pipeline.Policy
	p.Policy = policy.Config{
		EnterThreshold:   pol.EnterThreshold,
		ExitThreshold:    pol.ExitThreshold,
		SizingMode:       policy.SizingMode(pol.SizingMode),
		FixedNotional:    pol.FixedNotional,
		SizingMultiplier: pol.SizingMultiplier,
		ATRTPMultiplier:  pol.ATRTPMultiplier,
		ATRSLMultiplier:  pol.ATRSLMultiplier,
		MaxSize:          pol.MaxSize,
	}

	r := cfg.Pipeline.Risk
	if r.MaxDailyLoss > 0 {
		p.Risk.MaxDailyLoss = r.MaxDailyLoss
	}
	if r.MaxExposure > 0 {
		p.Risk.MaxExposure = r.MaxExposure
	}
	if r.MaxLeverage > 0 {
		p.Risk.MaxLeverage = r.MaxLeverage
	}
	return p
}

// ProvideDecisionPipeline creates the live decision pipeline.
func ProvideDecisionPipeline(
	pcfg usecase.PipelineConfig,
	norm *features.RedisNormCache,
	riskSrc domsvc.RiskSource,
	pub repository.RecordPublisher,
	outbox *queue.RedisQueue,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.DecisionPipeline {
	var cache domsvc.NormalizationCache
	if norm != nil {
		cache = norm
	}
	var q queue.QueueService
	if outbox != nil {
		q = outbox
	}
	return usecase.NewDecisionPipeline(pcfg, cache, riskSrc, pub, q, m, l)
}

// ProvideBarProcessor creates the bar processor use case.
func ProvideBarProcessor(store *internalrepo.ClickHouseBarStore, pipeline *usecase.DecisionPipeline, m repository.Metrics) *usecase.BarProcessor {
	return usecase.NewBarProcessor(store, pipeline, m)
}

// ProvideBarCollector creates the bar collector use case.
func ProvideBarCollector(
	stream *feed.Client,
	processor *usecase.BarProcessor,
	m repository.Metrics,
) *usecase.BarCollector {
	// middleware pipeline between WebSocket and the decision pipeline
	pipe := mid.NewRealtimePipeline(processor, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
	return usecase.NewBarCollector(stream, processor, m, pipe)
}

// ProvideHTTPHandler creates the read-API handlers. The Echo handler
// serves /api; the plain cached and rate-limited variant serves /v1.
func ProvideHTTPHandler(
	l *applogger.Logger,
	store *internalrepo.ClickHouseBarStore,
	pcfg usecase.PipelineConfig,
	norm *features.RedisNormCache,
	rc *pkgcache.RedisCache,
) xhttp.Handler {
	var cache domsvc.NormalizationCache
	if norm != nil {
		cache = norm
	}
	query := usecase.NewQueryUseCase(store, pcfg, cache)
	replay := usecase.NewReplayUseCase(store, pcfg)
	bars := usecase.NewBarsUseCase(store)

	plain := api.NewPipelineHandler(query)
	plain.SetLogger(l)
	if rc != nil {
		plain.SetCache(icache.NewRedisCacheFromClient(rc.Client()))
	}

	return handlerGroup{
		api.NewPipelineEchoHandler(l, query, replay, bars),
		plain,
	}
}

// handlerGroup registers several route sets on one Echo server.
type handlerGroup []xhttp.Handler

func (g handlerGroup) RegisterRoutes(e *echo.Echo) {
	for _, h := range g {
		h.RegisterRoutes(e)
	}
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	collector *usecase.BarCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaBarsHandler,
	chClient *pkgch.Client,
	handler xhttp.Handler,
	outbox *queue.RedisQueue,
	norm *features.RedisNormCache,
	l *applogger.Logger,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NewHookChain(
			pkgkafka.HookFuncs{
				Before: func(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
					return pkgkafka.WithStartTime(ctx, time.Now()), km, data, nil
				},
				Err: func(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
					l.Warn("kafka message failed",
						applogger.String("topic", topic),
						applogger.Error(err))
				},
			},
		))
	}
	// aggregated error logs ride the same Redis queue as actions
	if outbox != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          "log.aggregate",
			Publisher:      outbox,
		})
	}

	app := server.New(cfg, collector, consumer, kh, chClient, l)
	app.SetHTTPHandler(handler)
	app.Outbox = outbox
	app.NormCache = norm
	if collector != nil {
		app.BarProc = collector.Processor()
	}
	return app
}

func splitHostPort(addr string) (string, int) {
	host, portStr, ok := strings.Cut(addr, ":")
	if !ok {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 6379
	}
	return host, port
}
