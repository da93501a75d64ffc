//go:build wireinject
// +build wireinject

package di

import (
	"AlphaPipe/pkg/config"
	"AlphaPipe/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedisCache,

		// Repositories
		ProvideBarRepository,
		ProvideRecordPublisher,

		// Domain services
		ProvideFeedStream,
		ProvideNormCache,
		ProvideActionOutbox,
		ProvideRiskSource,

		// Decision pipeline and use cases
		ProvidePipelineConfig,
		ProvideDecisionPipeline,
		ProvideBarProcessor,
		ProvideBarCollector,
		ProvideKafkaBarsHandler,

		// HTTP read API
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
