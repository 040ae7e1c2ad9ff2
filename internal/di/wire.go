//go:build wireinject
// +build wireinject

package di

import (
	"MarketBrief/pkg/config"
	"MarketBrief/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideAssetStore,
		ProvideRedisClient,
		ProvideCache,
		ProvideKafkaProducer,
		ProvideSnapshotPublisher,

		// Use cases
		ProvideCurateUseCase,
		ProvideSnapshotJob,
		ProvideAssetRefreshHandler,

		// Background workers
		ProvideQueue,
		ProvideScheduler,
		ProvideKafkaConsumer,

		// HTTP
		ProvideRateLimiter,
		ProvideCurationHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
