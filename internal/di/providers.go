package di

import (
	"context"
	"fmt"
	"time"

	"MarketBrief/internal/domain/repository"
	"MarketBrief/internal/handler/api"
	internalrepo "MarketBrief/internal/repository"
	"MarketBrief/internal/scheduler"
	"MarketBrief/internal/service/ratelimit"
	"MarketBrief/internal/usecase"
	"MarketBrief/pkg/cache"
	pkgch "MarketBrief/pkg/clickhouse"
	"MarketBrief/pkg/config"
	xhttp "MarketBrief/pkg/http"
	pkgkafka "MarketBrief/pkg/kafka"
	applogger "MarketBrief/pkg/logger"
	"MarketBrief/pkg/metrics"
	"MarketBrief/pkg/queue"
	"MarketBrief/pkg/server"

	"github.com/redis/go-redis/v9"
)

const (
	serviceName = "marketbrief"
	initTimeout = 10 * time.Second
)

// ProvideLogger creates the structured logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("service", serviceName), applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideAssetStore opens the configured asset table backend.
func ProvideAssetStore(cfg *config.Config, l *applogger.Logger) (repository.AssetStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	switch cfg.Store.Backend {
	case config.BackendClickHouse:
		client, err := pkgch.NewClient(
			pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
			pkgch.WithAuth(cfg.ClickHouse.Database, cfg.ClickHouse.User, cfg.ClickHouse.Password),
			pkgch.WithPool(10, 5, 0),
			pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
			pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.MaxExecutionTime),
		)
		if err != nil {
			return nil, fmt.Errorf("clickhouse client: %w", err)
		}
		if err := client.InitSchema(ctx, internalrepo.ClickHouseAssetSchema(client.Database(), cfg.Store.Table)); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}
		store := internalrepo.NewCHAssetStore(client, client.Database()+"."+cfg.Store.Table)
		store.SetLogger(l)
		l.Info("asset store ready", applogger.String("backend", cfg.Store.Backend), applogger.String("database", client.Database()))
		return store, nil

	case config.BackendPostgres:
		pool, err := internalrepo.NewPGPool(ctx, cfg.Store.Postgres.DSN, cfg.Store.Postgres.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("postgres pool: %w", err)
		}
		store := internalrepo.NewPGAssetStore(pool, cfg.Store.Table)
		if err := store.InitSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("postgres schema: %w", err)
		}
		store.SetLogger(l)
		l.Info("asset store ready", applogger.String("backend", cfg.Store.Backend))
		return store, nil

	case config.BackendSQLite:
		store, err := internalrepo.NewSQLiteAssetStore(cfg.Store.SQLite.Path, cfg.Store.Table)
		if err != nil {
			return nil, fmt.Errorf("sqlite store: %w", err)
		}
		store.SetLogger(l)
		l.Info("asset store ready", applogger.String("backend", cfg.Store.Backend), applogger.String("path", cfg.Store.SQLite.Path))
		return store, nil

	case config.BackendMemory:
		l.Warn("asset store is in-memory and starts empty")
		return internalrepo.NewMemoryAssetStore(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

// ProvideRedisClient returns nil when redis is disabled.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	client, err := cache.DialRedis(ctx, cache.RedisSettings{
		Host:        cfg.Redis.Host,
		Port:        cfg.Redis.Port,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		PoolSize:    cfg.Redis.PoolSize,
		MinIdle:     cfg.Redis.PoolSize / 2,
		PoolTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return client, nil
}

// ProvideCache builds the instrumented snapshot cache: redis (optionally
// fronted by an in-process layer) when a client exists, in-process memory
// otherwise.
func ProvideCache(cfg *config.Config, client *redis.Client) cache.Service {
	var svc cache.Service
	switch {
	case client == nil:
		svc = cache.NewMemoryCache(cache.WithMemoryCleanup(time.Minute))
	case cfg.Redis.Layered:
		svc = cache.NewLayeredCache(cache.NewRedisCache(client, cfg.Redis.Prefix), cache.WithLayeredMemoryTTL(cfg.Redis.MemoryTTL))
	default:
		svc = cache.NewRedisCache(client, cfg.Redis.Prefix)
	}
	return cache.Instrument(svc, "snapshot")
}

// ProvideKafkaProducer returns nil when kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
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

// ProvideSnapshotPublisher returns nil without a producer; snapshots are then
// only served, never forwarded.
func ProvideSnapshotPublisher(cfg *config.Config, producer *pkgkafka.Producer, l *applogger.Logger) repository.SnapshotPublisher {
	if producer == nil {
		return nil
	}
	p := internalrepo.NewKafkaSnapshotPublisher(producer, cfg.Kafka.SnapshotTopic)
	p.SetLogger(l)
	return p
}

func ProvideCurateUseCase(cfg *config.Config, store repository.AssetStore, m repository.Metrics, c cache.Service, l *applogger.Logger) *usecase.CurateUseCase {
	return usecase.NewCurateUseCase(store, m,
		usecase.WithDefaultLimit(cfg.Curation.DefaultLimit),
		usecase.WithMaxLimit(cfg.Curation.MaxLimit),
		usecase.WithFreshnessWindow(cfg.Curation.FreshnessWindowMinutes),
		usecase.WithCurateTimeout(cfg.Curation.Timeout),
		usecase.WithSnapshotCache(c, cfg.Curation.CacheTTL),
		usecase.WithCurateLogger(l),
	)
}

func ProvideSnapshotJob(curate *usecase.CurateUseCase, pub repository.SnapshotPublisher, m repository.Metrics, l *applogger.Logger) *usecase.SnapshotJob {
	return usecase.NewSnapshotJob(curate, pub, m, l)
}

// ProvideQueue returns nil unless both the queue and redis are enabled.
func ProvideQueue(cfg *config.Config, client *redis.Client, job *usecase.SnapshotJob, l *applogger.Logger) *queue.RedisQueue {
	if !cfg.Queue.Enabled || client == nil {
		return nil
	}
	q := queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		QueueSize:  cfg.Queue.QueueSize,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, client, queue.ModeProducerConsumer, queue.WithKeyPrefix(cfg.Redis.Prefix+":queue"))
	q.RegisterJob(job)
	return q
}

// ProvideScheduler returns nil when scheduling is disabled.
func ProvideScheduler(cfg *config.Config, job *usecase.SnapshotJob, q *queue.RedisQueue, c cache.Service, m repository.Metrics, l *applogger.Logger) *scheduler.Scheduler {
	if !cfg.Scheduler.Enabled {
		return nil
	}
	targets := make([]scheduler.Target, 0, len(cfg.Scheduler.Targets))
	for _, t := range cfg.Scheduler.Targets {
		targets = append(targets, scheduler.Target{Style: t.Style, Preference: t.Preference, Limit: t.Limit})
	}
	opts := []scheduler.Option{scheduler.WithLock(c), scheduler.WithLogger(l)}
	if q != nil {
		opts = append(opts, scheduler.WithQueue(q))
	}
	return scheduler.New(cfg.Scheduler.Spec, cfg.Scheduler.MinInterval, targets, job, m, opts...)
}

func ProvideAssetRefreshHandler(cfg *config.Config, curate *usecase.CurateUseCase, m repository.Metrics, l *applogger.Logger) *usecase.AssetRefreshHandler {
	return usecase.NewAssetRefreshHandler(cfg.Kafka.RefreshTopic, curate, m, l)
}

// ProvideKafkaConsumer returns nil when kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, h *usecase.AssetRefreshHandler, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
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
	consumer.SetLogger(l)
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.TraceHook{},
		pkgkafka.SkipEmptyHook{},
		pkgkafka.NewLoggingHook(l),
	))
	consumer.RegisterHandler(h)
	return consumer, nil
}

// ProvideRateLimiter returns nil when rate limiting is disabled.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSec)
}

func ProvideCurationHandler(l *applogger.Logger, curate *usecase.CurateUseCase, q *queue.RedisQueue, rl *ratelimit.Limiter) *api.CurationEchoHandler {
	h := api.NewCurationEchoHandler(l, curate)
	if q != nil {
		h.SetQueue(q)
	}
	if rl != nil {
		h.SetLimiter(rl)
	}
	return h
}

func ProvideHTTPServer(cfg *config.Config, h *api.CurationEchoHandler, l *applogger.Logger) *xhttp.Server {
	return xhttp.NewServer(h, l,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithCORS(cfg.Server.CORS),
	)
}

// ProvideApp assembles the lifecycle. Components start in the order added;
// closers run in reverse after every component stopped, so the log
// collector flushes before the producer closes.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	q *queue.RedisQueue,
	sch *scheduler.Scheduler,
	store repository.AssetStore,
	c cache.Service,
	pub repository.SnapshotPublisher,
	producer *pkgkafka.Producer,
	client *redis.Client,
) *server.App {
	app := server.New(cfg, l)

	if q != nil {
		app.Add("queue", q)
	}
	if consumer != nil {
		app.Add("kafka consumer", consumer)
	}
	if sch != nil {
		app.Add("scheduler", sch)
	}
	app.Add("http", srv)

	// The publisher owns the producer when both exist.
	switch {
	case pub != nil:
		app.OnClose("snapshot publisher", pub.Close)
	case producer != nil:
		app.OnClose("kafka producer", producer.Close)
	}

	if producer != nil && cfg.Log.Collector.Enabled {
		l.AddCollector(&applogger.CollectionConfig{
			Service:        serviceName,
			TimeInterval:   cfg.Log.Collector.Interval,
			CountThreshold: cfg.Log.Collector.Threshold,
			Topic:          cfg.Log.Collector.Topic,
			Publisher:      internalrepo.NewKafkaLogPublisher(producer),
		})
		app.OnClose("log collector", func() error {
			l.RemoveCollector()
			return nil
		})
	}
	app.OnClose("asset store", store.Close)
	if cl, ok := c.(interface{ Close() error }); ok {
		app.OnClose("cache", cl.Close)
	}
	if client != nil {
		app.OnClose("redis", client.Close)
	}
	return app
}
