package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"MarketBrief/pkg/logger"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/sourcegraph/conc"
)

// ErrQueueFull is returned by Enqueue when the pending list reached QueueSize.
var ErrQueueFull = errors.New("queue: full")

// QueueMode defines the operation mode of the queue.
type QueueMode int

const (
	ModeProducerConsumer QueueMode = iota
	ModeProducerOnly
	ModeConsumerOnly
)

func (m QueueMode) String() string {
	switch m {
	case ModeProducerOnly:
		return "producer-only"
	case ModeConsumerOnly:
		return "consumer-only"
	default:
		return "producer-consumer"
	}
}

const (
	popTimeout    = time.Second
	retryInterval = 2 * time.Second
	retryBatch    = 100
)

// RedisQueue is a list-backed job queue. Pending messages live in a list,
// delayed retries in a sorted set scored by due time (unix ms) and exhausted
// messages in a dead-letter list.
type RedisQueue struct {
	logger  *logger.Logger
	config  *QueueConfig
	client  *redis.Client
	mode    QueueMode
	jobs    map[string]Job
	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      conc.WaitGroup

	keyPrefix  string
	pendingKey string
	retryKey   string
	deadKey    string
}

// RedisQueueOption configures RedisQueue.
type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix sets custom key prefix.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) {
		if prefix != "" {
			r.keyPrefix = prefix
		}
	}
}

// NewRedisQueue creates a queue. Jobs must be registered before Start.
func NewRedisQueue(lgr *logger.Logger, config *QueueConfig, client *redis.Client, mode QueueMode, opts ...RedisQueueOption) *RedisQueue {
	if config == nil {
		config = &QueueConfig{}
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 10 * time.Second
	}
	if lgr == nil {
		lgr = logger.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	rq := &RedisQueue{
		logger:    lgr,
		config:    config,
		client:    client,
		mode:      mode,
		jobs:      make(map[string]Job),
		ctx:       ctx,
		cancel:    cancel,
		keyPrefix: "marketbrief:queue",
	}
	for _, opt := range opts {
		opt(rq)
	}
	rq.pendingKey = rq.keyPrefix + ":messages"
	rq.retryKey = rq.keyPrefix + ":retry"
	rq.deadKey = rq.keyPrefix + ":dlq"

	initQueueMetricsOnce()
	return rq
}

// RegisterJob registers the handler for job.Type().
func (r *RedisQueue) RegisterJob(job Job) {
	if r.mode == ModeProducerOnly {
		r.logger.Warn("job registration ignored in producer-only mode", logger.String("job", job.Name()))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.Type()]; exists {
		r.logger.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	r.jobs[job.Type()] = job
	r.logger.Info("job registered", logger.String("job", job.Name()), logger.String("type", job.Type()))
}

// Start pings redis and, unless producer-only, launches the workers and the
// retry mover. It does not block.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return errors.New("queue already running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	r.running = true

	if r.mode != ModeProducerOnly {
		for i := 0; i < r.config.Workers; i++ {
			id := i
			r.wg.Go(func() { r.worker(id) })
		}
		r.wg.Go(r.retryMover)
	}
	r.logger.Info("redis queue started",
		logger.String("mode", r.mode.String()),
		logger.Int("workers", r.config.Workers),
		logger.String("addr", r.client.Options().Addr),
		logger.String("prefix", r.keyPrefix),
	)
	return nil
}

// Stop cancels in-flight work and waits for the workers until ctx expires.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.mu.Unlock()

	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		r.logger.Warn("timeout waiting for queue workers", logger.Error(ctx.Err()))
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-done:
		r.logger.Info("redis queue stopped")
		return nil
	}
}

// Enqueue JSON-encodes payload and appends it to the pending list.
func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	r.mu.RLock()
	running := r.running
	_, known := r.jobs[msgType]
	r.mu.RUnlock()

	if !running {
		return errors.New("queue not running")
	}
	if r.mode != ModeProducerOnly && !known {
		return fmt.Errorf("no job registered for type: %s", msgType)
	}

	if r.config.QueueSize > 0 {
		n, err := r.client.LLen(ctx, r.pendingKey).Result()
		if err != nil {
			return fmt.Errorf("llen: %w", err)
		}
		if n >= int64(r.config.QueueSize) {
			queueMessages.WithLabelValues(msgType, "rejected").Inc()
			return fmt.Errorf("%w: %d pending", ErrQueueFull, n)
		}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	msg := Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.LPush(ctx, r.pendingKey, data).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}

	queueMessages.WithLabelValues(msgType, "enqueued").Inc()
	r.logger.Debug("message enqueued", logger.String("id", msg.ID), logger.String("type", msgType))
	return nil
}

// PublishMessage implements QueueService.
func (r *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	return r.Enqueue(ctx, msgType, payload)
}

func (r *RedisQueue) worker(id int) {
	r.logger.Debug("queue worker started", logger.Int("worker_id", id))
	for r.ctx.Err() == nil {
		r.popAndProcess()
	}
	r.logger.Debug("queue worker stopped", logger.Int("worker_id", id))
}

func (r *RedisQueue) popAndProcess() {
	result, err := r.client.BRPop(r.ctx, popTimeout, r.pendingKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || r.ctx.Err() != nil {
			return
		}
		r.logger.Error("brpop error", logger.Error(err))
		select {
		case <-r.ctx.Done():
		case <-time.After(time.Second):
		}
		return
	}
	if len(result) < 2 {
		return
	}

	var msg Message
	if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
		r.logger.Error("unmarshal message", logger.Error(err))
		r.deadLetter([]byte(result[1]))
		return
	}
	r.processMessage(msg)
}

func (r *RedisQueue) processMessage(msg Message) {
	r.mu.RLock()
	job, ok := r.jobs[msg.Type]
	r.mu.RUnlock()
	if !ok {
		r.logger.Error("no job found", logger.String("type", msg.Type), logger.String("id", msg.ID))
		queueMessages.WithLabelValues(msg.Type, "unroutable").Inc()
		return
	}

	start := time.Now()
	err := job.Handle(r.ctx, msg.Payload)
	queueHandleSeconds.WithLabelValues(msg.Type).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		queueMessages.WithLabelValues(msg.Type, "done").Inc()
	case errors.Is(err, context.Canceled) && r.ctx.Err() != nil:
		// Shutdown interrupted the job; hand the message back.
		r.scheduleRetry(msg, time.Now())
		r.logger.Warn("message requeued on shutdown", logger.String("id", msg.ID), logger.String("job", job.Name()))
	default:
		r.handleProcessingError(msg, job, err)
	}
}

func (r *RedisQueue) handleProcessingError(msg Message, job Job, err error) {
	fields := []logger.Field{
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err),
	}

	if errors.Is(err, ErrPermanent) || msg.Attempts >= r.config.RetryLimit {
		r.logger.Error("message dead-lettered", fields...)
		queueMessages.WithLabelValues(msg.Type, "dead").Inc()
		if data, mErr := json.Marshal(msg); mErr == nil {
			r.deadLetter(data)
		}
		return
	}

	msg.Attempts++
	due := time.Now().Add(r.retryDelay(msg.Attempts))
	r.scheduleRetry(msg, due)
	queueMessages.WithLabelValues(msg.Type, "retried").Inc()
	r.logger.Warn("message processing failed, retry scheduled", append(fields, logger.String("retry_at", due.Format(time.RFC3339)))...)
}

// retryDelay doubles RetryDelay per attempt, capped at 32x.
func (r *RedisQueue) retryDelay(attempt int) time.Duration {
	shift := attempt - 1
	if shift > 5 {
		shift = 5
	}
	if shift < 0 {
		shift = 0
	}
	return r.config.RetryDelay << uint(shift)
}

// scheduleRetry and deadLetter run detached from r.ctx so that a message
// handed back during shutdown is not lost.
func (r *RedisQueue) scheduleRetry(msg Message, due time.Time) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("marshal retry", logger.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.ZAdd(ctx, r.retryKey, redis.Z{Score: float64(due.UnixMilli()), Member: data}).Err(); err != nil {
		r.logger.Error("zadd retry", logger.Error(err))
	}
}

func (r *RedisQueue) deadLetter(data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.LPush(ctx, r.deadKey, data).Err(); err != nil {
		r.logger.Error("lpush dlq", logger.Error(err))
	}
}

func (r *RedisQueue) retryMover() {
	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.moveDueRetries()
		}
	}
}

// moveDueRetries pushes due retries back onto the pending list. A member is
// only pushed by the instance whose ZREM removed it, so several consumers can
// share one retry set without duplicating messages.
func (r *RedisQueue) moveDueRetries() {
	due, err := r.client.ZRangeByScore(r.ctx, r.retryKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(time.Now().UnixMilli(), 10),
		Count: retryBatch,
	}).Result()
	if err != nil {
		if r.ctx.Err() == nil {
			r.logger.Error("fetch retry messages", logger.Error(err))
		}
		return
	}

	for _, member := range due {
		removed, err := r.client.ZRem(r.ctx, r.retryKey, member).Result()
		if err != nil {
			if r.ctx.Err() == nil {
				r.logger.Error("claim retry message", logger.Error(err))
			}
			return
		}
		if removed == 0 {
			continue
		}
		if err := r.client.LPush(r.ctx, r.pendingKey, member).Err(); err != nil {
			r.logger.Error("requeue retry message", logger.Error(err))
			r.deadLetter([]byte(member))
		}
	}
}

// Stats reports the length of the pending, retry and dead-letter sets.
func (r *RedisQueue) Stats(ctx context.Context) (Stats, error) {
	pipe := r.client.Pipeline()
	pending := pipe.LLen(ctx, r.pendingKey)
	retry := pipe.ZCard(ctx, r.retryKey)
	dead := pipe.LLen(ctx, r.deadKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	return Stats{Pending: pending.Val(), Retry: retry.Val(), Dead: dead.Val()}, nil
}

var (
	queueMetricsOnce   sync.Once
	queueMessages      *prometheus.CounterVec
	queueHandleSeconds *prometheus.HistogramVec
)

func initQueueMetricsOnce() {
	queueMetricsOnce.Do(func() {
		queueMessages = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "marketbrief_queue_messages_total",
			Help: "Queue messages by type and outcome",
		}, []string{"type", "outcome"})
		queueHandleSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "marketbrief_queue_handle_seconds",
			Help:    "Job handling latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"type"})
	})
}
