package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	applogger "MarketBrief/pkg/logger"

	"github.com/cenkalti/backoff/v5"
	"github.com/cespare/xxhash/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
	"github.com/sourcegraph/conc"
)

// ErrSkip, returned from a BeforeHandle hook, drops the message: its offset
// is committed and it is neither retried nor dead-lettered.
var ErrSkip = errors.New("kafka: skip message")

// MessageHandler handles the payloads of one topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

type message struct {
	topic string
	data  []byte
	km    kafka.Message
}

// Consumer reads registered topics in one consumer group and hands messages
// to a fixed set of worker lanes. A (topic, partition) always maps to the
// same lane, so per-partition order is kept without locking.
type Consumer struct {
	cfg      *ConsumerConfig
	handlers map[string]MessageHandler
	readers  map[string]*kafka.Reader
	lanes    []chan *message
	dlq      *kafka.Writer
	hook     ConsumerHook
	l        *applogger.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	fetchers conc.WaitGroup
	workers  conc.WaitGroup
	stopOnce sync.Once
}

func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := defaultConsumerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	c := &Consumer{
		cfg:      cfg,
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]*kafka.Reader),
		lanes:    make([]chan *message, cfg.WorkerCount),
		hook:     NoopHook{},
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	for i := range c.lanes {
		c.lanes[i] = make(chan *message, cfg.BufferSize)
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Topic: cfg.DLQTopic, Balancer: &kafka.Hash{}}
	}
	consumerStatsOnce.Do(registerConsumerStats)
	return c, nil
}

func (c *Consumer) SetLogger(l *applogger.Logger) { c.l = l }

// WithConsumerHook replaces the hook. A nil hook is ignored.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// RegisterHandler must be called before Start. The first handler for a
// topic wins.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	topic := h.Topic()
	if _, dup := c.handlers[topic]; dup {
		c.log().Warn("kafka handler already registered", applogger.String("topic", topic))
		return
	}
	c.handlers[topic] = h
}

// Start opens one reader per topic and the worker lanes. It does not block.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("kafka: no handlers registered")
	}
	start := kafka.FirstOffset
	if c.cfg.AutoOffsetReset == "latest" {
		start = kafka.LastOffset
	}
	for topic := range c.handlers {
		r := kafka.NewReader(kafka.ReaderConfig{
			Brokers:     c.cfg.Brokers,
			Topic:       topic,
			GroupID:     c.cfg.GroupID,
			MinBytes:    c.cfg.MinBytes,
			MaxBytes:    c.cfg.MaxBytes,
			StartOffset: start,
		})
		c.readers[topic] = r
		c.fetchers.Go(func() { c.fetch(topic, r) })
	}
	for _, lane := range c.lanes {
		c.workers.Go(func() {
			for msg := range lane {
				c.process(msg)
			}
		})
	}
	c.log().Info("kafka consumer started",
		applogger.Int("workers", len(c.lanes)),
		applogger.Int("topics", len(c.readers)),
		applogger.String("group", c.cfg.GroupID),
	)
	return nil
}

// Stop cancels fetching, lets the lanes drain and closes readers. Messages
// still buffered when ctx expires are redelivered after a restart since
// their offsets were never committed.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		c.cancel()
		if err = wait(ctx, &c.fetchers); err == nil {
			for _, lane := range c.lanes {
				close(lane)
			}
			err = wait(ctx, &c.workers)
		}
		for topic, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.log().Warn("kafka reader close failed", applogger.String("topic", topic), applogger.Error(cerr))
			}
		}
		if c.dlq != nil {
			_ = c.dlq.Close()
		}
		if err == nil {
			c.log().Info("kafka consumer stopped")
		}
	})
	return err
}

func wait(ctx context.Context, wg *conc.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("kafka: stop: %w", ctx.Err())
	}
}

func (c *Consumer) fetch(topic string, r *kafka.Reader) {
	for {
		km, err := r.FetchMessage(c.ctx)
		if c.ctx.Err() != nil {
			return
		}
		if err != nil {
			c.log().Warn("kafka fetch failed", applogger.String("topic", topic), applogger.Error(err))
			select {
			case <-time.After(c.cfg.BackoffMin):
				continue
			case <-c.ctx.Done():
				return
			}
		}
		lane := c.lanes[c.laneFor(topic, km.Partition)]
		select {
		case lane <- &message{topic: topic, data: km.Value, km: km}:
			consumerStats.depth.WithLabelValues(topic).Set(float64(len(lane)))
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Consumer) laneFor(topic string, partition int) int {
	if len(c.lanes) == 1 {
		return 0
	}
	return int(xxhash.Sum64String(topic+"/"+strconv.Itoa(partition)) % uint64(len(c.lanes)))
}

// process runs the handler with retries. Failures go to the DLQ when one is
// configured; the offset is committed on success, on skip, or once the
// message is safely dead-lettered.
func (c *Consumer) process(msg *message) {
	h, ok := c.handlers[msg.topic]
	if !ok {
		return
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.log().Error("kafka handler panic", applogger.String("topic", msg.topic), applogger.Any("panic", r))
		}
		consumerStats.latency.WithLabelValues(msg.topic).Observe(time.Since(start).Seconds())
	}()

	attempts, err := c.handle(h, msg)
	switch {
	case err == nil:
	case errors.Is(err, ErrSkip):
		consumerStats.skipped.WithLabelValues(msg.topic).Inc()
	case c.ctx.Err() != nil:
		// Shutting down mid-retry; leave the offset for redelivery.
		return
	default:
		consumerStats.failed.WithLabelValues(msg.topic).Inc()
		c.hook.OnError(context.Background(), msg.topic, msg.km, msg.data, err)
		c.log().Error("kafka message failed",
			applogger.String("topic", msg.topic),
			applogger.Int("partition", msg.km.Partition),
			applogger.Int64("offset", msg.km.Offset),
			applogger.Int("attempts", attempts),
			applogger.Error(err),
		)
		if !c.deadLetter(msg) {
			return
		}
	}
	c.commit(msg)
}

// handle makes 1 + RetryMax attempts. Hook rejections are not retried.
func (c *Consumer) handle(h MessageHandler, msg *message) (int, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.BackoffMin
	bo.MaxInterval = c.cfg.BackoffMax

	attempts := 0
	var hctx context.Context
	var hmsg kafka.Message
	var hdata []byte
	_, err := backoff.Retry(c.ctx, func() (struct{}, error) {
		attempts++
		var berr error
		hctx, hmsg, hdata, berr = c.hook.BeforeHandle(c.ctx, msg.topic, msg.km, msg.data)
		if berr != nil {
			return struct{}{}, backoff.Permanent(berr)
		}
		herr := h.Handle(hctx, hdata)
		c.hook.AfterHandle(hctx, msg.topic, hmsg, hdata, herr)
		return struct{}{}, herr
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(c.cfg.RetryMax+1)),
		backoff.WithNotify(func(err error, _ time.Duration) {
			c.hook.OnError(hctx, msg.topic, hmsg, hdata, err)
		}),
	)
	return attempts, err
}

func (c *Consumer) deadLetter(msg *message) bool {
	if c.dlq == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	headers := append(append([]kafka.Header(nil), msg.km.Headers...),
		kafka.Header{Key: "source_topic", Value: []byte(msg.topic)},
		kafka.Header{Key: "source_offset", Value: []byte(strconv.FormatInt(msg.km.Offset, 10))},
	)
	err := c.dlq.WriteMessages(ctx, kafka.Message{Key: msg.km.Key, Value: msg.data, Time: time.Now(), Headers: headers})
	if err != nil {
		c.log().Error("kafka dlq write failed", applogger.String("topic", c.cfg.DLQTopic), applogger.Error(err))
		return false
	}
	return true
}

// commit retries a few times; a lost commit only means redelivery.
func (c *Consumer) commit(msg *message) {
	r := c.readers[msg.topic]
	if r == nil {
		return
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = 500 * time.Millisecond
	_, err := backoff.Retry(context.Background(), func() (struct{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return struct{}{}, r.CommitMessages(ctx, msg.km)
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(3))
	if err != nil {
		c.log().Error("kafka commit failed", applogger.String("topic", msg.topic), applogger.Int64("offset", msg.km.Offset), applogger.Error(err))
	}
}

var discard = applogger.NewNop()

func (c *Consumer) log() *applogger.Logger {
	if c.l == nil {
		return discard
	}
	return c.l
}

type consumerMetrics struct {
	depth   *prometheus.GaugeVec
	latency *prometheus.HistogramVec
	failed  *prometheus.CounterVec
	skipped *prometheus.CounterVec
}

var (
	consumerStats     consumerMetrics
	consumerStatsOnce sync.Once
)

func registerConsumerStats() {
	consumerStats = consumerMetrics{
		depth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "marketbrief_kafka_consumer_queue_depth",
			Help: "Messages buffered in the lane that received the last fetch.",
		}, []string{"topic"}),
		latency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name: "marketbrief_kafka_consumer_handle_seconds",
			Help: "Handling time per message, retries included.",
		}, []string{"topic"}),
		failed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "marketbrief_kafka_consumer_failed_total",
			Help: "Messages that exhausted their retries.",
		}, []string{"topic"}),
		skipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "marketbrief_kafka_consumer_skipped_total",
			Help: "Messages dropped by a consumer hook.",
		}, []string{"topic"}),
	}
}
