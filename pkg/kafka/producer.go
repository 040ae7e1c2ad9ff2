package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

var codecs = map[string]kafka.Compression{
	"gzip":   kafka.Gzip,
	"snappy": kafka.Snappy,
	"lz4":    kafka.Lz4,
	"zstd":   kafka.Zstd,
}

// Message is one record for PublishBatch. Value follows the same encoding
// rules as Publish.
type Message struct {
	Key   []byte
	Value interface{}
}

// Producer publishes records through a kafka-go Writer. The topic is chosen
// per call so one Producer serves every topic.
type Producer struct {
	writer *kafka.Writer
	codec  string
}

func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := defaultProducerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:  codecs[cfg.Compression],
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: cfg.WriteTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		BatchSize:    cfg.BatchSize,
		BatchBytes:   int64(cfg.BatchBytes),
		BatchTimeout: cfg.BatchTimeout,
		Async:        cfg.Async,
	}
	if cfg.HashByKey {
		w.Balancer = &kafka.Hash{}
	}
	codec := cfg.Compression
	if _, ok := codecs[codec]; !ok {
		codec = "none"
	}

	producerStatsOnce.Do(registerProducerStats)
	return &Producer{writer: w, codec: codec}, nil
}

// Publish writes one record. []byte and string values are sent as is and
// anything else is JSON encoded. A trace id set with WithTraceID travels as
// the trace_id header.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	return p.PublishBatch(ctx, topic, []Message{{Key: key, Value: value}})
}

// PublishBatch writes all records in one call. Nothing is sent when any
// value fails to encode.
func (p *Producer) PublishBatch(ctx context.Context, topic string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}
	now := time.Now()
	headers := messageHeaders(ctx)
	out := make([]kafka.Message, len(messages))
	var size int
	for i, m := range messages {
		v, err := encodeValue(m.Value)
		if err != nil {
			return err
		}
		out[i] = kafka.Message{Topic: topic, Key: m.Key, Value: v, Time: now, Headers: headers}
		size += len(v)
	}

	err := p.writer.WriteMessages(ctx, out...)
	producerStats.observe(topic, p.codec, len(out), size, time.Since(now), err)
	if err != nil {
		return fmt.Errorf("kafka: write %d records to %s: %w", len(out), topic, err)
	}
	return nil
}

func (p *Producer) Close() error { return p.writer.Close() }

func encodeValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("kafka: encode value: %w", err)
	}
	return b, nil
}

func messageHeaders(ctx context.Context) []kafka.Header {
	h := []kafka.Header{{Key: "content_type", Value: []byte("application/json")}}
	if id := TraceIDFrom(ctx); id != "" {
		h = append(h, kafka.Header{Key: traceHeader, Value: []byte(id)})
	}
	return h
}

type producerMetrics struct {
	records *prometheus.CounterVec
	bytes   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

var (
	producerStats     producerMetrics
	producerStatsOnce sync.Once
)

func registerProducerStats() {
	producerStats = producerMetrics{
		records: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "marketbrief_kafka_producer_messages_total",
			Help: "Records handed to Kafka by outcome.",
		}, []string{"topic", "compression", "result"}),
		bytes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "marketbrief_kafka_producer_bytes_total",
			Help: "Encoded payload bytes written to Kafka.",
		}, []string{"topic", "compression"}),
		latency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "marketbrief_kafka_producer_publish_seconds",
			Help:    "WriteMessages latency per call.",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"}),
	}
}

func (m producerMetrics) observe(topic, codec string, n, size int, took time.Duration, err error) {
	if m.records == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.records.WithLabelValues(topic, codec, result).Add(float64(n))
	m.bytes.WithLabelValues(topic, codec).Add(float64(size))
	m.latency.WithLabelValues(topic).Observe(took.Seconds())
}
