package kafka

import (
	"errors"
	"testing"
	"time"
)

func TestProducerConfigValidate(t *testing.T) {
	cases := map[string]ProducerOption{
		"acks":        WithRequiredAcks(2),
		"compression": WithCompression("brotli"),
	}
	for name, opt := range cases {
		if _, err := NewProducer(WithBrokers([]string{"localhost:9092"}), opt); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := NewProducer(); !errors.Is(err, errNoBrokers) {
		t.Fatalf("err=%v want errNoBrokers", err)
	}
}

func TestConsumerConfigValidate(t *testing.T) {
	brokers := WithConsumerBrokers([]string{"localhost:9092"})
	if _, err := NewConsumer(brokers, WithConsumerAutoOffsetReset("middle")); err == nil {
		t.Fatalf("expected offset reset error")
	}
	if _, err := NewConsumer(brokers, WithConsumerRetry(3, time.Second, time.Millisecond)); err == nil {
		t.Fatalf("expected backoff range error")
	}
}

func TestProducerOptionsIgnoreNonPositive(t *testing.T) {
	cfg := defaultProducerConfig()
	for _, opt := range []ProducerOption{WithBatchSize(0), WithBatchBytes(-1), WithMaxAttempts(0), WithBatchTimeout(0)} {
		opt(cfg)
	}
	def := defaultProducerConfig()
	if cfg.BatchSize != def.BatchSize || cfg.BatchBytes != def.BatchBytes || cfg.MaxAttempts != def.MaxAttempts || cfg.BatchTimeout != def.BatchTimeout {
		t.Fatalf("cfg=%+v", cfg)
	}
}
