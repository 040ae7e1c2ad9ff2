package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"MarketBrief/internal/domain/models"
	applogger "MarketBrief/pkg/logger"
)

// MessageWriter is the subset of the Kafka producer used by publishers.
type MessageWriter interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaSnapshotPublisher publishes snapshots keyed by "style:preference" so
// every target stays ordered within one partition.
type KafkaSnapshotPublisher struct {
	w     MessageWriter
	topic string
	now   func() time.Time
	newID func() string
	l     *applogger.Logger
}

func NewKafkaSnapshotPublisher(w MessageWriter, topic string) *KafkaSnapshotPublisher {
	return &KafkaSnapshotPublisher{
		w:     w,
		topic: topic,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
}

// SetLogger injects a structured logger.
func (p *KafkaSnapshotPublisher) SetLogger(l *applogger.Logger) { p.l = l }

func (p *KafkaSnapshotPublisher) Publish(ctx context.Context, s *models.Snapshot) error {
	if s == nil {
		return errors.New("nil snapshot")
	}
	ev := models.NewSnapshotEvent(p.newID(), s, p.now())
	key := []byte(string(s.Style) + ":" + string(s.Preference))
	if err := p.w.Publish(ctx, p.topic, key, ev); err != nil {
		if p.l != nil {
			p.l.Error("publish snapshot failed",
				applogger.String("topic", p.topic),
				applogger.String("key", string(key)),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("publish snapshot: %w", err)
	}
	if p.l != nil {
		p.l.Debug("snapshot published",
			applogger.String("id", ev.ID),
			applogger.String("key", string(key)),
			applogger.Int("assets", len(ev.Assets)),
		)
	}
	return nil
}

func (p *KafkaSnapshotPublisher) Close() error { return p.w.Close() }

// KafkaLogPublisher adapts the producer to the log collector's Publisher.
type KafkaLogPublisher struct {
	w MessageWriter
}

func NewKafkaLogPublisher(w MessageWriter) *KafkaLogPublisher {
	return &KafkaLogPublisher{w: w}
}

func (p *KafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.w.Publish(ctx, topic, nil, payload)
}
