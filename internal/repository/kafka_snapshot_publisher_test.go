package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"MarketBrief/internal/domain/models"
)

type captured struct {
	topic string
	key   []byte
	value interface{}
}

type fakeWriter struct {
	msgs []captured
	err  error
}

func (w *fakeWriter) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, captured{topic: topic, key: key, value: value})
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaSnapshotPublisherPublish(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaSnapshotPublisher(w, "snapshots")
	p.newID = func() string { return "id-1" }
	p.now = func() time.Time { return asOf }

	s := &models.Snapshot{
		Style:      models.StyleBalanced,
		Preference: models.PreferCrypto,
		Strategy:   "balanced_mix",
		Limit:      25,
		AsOf:       asOf,
		Assets: []models.CuratedAsset{{
			AssetRecord: models.AssetRecord{Symbol: "BTC", AssetType: models.AssetCrypto},
			Category:    models.CategoryGainer,
		}},
		Text: "BTC\n",
	}
	if err := p.Publish(context.Background(), s); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	m := w.msgs[0]
	if m.topic != "snapshots" || string(m.key) != "balanced:crypto" {
		t.Fatalf("unexpected topic/key %s %s", m.topic, m.key)
	}
	ev, ok := m.value.(models.SnapshotEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", m.value)
	}
	if ev.ID != "id-1" || ev.Strategy != "balanced_mix" || len(ev.Assets) != 1 || ev.Assets[0].Category != "gainer" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if !ev.GeneratedAt.Equal(asOf) {
		t.Fatalf("unexpected generated_at %v", ev.GeneratedAt)
	}
}

func TestKafkaSnapshotPublisherError(t *testing.T) {
	p := NewKafkaSnapshotPublisher(&fakeWriter{err: errors.New("broker down")}, "snapshots")
	if err := p.Publish(context.Background(), &models.Snapshot{}); err == nil {
		t.Fatalf("expected error")
	}
	if err := p.Publish(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil snapshot")
	}
}
