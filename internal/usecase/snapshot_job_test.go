package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"MarketBrief/pkg/queue"
)

func newJob(pub *fakePublisher) (*SnapshotJob, *fakeMetrics) {
	m := newFakeMetrics()
	uc := NewCurateUseCase(seededStore(), m, WithClock(func() time.Time { return testNow }))
	j := NewSnapshotJob(uc, pub, m, nil)
	j.SetPublishRetry(3, time.Millisecond, time.Millisecond)
	return j, m
}

func TestSnapshotJobPublishes(t *testing.T) {
	pub := &fakePublisher{}
	j, _ := newJob(pub)

	raw, _ := json.Marshal(SnapshotJobPayload{Style: "aggressive", Preference: "crypto", Limit: 5})
	if err := j.Handle(context.Background(), json.RawMessage(raw)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(pub.got) != 1 || pub.got[0].Strategy != "volatility_breakout" || pub.got[0].Limit != 5 {
		t.Fatalf("unexpected published snapshots %+v", pub.got)
	}
}

func TestSnapshotJobRetriesPublish(t *testing.T) {
	pub := &fakePublisher{failures: 2}
	j, _ := newJob(pub)

	if _, err := j.Run(context.Background(), SnapshotJobPayload{Style: "balanced", Preference: "both"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if pub.calls != 3 || len(pub.got) != 1 {
		t.Fatalf("expected success on third attempt, calls=%d", pub.calls)
	}
}

func TestSnapshotJobGivesUp(t *testing.T) {
	pub := &fakePublisher{failures: 10}
	j, m := newJob(pub)

	_, err := j.Run(context.Background(), SnapshotJobPayload{Style: "balanced", Preference: "both"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if pub.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", pub.calls)
	}
	if !errors.Is(err, errBrokerDown) {
		t.Fatalf("expected last publish error, got %v", err)
	}
	if m.errorCount("publish") != 1 {
		t.Fatalf("expected publish error metric")
	}
}

func TestSnapshotJobDropsInvalidRequests(t *testing.T) {
	pub := &fakePublisher{}
	j, _ := newJob(pub)

	if err := j.Handle(context.Background(), SnapshotJobPayload{Style: "scalping", Preference: "both"}); err != nil {
		t.Fatalf("invalid requests must not be retried, got %v", err)
	}
	if pub.calls != 0 {
		t.Fatalf("nothing should be published")
	}
}

func TestSnapshotJobBadPayload(t *testing.T) {
	j, m := newJob(&fakePublisher{})
	err := j.Handle(context.Background(), 42)
	if !errors.Is(err, queue.ErrPermanent) {
		t.Fatalf("payload errors must not be retried, got %v", err)
	}
	if m.errorCount("job_payload") != 1 {
		t.Fatalf("expected payload error metric")
	}
}

func TestSnapshotJobPublishStopsOnCancel(t *testing.T) {
	pub := &fakePublisher{failures: 10}
	j, _ := newJob(pub)
	j.SetPublishRetry(5, time.Second, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := j.Run(ctx, SnapshotJobPayload{Style: "balanced", Preference: "both"})
	if !errors.Is(err, context.DeadlineExceeded) || errors.Is(err, errBrokerDown) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if pub.calls != 1 {
		t.Fatalf("expected a single attempt before cancel, got %d", pub.calls)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("retry did not stop on cancel")
	}
}
