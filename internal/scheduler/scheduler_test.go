package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"MarketBrief/internal/usecase"
	"MarketBrief/pkg/cache"
)

type nopMetrics struct{}

func (nopMetrics) RecordCuration(string, string, int) {}
func (nopMetrics) RecordCategory(string, int, int)    {}
func (nopMetrics) RecordError(string)                 {}
func (nopMetrics) RecordLatency(string, float64)      {}

type countingJob struct {
	mu   sync.Mutex
	seen []usecase.SnapshotJobPayload
	err  error
}

func (j *countingJob) Name() string { return "counting" }
func (j *countingJob) Type() string { return usecase.SnapshotJobType }
func (j *countingJob) Handle(_ context.Context, payload interface{}) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.seen = append(j.seen, payload.(usecase.SnapshotJobPayload))
	return j.err
}

type fakeQueue struct {
	mu   sync.Mutex
	msgs []string
}

func (q *fakeQueue) PublishMessage(_ context.Context, msgType string, _ interface{}) error {
	q.mu.Lock()
	q.msgs = append(q.msgs, msgType)
	q.mu.Unlock()
	return nil
}

var targets = []Target{
	{Style: "balanced", Preference: "both", Limit: 25},
	{Style: "aggressive", Preference: "crypto", Limit: 10},
}

func TestTickRunsTargetsOncePerInterval(t *testing.T) {
	job := &countingJob{}
	s := New("0 */5 * * * *", time.Hour, targets, job, nopMetrics{})

	if n := s.Tick(context.Background()); n != 2 {
		t.Fatalf("expected 2 dispatched, got %d", n)
	}
	if n := s.Tick(context.Background()); n != 0 {
		t.Fatalf("expected throttled tick, got %d", n)
	}
	if len(job.seen) != 2 {
		t.Fatalf("expected 2 job runs, got %d", len(job.seen))
	}
}

func TestTickWithoutIntervalAlwaysRuns(t *testing.T) {
	job := &countingJob{}
	s := New("@every 1m", 0, targets, job, nopMetrics{})
	s.Tick(context.Background())
	s.Tick(context.Background())
	if len(job.seen) != 4 {
		t.Fatalf("expected 4 runs, got %d", len(job.seen))
	}
}

func TestTickEnqueuesWhenQueueConfigured(t *testing.T) {
	job := &countingJob{}
	q := &fakeQueue{}
	s := New("@every 1m", time.Minute, targets, job, nopMetrics{}, WithQueue(q))
	if n := s.Tick(context.Background()); n != 2 {
		t.Fatalf("expected 2 dispatched, got %d", n)
	}
	if len(q.msgs) != 2 || q.msgs[0] != usecase.SnapshotJobType {
		t.Fatalf("unexpected queue messages %v", q.msgs)
	}
	if len(job.seen) != 0 {
		t.Fatalf("job must not run in-process when queued")
	}
}

func TestTickSharedLockAcrossReplicas(t *testing.T) {
	lock := cache.NewMemoryCache()
	defer lock.Close()

	a := New("@every 1m", time.Hour, targets, &countingJob{}, nopMetrics{}, WithLock(lock))
	b := New("@every 1m", time.Hour, targets, &countingJob{}, nopMetrics{}, WithLock(lock))

	if n := a.Tick(context.Background()); n != 2 {
		t.Fatalf("expected replica a to run 2, got %d", n)
	}
	if n := b.Tick(context.Background()); n != 0 {
		t.Fatalf("expected replica b to be gated, got %d", n)
	}
}

func TestTickCountsOnlySuccessfulDispatch(t *testing.T) {
	job := &countingJob{err: errors.New("store down")}
	s := New("@every 1m", 0, targets, job, nopMetrics{})
	if n := s.Tick(context.Background()); n != 0 {
		t.Fatalf("expected 0 successful dispatches, got %d", n)
	}
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := New("not a cron", time.Minute, targets, &countingJob{}, nopMetrics{})
	if err := s.Start(); err == nil {
		t.Fatalf("expected spec error")
	}
	_ = s.Stop(context.Background())
}
