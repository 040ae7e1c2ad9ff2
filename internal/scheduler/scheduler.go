package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sourcegraph/conc"
	"golang.org/x/time/rate"

	domrepo "MarketBrief/internal/domain/repository"
	"MarketBrief/internal/usecase"
	"MarketBrief/pkg/cache"
	applogger "MarketBrief/pkg/logger"
	"MarketBrief/pkg/queue"
)

// Target is one (style, preference) pair generated on every tick.
type Target struct {
	Style      string
	Preference string
	Limit      int
}

func (t Target) key() string { return t.Style + ":" + t.Preference }

// Scheduler triggers snapshot generation on a cron spec. Each target runs at
// most once per minInterval; targets of one tick run in parallel.
type Scheduler struct {
	cron        *cron.Cron
	spec        string
	targets     []Target
	limiters    map[string]*rate.Limiter
	minInterval time.Duration
	queue       queue.QueueService
	job         queue.Job
	lock        cache.Locker
	metrics     domrepo.Metrics
	l           *applogger.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	running     atomic.Bool
}

type Option func(*Scheduler)

// WithQueue dispatches targets through the job queue instead of running the
// job in-process.
func WithQueue(q queue.QueueService) Option {
	return func(s *Scheduler) { s.queue = q }
}

// WithLock gates targets across replicas with a shared cache lock held for
// minInterval.
func WithLock(c cache.Locker) Option {
	return func(s *Scheduler) { s.lock = c }
}

func WithLogger(l *applogger.Logger) Option {
	return func(s *Scheduler) { s.l = l }
}

func New(spec string, minInterval time.Duration, targets []Target, job queue.Job, metrics domrepo.Metrics, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:        cron.New(cron.WithSeconds()),
		spec:        spec,
		targets:     targets,
		limiters:    make(map[string]*rate.Limiter, len(targets)),
		minInterval: minInterval,
		job:         job,
		metrics:     metrics,
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	every := rate.Inf
	if minInterval > 0 {
		every = rate.Every(minInterval)
	}
	for _, t := range targets {
		s.limiters[t.key()] = rate.NewLimiter(every, 1)
	}
	return s
}

// Start registers the tick and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.Tick(s.ctx) }); err != nil {
		return fmt.Errorf("register snapshot tick %q: %w", s.spec, err)
	}
	s.cron.Start()
	if s.l != nil {
		s.l.Info("scheduler started",
			applogger.String("spec", s.spec),
			applogger.Int("targets", len(s.targets)),
			applogger.Duration("min_interval_ms", s.minInterval),
		)
	}
	return nil
}

// Stop stops the cron loop and waits for a running tick.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		if s.l != nil {
			s.l.Info("scheduler stopped")
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// Tick dispatches every target whose gate is open and returns how many were
// dispatched. Overlapping ticks are skipped.
func (s *Scheduler) Tick(ctx context.Context) int {
	if !s.running.CompareAndSwap(false, true) {
		s.metrics.RecordError("scheduler_overlap")
		return 0
	}
	defer s.running.Store(false)

	var dispatched atomic.Int32
	var wg conc.WaitGroup
	for _, t := range s.targets {
		if !s.allow(ctx, t) {
			continue
		}
		wg.Go(func() {
			if err := s.dispatch(ctx, t); err != nil {
				s.metrics.RecordError("scheduler_dispatch")
				if s.l != nil {
					s.l.Error("scheduled snapshot failed",
						applogger.String("target", t.key()),
						applogger.Error(err),
					)
				}
				return
			}
			dispatched.Add(1)
		})
	}
	wg.Wait()
	return int(dispatched.Load())
}

func (s *Scheduler) allow(ctx context.Context, t Target) bool {
	if lim, ok := s.limiters[t.key()]; ok && !lim.Allow() {
		s.metrics.RecordError("scheduler_throttled")
		return false
	}
	if s.lock == nil || s.minInterval <= 0 {
		return true
	}
	ok, err := s.lock.TryLock(ctx, "lock:scheduler:"+t.key(), s.minInterval)
	if err != nil {
		// Redis trouble should not stop generation on this replica.
		if s.l != nil {
			s.l.Warn("scheduler lock failed", applogger.String("target", t.key()), applogger.Error(err))
		}
		return true
	}
	if !ok {
		s.metrics.RecordError("scheduler_throttled")
	}
	return ok
}

func (s *Scheduler) dispatch(ctx context.Context, t Target) error {
	payload := usecase.SnapshotJobPayload{Style: t.Style, Preference: t.Preference, Limit: t.Limit}
	if s.queue != nil {
		return s.queue.PublishMessage(ctx, usecase.SnapshotJobType, payload)
	}
	return s.job.Handle(ctx, payload)
}
