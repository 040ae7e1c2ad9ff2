package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"MarketBrief/internal/domain/models"
	domrepo "MarketBrief/internal/domain/repository"
	applogger "MarketBrief/pkg/logger"
	"MarketBrief/pkg/queue"
)

// SnapshotJobType is the queue message type for snapshot generation.
const SnapshotJobType = "curate_snapshot"

// SnapshotJobPayload is the queued request for one (style, preference) target.
type SnapshotJobPayload struct {
	JobID      string `json:"job_id,omitempty"`
	Style      string `json:"style"`
	Preference string `json:"preference"`
	Limit      int    `json:"limit"`
}

// SnapshotJob curates a snapshot and publishes it downstream. It implements
// queue.Job and is also called directly by the scheduler when no queue is
// configured.
type SnapshotJob struct {
	curate       *CurateUseCase
	publisher    domrepo.SnapshotPublisher
	metrics      domrepo.Metrics
	l            *applogger.Logger
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
}

func NewSnapshotJob(curate *CurateUseCase, publisher domrepo.SnapshotPublisher, metrics domrepo.Metrics, l *applogger.Logger) *SnapshotJob {
	return &SnapshotJob{
		curate:       curate,
		publisher:    publisher,
		metrics:      metrics,
		l:            l,
		maxAttempts:  4,
		initialDelay: 200 * time.Millisecond,
		maxDelay:     5 * time.Second,
	}
}

// SetPublishRetry overrides the publish retry policy.
func (j *SnapshotJob) SetPublishRetry(maxAttempts int, initial, maxDelay time.Duration) {
	if maxAttempts > 0 {
		j.maxAttempts = maxAttempts
	}
	if initial > 0 {
		j.initialDelay = initial
	}
	if maxDelay > 0 {
		j.maxDelay = maxDelay
	}
}

func (j *SnapshotJob) Name() string { return "snapshot_job" }

func (j *SnapshotJob) Type() string { return SnapshotJobType }

func (j *SnapshotJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[SnapshotJobPayload](payload)
	if err != nil {
		j.metrics.RecordError("job_payload")
		return queue.Permanent(err)
	}
	_, err = j.Run(ctx, *p)
	if errors.Is(err, models.ErrInvalidArgument) {
		// Retrying a bad request cannot succeed.
		if j.l != nil {
			j.l.Warn("snapshot job dropped",
				applogger.String("job_id", p.JobID),
				applogger.String("style", p.Style),
				applogger.String("preference", p.Preference),
				applogger.Error(err),
			)
		}
		return nil
	}
	return err
}

// Run curates and publishes one snapshot.
func (j *SnapshotJob) Run(ctx context.Context, p SnapshotJobPayload) (*models.Snapshot, error) {
	snap, err := j.curate.Curate(ctx, CurateParams{
		Style:      p.Style,
		Preference: p.Preference,
		Limit:      p.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("curate %s/%s: %w", p.Style, p.Preference, err)
	}
	if j.publisher == nil {
		return snap, nil
	}
	if err := j.publish(ctx, snap); err != nil {
		j.metrics.RecordError("publish")
		return snap, err
	}
	return snap, nil
}

func (j *SnapshotJob) publish(ctx context.Context, snap *models.Snapshot) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = j.initialDelay
	bo.MaxInterval = j.maxDelay

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		start := time.Now()
		err := j.publisher.Publish(ctx, snap)
		j.metrics.RecordLatency("publish_seconds", time.Since(start).Seconds())
		return struct{}{}, err
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(j.maxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			if j.l != nil {
				j.l.Warn("snapshot publish failed, retrying",
					applogger.String("strategy", snap.Strategy),
					applogger.Int("attempt", attempt),
					applogger.Duration("retry_in_ms", next),
					applogger.Error(err),
				)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("publish snapshot after %d attempts: %w", attempt, err)
	}
	return nil
}
