package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrPermanent marks a job failure that retrying cannot fix. Such messages go
// straight to the dead-letter list.
var ErrPermanent = errors.New("queue: permanent failure")

// Permanent wraps err so the queue does not retry it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Job handles every message of one Type. Returning an error wrapped with
// Permanent dead-letters the message; any other error is retried.
type Job interface {
	Name() string
	Type() string
	Handle(ctx context.Context, payload interface{}) error
}

// QueueService enqueues typed messages for background jobs.
type QueueService interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

// QueueConfig sizes a queue. QueueSize caps the pending list (0 = unbounded)
// and RetryDelay is the first backoff step; later retries double it.
type QueueConfig struct {
	Workers    int
	QueueSize  int
	RetryLimit int
	RetryDelay time.Duration
}

// Message is the envelope stored in Redis. Attempts counts failed runs.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
}

// Stats is a point-in-time view of the queue keys.
type Stats struct {
	Pending int64 `json:"pending"`
	Retry   int64 `json:"retry"`
	Dead    int64 `json:"dead"`
}

// ParsePayload converts a job payload into T. Payloads arrive as T or *T
// when the job runs in-process and as json.RawMessage after a queue round
// trip; any other value is re-encoded through JSON.
func ParsePayload[T any](payload interface{}) (*T, error) {
	var raw []byte
	switch p := payload.(type) {
	case *T:
		return p, nil
	case T:
		return &p, nil
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("queue: encode %T payload: %w", payload, err)
		}
		raw = b
	}
	out := new(T)
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("queue: decode payload into %T: %w", *out, err)
	}
	return out, nil
}
