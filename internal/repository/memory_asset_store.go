package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"MarketBrief/internal/domain/models"
	domrepo "MarketBrief/internal/domain/repository"
)

// MemoryAssetStore is an in-process asset table. It applies the same
// filter semantics as the SQL backends.
type MemoryAssetStore struct {
	mu      sync.RWMutex
	rows    map[string]models.AssetRecord
	failure error
	calls   int
	now     func() time.Time
}

func NewMemoryAssetStore(records ...models.AssetRecord) *MemoryAssetStore {
	s := &MemoryAssetStore{rows: make(map[string]models.AssetRecord), now: time.Now}
	s.Put(records...)
	return s
}

// SetClock overrides the reference instant used when a filter has no AsOf.
func (s *MemoryAssetStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Put inserts or replaces records; an older row never replaces a newer one.
// Records without a finite, positive price are ignored.
func (s *MemoryAssetStore) Put(records ...models.AssetRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if !r.Sanitize() {
			continue
		}
		if cur, ok := s.rows[r.Symbol]; ok && cur.LastUpdated.After(r.LastUpdated) {
			continue
		}
		s.rows[r.Symbol] = r
	}
}

// SetFailure makes subsequent reads fail with err; nil restores reads.
func (s *MemoryAssetStore) SetFailure(err error) {
	s.mu.Lock()
	s.failure = err
	s.mu.Unlock()
}

// Calls returns the number of FetchAssets invocations.
func (s *MemoryAssetStore) Calls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls
}

func (s *MemoryAssetStore) FetchAssets(ctx context.Context, f domrepo.AssetFilter) ([]models.AssetRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrSourceUnavailable, err)
	}

	s.mu.Lock()
	s.calls++
	failure := s.failure
	now := s.now
	rows := make([]models.AssetRecord, 0, len(s.rows))
	for _, r := range s.rows {
		rows = append(rows, r)
	}
	s.mu.Unlock()

	if failure != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrSourceUnavailable, failure)
	}

	f = f.Normalize(now)
	out := rows[:0]
	for _, r := range rows {
		if f.Accepts(r) {
			out = append(out, r)
		}
	}
	return latestPerSymbol(out), nil
}

func (s *MemoryAssetStore) Health(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return fmt.Errorf("%w: %w", models.ErrSourceUnavailable, s.failure)
	}
	return nil
}

func (s *MemoryAssetStore) Close() error { return nil }
