package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"MarketBrief/internal/domain/models"
	"MarketBrief/internal/repository"
)

var errBrokerDown = errors.New("broker unavailable")

var testNow = time.Date(2024, 10, 10, 12, 0, 0, 0, time.UTC)

type fakeMetrics struct {
	mu        sync.Mutex
	errors    map[string]int
	curations int
}

func newFakeMetrics() *fakeMetrics { return &fakeMetrics{errors: map[string]int{}} }

func (m *fakeMetrics) RecordCuration(string, string, int) {
	m.mu.Lock()
	m.curations++
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordCategory(string, int, int) {}
func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordLatency(string, float64) {}

func (m *fakeMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

type fakePublisher struct {
	mu       sync.Mutex
	failures int
	calls    int
	got      []*models.Snapshot
}

func (p *fakePublisher) Publish(_ context.Context, s *models.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failures > 0 {
		p.failures--
		return errBrokerDown
	}
	p.got = append(p.got, s)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func asset(symbol string, t models.AssetType, change7d float64, trending bool, vol float64) models.AssetRecord {
	return models.AssetRecord{
		Symbol:      symbol,
		Name:        symbol,
		AssetType:   t,
		Price:       10,
		Change7d:    models.Float(change7d),
		Volume24h:   models.Float(vol),
		IsLiquid:    true,
		IsTrending:  trending,
		LastUpdated: testNow.Add(-5 * time.Minute),
	}
}

func seededStore() *repository.MemoryAssetStore {
	s := repository.NewMemoryAssetStore(
		asset("BTC", models.AssetCrypto, 10, true, 1e9),
		asset("ETH", models.AssetCrypto, -4, true, 5e8),
		asset("SOL", models.AssetCrypto, 1, true, 1e8),
		asset("AAPL", models.AssetStock, 5, false, 1e7),
		asset("SPY", models.AssetETF, -3, true, 2e9),
	)
	stale := asset("DOGE", models.AssetCrypto, 50, true, 1e12)
	stale.LastUpdated = testNow.Add(-5 * time.Hour)
	s.Put(stale)
	s.SetClock(func() time.Time { return testNow })
	return s
}
