package repository

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"MarketBrief/internal/domain/models"
	domrepo "MarketBrief/internal/domain/repository"
)

func TestMemoryAssetStoreFilters(t *testing.T) {
	s := NewMemoryAssetStore(
		models.AssetRecord{Symbol: "BTC", AssetType: models.AssetCrypto, Price: 1, LastUpdated: asOf.Add(-10 * time.Minute)},
		models.AssetRecord{Symbol: "OLD", AssetType: models.AssetCrypto, Price: 1, LastUpdated: asOf.Add(-3 * time.Hour)},
		models.AssetRecord{Symbol: "AAPL", AssetType: models.AssetStock, Price: 1, LastUpdated: asOf},
		models.AssetRecord{Symbol: "SPY", AssetType: models.AssetETF, Price: 1, LastUpdated: asOf},
		models.AssetRecord{Symbol: "GOLD", AssetType: models.AssetCommodity, Price: 1, LastUpdated: asOf},
	)

	got, err := s.FetchAssets(context.Background(), domrepo.AssetFilter{
		AssetTypes: []models.AssetType{models.AssetCrypto, models.AssetStock, models.AssetETF},
		AsOf:       asOf,
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	var syms []string
	for _, r := range got {
		syms = append(syms, r.Symbol)
	}
	want := []string{"AAPL", "BTC", "SPY"}
	if len(syms) != len(want) {
		t.Fatalf("expected %v got %v", want, syms)
	}
	for i := range want {
		if syms[i] != want[i] {
			t.Fatalf("expected %v got %v", want, syms)
		}
	}
}

func TestMemoryAssetStoreDefaultsToClock(t *testing.T) {
	s := NewMemoryAssetStore(models.AssetRecord{Symbol: "BTC", AssetType: models.AssetCrypto, Price: 1, LastUpdated: asOf})
	s.SetClock(func() time.Time { return asOf.Add(3 * time.Hour) })
	got, err := s.FetchAssets(context.Background(), domrepo.AssetFilter{AssetTypes: []models.AssetType{models.AssetCrypto}})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected stale row excluded, got %+v", got)
	}
}

func TestMemoryAssetStorePutKeepsNewest(t *testing.T) {
	s := NewMemoryAssetStore(models.AssetRecord{Symbol: "BTC", AssetType: models.AssetCrypto, Price: 2, LastUpdated: asOf})
	s.Put(models.AssetRecord{Symbol: "BTC", AssetType: models.AssetCrypto, Price: 1, LastUpdated: asOf.Add(-time.Minute)})
	got, _ := s.FetchAssets(context.Background(), domrepo.AssetFilter{AssetTypes: []models.AssetType{models.AssetCrypto}, AsOf: asOf})
	if len(got) != 1 || got[0].Price != 2 {
		t.Fatalf("expected newest row, got %+v", got)
	}
}

func TestMemoryAssetStoreFailure(t *testing.T) {
	s := NewMemoryAssetStore()
	s.SetFailure(errors.New("connection refused"))
	_, err := s.FetchAssets(context.Background(), domrepo.AssetFilter{AssetTypes: []models.AssetType{models.AssetCrypto}})
	if !errors.Is(err, models.ErrSourceUnavailable) {
		t.Fatalf("expected source unavailable, got %v", err)
	}
	if err := s.Health(context.Background()); !errors.Is(err, models.ErrSourceUnavailable) {
		t.Fatalf("expected unhealthy, got %v", err)
	}
	if s.Calls() != 1 {
		t.Fatalf("expected 1 call, got %d", s.Calls())
	}
}

func TestMemoryAssetStorePutDropsUnusableRows(t *testing.T) {
	s := NewMemoryAssetStore(
		models.AssetRecord{Symbol: "NAN", AssetType: models.AssetCrypto, Price: math.NaN(), LastUpdated: asOf},
		models.AssetRecord{Symbol: "ZERO", AssetType: models.AssetCrypto, LastUpdated: asOf},
		models.AssetRecord{Symbol: "BTC", AssetType: models.AssetCrypto, Price: 1, Volume24h: models.Float(math.Inf(1)), LastUpdated: asOf},
	)
	got, err := s.FetchAssets(context.Background(), domrepo.AssetFilter{AssetTypes: []models.AssetType{models.AssetCrypto}, AsOf: asOf})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 1 || got[0].Symbol != "BTC" {
		t.Fatalf("expected only BTC, got %+v", got)
	}
	if got[0].Volume24h != nil {
		t.Fatalf("expected infinite volume cleared, got %v", *got[0].Volume24h)
	}
}
