package repository

import (
	"database/sql"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"MarketBrief/internal/domain/models"
	domrepo "MarketBrief/internal/domain/repository"
)

var asOf = time.Date(2024, 10, 10, 12, 0, 0, 0, time.UTC)

func filter(types ...models.AssetType) domrepo.AssetFilter {
	return domrepo.AssetFilter{AssetTypes: types, MaxAgeMinutes: 60, AsOf: asOf}
}

func TestBuildAssetQueryClickHouse(t *testing.T) {
	q, args := buildAssetQuery(dialectClickHouse, "assets", filter(models.AssetStock, models.AssetETF))
	if !strings.Contains(q, "FROM assets FINAL") {
		t.Fatalf("expected FINAL read, got %s", q)
	}
	if !strings.Contains(q, "asset_type IN (?, ?)") {
		t.Fatalf("unexpected IN clause: %s", q)
	}
	if len(args) != 3 || args[0] != "stock" || args[1] != "etf" {
		t.Fatalf("unexpected args %v", args)
	}
	if cutoff, ok := args[2].(time.Time); !ok || !cutoff.Equal(asOf.Add(-time.Hour)) {
		t.Fatalf("unexpected cutoff %v", args[2])
	}
}

func TestBuildAssetQueryPostgres(t *testing.T) {
	q, args := buildAssetQuery(dialectPostgres, "assets", filter(models.AssetCrypto))
	if !strings.Contains(q, "DISTINCT ON (symbol)") || !strings.Contains(q, "asset_type = ANY($1)") {
		t.Fatalf("unexpected query %s", q)
	}
	types, ok := args[0].([]string)
	if !ok || len(types) != 1 || types[0] != "crypto" {
		t.Fatalf("unexpected type arg %v", args[0])
	}
}

func TestBuildAssetQuerySQLite(t *testing.T) {
	_, args := buildAssetQuery(dialectSQLite, "assets", filter(models.AssetCrypto))
	if len(args) != 2 {
		t.Fatalf("unexpected args %v", args)
	}
	if ms, ok := args[1].(int64); !ok || ms != asOf.Add(-time.Hour).UnixMilli() {
		t.Fatalf("unexpected cutoff %v", args[1])
	}
}

func TestPlaceholders(t *testing.T) {
	cases := map[int]string{0: "NULL", 1: "?", 3: "?, ?, ?"}
	for n, want := range cases {
		if got := placeholders(n); got != want {
			t.Fatalf("placeholders(%d) = %q, want %q", n, got, want)
		}
	}
}

type fakeRow struct {
	vals []any
}

func (f fakeRow) Scan(dest ...any) error {
	if len(dest) != len(f.vals) {
		return errors.New("column count mismatch")
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = f.vals[i].(string)
		case *float64:
			*p = f.vals[i].(float64)
		case *bool:
			*p = f.vals[i].(bool)
		case *int64:
			*p = f.vals[i].(int64)
		case *time.Time:
			*p = f.vals[i].(time.Time)
		case *sql.NullFloat64:
			if err := p.Scan(f.vals[i]); err != nil {
				return err
			}
		case *sql.NullString:
			if err := p.Scan(f.vals[i]); err != nil {
				return err
			}
		default:
			return errors.New("unsupported dest")
		}
	}
	return nil
}

func TestScanAssetNullsAndMillis(t *testing.T) {
	row := fakeRow{vals: []any{
		"BTC", "Bitcoin", "crypto", 64000.5,
		nil, 1.25, nil,
		1e9, nil, nil, 41.0, "golden_cross",
		true, false, true, asOf.UnixMilli(),
	}}
	r, err := scanAsset(row, true)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if r.Change1h != nil || r.Change24h == nil || *r.Change24h != 1.25 {
		t.Fatalf("unexpected changes %+v", r)
	}
	if r.RSI14d == nil || *r.RSI14d != 41 || r.MarketCap != nil {
		t.Fatalf("unexpected indicators %+v", r)
	}
	if r.Trend50_200 != models.TrendGoldenCross || !r.IsLiquid || r.IsTrending || !r.IsVolatile {
		t.Fatalf("unexpected flags %+v", r)
	}
	if !r.LastUpdated.Equal(asOf) {
		t.Fatalf("unexpected last_updated %v", r.LastUpdated)
	}
}

func TestScanAssetUnknownType(t *testing.T) {
	row := fakeRow{vals: []any{
		"XAU", "Gold", "bond", 2400.0,
		nil, nil, nil, nil, nil, nil, nil, nil,
		true, false, false, asOf,
	}}
	_, err := scanAsset(row, false)
	if !skippable(err) {
		t.Fatalf("expected bad asset type error, got %v", err)
	}
}

func TestScanAssetDropsNonFiniteValues(t *testing.T) {
	row := fakeRow{vals: []any{
		"BTC", "Bitcoin", "crypto", math.NaN(),
		nil, nil, nil, nil, nil, nil, nil, nil,
		true, false, false, asOf,
	}}
	if _, err := scanAsset(row, false); !skippable(err) {
		t.Fatalf("expected NaN price row to be skipped, got %v", err)
	}

	row = fakeRow{vals: []any{
		"ETH", "Ether", "crypto", 2500.0,
		nil, nil, 3.0, math.Inf(1), nil, nil, nil, nil,
		true, false, false, asOf,
	}}
	r, err := scanAsset(row, false)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if r.Volume24h != nil || r.Change7d == nil {
		t.Fatalf("expected infinite volume cleared, got %+v", r)
	}
}

func TestLatestPerSymbol(t *testing.T) {
	rows := []models.AssetRecord{
		{Symbol: "ETH", LastUpdated: asOf.Add(-time.Minute)},
		{Symbol: "BTC", LastUpdated: asOf.Add(-time.Hour)},
		{Symbol: "ETH", LastUpdated: asOf},
		{Symbol: "BTC", LastUpdated: asOf.Add(-2 * time.Hour)},
	}
	got := latestPerSymbol(rows)
	if len(got) != 2 || got[0].Symbol != "BTC" || got[1].Symbol != "ETH" {
		t.Fatalf("unexpected rows %+v", got)
	}
	if !got[0].LastUpdated.Equal(asOf.Add(-time.Hour)) || !got[1].LastUpdated.Equal(asOf) {
		t.Fatalf("expected latest rows, got %+v", got)
	}
}
