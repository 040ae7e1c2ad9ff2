package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"MarketBrief/internal/domain/models"
	domrepo "MarketBrief/internal/domain/repository"
)

var errUnusableRow = errors.New("unusable asset row")

// DefaultAssetTable is the table read by every SQL backend unless overridden.
const DefaultAssetTable = "assets"

var assetColumns = []string{
	"symbol", "name", "asset_type", "price",
	"change_1h", "change_24h", "change_7d",
	"volume_24h", "market_cap", "volatility_14d", "rsi_14d", "trend_50_200",
	"is_liquid", "is_trending", "is_volatile", "last_updated",
}

type sqlDialect int

const (
	dialectClickHouse sqlDialect = iota
	dialectPostgres
	dialectSQLite
)

// buildAssetQuery renders the freshness and asset-type filter for a dialect.
// The filter must be normalized.
func buildAssetQuery(d sqlDialect, table string, f domrepo.AssetFilter) (string, []any) {
	cols := strings.Join(assetColumns, ", ")
	types := f.TypeStrings()
	cutoff := f.Cutoff()

	switch d {
	case dialectPostgres:
		q := fmt.Sprintf(`
SELECT DISTINCT ON (symbol) %s
FROM %s
WHERE asset_type = ANY($1) AND last_updated >= $2
ORDER BY symbol, last_updated DESC`, cols, table)
		return q, []any{types, cutoff}
	case dialectSQLite:
		q := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE asset_type IN (%s) AND last_updated >= ?`, cols, table, placeholders(len(types)))
		args := make([]any, 0, len(types)+1)
		for _, t := range types {
			args = append(args, t)
		}
		return q, append(args, cutoff.UnixMilli())
	default:
		q := fmt.Sprintf(`
SELECT %s
FROM %s FINAL
WHERE asset_type IN (%s) AND last_updated >= ?`, cols, table, placeholders(len(types)))
		args := make([]any, 0, len(types)+1)
		for _, t := range types {
			args = append(args, t)
		}
		return q, append(args, cutoff)
	}
}

func placeholders(n int) string {
	if n <= 0 {
		// IN () is invalid SQL; an impossible value keeps the query well formed.
		return "NULL"
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanAsset reads one row in assetColumns order. unixMillis selects the
// integer encoding of last_updated used by SQLite.
func scanAsset(s rowScanner, unixMillis bool) (models.AssetRecord, error) {
	var (
		r                                  models.AssetRecord
		assetType                          string
		c1h, c24h, c7d, vol, mcap, vlt, rs sql.NullFloat64
		trend                              sql.NullString
		updated                            time.Time
		updatedMs                          int64
	)
	dest := []any{
		&r.Symbol, &r.Name, &assetType, &r.Price,
		&c1h, &c24h, &c7d,
		&vol, &mcap, &vlt, &rs, &trend,
		&r.IsLiquid, &r.IsTrending, &r.IsVolatile,
	}
	if unixMillis {
		dest = append(dest, &updatedMs)
	} else {
		dest = append(dest, &updated)
	}
	if err := s.Scan(dest...); err != nil {
		return models.AssetRecord{}, err
	}

	t, err := models.ParseAssetType(assetType)
	if err != nil {
		return models.AssetRecord{}, fmt.Errorf("symbol %s: %w", r.Symbol, err)
	}
	r.AssetType = t
	r.Change1h = nullable(c1h)
	r.Change24h = nullable(c24h)
	r.Change7d = nullable(c7d)
	r.Volume24h = nullable(vol)
	r.MarketCap = nullable(mcap)
	r.Volatility14d = nullable(vlt)
	r.RSI14d = nullable(rs)
	if trend.Valid {
		r.Trend50_200 = models.Trend(trend.String)
	}
	if unixMillis {
		r.LastUpdated = time.UnixMilli(updatedMs).UTC()
	} else {
		r.LastUpdated = updated.UTC()
	}
	if !r.Sanitize() {
		return models.AssetRecord{}, fmt.Errorf("%w: symbol %s: price %v", errUnusableRow, r.Symbol, r.Price)
	}
	return r, nil
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return models.Float(v.Float64)
}

// latestPerSymbol keeps the most recent row of every symbol, ordered by
// symbol, so callers never see duplicates.
func latestPerSymbol(rows []models.AssetRecord) []models.AssetRecord {
	idx := make(map[string]int, len(rows))
	out := make([]models.AssetRecord, 0, len(rows))
	for _, r := range rows {
		if i, ok := idx[r.Symbol]; ok {
			if r.LastUpdated.After(out[i].LastUpdated) {
				out[i] = r
			}
			continue
		}
		idx[r.Symbol] = len(out)
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// skippable reports row-level defects (unknown asset type, unusable price)
// that drop the row instead of failing the read.
func skippable(err error) bool {
	return errors.Is(err, models.ErrInvalidArgument) || errors.Is(err, errUnusableRow)
}
