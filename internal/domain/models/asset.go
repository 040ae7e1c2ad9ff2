package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// AssetType classifies a tradable instrument.
type AssetType string

const (
	AssetCrypto    AssetType = "crypto"
	AssetStock     AssetType = "stock"
	AssetETF       AssetType = "etf"
	AssetCommodity AssetType = "commodity"
)

// IsValidAssetType returns true if t is a known asset type.
func IsValidAssetType(t AssetType) bool {
	switch t {
	case AssetCrypto, AssetStock, AssetETF, AssetCommodity:
		return true
	default:
		return false
	}
}

// ParseAssetType converts a raw column/query value into an AssetType.
func ParseAssetType(s string) (AssetType, error) {
	t := AssetType(strings.ToLower(strings.TrimSpace(s)))
	if !IsValidAssetType(t) {
		return "", fmt.Errorf("%w: asset type %q", ErrInvalidArgument, s)
	}
	return t, nil
}

// Trend is the 50/200 moving-average cross state.
// The zero value means the indicator is unavailable.
type Trend string

const (
	TrendGoldenCross Trend = "golden_cross"
	TrendDeathCross  Trend = "death_cross"
	TrendNeutral     Trend = "neutral"
)

// AssetRecord is one row of the asset table at the latest refresh.
// Pointer fields are nullable metrics.
type AssetRecord struct {
	Symbol        string
	Name          string
	AssetType     AssetType
	Price         float64
	Change1h      *float64
	Change24h     *float64
	Change7d      *float64
	Volume24h     *float64
	MarketCap     *float64
	Volatility14d *float64
	RSI14d        *float64
	Trend50_200   Trend
	IsLiquid      bool
	IsTrending    bool
	IsVolatile    bool
	LastUpdated   time.Time
}

// IsFresh reports whether the record was updated within maxAge of asOf.
func (r AssetRecord) IsFresh(asOf time.Time, maxAge time.Duration) bool {
	return !r.LastUpdated.Before(asOf.Add(-maxAge))
}

// Sanitize clears non-finite metrics and reports whether the record has a
// finite, positive price. Records failing it are not served.
func (r *AssetRecord) Sanitize() bool {
	for _, m := range []**float64{
		&r.Change1h, &r.Change24h, &r.Change7d, &r.Volume24h,
		&r.MarketCap, &r.Volatility14d, &r.RSI14d,
	} {
		if *m != nil && !finite(**m) {
			*m = nil
		}
	}
	return finite(r.Price) && r.Price > 0
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Float returns a pointer to v; used to fill nullable metrics.
func Float(v float64) *float64 { return &v }
