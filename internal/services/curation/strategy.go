package curation

import (
	"fmt"

	"MarketBrief/internal/domain/models"
)

// Predicate decides whether a record qualifies for a category.
type Predicate func(models.AssetRecord) bool

// SortKey orders the qualifying records of a category. Records with a nil
// value sort after all non-nil values; ties are broken by symbol ascending.
type SortKey struct {
	Field string
	Value func(models.AssetRecord) *float64
	Desc  bool
}

// CategoryQuota is one sub-query of a strategy.
// Limit is explicit when > 0; otherwise it is derived from the overall limit
// in proportion to Weight.
type CategoryQuota struct {
	Category  models.CategoryName
	Predicate Predicate
	OrderBy   SortKey
	Weight    int
	Limit     int
}

// Strategy is the ordered category mix for a (style, preference) pair.
// Quota order is priority order for dedup and truncation.
type Strategy struct {
	Name       string
	Style      models.TradingStyle
	Preference models.AssetPreference
	AssetTypes []models.AssetType
	Quotas     []CategoryQuota
}

// Category thresholds.
const (
	GainerMinChange7d    = 3.0
	ReversionMaxChange7d = -2.0
	OversoldMaxRSI       = 35.0
)

// ResolveStrategy parses raw style/preference values and resolves them.
func ResolveStrategy(style, preference string) (Strategy, error) {
	s, err := models.ParseTradingStyle(style)
	if err != nil {
		return Strategy{}, err
	}
	p, err := models.ParseAssetPreference(preference)
	if err != nil {
		return Strategy{}, err
	}
	return Resolve(s, p)
}

// Resolve maps a (style, preference) pair to its strategy. Every valid pair
// yields a non-empty strategy; anything else is ErrInvalidArgument.
func Resolve(style models.TradingStyle, preference models.AssetPreference) (Strategy, error) {
	types := preference.AssetTypes()
	if len(types) == 0 {
		return Strategy{}, fmt.Errorf("%w: unsupported asset preference %q", models.ErrInvalidArgument, preference)
	}

	st := Strategy{Style: style, Preference: preference, AssetTypes: types}
	switch style {
	case models.StyleConservative:
		st.Name = "conservative_core"
		st.Quotas = []CategoryQuota{
			Category(models.CategoryTrendConfirmed, 1),
			Category(models.CategoryOversold, 1),
			Category(models.CategoryTrending, 1),
		}
	case models.StyleBalanced:
		st.Name = "balanced_mix"
		st.Quotas = []CategoryQuota{
			Category(models.CategoryGainer, 1),
			Category(models.CategoryReversion, 1),
			Category(models.CategoryTrending, 1),
		}
	case models.StyleAggressive:
		st.Name = "volatility_breakout"
		st.Quotas = []CategoryQuota{
			Category(models.CategoryBreakout, 2),
			Category(models.CategoryHighVolatility, 2),
			Category(models.CategoryGainer, 1),
			Category(models.CategoryTrending, 1),
		}
	default:
		return Strategy{}, fmt.Errorf("%w: unsupported trading style %q", models.ErrInvalidArgument, style)
	}
	return st, nil
}

// Category returns the catalogue definition of a category with the given
// weight. It panics on unknown names; the catalogue is closed.
func Category(name models.CategoryName, weight int) CategoryQuota {
	q := CategoryQuota{Category: name, Weight: weight}
	switch name {
	case models.CategoryGainer:
		q.Predicate = func(r models.AssetRecord) bool {
			return r.IsLiquid && r.Change7d != nil && *r.Change7d > GainerMinChange7d
		}
		q.OrderBy = SortKey{Field: "change_7d", Value: change7d, Desc: true}
	case models.CategoryReversion:
		q.Predicate = func(r models.AssetRecord) bool {
			return r.IsLiquid && r.Change7d != nil && *r.Change7d < ReversionMaxChange7d
		}
		q.OrderBy = SortKey{Field: "change_7d", Value: change7d}
	case models.CategoryTrending:
		q.Predicate = func(r models.AssetRecord) bool {
			return r.IsLiquid && r.IsTrending
		}
		q.OrderBy = SortKey{Field: "volume_24h", Value: volume24h, Desc: true}
	case models.CategoryTrendConfirmed:
		q.Predicate = func(r models.AssetRecord) bool {
			return r.IsLiquid && !r.IsVolatile && r.Trend50_200 == models.TrendGoldenCross
		}
		q.OrderBy = SortKey{Field: "market_cap", Value: marketCap, Desc: true}
	case models.CategoryOversold:
		q.Predicate = func(r models.AssetRecord) bool {
			return r.IsLiquid && !r.IsVolatile && r.RSI14d != nil && *r.RSI14d < OversoldMaxRSI
		}
		q.OrderBy = SortKey{Field: "rsi_14d", Value: rsi14d}
	case models.CategoryBreakout:
		q.Predicate = func(r models.AssetRecord) bool {
			return r.IsLiquid && r.IsTrending && r.IsVolatile && r.Change24h != nil && *r.Change24h > 0
		}
		q.OrderBy = SortKey{Field: "change_24h", Value: change24h, Desc: true}
	case models.CategoryHighVolatility:
		q.Predicate = func(r models.AssetRecord) bool {
			return r.IsLiquid && r.IsVolatile
		}
		q.OrderBy = SortKey{Field: "volatility_14d", Value: volatility14d, Desc: true}
	default:
		panic(fmt.Sprintf("curation: unknown category %q", name))
	}
	return q
}

func change7d(r models.AssetRecord) *float64      { return r.Change7d }
func change24h(r models.AssetRecord) *float64     { return r.Change24h }
func volume24h(r models.AssetRecord) *float64     { return r.Volume24h }
func marketCap(r models.AssetRecord) *float64     { return r.MarketCap }
func rsi14d(r models.AssetRecord) *float64        { return r.RSI14d }
func volatility14d(r models.AssetRecord) *float64 { return r.Volatility14d }
