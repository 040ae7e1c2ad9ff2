package models

import (
	"fmt"
	"strings"
	"time"
)

// TradingStyle is the risk profile that drives the category mix.
type TradingStyle string

const (
	StyleConservative TradingStyle = "conservative"
	StyleBalanced     TradingStyle = "balanced"
	StyleAggressive   TradingStyle = "aggressive"
)

// TradingStyles lists every supported style in a stable order.
func TradingStyles() []TradingStyle {
	return []TradingStyle{StyleConservative, StyleBalanced, StyleAggressive}
}

// ParseTradingStyle is case-insensitive. Unknown styles never fall back to a
// default.
func ParseTradingStyle(s string) (TradingStyle, error) {
	style := TradingStyle(strings.ToLower(strings.TrimSpace(s)))
	switch style {
	case StyleConservative, StyleBalanced, StyleAggressive:
		return style, nil
	default:
		return "", fmt.Errorf("%w: unsupported trading style %q", ErrInvalidArgument, s)
	}
}

// AssetPreference selects which asset types are read from the store.
type AssetPreference string

const (
	PreferCrypto AssetPreference = "crypto"
	PreferStocks AssetPreference = "stocks"
	PreferBoth   AssetPreference = "both"
)

// AssetPreferences lists every supported preference in a stable order.
func AssetPreferences() []AssetPreference {
	return []AssetPreference{PreferCrypto, PreferStocks, PreferBoth}
}

// ParseAssetPreference is case-insensitive. Unknown preferences never fall
// back to a default.
func ParseAssetPreference(s string) (AssetPreference, error) {
	pref := AssetPreference(strings.ToLower(strings.TrimSpace(s)))
	switch pref {
	case PreferCrypto, PreferStocks, PreferBoth:
		return pref, nil
	default:
		return "", fmt.Errorf("%w: unsupported asset preference %q", ErrInvalidArgument, s)
	}
}

// AssetTypes returns the asset-type set read for the preference.
func (p AssetPreference) AssetTypes() []AssetType {
	switch p {
	case PreferCrypto:
		return []AssetType{AssetCrypto}
	case PreferStocks:
		return []AssetType{AssetStock, AssetETF}
	case PreferBoth:
		return []AssetType{AssetCrypto, AssetStock, AssetETF}
	default:
		return nil
	}
}

// CategoryName tags a curated asset with the sub-strategy that selected it.
type CategoryName string

const (
	CategoryGainer         CategoryName = "gainer"
	CategoryReversion      CategoryName = "reversion"
	CategoryTrending       CategoryName = "trending"
	CategoryTrendConfirmed CategoryName = "trend_confirmed"
	CategoryOversold       CategoryName = "oversold"
	CategoryBreakout       CategoryName = "breakout"
	CategoryHighVolatility CategoryName = "high_volatility"
)

// CuratedAsset is a selected record plus the category that produced it.
// The category is for traceability only and never used for ranking.
type CuratedAsset struct {
	AssetRecord
	Category CategoryName
}

// CategoryStat summarizes one category of a curation run.
type CategoryStat struct {
	Category   CategoryName
	Quota      int
	Candidates int // records matching the predicate
	Selected   int // after quota truncation
	Kept       int // after dedup and overall truncation
}

// Snapshot is the transient result of one curation call.
type Snapshot struct {
	Style      TradingStyle
	Preference AssetPreference
	Strategy   string
	Limit      int
	AsOf       time.Time
	Assets     []CuratedAsset
	Text       string
	Categories []CategoryStat
}

// Symbols returns the curated symbols in output order.
func (s *Snapshot) Symbols() []string {
	out := make([]string, len(s.Assets))
	for i, a := range s.Assets {
		out[i] = a.Symbol
	}
	return out
}
