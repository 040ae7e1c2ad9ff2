package curation

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"MarketBrief/internal/domain/models"
)

const notAvailable = "n/a"

// Format renders records as one line each, in input order:
//
//	SYMBOL | type | price=P | 1h=+x.xx% | 24h=-x.xx% | 7d=n/a | vol=V | rsi=R | trend=T | flags=F
//
// Output is byte-identical for identical input. Empty input yields "".
func Format(records []models.AssetRecord) string {
	var b strings.Builder
	for _, r := range records {
		writeLine(&b, r)
	}
	return b.String()
}

// FormatAssets renders curated assets; the category tag is not printed.
func FormatAssets(assets []models.CuratedAsset) string {
	var b strings.Builder
	for _, a := range assets {
		writeLine(&b, a.AssetRecord)
	}
	return b.String()
}

func writeLine(b *strings.Builder, r models.AssetRecord) {
	b.WriteString(r.Symbol)
	b.WriteString(" | ")
	b.WriteString(string(r.AssetType))
	b.WriteString(" | price=")
	b.WriteString(price(r.Price))
	b.WriteString(" | 1h=")
	b.WriteString(percent(r.Change1h))
	b.WriteString(" | 24h=")
	b.WriteString(percent(r.Change24h))
	b.WriteString(" | 7d=")
	b.WriteString(percent(r.Change7d))
	b.WriteString(" | vol=")
	b.WriteString(volume(r.Volume24h))
	b.WriteString(" | rsi=")
	b.WriteString(fixed2(r.RSI14d))
	b.WriteString(" | trend=")
	if r.Trend50_200 == "" {
		b.WriteString(notAvailable)
	} else {
		b.WriteString(string(r.Trend50_200))
	}
	b.WriteString(" | flags=")
	b.WriteString(flags(r))
	b.WriteByte('\n')
}

func price(p float64) string {
	if usable(&p) == nil {
		return notAvailable
	}
	return decimal.NewFromFloat(p).String()
}

func percent(v *float64) string {
	if usable(v) == nil {
		return notAvailable
	}
	s := round2(*v)
	if !strings.HasPrefix(s, "-") {
		s = "+" + s
	}
	return s + "%"
}

func fixed2(v *float64) string {
	if usable(v) == nil {
		return notAvailable
	}
	return round2(*v)
}

// round2 formats v with two decimals; values rounding to zero lose their sign.
func round2(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	if s == "-0.00" {
		return "0.00"
	}
	return s
}

func volume(v *float64) string {
	if usable(v) == nil {
		return notAvailable
	}
	return decimal.NewFromFloat(*v).Round(0).String()
}

func flags(r models.AssetRecord) string {
	set := make([]string, 0, 3)
	if r.IsLiquid {
		set = append(set, "liquid")
	}
	if r.IsTrending {
		set = append(set, "trending")
	}
	if r.IsVolatile {
		set = append(set, "volatile")
	}
	if len(set) == 0 {
		return "-"
	}
	return strings.Join(set, ",")
}
