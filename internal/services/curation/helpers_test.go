package curation

import (
	"time"

	"MarketBrief/internal/domain/models"
)

var testNow = time.Date(2024, 10, 10, 12, 0, 0, 0, time.UTC)

type recOpt func(*models.AssetRecord)

func rec(symbol string, opts ...recOpt) models.AssetRecord {
	r := models.AssetRecord{
		Symbol:      symbol,
		Name:        symbol,
		AssetType:   models.AssetCrypto,
		Price:       100,
		IsLiquid:    true,
		LastUpdated: testNow,
	}
	for _, o := range opts {
		o(&r)
	}
	return r
}

func with7d(v float64) recOpt  { return func(r *models.AssetRecord) { r.Change7d = models.Float(v) } }
func with24h(v float64) recOpt { return func(r *models.AssetRecord) { r.Change24h = models.Float(v) } }
func withVol(v float64) recOpt { return func(r *models.AssetRecord) { r.Volume24h = models.Float(v) } }
func withRSI(v float64) recOpt { return func(r *models.AssetRecord) { r.RSI14d = models.Float(v) } }
func trending() recOpt         { return func(r *models.AssetRecord) { r.IsTrending = true } }
func volatile() recOpt         { return func(r *models.AssetRecord) { r.IsVolatile = true } }
func illiquid() recOpt         { return func(r *models.AssetRecord) { r.IsLiquid = false } }

func symbols(assets []models.CuratedAsset) []string {
	out := make([]string, len(assets))
	for i, a := range assets {
		out[i] = a.Symbol
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
