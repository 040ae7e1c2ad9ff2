package curation

import (
	"math"
	"slices"
	"strings"

	"MarketBrief/internal/domain/models"
)

// SelectCategory filters records by the quota predicate, orders them by the
// quota sort key and keeps at most q.Limit. A non-positive limit selects
// nothing.
func SelectCategory(q CategoryQuota, records []models.AssetRecord) []models.CuratedAsset {
	selected, _ := selectCategory(q, records)
	return selected
}

func selectCategory(q CategoryQuota, records []models.AssetRecord) ([]models.CuratedAsset, int) {
	matched := make([]models.AssetRecord, 0, len(records))
	for _, r := range records {
		if q.Predicate != nil && q.Predicate(r) {
			matched = append(matched, r)
		}
	}
	candidates := len(matched)

	slices.SortStableFunc(matched, q.OrderBy.compare)

	n := min(max(q.Limit, 0), len(matched))
	out := make([]models.CuratedAsset, n)
	for i := 0; i < n; i++ {
		out[i] = models.CuratedAsset{AssetRecord: matched[i], Category: q.Category}
	}
	return out, candidates
}

// compare orders by the key value (nil and non-finite last), then by symbol.
func (k SortKey) compare(a, b models.AssetRecord) int {
	var va, vb *float64
	if k.Value != nil {
		va, vb = usable(k.Value(a)), usable(k.Value(b))
	}
	switch {
	case va == nil && vb != nil:
		return 1
	case va != nil && vb == nil:
		return -1
	case va != nil && vb != nil && *va != *vb:
		c := -1
		if *va > *vb {
			c = 1
		}
		if k.Desc {
			c = -c
		}
		return c
	}
	return strings.Compare(a.Symbol, b.Symbol)
}

func usable(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	return v
}
