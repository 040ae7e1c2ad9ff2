package curation

import "MarketBrief/internal/domain/models"

// Merge concatenates category results in priority order, keeps the first
// occurrence of each symbol and truncates to overallLimit. Unfilled slots are
// not backfilled.
func Merge(results [][]models.CuratedAsset, overallLimit int) []models.CuratedAsset {
	if overallLimit <= 0 {
		return []models.CuratedAsset{}
	}
	seen := make(map[string]struct{})
	out := make([]models.CuratedAsset, 0, overallLimit)
	for _, group := range results {
		for _, a := range group {
			if _, dup := seen[a.Symbol]; dup {
				continue
			}
			seen[a.Symbol] = struct{}{}
			out = append(out, a)
			if len(out) == overallLimit {
				return out
			}
		}
	}
	return out
}
