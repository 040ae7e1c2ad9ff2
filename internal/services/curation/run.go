package curation

import "MarketBrief/internal/domain/models"

// Result is the outcome of running a strategy over a fetched record set.
type Result struct {
	Assets     []models.CuratedAsset
	Categories []models.CategoryStat
	Text       string
}

// Run evaluates every quota of st against records, merges the category
// results and renders them. It holds no state and never mutates records.
func Run(st Strategy, records []models.AssetRecord, overallLimit int) Result {
	quotas := AllocateLimits(st.Quotas, overallLimit)

	groups := make([][]models.CuratedAsset, len(quotas))
	stats := make([]models.CategoryStat, len(quotas))
	for i, q := range quotas {
		selected, candidates := selectCategory(q, records)
		groups[i] = selected
		stats[i] = models.CategoryStat{
			Category:   q.Category,
			Quota:      q.Limit,
			Candidates: candidates,
			Selected:   len(selected),
		}
	}

	assets := Merge(groups, overallLimit)

	kept := make(map[models.CategoryName]int, len(quotas))
	for _, a := range assets {
		kept[a.Category]++
	}
	for i := range stats {
		// A category may appear twice in a custom mix; credit the first.
		stats[i].Kept = kept[stats[i].Category]
		kept[stats[i].Category] = 0
	}

	return Result{
		Assets:     assets,
		Categories: stats,
		Text:       FormatAssets(assets),
	}
}
