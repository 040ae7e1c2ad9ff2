package curation

import (
	"testing"

	"MarketBrief/internal/domain/models"
)

func curated(cat models.CategoryName, syms ...string) []models.CuratedAsset {
	out := make([]models.CuratedAsset, len(syms))
	for i, s := range syms {
		out[i] = models.CuratedAsset{AssetRecord: rec(s), Category: cat}
	}
	return out
}

func TestMergeFirstOccurrenceWins(t *testing.T) {
	got := Merge([][]models.CuratedAsset{
		curated(models.CategoryGainer, "BTC", "ETH"),
		curated(models.CategoryTrending, "SOL", "BTC"),
	}, 10)
	if !equalStrings(symbols(got), []string{"BTC", "ETH", "SOL"}) {
		t.Fatalf("unexpected merge %v", symbols(got))
	}
	if got[0].Category != models.CategoryGainer {
		t.Fatalf("expected BTC tagged gainer got %s", got[0].Category)
	}
}

func TestMergeTruncatesInPriorityOrder(t *testing.T) {
	got := Merge([][]models.CuratedAsset{
		curated(models.CategoryGainer, "A", "B"),
		curated(models.CategoryReversion, "C", "D"),
	}, 3)
	if !equalStrings(symbols(got), []string{"A", "B", "C"}) {
		t.Fatalf("unexpected merge %v", symbols(got))
	}
}

func TestMergeEmpty(t *testing.T) {
	if got := Merge(nil, 5); len(got) != 0 {
		t.Fatalf("expected empty got %v", symbols(got))
	}
	if got := Merge([][]models.CuratedAsset{curated(models.CategoryGainer, "A")}, 0); len(got) != 0 {
		t.Fatalf("expected empty got %v", symbols(got))
	}
}
