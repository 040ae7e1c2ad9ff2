package curation

import (
	"math"
	"strings"
	"testing"

	"MarketBrief/internal/domain/models"
)

func balanced(t *testing.T) Strategy {
	t.Helper()
	st, err := ResolveStrategy("balanced", "both")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return st
}

func TestRunNoBackfill(t *testing.T) {
	records := []models.AssetRecord{
		rec("G1", with7d(5)),
		rec("R1", with7d(-3)),
		rec("R2", with7d(-4)),
		rec("R3", with7d(-5)),
		rec("T1", with7d(0), trending(), withVol(300)),
		rec("T2", with7d(0), trending(), withVol(200)),
		rec("T3", with7d(0), trending(), withVol(100)),
		rec("T4", with7d(0), trending(), withVol(50)),
	}
	res := Run(balanced(t), records, 9)
	want := []string{"G1", "R3", "R2", "R1", "T1", "T2", "T3"}
	if !equalStrings(symbols(res.Assets), want) {
		t.Fatalf("expected %v got %v", want, symbols(res.Assets))
	}
	if res.Categories[0].Quota != 3 || res.Categories[0].Candidates != 1 || res.Categories[0].Kept != 1 {
		t.Fatalf("unexpected gainer stats %+v", res.Categories[0])
	}
	if res.Categories[2].Candidates != 4 || res.Categories[2].Selected != 3 {
		t.Fatalf("unexpected trending stats %+v", res.Categories[2])
	}
}

func TestRunDedupTagsFirstCategory(t *testing.T) {
	records := []models.AssetRecord{
		rec("BTC", with7d(10), trending(), withVol(1e9)),
		rec("ETH", with7d(1), trending(), withVol(1e8)),
	}
	res := Run(balanced(t), records, 25)
	if !equalStrings(symbols(res.Assets), []string{"BTC", "ETH"}) {
		t.Fatalf("unexpected assets %v", symbols(res.Assets))
	}
	if res.Assets[0].Category != models.CategoryGainer {
		t.Fatalf("expected BTC tagged gainer got %s", res.Assets[0].Category)
	}
	if res.Assets[1].Category != models.CategoryTrending {
		t.Fatalf("expected ETH tagged trending got %s", res.Assets[1].Category)
	}
	if res.Categories[2].Selected != 2 || res.Categories[2].Kept != 1 {
		t.Fatalf("unexpected trending stats %+v", res.Categories[2])
	}
}

func TestRunBoundsAndUniqueness(t *testing.T) {
	var records []models.AssetRecord
	for i := 0; i < 40; i++ {
		sym := string(rune('A'+i%26)) + string(rune('a'+i/26))
		records = append(records, rec(sym, with7d(float64(i-20)), trending(), withVol(float64(i))))
	}
	for _, limit := range []int{1, 5, 10, 25} {
		res := Run(balanced(t), records, limit)
		if len(res.Assets) > limit {
			t.Fatalf("limit %d: got %d assets", limit, len(res.Assets))
		}
		seen := map[string]bool{}
		for _, a := range res.Assets {
			if seen[a.Symbol] {
				t.Fatalf("limit %d: duplicate %s", limit, a.Symbol)
			}
			seen[a.Symbol] = true
		}
	}
}

func TestRunDeterministic(t *testing.T) {
	records := []models.AssetRecord{
		rec("A", with7d(10), trending(), withVol(1)),
		rec("B", with7d(10), trending(), withVol(1)),
		rec("C", with7d(-10)),
	}
	first := Run(balanced(t), records, 25)
	reversed := []models.AssetRecord{records[2], records[1], records[0]}
	second := Run(balanced(t), reversed, 25)
	if first.Text != second.Text {
		t.Fatalf("output depends on input order:\n%s\n%s", first.Text, second.Text)
	}
}

func TestRunEmptyInput(t *testing.T) {
	res := Run(balanced(t), nil, 25)
	if len(res.Assets) != 0 || res.Text != "" {
		t.Fatalf("expected empty result got %+v", res)
	}
}

func TestRunInfiniteVolume(t *testing.T) {
	records := []models.AssetRecord{
		rec("BTC", with7d(5), trending(), withVol(math.Inf(1))),
		rec("ETH", with7d(0), trending(), withVol(10)),
	}
	res := Run(balanced(t), records, 25)
	want := []string{"BTC", "ETH"}
	if got := symbols(res.Assets); !equalStrings(got, want) {
		t.Fatalf("want %v got %v", want, got)
	}
	if !strings.Contains(res.Text, "BTC | crypto | price=100 | 1h=n/a | 24h=n/a | 7d=+5.00% | vol=n/a |") {
		t.Fatalf("unexpected text %q", res.Text)
	}
}
