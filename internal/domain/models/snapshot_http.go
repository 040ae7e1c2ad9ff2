package models

import "time"

// Requests and response bodies for the curation HTTP endpoints.

type SnapshotRequest struct {
	Style      string `query:"style" json:"style" validate:"required"`
	Preference string `query:"preference" json:"preference" default:"both" validate:"required"`
	Limit      int    `query:"limit" json:"limit" default:"25" validate:"gte=1,lte=100"`
	AsOf       string `query:"as_of" json:"as_of"`
}

type StrategiesRequest struct {
	Limit int `query:"limit" json:"limit" default:"25" validate:"gte=1,lte=100"`
}

type SnapshotJobRequest struct {
	Style      string `json:"style" validate:"required"`
	Preference string `json:"preference" default:"both" validate:"required"`
	Limit      int    `json:"limit" default:"25" validate:"gte=1,lte=100"`
}

type CuratedAssetDTO struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	AssetType     string    `json:"asset_type"`
	Category      string    `json:"category"`
	Price         float64   `json:"price"`
	Change1h      *float64  `json:"change_1h"`
	Change24h     *float64  `json:"change_24h"`
	Change7d      *float64  `json:"change_7d"`
	Volume24h     *float64  `json:"volume_24h"`
	MarketCap     *float64  `json:"market_cap"`
	Volatility14d *float64  `json:"volatility_14d"`
	RSI14d        *float64  `json:"rsi_14d"`
	Trend50_200   string    `json:"trend_50_200,omitempty"`
	IsLiquid      bool      `json:"is_liquid"`
	IsTrending    bool      `json:"is_trending"`
	IsVolatile    bool      `json:"is_volatile"`
	LastUpdated   time.Time `json:"last_updated"`
}

type CategoryStatDTO struct {
	Category   string `json:"category"`
	Quota      int    `json:"quota"`
	Candidates int    `json:"candidates"`
	Selected   int    `json:"selected"`
	Kept       int    `json:"kept"`
}

type SnapshotResponse struct {
	Style      string            `json:"style"`
	Preference string            `json:"preference"`
	Strategy   string            `json:"strategy"`
	Limit      int               `json:"limit"`
	AsOf       time.Time         `json:"as_of"`
	Count      int               `json:"count"`
	Assets     []CuratedAssetDTO `json:"assets"`
	Categories []CategoryStatDTO `json:"categories"`
	Text       string            `json:"text"`
}

type QuotaDTO struct {
	Category string `json:"category"`
	Weight   int    `json:"weight"`
	Limit    int    `json:"limit"`
}

type StrategyDTO struct {
	Style      string     `json:"style"`
	Preference string     `json:"preference"`
	Name       string     `json:"name"`
	AssetTypes []string   `json:"asset_types"`
	Quotas     []QuotaDTO `json:"quotas"`
}

type SnapshotJobResponse struct {
	JobID      string `json:"job_id"`
	JobType    string `json:"job_type"`
	Style      string `json:"style"`
	Preference string `json:"preference"`
	Limit      int    `json:"limit"`
}

// NewSnapshotResponse converts a snapshot to its wire form.
func NewSnapshotResponse(s *Snapshot) SnapshotResponse {
	assets := make([]CuratedAssetDTO, 0, len(s.Assets))
	for _, a := range s.Assets {
		assets = append(assets, CuratedAssetDTO{
			Symbol:        a.Symbol,
			Name:          a.Name,
			AssetType:     string(a.AssetType),
			Category:      string(a.Category),
			Price:         a.Price,
			Change1h:      a.Change1h,
			Change24h:     a.Change24h,
			Change7d:      a.Change7d,
			Volume24h:     a.Volume24h,
			MarketCap:     a.MarketCap,
			Volatility14d: a.Volatility14d,
			RSI14d:        a.RSI14d,
			Trend50_200:   string(a.Trend50_200),
			IsLiquid:      a.IsLiquid,
			IsTrending:    a.IsTrending,
			IsVolatile:    a.IsVolatile,
			LastUpdated:   a.LastUpdated,
		})
	}
	cats := make([]CategoryStatDTO, 0, len(s.Categories))
	for _, c := range s.Categories {
		cats = append(cats, CategoryStatDTO{
			Category:   string(c.Category),
			Quota:      c.Quota,
			Candidates: c.Candidates,
			Selected:   c.Selected,
			Kept:       c.Kept,
		})
	}
	return SnapshotResponse{
		Style:      string(s.Style),
		Preference: string(s.Preference),
		Strategy:   s.Strategy,
		Limit:      s.Limit,
		AsOf:       s.AsOf,
		Count:      len(assets),
		Assets:     assets,
		Categories: cats,
		Text:       s.Text,
	}
}
