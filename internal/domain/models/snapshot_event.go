package models

import "time"

// SnapshotEvent is the message published for every generated snapshot.
type SnapshotEvent struct {
	ID          string            `json:"id"`
	Style       string            `json:"style"`
	Preference  string            `json:"preference"`
	Strategy    string            `json:"strategy"`
	Limit       int               `json:"limit"`
	AsOf        time.Time         `json:"as_of"`
	GeneratedAt time.Time         `json:"generated_at"`
	Text        string            `json:"text"`
	Assets      []CuratedAssetDTO `json:"assets"`
	Categories  []CategoryStatDTO `json:"categories"`
}

// AssetsRefreshedEvent is emitted by the external refresh process after it
// rewrites the asset table.
type AssetsRefreshedEvent struct {
	RefreshedAt time.Time `json:"refreshed_at"`
	AssetTypes  []string  `json:"asset_types"`
	Rows        int       `json:"rows"`
}

// NewSnapshotEvent builds the outbound event for s.
func NewSnapshotEvent(id string, s *Snapshot, generatedAt time.Time) SnapshotEvent {
	resp := NewSnapshotResponse(s)
	return SnapshotEvent{
		ID:          id,
		Style:       resp.Style,
		Preference:  resp.Preference,
		Strategy:    resp.Strategy,
		Limit:       resp.Limit,
		AsOf:        resp.AsOf,
		GeneratedAt: generatedAt.UTC(),
		Text:        resp.Text,
		Assets:      resp.Assets,
		Categories:  resp.Categories,
	}
}
