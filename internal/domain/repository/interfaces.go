package repository

import (
	"context"

	"MarketBrief/internal/domain/models"
)

// AssetStore provides read-only access to the asset table.
// Implementations must not return duplicate symbols from one call and must
// wrap read failures with models.ErrSourceUnavailable.
type AssetStore interface {
	FetchAssets(ctx context.Context, f AssetFilter) ([]models.AssetRecord, error)
	Health(ctx context.Context) error
	Close() error
}

// SnapshotPublisher forwards curated snapshots to downstream consumers.
type SnapshotPublisher interface {
	Publish(ctx context.Context, s *models.Snapshot) error
	Close() error
}

type Metrics interface {
	RecordCuration(style, preference string, assets int)
	RecordCategory(category string, selected, kept int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
