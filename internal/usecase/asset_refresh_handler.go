package usecase

import (
	"context"
	"encoding/json"
	"time"

	"MarketBrief/internal/domain/models"
	domrepo "MarketBrief/internal/domain/repository"
	applogger "MarketBrief/pkg/logger"
)

// AssetRefreshHandler consumes asset-table refresh events and drops cached
// snapshots so live requests see the new rows.
type AssetRefreshHandler struct {
	topic   string
	curate  *CurateUseCase
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewAssetRefreshHandler(topic string, curate *CurateUseCase, metrics domrepo.Metrics, l *applogger.Logger) *AssetRefreshHandler {
	return &AssetRefreshHandler{topic: topic, curate: curate, metrics: metrics, l: l}
}

func (h *AssetRefreshHandler) Topic() string { return h.topic }

// incoming message schema: {refreshed_at, asset_types, rows}
func (h *AssetRefreshHandler) Handle(ctx context.Context, b []byte) error {
	var ev models.AssetsRefreshedEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		h.metrics.RecordError("refresh_unmarshal")
		return err
	}
	if !ev.RefreshedAt.IsZero() {
		h.metrics.RecordLatency("refresh_lag_seconds", time.Since(ev.RefreshedAt).Seconds())
	}

	if err := h.curate.InvalidateSnapshots(ctx); err != nil {
		h.metrics.RecordError("cache_invalidate")
		if h.l != nil {
			h.l.Error("snapshot cache invalidation failed", applogger.Error(err))
		}
		return err
	}
	if h.l != nil {
		h.l.Info("asset table refreshed",
			applogger.Strings("asset_types", ev.AssetTypes),
			applogger.Int("rows", ev.Rows),
		)
	}
	return nil
}
