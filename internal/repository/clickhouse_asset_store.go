package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"MarketBrief/internal/domain/models"
	domrepo "MarketBrief/internal/domain/repository"
	pkgch "MarketBrief/pkg/clickhouse"
	applogger "MarketBrief/pkg/logger"
)

// CHAssetStore implements AssetStore backed by a ClickHouse
// ReplacingMergeTree table read with FINAL.
type CHAssetStore struct {
	ch    *pkgch.Client
	db    *sql.DB
	table string
	now   func() time.Time
	l     *applogger.Logger
}

func NewCHAssetStore(ch *pkgch.Client, table string) *CHAssetStore {
	if table == "" {
		table = DefaultAssetTable
	}
	return &CHAssetStore{ch: ch, db: ch.DB(), table: table, now: time.Now}
}

// SetLogger injects a structured logger.
func (s *CHAssetStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHAssetStore) FetchAssets(ctx context.Context, f domrepo.AssetFilter) ([]models.AssetRecord, error) {
	start := time.Now()
	f = f.Normalize(s.now)
	q, args := buildAssetQuery(dialectClickHouse, s.table, f)

	out, skipped, err := readAssets(ctx, s.db, false, q, args...)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse fetch_assets error",
				applogger.String("table", s.table),
				applogger.Strings("asset_types", f.TypeStrings()),
				applogger.Error(err),
			)
		}
		return nil, err
	}
	if s.l != nil {
		s.l.Debug("clickhouse fetch_assets ok",
			applogger.String("table", s.table),
			applogger.Int("rows", len(out)),
			applogger.Int("skipped", skipped),
			applogger.Duration("took_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHAssetStore) Health(ctx context.Context) error {
	if err := s.ch.Health(ctx); err != nil {
		return fmt.Errorf("%w: clickhouse: %w", models.ErrSourceUnavailable, err)
	}
	return nil
}

func (s *CHAssetStore) Close() error { return s.ch.Close() }
