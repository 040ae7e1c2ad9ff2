package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"MarketBrief/internal/domain/models"
	domrepo "MarketBrief/internal/domain/repository"
	applogger "MarketBrief/pkg/logger"
)

// PGAssetStore implements AssetStore on PostgreSQL. The table may keep
// history; only the latest row per symbol is read.
type PGAssetStore struct {
	pool  *pgxpool.Pool
	table string
	now   func() time.Time
	l     *applogger.Logger
}

// NewPGPool parses dsn and opens a pool, verifying connectivity.
func NewPGPool(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

func NewPGAssetStore(pool *pgxpool.Pool, table string) *PGAssetStore {
	if table == "" {
		table = DefaultAssetTable
	}
	return &PGAssetStore{pool: pool, table: table, now: time.Now}
}

// SetLogger injects a structured logger.
func (s *PGAssetStore) SetLogger(l *applogger.Logger) { s.l = l }

// InitSchema creates the asset table if missing.
func (s *PGAssetStore) InitSchema(ctx context.Context) error {
	for _, stmt := range PostgresAssetSchema(s.table) {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *PGAssetStore) FetchAssets(ctx context.Context, f domrepo.AssetFilter) ([]models.AssetRecord, error) {
	f = f.Normalize(s.now)
	q, args := buildAssetQuery(dialectPostgres, s.table, f)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		s.logError("query", err)
		return nil, fmt.Errorf("%w: query assets: %w", models.ErrSourceUnavailable, err)
	}
	defer rows.Close()

	out := make([]models.AssetRecord, 0, 256)
	for rows.Next() {
		r, err := scanAsset(rows, false)
		if err != nil {
			if skippable(err) {
				continue
			}
			s.logError("scan", err)
			return nil, fmt.Errorf("%w: scan asset: %w", models.ErrSourceUnavailable, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		s.logError("rows", err)
		return nil, fmt.Errorf("%w: rows: %w", models.ErrSourceUnavailable, err)
	}
	return latestPerSymbol(out), nil
}

func (s *PGAssetStore) logError(stage string, err error) {
	if s.l == nil {
		return
	}
	s.l.Error("postgres fetch_assets error",
		applogger.String("stage", stage),
		applogger.String("table", s.table),
		applogger.Error(err),
	)
}

func (s *PGAssetStore) Health(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: postgres: %w", models.ErrSourceUnavailable, err)
	}
	return nil
}

func (s *PGAssetStore) Close() error {
	s.pool.Close()
	return nil
}
