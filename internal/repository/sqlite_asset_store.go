package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"MarketBrief/internal/domain/models"
	domrepo "MarketBrief/internal/domain/repository"
	applogger "MarketBrief/pkg/logger"
)

// SQLiteAssetStore reads a local asset table, mostly for development and
// single-node setups.
type SQLiteAssetStore struct {
	db    *sql.DB
	table string
	now   func() time.Time
	l     *applogger.Logger
}

// NewSQLiteAssetStore opens (or creates) the database file and ensures the
// asset table exists.
func NewSQLiteAssetStore(path, table string) (*SQLiteAssetStore, error) {
	if table == "" {
		table = DefaultAssetTable
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	for _, stmt := range SQLiteAssetSchema(table) {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return &SQLiteAssetStore{db: db, table: table, now: time.Now}, nil
}

// SetLogger injects a structured logger.
func (s *SQLiteAssetStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *SQLiteAssetStore) FetchAssets(ctx context.Context, f domrepo.AssetFilter) ([]models.AssetRecord, error) {
	f = f.Normalize(s.now)
	q, args := buildAssetQuery(dialectSQLite, s.table, f)
	out, _, err := readAssets(ctx, s.db, true, q, args...)
	if err != nil {
		if s.l != nil {
			s.l.Error("sqlite fetch_assets error", applogger.String("table", s.table), applogger.Error(err))
		}
		return nil, err
	}
	return out, nil
}

// Upsert writes records; used by local loaders and tests. A row never
// replaces one with a later last_updated.
func (s *SQLiteAssetStore) Upsert(ctx context.Context, records []models.AssetRecord) error {
	set := make([]string, 0, len(assetColumns)-1)
	for _, c := range assetColumns[1:] {
		set = append(set, c+" = excluded."+c)
	}
	q := fmt.Sprintf(`INSERT INTO %s (%s)
VALUES (%s)
ON CONFLICT(symbol) DO UPDATE SET %s
WHERE excluded.last_updated >= %s.last_updated`,
		s.table, strings.Join(assetColumns, ", "), placeholders(len(assetColumns)),
		strings.Join(set, ", "), s.table)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		var trend any
		if r.Trend50_200 != "" {
			trend = string(r.Trend50_200)
		}
		if _, err := stmt.ExecContext(ctx,
			r.Symbol, r.Name, string(r.AssetType), r.Price,
			r.Change1h, r.Change24h, r.Change7d,
			r.Volume24h, r.MarketCap, r.Volatility14d, r.RSI14d, trend,
			r.IsLiquid, r.IsTrending, r.IsVolatile, r.LastUpdated.UnixMilli(),
		); err != nil {
			return fmt.Errorf("upsert %s: %w", r.Symbol, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteAssetStore) Health(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: sqlite: %w", models.ErrSourceUnavailable, err)
	}
	return nil
}

func (s *SQLiteAssetStore) Close() error { return s.db.Close() }
