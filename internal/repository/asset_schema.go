package repository

import "fmt"

// ClickHouseAssetSchema returns the DDL for the asset table. Rows are
// replaced per symbol by the most recent last_updated.
func ClickHouseAssetSchema(database, table string) []string {
	return []string{
		fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, database),
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.%s (
    symbol          String,
    name            String,
    asset_type      LowCardinality(String),
    price           Float64,
    change_1h       Nullable(Float64),
    change_24h      Nullable(Float64),
    change_7d       Nullable(Float64),
    volume_24h      Nullable(Float64),
    market_cap      Nullable(Float64),
    volatility_14d  Nullable(Float64),
    rsi_14d         Nullable(Float64),
    trend_50_200    Nullable(String),
    is_liquid       Bool,
    is_trending     Bool,
    is_volatile     Bool,
    last_updated    DateTime64(3, 'UTC')
) ENGINE = ReplacingMergeTree(last_updated)
ORDER BY symbol`, database, table),
	}
}

// PostgresAssetSchema returns the DDL for the asset table.
func PostgresAssetSchema(table string) []string {
	return []string{
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    symbol          TEXT NOT NULL,
    name            TEXT NOT NULL,
    asset_type      TEXT NOT NULL,
    price           DOUBLE PRECISION NOT NULL,
    change_1h       DOUBLE PRECISION,
    change_24h      DOUBLE PRECISION,
    change_7d       DOUBLE PRECISION,
    volume_24h      DOUBLE PRECISION,
    market_cap      DOUBLE PRECISION,
    volatility_14d  DOUBLE PRECISION,
    rsi_14d         DOUBLE PRECISION,
    trend_50_200    TEXT,
    is_liquid       BOOLEAN NOT NULL DEFAULT FALSE,
    is_trending     BOOLEAN NOT NULL DEFAULT FALSE,
    is_volatile     BOOLEAN NOT NULL DEFAULT FALSE,
    last_updated    TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (symbol, last_updated)
)`, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_type_updated ON %s (asset_type, last_updated)`, table, table),
	}
}

// SQLiteAssetSchema returns the DDL for the local asset table.
// last_updated is stored as unix milliseconds.
func SQLiteAssetSchema(table string) []string {
	return []string{
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    symbol          TEXT PRIMARY KEY,
    name            TEXT NOT NULL,
    asset_type      TEXT NOT NULL,
    price           REAL NOT NULL,
    change_1h       REAL,
    change_24h      REAL,
    change_7d       REAL,
    volume_24h      REAL,
    market_cap      REAL,
    volatility_14d  REAL,
    rsi_14d         REAL,
    trend_50_200    TEXT,
    is_liquid       INTEGER NOT NULL DEFAULT 0,
    is_trending     INTEGER NOT NULL DEFAULT 0,
    is_volatile     INTEGER NOT NULL DEFAULT 0,
    last_updated    INTEGER NOT NULL
)`, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_type_updated ON %s(asset_type, last_updated)`, table, table),
	}
}
