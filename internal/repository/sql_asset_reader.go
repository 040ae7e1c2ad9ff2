package repository

import (
	"context"
	"database/sql"
	"fmt"

	"MarketBrief/internal/domain/models"
)

// readAssets runs q on a database/sql handle and scans every row.
// Rows with an unknown asset type or an unusable price are skipped.
func readAssets(ctx context.Context, db *sql.DB, unixMillis bool, q string, args ...any) ([]models.AssetRecord, int, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: query assets: %w", models.ErrSourceUnavailable, err)
	}
	defer rows.Close()

	out := make([]models.AssetRecord, 0, 256)
	skipped := 0
	for rows.Next() {
		r, err := scanAsset(rows, unixMillis)
		if err != nil {
			if skippable(err) {
				skipped++
				continue
			}
			return nil, skipped, fmt.Errorf("%w: scan asset: %w", models.ErrSourceUnavailable, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, skipped, fmt.Errorf("%w: rows: %w", models.ErrSourceUnavailable, err)
	}
	return latestPerSymbol(out), skipped, nil
}
