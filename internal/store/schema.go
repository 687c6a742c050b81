package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements create the two append-only tables and their indexes.
// Statements are idempotent so startup can run them unconditionally.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS trades (
		ts BIGINT NOT NULL,
		ticker TEXT NOT NULL,
		trade JSONB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orderbook_snapshots (
		ts BIGINT NOT NULL,
		ticker TEXT NOT NULL,
		snapshot JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS trades_ticker_ts_idx ON trades (ticker, ts)`,
	`CREATE INDEX IF NOT EXISTS trades_ts_idx ON trades (ts)`,
	`CREATE INDEX IF NOT EXISTS orderbook_snapshots_ticker_ts_idx ON orderbook_snapshots (ticker, ts)`,
	`CREATE INDEX IF NOT EXISTS orderbook_snapshots_ts_idx ON orderbook_snapshots (ts)`,
}

// InitSchema creates tables and indexes if they do not exist.
func InitSchema(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
