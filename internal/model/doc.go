// Package model defines the typed records shared across the collector.
//
// Conventions:
//   - Prices: integer cents (1-99 for binary market price levels)
//   - Timestamps: unix seconds (matching the persisted table schema)
//   - IDs: string for tickers, uuid.UUID for trade IDs
//
// Records are decoded once at the dispatch boundary; downstream packages
// never re-inspect raw payload shape.
package model
