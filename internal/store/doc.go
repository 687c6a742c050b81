// Package store persists trades and order book snapshots.
//
// Writes are append-only (never update, only insert). Records accumulate in
// an in-memory batch and are flushed as ordered pgx batches, so per-ticker
// write order is preserved end to end. A flush failure is logged and
// surfaced through Stats and Stop; the failed batch is dropped rather than
// retried forever, keeping memory bounded.
//
// Read queries filter by optional ticker and optional timestamp range and
// return rows ordered by timestamp; they serve external analysis, never the
// live stream core.
package store
