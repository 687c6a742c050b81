// Package database manages the PostgreSQL connection pool used by the
// persistence sink. Trades and snapshots are time-series data; the schema
// works unchanged on TimescaleDB.
package database
