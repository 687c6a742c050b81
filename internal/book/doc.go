// Package book maintains per-market order book state.
//
// A Book is a pure data structure: snapshot application replaces state
// unconditionally, delta application adjusts a single price level, and
// materialization produces a sorted immutable view. Deltas dominate message
// volume, so levels are price-keyed maps (O(1) update/removal); sorting only
// happens at materialization time.
//
// Books are owned exclusively by the dispatch loop that processes their
// market's messages and are not safe for concurrent use.
package book
