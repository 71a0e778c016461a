// Package store provides SQLite-backed materialization history for a
// backing instance.
//
// The store is an append-only event log plus a run table:
//   - Runs: one row per simulated run with its selection, partition and tags
//   - Event logs: ASSET_MATERIALIZATION and STEP_FAILURE events
//
// # Ordering
//
// Every event gets a monotonically increasing storage_id. The scheduling
// engine's cursor records the highest storage_id it has seen, so "new since
// last tick" is a storage_id comparison, never a timestamp comparison.
// All queries order by storage_id ASC (runs by rowid ASC).
//
// # Database Configuration
//
//   - WAL mode (file databases)
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
//
// Open(":memory:") gives an isolated database per call; the connection
// pool is capped at one connection so the database lives as long as the
// Store.
package store
