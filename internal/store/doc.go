// Package store provides the SQLite-backed storage root of the progress
// engine: the append-only event log and the per-entity snapshot table.
//
// # Event log
//
//   - Sequence numbers are global across entities and assigned by Append
//     from a persisted counter that changes in the same transaction as the
//     inserted row, so a failed append never consumes a number.
//   - Every row carries a content hash over its canonical form; a row whose
//     hash or payload does not verify on read is reported as ErrCorrupt,
//     never skipped.
//   - Contributions and voids are additionally unique per
//     (entity, type, key), so at-most-once holds even for a caller that
//     bypasses the engine's duplicate check.
//   - All reads order by seq ASC.
//
// # Snapshots
//
// PersistSnapshot is a single-row write guarded by an optimistic version
// check: version N+1 only replaces version N.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=FULL: a commit is durable before Append returns
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - single connection: SQLite has one writer anyway
package store
