// Package ledger defines the progress ledger domain: snapshots, events, and the
// pure fold that turns an ordered event stream into a snapshot.
//
// This package contains no I/O. The store persists ledger types; the engine
// decides which events to emit and folds them with Snapshot.Apply. Replay uses
// the exact same fold, so a snapshot rebuilt from the log is identical to the
// one produced by live operations.
//
// Key design constraints:
//   - Money is always integer cents (Cents). Decimal input is rounded exactly
//     once, at the boundary, by ParseCents.
//   - Entity-local calendar days (Day) drive decay; decay is idempotent per day.
//   - Event hashes, derived idempotency keys, and gift amounts use canonical
//     JSON with domain-separated SHA-256, so they are stable across processes.
//   - All JSON tags use snake_case.
package ledger
