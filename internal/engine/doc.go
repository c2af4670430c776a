// Package engine implements the progress engine: the state machine that
// turns contributions, gifts, decay, and population samples into ledger
// events and snapshots.
//
// ARCHITECTURE:
//
// Every mutating operation runs under the Guard and follows the same shape:
//  1. Validate inputs before any I/O.
//  2. Load the snapshot, folding any logged events it has not seen yet.
//  3. Apply pending decay for the entity-local day.
//  4. Append the operation's events, folding each into the snapshot with
//     ledger.Snapshot.Apply.
//  5. Persist the snapshot with the next version.
//
// The event log is the source of truth. A failed append aborts the
// operation before the snapshot is touched; a failed persist after a
// successful append leaves the snapshot behind the log, and the next load
// catches it up.
//
// CRITICAL PATTERNS:
//
// Single transition function:
// Live operations and replay both fold events through ledger.Snapshot.Apply,
// so Rebuild reproduces exactly what the live path persisted.
//
// Frozen goals:
// Population samples and entity types only affect the next goal. A goal's
// requirement, bin, and decay rate never change mid-flight.
package engine
