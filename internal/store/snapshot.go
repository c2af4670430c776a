package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/ledger"
)

// LoadSnapshot returns the persisted snapshot of an entity.
// Returns ErrNotFound if none was persisted yet, and ErrCorrupt if the
// stored row does not decode or disagrees with its own columns.
func (s *Store) LoadSnapshot(ctx context.Context, entityID string) (ledger.Snapshot, error) {
	var (
		version int64
		lastSeq int64
		state   string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT version, last_event_seq, state
		FROM snapshots
		WHERE entity_id = ?
	`, entityID).Scan(&version, &lastSeq, &state)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Snapshot{}, fmt.Errorf("load snapshot %q: %w", entityID, ErrNotFound)
	}
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("load snapshot %q: %w", entityID, err)
	}

	snap, err := unmarshalSnapshot(state)
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("load snapshot %q: %w: %v", entityID, ErrCorrupt, err)
	}
	if snap.EntityID != entityID || snap.Version != version || snap.LastEventSequence != lastSeq {
		return ledger.Snapshot{}, fmt.Errorf("load snapshot %q: %w: state disagrees with row", entityID, ErrCorrupt)
	}
	return snap, nil
}

// PersistSnapshot writes snap in a single statement. snap.Version is the
// new version: version 1 creates the row, version N replaces only version
// N-1. Any other current version yields ErrStaleVersion and leaves the row
// untouched.
func (s *Store) PersistSnapshot(ctx context.Context, snap ledger.Snapshot) error {
	if snap.EntityID == "" {
		return fmt.Errorf("persist snapshot: entity_id is required")
	}
	if snap.Version < 1 {
		return fmt.Errorf("persist snapshot %q: version %d must be >= 1", snap.EntityID, snap.Version)
	}

	state, err := marshalSnapshot(snap)
	if err != nil {
		return fmt.Errorf("persist snapshot %q: %w", snap.EntityID, err)
	}
	now := time.Now().UTC().Format(timeLayout)

	var res sql.Result
	if snap.Version == 1 {
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO snapshots (entity_id, version, last_event_seq, state, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(entity_id) DO NOTHING
		`, snap.EntityID, snap.Version, snap.LastEventSequence, state, now)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE snapshots
			SET version = ?, last_event_seq = ?, state = ?, updated_at = ?
			WHERE entity_id = ? AND version = ?
		`, snap.Version, snap.LastEventSequence, state, now, snap.EntityID, snap.Version-1)
	}
	if err != nil {
		return fmt.Errorf("persist snapshot %q: %w", snap.EntityID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("persist snapshot %q: rows affected: %w", snap.EntityID, err)
	}
	if n == 0 {
		return fmt.Errorf("persist snapshot %q: %w: want to write version %d", snap.EntityID, ErrStaleVersion, snap.Version)
	}
	return nil
}

// ListEntities returns every entity id that has events or a snapshot,
// in byte order.
func (s *Store) ListEntities(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_id FROM events
		UNION
		SELECT entity_id FROM snapshots
		ORDER BY 1 COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list entities: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	return ids, nil
}

// SnapshotVersion returns the stored version of an entity's snapshot
// without decoding it, or zero if none exists. Rebuild uses it to replace
// a snapshot whose state no longer decodes.
func (s *Store) SnapshotVersion(ctx context.Context, entityID string) (int64, error) {
	var version int64
	err := s.db.QueryRowContext(ctx, `SELECT version FROM snapshots WHERE entity_id = ?`, entityID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("snapshot version %q: %w", entityID, err)
	}
	return version, nil
}
