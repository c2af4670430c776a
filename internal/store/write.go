package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/ledger"
)

// seqCounter is the counters row holding the last assigned event sequence.
const seqCounter = "event_seq"

// Append durably writes ev and returns it with Sequence and Hash assigned.
//
// The counter read, the insert, and the counter bump run in one
// transaction: either the event and the new counter value are both
// committed, or neither is. With synchronous=FULL the commit is on stable
// storage before Append returns.
//
// Returns ErrDuplicate when ev is a contribution or void whose key is
// already present for the entity.
func (s *Store) Append(ctx context.Context, ev ledger.Event) (ledger.Event, error) {
	if !ev.Type.Known() {
		return ledger.Event{}, fmt.Errorf("append event: unknown type %q", ev.Type)
	}
	if ev.ID == "" || ev.EntityID == "" {
		return ledger.Event{}, fmt.Errorf("append event: id and entity_id are required")
	}
	ev.Timestamp = ev.Timestamp.UTC()

	payload, err := marshalPayload(ev.Payload)
	if err != nil {
		return ledger.Event{}, fmt.Errorf("append event: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Event{}, fmt.Errorf("append event: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var last int64
	err = tx.QueryRowContext(ctx, `SELECT value FROM counters WHERE name = ?`, seqCounter).Scan(&last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return ledger.Event{}, fmt.Errorf("append event: read counter: %w", err)
	}
	ev.Sequence = last + 1

	ev.Hash, err = ledger.EventHash(ev)
	if err != nil {
		return ledger.Event{}, fmt.Errorf("append event: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (seq, id, entity_id, type, event_key, payload, hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.Sequence,
		ev.ID,
		ev.EntityID,
		string(ev.Type),
		ev.Key(),
		payload,
		ev.Hash,
		ev.Timestamp.Format(timeLayout),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ledger.Event{}, fmt.Errorf("append event: %w: %s %s %q", ErrDuplicate, ev.EntityID, ev.Type, ev.Key())
		}
		return ledger.Event{}, fmt.Errorf("append event: insert: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO counters (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value
	`, seqCounter, ev.Sequence)
	if err != nil {
		return ledger.Event{}, fmt.Errorf("append event: bump counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ledger.Event{}, fmt.Errorf("append event: commit: %w", err)
	}
	return ev, nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
