package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"

	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/ledger"
)

// readPageSize bounds how many rows an iterator holds the connection for.
// Between pages the connection is released, so callers may use the store
// from inside a range loop.
const readPageSize = 256

// ReadAll returns every event in sequence order. The sequence is lazy and
// restartable: each range over it starts again from the first event. The
// first corrupt row ends the iteration with an ErrCorrupt error.
func (s *Store) ReadAll(ctx context.Context) iter.Seq2[ledger.Event, error] {
	return s.readPaged(ctx, "", 0)
}

// ReadEntity returns the events of one entity with a sequence greater than
// afterSeq, in order.
func (s *Store) ReadEntity(ctx context.Context, entityID string, afterSeq int64) iter.Seq2[ledger.Event, error] {
	return s.readPaged(ctx, entityID, afterSeq)
}

func (s *Store) readPaged(ctx context.Context, entityID string, afterSeq int64) iter.Seq2[ledger.Event, error] {
	return func(yield func(ledger.Event, error) bool) {
		last := afterSeq
		for {
			page, err := s.readPage(ctx, entityID, last)
			if err != nil {
				yield(ledger.Event{}, err)
				return
			}
			for _, ev := range page {
				if !yield(ev, nil) {
					return
				}
				last = ev.Sequence
			}
			if len(page) < readPageSize {
				return
			}
		}
	}
}

func (s *Store) readPage(ctx context.Context, entityID string, afterSeq int64) ([]ledger.Event, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if entityID == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+eventColumns+`
			FROM events
			WHERE seq > ?
			ORDER BY seq ASC
			LIMIT ?
		`, afterSeq, readPageSize)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+eventColumns+`
			FROM events
			WHERE entity_id = ? AND seq > ?
			ORDER BY seq ASC
			LIMIT ?
		`, entityID, afterSeq, readPageSize)
	}
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := make([]ledger.Event, 0, readPageSize)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("read events: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// ReadEvent retrieves a single event by sequence.
// Returns ErrNotFound if no such event exists.
func (s *Store) ReadEvent(ctx context.Context, seq int64) (ledger.Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE seq = ?
	`, seq)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Event{}, fmt.Errorf("read event %d: %w", seq, ErrNotFound)
	}
	if err != nil {
		return ledger.Event{}, fmt.Errorf("read event %d: %w", seq, err)
	}
	return ev, nil
}

// FindDuplicate returns the ContributionAdded event recorded for
// (entityID, idempotencyKey), if any.
func (s *Store) FindDuplicate(ctx context.Context, entityID, idempotencyKey string) (ledger.Event, bool, error) {
	return s.FindByKey(ctx, entityID, ledger.EventContributionAdded, idempotencyKey)
}

// FindByKey returns the earliest event of the given type whose log key
// (see ledger.Event.Key) matches.
func (s *Store) FindByKey(ctx context.Context, entityID string, typ ledger.EventType, key string) (ledger.Event, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE entity_id = ? AND type = ? AND event_key = ?
		ORDER BY seq ASC
		LIMIT 1
	`, entityID, string(typ), key)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Event{}, false, nil
	}
	if err != nil {
		return ledger.Event{}, false, fmt.Errorf("find %s %q: %w", typ, key, err)
	}
	return ev, true, nil
}

// LastSequence returns the sequence of the entity's most recent event, or
// zero if it has none.
func (s *Store) LastSequence(ctx context.Context, entityID string) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM events WHERE entity_id = ?
	`, entityID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last sequence for %q: %w", entityID, err)
	}
	return seq.Int64, nil
}

// TailSequence returns the last assigned sequence across all entities.
func (s *Store) TailSequence(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM counters WHERE name = ?`, seqCounter).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("tail sequence: %w", err)
	}
	return seq, nil
}
