package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/ledger"
)

// timeLayout is the stored form of event timestamps. It round-trips
// exactly, which the content hash depends on.
const timeLayout = time.RFC3339Nano

// marshalPayload converts a payload to JSON TEXT for storage.
// HTML escaping is disabled so stored text matches what callers passed in.
func marshalPayload(p ledger.Payload) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalPayload parses stored payload TEXT. Unknown fields mean the row
// was written by something else and are rejected.
func unmarshalPayload(data string) (ledger.Payload, error) {
	var p ledger.Payload
	dec := json.NewDecoder(strings.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return ledger.Payload{}, fmt.Errorf("unmarshal payload: %w", err)
	}
	return p, nil
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const eventColumns = `seq, id, entity_id, type, payload, hash, created_at`

// scanEvent reads one event row and verifies it. Any mismatch between the
// stored hash and the recomputed one is ErrCorrupt.
func scanEvent(row scanner) (ledger.Event, error) {
	var (
		ev        ledger.Event
		typ       string
		payload   string
		createdAt string
	)
	if err := row.Scan(&ev.Sequence, &ev.ID, &ev.EntityID, &typ, &payload, &ev.Hash, &createdAt); err != nil {
		return ledger.Event{}, err
	}

	ev.Type = ledger.EventType(typ)
	if !ev.Type.Known() {
		return ledger.Event{}, fmt.Errorf("%w: event %d: unknown type %q", ErrCorrupt, ev.Sequence, typ)
	}

	ts, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return ledger.Event{}, fmt.Errorf("%w: event %d: timestamp: %v", ErrCorrupt, ev.Sequence, err)
	}
	ev.Timestamp = ts.UTC()

	ev.Payload, err = unmarshalPayload(payload)
	if err != nil {
		return ledger.Event{}, fmt.Errorf("%w: event %d: %v", ErrCorrupt, ev.Sequence, err)
	}

	want, err := ledger.EventHash(ev)
	if err != nil {
		return ledger.Event{}, fmt.Errorf("%w: event %d: %v", ErrCorrupt, ev.Sequence, err)
	}
	if want != ev.Hash {
		return ledger.Event{}, fmt.Errorf("%w: event %d: hash mismatch", ErrCorrupt, ev.Sequence)
	}
	return ev, nil
}

// marshalSnapshot converts a snapshot to JSON TEXT for storage.
func marshalSnapshot(snap ledger.Snapshot) (string, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	return string(data), nil
}

func unmarshalSnapshot(data string) (ledger.Snapshot, error) {
	var snap ledger.Snapshot
	dec := json.NewDecoder(strings.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&snap); err != nil {
		return ledger.Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, nil
}
