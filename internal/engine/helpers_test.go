package engine

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/config"
	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/ledger"
	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/store"
	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/testutil"
)

// t0 is 09:00 UTC on a fixed day.
var t0 = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

// staticConfig is a ConfigSource that always returns the same config.
type staticConfig struct {
	cfg config.Config
	err error
}

func (s staticConfig) Current() (config.Config, error) {
	if s.err != nil {
		return config.Config{}, s.err
	}
	return s.cfg, nil
}

// fixture bundles an engine over a real SQLite store.
type fixture struct {
	eng   *Engine
	store *store.Store
	clock *testutil.ManualClock
	cfg   config.Config
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFixture creates an engine on a fresh store in t.TempDir with the
// default config and a manual clock at t0.
func newFixture(t *testing.T, opts ...EngineOption) *fixture {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	cfg := config.Default()
	clock := testutil.NewManualClock(t0)
	base := []EngineOption{
		WithClock(clock),
		WithIDGenerator(testutil.NewSequentialIDs("evt")),
		WithLogger(discardLogger()),
	}
	eng := New(s, s, staticConfig{cfg: cfg}, append(base, opts...)...)
	return &fixture{eng: eng, store: s, clock: clock, cfg: cfg}
}

func (f *fixture) contribute(t *testing.T, entityID string, amount ledger.Cents, key string) ContributionResult {
	t.Helper()
	res, err := f.eng.RecordContribution(context.Background(), Contribution{
		EntityID:       entityID,
		AmountCents:    amount,
		IdempotencyKey: key,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) events(t *testing.T) []ledger.Event {
	t.Helper()
	var out []ledger.Event
	for ev, err := range f.store.ReadAll(context.Background()) {
		require.NoError(t, err)
		out = append(out, ev)
	}
	return out
}

func (f *fixture) snapshot(t *testing.T, entityID string) ledger.Snapshot {
	t.Helper()
	snap, err := f.store.LoadSnapshot(context.Background(), entityID)
	require.NoError(t, err)
	return snap
}

func eventTypes(events []ledger.Event) []ledger.EventType {
	out := make([]ledger.EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

// memStore is an in-memory EventLog and SnapshotStore with fault injection.
type memStore struct {
	mu     sync.Mutex
	events []ledger.Event
	snaps  map[string]ledger.Snapshot

	// failPersist makes the next n PersistSnapshot calls fail.
	failPersist int
	// failAppendAfter makes Append fail once this many events exist; <0 disables.
	failAppendAfter int
	// loadErr, when set, is returned by every LoadSnapshot.
	loadErr error
}

func newMemStore() *memStore {
	return &memStore{snaps: make(map[string]ledger.Snapshot), failAppendAfter: -1}
}

func (m *memStore) Append(_ context.Context, ev ledger.Event) (ledger.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppendAfter >= 0 && len(m.events) >= m.failAppendAfter {
		return ledger.Event{}, fmt.Errorf("append event: disk full")
	}
	if ev.Type == ledger.EventContributionAdded || ev.Type == ledger.EventContributionVoided {
		for _, prior := range m.events {
			if prior.EntityID == ev.EntityID && prior.Type == ev.Type && prior.Key() == ev.Key() {
				return ledger.Event{}, fmt.Errorf("append event: %w", store.ErrDuplicate)
			}
		}
	}
	ev.Sequence = int64(len(m.events)) + 1
	ev.Timestamp = ev.Timestamp.UTC()
	h, err := ledger.EventHash(ev)
	if err != nil {
		return ledger.Event{}, err
	}
	ev.Hash = h
	m.events = append(m.events, ev)
	return ev, nil
}

func (m *memStore) snapshotEvents() []ledger.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ledger.Event(nil), m.events...)
}

func (m *memStore) ReadAll(_ context.Context) iter.Seq2[ledger.Event, error] {
	return func(yield func(ledger.Event, error) bool) {
		for _, ev := range m.snapshotEvents() {
			if !yield(ev, nil) {
				return
			}
		}
	}
}

func (m *memStore) ReadEntity(_ context.Context, entityID string, afterSeq int64) iter.Seq2[ledger.Event, error] {
	return func(yield func(ledger.Event, error) bool) {
		for _, ev := range m.snapshotEvents() {
			if ev.EntityID != entityID || ev.Sequence <= afterSeq {
				continue
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

func (m *memStore) ReadEvent(_ context.Context, seq int64) (ledger.Event, error) {
	events := m.snapshotEvents()
	if seq < 1 || seq > int64(len(events)) {
		return ledger.Event{}, fmt.Errorf("read event %d: %w", seq, store.ErrNotFound)
	}
	return events[seq-1], nil
}

func (m *memStore) FindDuplicate(ctx context.Context, entityID, key string) (ledger.Event, bool, error) {
	return m.FindByKey(ctx, entityID, ledger.EventContributionAdded, key)
}

func (m *memStore) FindByKey(_ context.Context, entityID string, typ ledger.EventType, key string) (ledger.Event, bool, error) {
	for _, ev := range m.snapshotEvents() {
		if ev.EntityID == entityID && ev.Type == typ && ev.Key() == key {
			return ev, true, nil
		}
	}
	return ledger.Event{}, false, nil
}

func (m *memStore) LastSequence(_ context.Context, entityID string) (int64, error) {
	var last int64
	for _, ev := range m.snapshotEvents() {
		if ev.EntityID == entityID {
			last = ev.Sequence
		}
	}
	return last, nil
}

func (m *memStore) LoadSnapshot(_ context.Context, entityID string) (ledger.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return ledger.Snapshot{}, m.loadErr
	}
	snap, ok := m.snaps[entityID]
	if !ok {
		return ledger.Snapshot{}, fmt.Errorf("load snapshot %q: %w", entityID, store.ErrNotFound)
	}
	return snap, nil
}

func (m *memStore) PersistSnapshot(_ context.Context, snap ledger.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPersist > 0 {
		m.failPersist--
		return fmt.Errorf("persist snapshot: permission denied")
	}
	if m.snaps[snap.EntityID].Version != snap.Version-1 {
		return fmt.Errorf("persist snapshot: %w", store.ErrStaleVersion)
	}
	m.snaps[snap.EntityID] = snap
	return nil
}

func (m *memStore) SnapshotVersion(_ context.Context, entityID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snaps[entityID].Version, nil
}

func newTestClock() *testutil.ManualClock {
	return testutil.NewManualClock(t0)
}

// newMemEngine creates an engine over a memStore.
func newMemEngine(m *memStore, clock *testutil.ManualClock, opts ...EngineOption) *Engine {
	base := []EngineOption{
		WithClock(clock),
		WithIDGenerator(testutil.NewSequentialIDs("mem")),
		WithLogger(discardLogger()),
	}
	return New(m, m, staticConfig{cfg: config.Default()}, append(base, opts...)...)
}
