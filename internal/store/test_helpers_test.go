package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/ledger"
)

var testEpoch = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// contribution creates a ContributionAdded event with minimal required fields.
func contribution(entityID, key string, amount ledger.Cents) ledger.Event {
	return ledger.Event{
		ID:        "evt-" + entityID + "-" + key,
		Timestamp: testEpoch,
		Type:      ledger.EventContributionAdded,
		EntityID:  entityID,
		Payload: ledger.Payload{
			AmountCents:    amount,
			IdempotencyKey: key,
			Day:            "2026-10-14",
		},
	}
}

// goal creates a baseline GoalEstablished event.
func goal(entityID string, n int) ledger.Event {
	return ledger.Event{
		ID:        fmt.Sprintf("goal-%s-%d", entityID, n),
		Timestamp: testEpoch,
		Type:      ledger.EventGoalEstablished,
		EntityID:  entityID,
		Payload: ledger.Payload{
			Level:            1,
			RequirementCents: 1000,
			DecayPerDayCents: 100,
			EntityType:       "default",
			Day:              "2026-10-14",
		},
	}
}

func mustAppend(t *testing.T, s *Store, ev ledger.Event) ledger.Event {
	t.Helper()
	got, err := s.Append(context.Background(), ev)
	require.NoError(t, err)
	return got
}

func collect(t *testing.T, seq func(func(ledger.Event, error) bool)) ([]ledger.Event, error) {
	t.Helper()
	var out []ledger.Event
	for ev, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, ev)
	}
	return out, nil
}
