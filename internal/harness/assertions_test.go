package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/ledger"
)

func testEvents() []ledger.Event {
	return []ledger.Event{
		{Sequence: 1, EntityID: "a", Type: ledger.EventGoalEstablished, Payload: ledger.Payload{Level: 1, RequirementCents: 1000}},
		{Sequence: 2, EntityID: "a", Type: ledger.EventContributionAdded, Payload: ledger.Payload{AmountCents: 100}},
		{Sequence: 3, EntityID: "b", Type: ledger.EventGoalEstablished, Payload: ledger.Payload{Level: 1}},
		{Sequence: 4, EntityID: "a", Type: ledger.EventContributionAdded, Payload: ledger.Payload{AmountCents: 250, Source: "chat"}},
	}
}

func TestAssertEventCount(t *testing.T) {
	events := testEvents()

	assert.NoError(t, assertEventCount(events, Assertion{Event: "ContributionAdded", Count: 2}))
	assert.NoError(t, assertEventCount(events, Assertion{Event: "GoalEstablished", Entity: "b", Count: 1}))
	assert.NoError(t, assertEventCount(events, Assertion{Event: "GiftGranted", Count: 0}))

	err := assertEventCount(events, Assertion{Event: "ContributionAdded", Count: 2, Consecutive: true})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "sequences [2 4]", ae.Actual)

	err = assertEventCount(events, Assertion{Event: "ContributionAdded", Count: 1})
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Error(), "Expected: 1 ContributionAdded events")
	assert.Contains(t, ae.Error(), "[4] a ContributionAdded")
}

func TestAssertEventOrder(t *testing.T) {
	events := testEvents()

	assert.NoError(t, assertEventOrder(events, Assertion{Events: []string{"GoalEstablished", "ContributionAdded", "GoalEstablished"}}))
	assert.NoError(t, assertEventOrder(events, Assertion{Events: []string{"ContributionAdded", "ContributionAdded"}}))

	err := assertEventOrder(events, Assertion{Events: []string{"ContributionAdded", "GoalEstablished", "LevelUpCommitted"}})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "matched [ContributionAdded GoalEstablished], then no LevelUpCommitted", ae.Actual)
}

func TestAssertEventContains(t *testing.T) {
	events := testEvents()

	assert.NoError(t, assertEventContains(events, Assertion{Event: "ContributionAdded", Payload: map[string]any{"amount_cents": 250, "source": "chat"}}))
	assert.NoError(t, assertEventContains(events, Assertion{Event: "GoalEstablished"}))

	err := assertEventContains(events, Assertion{Event: "ContributionAdded", Payload: map[string]any{"amount_cents": 999}})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "ContributionAdded with payload {amount_cents=999}", ae.Expected)
}

func TestMatchFields(t *testing.T) {
	actual := map[string]any{"level": int64(2), "power": "1.00", "offline": false}

	assert.Empty(t, matchFields(map[string]any{"level": 2, "power": "1.00", "offline": false}, actual))
	assert.Empty(t, matchFields(nil, actual))
	assert.Equal(t, `field "tier" missing`, matchFields(map[string]any{"tier": "x"}, actual))
	assert.Equal(t, `field "level" = 2, expected 3`, matchFields(map[string]any{"level": 3}, actual))
}
