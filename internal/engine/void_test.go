package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/ledger"
)

func TestVoidContribution_CurrentGoal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.contribute(t, "mech-1", 300, "k1")
	c := f.contribute(t, "mech-1", 400, "k2")

	res, err := f.eng.VoidContribution(ctx, "mech-1", c.Event.Sequence, "chargeback")
	require.NoError(t, err)

	assert.False(t, res.AlreadyVoided)
	assert.Equal(t, "3.00", res.State.Progress.StringFixed(2))
	assert.Equal(t, "3.00", res.State.Power.StringFixed(2))
	assert.Equal(t, "7.00", res.State.LifetimeTotal.StringFixed(2), "lifetime total is monotonic")
	assert.Equal(t, "4.00", res.State.VoidedTotal.StringFixed(2))

	events := f.events(t)
	void := events[len(events)-1]
	assert.Equal(t, ledger.EventContributionVoided, void.Type)
	assert.Equal(t, c.Event.Sequence, void.Payload.TargetSequence)
	assert.Equal(t, "chargeback", void.Payload.Reason)
}

func TestVoidContribution_EarlierGoalKeepsLevel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	levelUp := f.contribute(t, "mech-1", 1000, "k1")
	f.contribute(t, "mech-1", 200, "k2")

	res, err := f.eng.VoidContribution(ctx, "mech-1", levelUp.Event.Sequence, "")
	require.NoError(t, err)

	assert.Equal(t, 2, res.State.Level, "voiding never rolls back a level")
	assert.Equal(t, "2.00", res.State.Progress.StringFixed(2), "earlier goal's contribution leaves progress alone")
	assert.Equal(t, "0.00", res.State.Power.StringFixed(2), "3.00 - 10.00 floored")
}

func TestVoidContribution_Twice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.contribute(t, "mech-1", 300, "k1")

	_, err := f.eng.VoidContribution(ctx, "mech-1", c.Event.Sequence, "")
	require.NoError(t, err)
	before := len(f.events(t))

	res, err := f.eng.VoidContribution(ctx, "mech-1", c.Event.Sequence, "")
	require.NoError(t, err)
	assert.True(t, res.AlreadyVoided)
	assert.Len(t, f.events(t), before)
	assert.Equal(t, "3.00", res.State.VoidedTotal.StringFixed(2))
}

func TestVoidContribution_InvalidTargets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.contribute(t, "mech-1", 300, "k1")        // seq 1 goal, seq 2 contribution
	other := f.contribute(t, "mech-2", 300, "k1") // seq 3 goal, seq 4 contribution

	_, err := f.eng.VoidContribution(ctx, "mech-1", 1, "")
	assert.True(t, IsValidationError(err), "goal events cannot be voided: %v", err)

	_, err = f.eng.VoidContribution(ctx, "mech-1", other.Event.Sequence, "")
	assert.True(t, IsValidationError(err), "another entity's contribution: %v", err)

	_, err = f.eng.VoidContribution(ctx, "mech-1", 99, "")
	assert.True(t, IsNotFoundError(err))

	_, err = f.eng.VoidContribution(ctx, "mech-1", 0, "")
	assert.True(t, IsValidationError(err))
}
