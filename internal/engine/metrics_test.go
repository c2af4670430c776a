package engine

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	f := newFixture(t, WithMetrics(metrics))
	ctx := context.Background()

	f.contribute(t, "mech-1", 1000, "k1")
	f.contribute(t, "mech-1", 1000, "k1")
	c := f.contribute(t, "mech-1", 300, "k2")
	_, err := f.eng.VoidContribution(ctx, "mech-1", c.Event.Sequence, "")
	require.NoError(t, err)
	_, err = f.eng.GrantMonthlyGiftIfIdle(ctx, "mech-1", "2026-10")
	require.NoError(t, err)
	_, err = f.eng.GrantMonthlyGiftIfIdle(ctx, "mech-2", "2026-10")
	require.NoError(t, err)
	_, err = f.eng.Reset(ctx, "mech-1", "")
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.contributions.WithLabelValues(resultApplied)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.contributions.WithLabelValues(resultDuplicate)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.levelUps.WithLabelValues("true")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.levelUps.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.gifts.WithLabelValues(giftSkippedPowered)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.gifts.WithLabelValues(giftGranted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.voids))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.resets))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.recoveries))
}

func TestMetrics_RecoveryAndPersistErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	m := newMemStore()
	eng := newMemEngine(m, newTestClock(), WithMetrics(metrics))
	ctx := context.Background()

	_, err := eng.GetState(ctx, "mech-1")
	require.NoError(t, err)
	m.failPersist = 1
	_, err = eng.RecordContribution(ctx, Contribution{EntityID: "mech-1", AmountCents: 200, IdempotencyKey: "k1"})
	require.Error(t, err)
	_, err = eng.GetState(ctx, "mech-1")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.persistErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.recoveries))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.contributions.WithLabelValues(resultFailed)))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.contribution(resultApplied)
		m.levelUp(true)
		m.gift(giftGranted)
		m.void()
		m.reset()
		m.recovery()
		m.rebuildDrift()
		m.persistError()
		m.observeGuardWait(0)
	})
}
