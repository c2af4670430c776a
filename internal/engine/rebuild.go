package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/ledger"
	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/store"
)

// RebuildResult is the outcome of Rebuild.
type RebuildResult struct {
	State DisplayState
	// Events is the number of events folded.
	Events int
	// Drift is set when the stored snapshot disagreed with the log, or
	// could not be read at all.
	Drift bool
}

// Rebuild discards the stored snapshot and folds the entity's full event
// log from the first event, then applies decay up to today and persists
// the result. It is the repair path for a snapshot that is corrupt or has
// drifted from the log.
func (e *Engine) Rebuild(ctx context.Context, entityID string) (RebuildResult, error) {
	id, err := ledger.NormalizeEntityID(entityID)
	if err != nil {
		return RebuildResult{}, validationError(entityID, err)
	}

	ctx, release, err := e.acquire(ctx, id)
	if err != nil {
		return RebuildResult{}, err
	}
	defer release()

	cfg, err := e.configs.Current()
	if err != nil {
		return RebuildResult{}, classify("load config", id, err)
	}
	now := e.clock.Now().UTC()
	o := &op{e: e, ctx: ctx, cfg: cfg, now: now, today: cfg.Today(now)}

	o.stored, err = e.snapshots.SnapshotVersion(ctx, id)
	if err != nil {
		return RebuildResult{}, classify("read snapshot version", id, err)
	}
	stored, loadErr := e.snapshots.LoadSnapshot(ctx, id)
	if loadErr != nil && !errors.Is(loadErr, store.ErrNotFound) && !errors.Is(loadErr, store.ErrCorrupt) {
		return RebuildResult{}, classify("load snapshot", id, loadErr)
	}

	o.snap = ledger.Snapshot{EntityID: id}
	n, err := foldAll(ctx, e.events, &o.snap)
	if err != nil {
		return RebuildResult{}, err
	}
	if n == 0 {
		return RebuildResult{}, newError(CodeNotFound, id, "entity has no events", nil)
	}
	if _, err := o.decay(); err != nil {
		return RebuildResult{}, err
	}
	if o.snap.CanAdvance() {
		if err := o.commitLevelUp(); err != nil {
			return RebuildResult{}, err
		}
	}

	drift := true
	if loadErr == nil {
		if _, err := stored.DecayTo(o.today); err == nil {
			drift = !sameState(stored, o.snap)
		}
	}

	if err := o.persist(); err != nil {
		return RebuildResult{}, err
	}

	if drift {
		e.metrics.rebuildDrift()
		e.logger.Warn("rebuild found drift",
			"entity_id", id,
			"events", n,
			"seq", o.snap.LastEventSequence,
			"version", o.snap.Version,
		)
	}
	return RebuildResult{State: o.state(), Events: n, Drift: drift}, nil
}

// foldAll folds every event of snap's entity into snap.
func foldAll(ctx context.Context, events EventLog, snap *ledger.Snapshot) (int, error) {
	n := 0
	for ev, err := range events.ReadEntity(ctx, snap.EntityID, 0) {
		if err != nil {
			return n, classify("replay events", snap.EntityID, err)
		}
		if err := snap.Apply(ev); err != nil {
			return n, classify(fmt.Sprintf("replay event %d", ev.Sequence), snap.EntityID, err)
		}
		n++
	}
	return n, nil
}

// sameState compares two snapshots ignoring the persistence version.
func sameState(a, b ledger.Snapshot) bool {
	if !a.GoalStartedAt.Equal(b.GoalStartedAt) {
		return false
	}
	a.Version, b.Version = 0, 0
	a.GoalStartedAt, b.GoalStartedAt = time.Time{}, time.Time{}
	return a == b
}
