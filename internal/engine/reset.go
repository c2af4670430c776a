package engine

import (
	"context"

	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/ledger"
)

// Reset returns an entity to level 1 with zero progress and power and a
// new goal from its latest population sample. The lifetime and voided
// totals are kept. The reset is itself an event, so replay reproduces it.
func (e *Engine) Reset(ctx context.Context, entityID, reason string) (DisplayState, error) {
	id, err := ledger.NormalizeEntityID(entityID)
	if err != nil {
		return DisplayState{}, validationError(entityID, err)
	}

	ctx, release, err := e.acquire(ctx, id)
	if err != nil {
		return DisplayState{}, err
	}
	defer release()

	o, err := e.begin(ctx, id)
	if err != nil {
		return DisplayState{}, err
	}
	goal := o.cfg.GoalFor(o.snap.LastPopulationSample, o.snap.EntityType)
	if err := o.establishGoal(1, goal, true, reason); err != nil {
		return DisplayState{}, err
	}
	if err := o.persist(); err != nil {
		return DisplayState{}, err
	}

	e.metrics.reset()
	e.logger.Warn("entity reset",
		"entity_id", id,
		"reason", reason,
		"seq", o.snap.LastEventSequence,
	)
	return o.state(), nil
}
