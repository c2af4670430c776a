package engine

import (
	"context"

	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/ledger"
)

// GetState returns the display state of an entity. Pending decay is applied
// and persisted as a side effect; an unseen entity gets its baseline.
func (e *Engine) GetState(ctx context.Context, entityID string) (DisplayState, error) {
	return e.decayOnly(ctx, entityID)
}

// TickDecay applies pending decay and persists it. It exists for scheduled
// maintenance callers and behaves exactly like GetState.
func (e *Engine) TickDecay(ctx context.Context, entityID string) (DisplayState, error) {
	return e.decayOnly(ctx, entityID)
}

func (e *Engine) decayOnly(ctx context.Context, entityID string) (DisplayState, error) {
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
	changed, err := o.decay()
	if err != nil {
		return DisplayState{}, err
	}
	if changed {
		if err := o.persist(); err != nil {
			return DisplayState{}, err
		}
	}
	return o.state(), nil
}
