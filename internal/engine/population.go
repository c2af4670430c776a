package engine

import (
	"context"

	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/ledger"
)

// UpdatePopulationSample records a new population sample. It never changes
// the current goal; the next goal is established from the latest sample.
// Samples outside [0, ledger.MaxPopulation] are clamped.
func (e *Engine) UpdatePopulationSample(ctx context.Context, entityID string, n int64) (DisplayState, error) {
	return e.updateGoalInputs(ctx, entityID, ledger.Payload{Population: ledger.ClampPopulation(n)}, true)
}

// SetEntityType changes the decay-rate key used for the next goal.
func (e *Engine) SetEntityType(ctx context.Context, entityID, entityType string) (DisplayState, error) {
	typ, err := ledger.NormalizeKey(entityType)
	if err != nil {
		return DisplayState{}, validationError(entityID, err)
	}
	return e.updateGoalInputs(ctx, entityID, ledger.Payload{EntityType: typ}, false)
}

// updateGoalInputs appends GoalInputsUpdated unless nothing would change.
// populationSet distinguishes a zero sample from "population unchanged".
func (e *Engine) updateGoalInputs(ctx context.Context, entityID string, p ledger.Payload, populationSet bool) (DisplayState, error) {
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

	if !populationSet {
		p.Population = o.snap.LastPopulationSample
	}
	if p.EntityType == o.snap.EntityType {
		p.EntityType = ""
	}
	if p.Population != o.snap.LastPopulationSample || p.EntityType != "" {
		p.Day = o.today
		if _, err := o.mustAppend(ledger.EventGoalInputsUpdated, p); err != nil {
			return DisplayState{}, err
		}
		changed = true
	}

	if changed {
		if err := o.persist(); err != nil {
			return DisplayState{}, err
		}
	}
	return o.state(), nil
}
