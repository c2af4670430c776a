package engine

import (
	"context"
	"errors"

	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/ledger"
	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/store"
)

// Contribution is a request to record money toward an entity's progress.
type Contribution struct {
	EntityID    string
	AmountCents ledger.Cents
	// IdempotencyKey makes the request at-most-once. When empty a key is
	// derived from the entity, source, amount, and the current second.
	IdempotencyKey string
	// Source is free-form caller metadata, e.g. the donor.
	Source string
}

// ContributionResult is the outcome of RecordContribution.
type ContributionResult struct {
	State DisplayState
	// Event is the appended ContributionAdded, or the earlier one when
	// Duplicate is set.
	Event ledger.Event
	// Duplicate is set when the key was already recorded and nothing changed.
	Duplicate bool
	// LeveledUp is set when this contribution committed a level-up.
	LeveledUp bool
}

// RecordContribution applies a contribution at most once per
// (entity, idempotency key).
//
// A repeated key returns the current state unchanged with no new event. A
// new key appends ContributionAdded and, when the goal is reached,
// LevelUpCommitted plus the next GoalEstablished, then persists the snapshot.
func (e *Engine) RecordContribution(ctx context.Context, c Contribution) (ContributionResult, error) {
	id, err := ledger.NormalizeEntityID(c.EntityID)
	if err != nil {
		return ContributionResult{}, validationError(c.EntityID, err)
	}
	if err := ledger.ValidateContribution(c.AmountCents); err != nil {
		return ContributionResult{}, validationError(id, err)
	}
	source := ""
	if c.Source != "" {
		if source, err = ledger.NormalizeKey(c.Source); err != nil {
			return ContributionResult{}, validationError(id, err)
		}
	}
	key := c.IdempotencyKey
	if key != "" {
		if key, err = ledger.NormalizeKey(key); err != nil {
			return ContributionResult{}, validationError(id, err)
		}
	}

	ctx, release, err := e.acquire(ctx, id)
	if err != nil {
		return ContributionResult{}, err
	}
	defer release()

	res, err := e.recordContribution(ctx, id, key, source, c.AmountCents)
	switch {
	case err != nil:
		e.metrics.contribution(resultFailed)
	case res.Duplicate:
		e.metrics.contribution(resultDuplicate)
	default:
		e.metrics.contribution(resultApplied)
	}
	return res, err
}

func (e *Engine) recordContribution(ctx context.Context, id, key, source string, amount ledger.Cents) (ContributionResult, error) {
	o, err := e.begin(ctx, id)
	if err != nil {
		return ContributionResult{}, err
	}

	if key == "" {
		derived, err := ledger.DeriveIdempotencyKey(id, source, amount, o.now)
		if err != nil {
			return ContributionResult{}, newError(CodeInvalidArgument, id, "derive idempotency key", err)
		}
		key = derived
	}

	prior, found, err := e.events.FindDuplicate(ctx, id, key)
	if err != nil {
		return ContributionResult{}, classify("find duplicate", id, err)
	}
	if found {
		return e.duplicate(o, prior), nil
	}

	if _, err := o.decay(); err != nil {
		return ContributionResult{}, err
	}
	ev, err := o.append(ledger.EventContributionAdded, ledger.Payload{
		AmountCents:    amount,
		IdempotencyKey: key,
		Source:         source,
		Day:            o.today,
	})
	if errors.Is(err, store.ErrDuplicate) {
		// Recorded by a writer outside this engine since the check above.
		prior, found, ferr := e.events.FindDuplicate(ctx, id, key)
		if ferr != nil || !found {
			return ContributionResult{}, classify("find duplicate", id, errors.Join(err, ferr))
		}
		return e.duplicate(o, prior), nil
	}
	if err != nil {
		return ContributionResult{}, classify("append contribution", id, err)
	}

	leveled := false
	if o.snap.CanAdvance() {
		if err := o.commitLevelUp(); err != nil {
			return ContributionResult{}, err
		}
		leveled = true
	}

	if err := o.persist(); err != nil {
		return ContributionResult{}, err
	}

	e.logger.Debug("contribution recorded",
		"entity_id", id,
		"amount_cents", int64(amount),
		"seq", ev.Sequence,
		"version", o.snap.Version,
	)
	return ContributionResult{
		State:     o.state(),
		Event:     ev,
		LeveledUp: leveled,
	}, nil
}

func (e *Engine) duplicate(o *op, prior ledger.Event) ContributionResult {
	e.logger.Debug("duplicate contribution ignored",
		"entity_id", prior.EntityID,
		"idempotency_key", prior.Payload.IdempotencyKey,
		"seq", prior.Sequence,
	)
	return ContributionResult{
		State:     o.state(),
		Event:     prior,
		Duplicate: true,
	}
}
