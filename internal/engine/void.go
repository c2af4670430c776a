package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/ledger"
	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/store"
)

// VoidResult is the outcome of VoidContribution.
type VoidResult struct {
	State DisplayState
	// AlreadyVoided is set when the target had been voided before; nothing
	// changed.
	AlreadyVoided bool
}

// VoidContribution appends a tombstone for the contribution at seq.
//
// Voiding never lowers the level and never reduces the lifetime total. The
// amount moves into the voided total and comes off power, floored at zero.
// It comes off progress too, floored at zero, only when the contribution
// belongs to the current goal.
func (e *Engine) VoidContribution(ctx context.Context, entityID string, seq int64, reason string) (VoidResult, error) {
	id, err := ledger.NormalizeEntityID(entityID)
	if err != nil {
		return VoidResult{}, validationError(entityID, err)
	}
	if seq <= 0 {
		return VoidResult{}, newError(CodeInvalidArgument, id, fmt.Sprintf("sequence %d", seq), nil)
	}

	ctx, release, err := e.acquire(ctx, id)
	if err != nil {
		return VoidResult{}, err
	}
	defer release()

	target, err := e.events.ReadEvent(ctx, seq)
	if errors.Is(err, store.ErrNotFound) {
		return VoidResult{}, newError(CodeNotFound, id, fmt.Sprintf("no event at sequence %d", seq), err)
	}
	if err != nil {
		return VoidResult{}, classify("read void target", id, err)
	}
	if target.EntityID != id || target.Type != ledger.EventContributionAdded {
		return VoidResult{}, newError(CodeInvalidArgument, id,
			fmt.Sprintf("event %d is a %s of %q, not a contribution of this entity", seq, target.Type, target.EntityID), nil)
	}

	o, err := e.begin(ctx, id)
	if err != nil {
		return VoidResult{}, err
	}

	_, voided, err := e.events.FindByKey(ctx, id, ledger.EventContributionVoided, ledger.VoidKey(seq))
	if err != nil {
		return VoidResult{}, classify("find void", id, err)
	}
	if voided {
		return VoidResult{State: o.state(), AlreadyVoided: true}, nil
	}

	if _, err := o.decay(); err != nil {
		return VoidResult{}, err
	}
	ev, err := o.mustAppend(ledger.EventContributionVoided, ledger.Payload{
		AmountCents:    target.Payload.AmountCents,
		IdempotencyKey: target.Payload.IdempotencyKey,
		TargetSequence: seq,
		Reason:         reason,
		Day:            o.today,
	})
	if err != nil {
		return VoidResult{}, err
	}
	if err := o.persist(); err != nil {
		return VoidResult{}, err
	}

	e.metrics.void()
	e.logger.Info("contribution voided",
		"entity_id", id,
		"target_seq", seq,
		"amount_cents", int64(target.Payload.AmountCents),
		"seq", ev.Sequence,
	)
	return VoidResult{State: o.state()}, nil
}
