package engine

import (
	"context"

	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/ledger"
)

// GiftResult is the outcome of GrantMonthlyGiftIfIdle.
type GiftResult struct {
	State DisplayState
	// Granted is false when the entity still had power, or when the
	// campaign already paid out under WithGiftOncePerCampaign.
	Granted     bool
	AmountCents ledger.Cents
}

// GrantMonthlyGiftIfIdle grants a deterministic reward when the entity's
// power has decayed to zero. The amount depends only on the entity and the
// campaign, so repeated grants for the same pair pay the same.
func (e *Engine) GrantMonthlyGiftIfIdle(ctx context.Context, entityID, campaignID string) (GiftResult, error) {
	id, err := ledger.NormalizeEntityID(entityID)
	if err != nil {
		return GiftResult{}, validationError(entityID, err)
	}
	campaign, err := ledger.NormalizeKey(campaignID)
	if err != nil {
		return GiftResult{}, validationError(id, err)
	}

	ctx, release, err := e.acquire(ctx, id)
	if err != nil {
		return GiftResult{}, err
	}
	defer release()

	o, err := e.begin(ctx, id)
	if err != nil {
		return GiftResult{}, err
	}
	decayed, err := o.decay()
	if err != nil {
		return GiftResult{}, err
	}

	skip := ""
	if !o.snap.Offline() {
		skip = giftSkippedPowered
	} else if e.giftOncePerCampaign {
		_, paid, err := e.events.FindByKey(ctx, id, ledger.EventGiftGranted, campaign)
		if err != nil {
			return GiftResult{}, classify("find gift", id, err)
		}
		if paid {
			skip = giftSkippedCampaign
		}
	}
	if skip != "" {
		if decayed {
			if err := o.persist(); err != nil {
				return GiftResult{}, err
			}
		}
		e.metrics.gift(skip)
		return GiftResult{State: o.state()}, nil
	}

	units, err := ledger.GiftUnits(id, campaign, o.cfg.Gift.MinUnits, o.cfg.Gift.MaxUnits)
	if err != nil {
		return GiftResult{}, newError(CodeIntegrity, id, "gift range", err)
	}
	amount := ledger.Cents(units) * o.cfg.Gift.UnitCents

	ev, err := o.mustAppend(ledger.EventGiftGranted, ledger.Payload{
		AmountCents: amount,
		CampaignID:  campaign,
		Day:         o.today,
	})
	if err != nil {
		return GiftResult{}, err
	}
	if err := o.persist(); err != nil {
		return GiftResult{}, err
	}

	e.metrics.gift(giftGranted)
	e.logger.Info("gift granted",
		"entity_id", id,
		"campaign_id", campaign,
		"amount_cents", int64(amount),
		"seq", ev.Sequence,
	)
	return GiftResult{State: o.state(), Granted: true, AmountCents: amount}, nil
}
