package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/engine"
)

// GiftOptions holds flags for the gift command.
type GiftOptions struct {
	*RootOptions
	Campaign        string
	OncePerCampaign bool
}

// NewGiftCommand creates the gift command.
func NewGiftCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GiftOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "gift ENTITY",
		Short: "Grant the idle gift",
		Long: `Grant a deterministic gift when the entity's power has decayed to zero.
The amount depends only on the entity and the campaign.`,
		Example:       `  evolution gift mech-1 --campaign 2026-03`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGift(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Campaign, "campaign", "", "campaign id, e.g. the month (required)")
	cmd.Flags().BoolVar(&opts.OncePerCampaign, "once-per-campaign", false, "pay each campaign at most once per entity")
	_ = cmd.MarkFlagRequired("campaign")

	return cmd
}

func runGift(opts *GiftOptions, cmd *cobra.Command, entityID string) error {
	f := opts.formatter(cmd)

	var extra []engine.EngineOption
	if opts.OncePerCampaign {
		extra = append(extra, engine.WithGiftOncePerCampaign())
	}

	return opts.withApp(cmd, f, func(ctx context.Context, a *app) error {
		res, err := a.engine.GrantMonthlyGiftIfIdle(ctx, entityID, opts.Campaign)
		if err != nil {
			return f.Fail("failed to grant gift", err)
		}
		v := giftView{State: res.State, Granted: res.Granted}
		if res.Granted {
			v.Amount = res.AmountCents.String()
		}
		return f.Success(v)
	}, extra...)
}
