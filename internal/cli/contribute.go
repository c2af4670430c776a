package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/engine"
	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/ledger"
)

// ContributeOptions holds flags for the contribute command.
type ContributeOptions struct {
	*RootOptions
	Amount string
	Key    string
	Source string
}

// NewContributeCommand creates the contribute command.
func NewContributeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ContributeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "contribute ENTITY",
		Short: "Record a contribution",
		Long: `Record a contribution toward an entity's current goal.

The amount is in currency units. Digits past the cent are rounded half-up
once, so 12.345 records 12.35. A repeated --key is ignored and reported as
a duplicate. Without --key one is derived from the entity, source, amount,
and the current second.`,
		Example: `  evolution contribute mech-1 --amount 10.00 --key donation-42
  evolution contribute mech-1 --amount 2.50 --source alice`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runContribute(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Amount, "amount", "", "amount in currency units, rounded half-up to the cent (required)")
	cmd.Flags().StringVar(&opts.Key, "key", "", "idempotency key")
	cmd.Flags().StringVar(&opts.Source, "source", "", "contribution source, e.g. the donor")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func runContribute(opts *ContributeOptions, cmd *cobra.Command, entityID string) error {
	f := opts.formatter(cmd)

	amount, err := ledger.ParseCents(opts.Amount)
	if err != nil {
		return f.Reject(ExitFailure, string(engine.CodeInvalidAmount), "invalid amount", err,
			map[string]string{"amount": opts.Amount})
	}

	return opts.withApp(cmd, f, func(ctx context.Context, a *app) error {
		res, err := a.engine.RecordContribution(ctx, engine.Contribution{
			EntityID:       entityID,
			AmountCents:    amount,
			IdempotencyKey: opts.Key,
			Source:         opts.Source,
		})
		if err != nil {
			return f.Fail("failed to record contribution", err)
		}
		f.VerboseLog("event %d key %s", res.Event.Sequence, res.Event.Payload.IdempotencyKey)
		return f.Success(newContributionView(res))
	})
}
