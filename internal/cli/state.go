package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// NewStateCommand creates the state command.
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "state ENTITY",
		Short: "Show an entity's display state",
		Long: `Show the current level, progress, and power of an entity.

Decay up to today is applied first. An entity with no history is created at
level 1 with the lowest difficulty goal.`,
		Example: `  evolution state mech-1
  evolution state mech-1 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return rootOpts.withApp(cmd, f, func(ctx context.Context, a *app) error {
				st, err := a.engine.GetState(ctx, args[0])
				if err != nil {
					return f.Fail("failed to load state", err)
				}
				return f.Success(stateView{st})
			})
		},
	}
}

// NewTickCommand creates the tick command.
func NewTickCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tick ENTITY",
		Short: "Apply pending daily decay",
		Long: `Apply decay for every whole day since the last decay and persist the
result. Running it twice on the same day changes nothing.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return rootOpts.withApp(cmd, f, func(ctx context.Context, a *app) error {
				st, err := a.engine.TickDecay(ctx, args[0])
				if err != nil {
					return f.Fail("failed to apply decay", err)
				}
				return f.Success(stateView{st})
			})
		},
	}
}
