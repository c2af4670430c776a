package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewVoidCommand creates the void command.
func NewVoidCommand(rootOpts *RootOptions) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "void ENTITY SEQUENCE",
		Short: "Void a recorded contribution",
		Long: `Append a tombstone for the contribution at SEQUENCE. The amount comes off
power, and off progress when it belongs to the current goal. The level and
the lifetime total never go down.`,
		Example:       `  evolution void mech-1 3 --reason "refunded"`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			seq, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid sequence %q", args[1]))
			}
			return rootOpts.withApp(cmd, f, func(ctx context.Context, a *app) error {
				res, err := a.engine.VoidContribution(ctx, args[0], seq, reason)
				if err != nil {
					return f.Fail("failed to void contribution", err)
				}
				return f.Success(voidView{State: res.State, AlreadyVoided: res.AlreadyVoided})
			})
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded with the tombstone")
	return cmd
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "reset ENTITY",
		Short: "Reset an entity to level 1",
		Long: `Return an entity to level 1 with a fresh goal. History stays in the log and
the lifetime total is kept.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return rootOpts.withApp(cmd, f, func(ctx context.Context, a *app) error {
				st, err := a.engine.Reset(ctx, args[0], reason)
				if err != nil {
					return f.Fail("failed to reset", err)
				}
				return f.Success(stateView{st})
			})
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded with the reset")
	return cmd
}
