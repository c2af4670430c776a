package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewPopulationCommand creates the population command.
func NewPopulationCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "population ENTITY COUNT",
		Short: "Record a population sample",
		Long: `Record the latest population sample for an entity. The sample selects the
difficulty bin of the next goal; the current goal keeps its requirement.`,
		Example:       `  evolution population mech-1 60`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			n, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid population %q", args[1]))
			}
			return rootOpts.withApp(cmd, f, func(ctx context.Context, a *app) error {
				st, err := a.engine.UpdatePopulationSample(ctx, args[0], n)
				if err != nil {
					return f.Fail("failed to update population", err)
				}
				return f.Success(stateView{st})
			})
		},
	}
}

// NewEntityTypeCommand creates the entity-type command.
func NewEntityTypeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "entity-type ENTITY TYPE",
		Short: "Set the entity type",
		Long: `Set the entity type, which selects the decay rate. Types without a
configured rate decay at the default rate.`,
		Example:       `  evolution entity-type mech-1 heavy`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return rootOpts.withApp(cmd, f, func(ctx context.Context, a *app) error {
				st, err := a.engine.SetEntityType(ctx, args[0], args[1])
				if err != nil {
					return f.Fail("failed to set entity type", err)
				}
				return f.Success(stateView{st})
			})
		},
	}
}
