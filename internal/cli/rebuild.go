package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// RebuildOptions holds flags for the rebuild command.
type RebuildOptions struct {
	*RootOptions
	All bool
}

// NewRebuildCommand creates the rebuild command.
func NewRebuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RebuildOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rebuild [ENTITY]",
		Short: "Rebuild snapshots from the event log",
		Long: `Discard the stored snapshot and fold the entity's full event log.

Exits 1 when any stored snapshot disagreed with the log. The snapshot is
repaired either way.`,
		Example: `  evolution rebuild mech-1
  evolution rebuild --all`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRebuild(opts, cmd, args)
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "rebuild every entity with a snapshot")
	return cmd
}

func runRebuild(opts *RebuildOptions, cmd *cobra.Command, args []string) error {
	if opts.All == (len(args) == 1) {
		return NewExitError(ExitCommandError, "specify exactly one of ENTITY or --all")
	}
	f := opts.formatter(cmd)

	return opts.withApp(cmd, f, func(ctx context.Context, a *app) error {
		ids := args
		if opts.All {
			var err error
			if ids, err = a.store.ListEntities(ctx); err != nil {
				return f.Fail("failed to list entities", err)
			}
		}

		view := rebuildView{Entities: []rebuildEntry{}}
		for _, id := range ids {
			res, err := a.engine.Rebuild(ctx, id)
			if err != nil {
				return f.Fail(fmt.Sprintf("failed to rebuild %s", id), err)
			}
			f.VerboseLog("rebuilt %s from %d events", id, res.Events)
			view.Entities = append(view.Entities, rebuildEntry{State: res.State, Events: res.Events, Drift: res.Drift})
		}
		if err := f.Success(view); err != nil {
			return err
		}

		if n := view.drifted(); n > 0 {
			exitErr := NewExitError(ExitFailure, fmt.Sprintf("%d snapshot(s) drifted from the log", n))
			exitErr.reported = true
			return exitErr
		}
		return nil
	})
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify the event log",
		Long: `Read the whole event log in order and fold every entity in memory.
Fails on the first corrupt event. Snapshots are not touched.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return rootOpts.withApp(cmd, f, func(ctx context.Context, a *app) error {
				report, err := a.engine.VerifyLog(ctx)
				if err != nil {
					return f.Fail("log verification failed", err)
				}
				return f.Success(newVerifyView(report))
			})
		},
	}
}
