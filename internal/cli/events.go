package cli

import (
	"context"
	"iter"

	"github.com/spf13/cobra"

	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/ledger"
)

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	After int64
	Limit int
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events [ENTITY]",
		Short: "List logged events",
		Long:  `List events in sequence order, for one entity or the whole log.`,
		Example: `  evolution events mech-1
  evolution events --after 100 --limit 20 --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(opts, cmd, args)
		},
	}

	cmd.Flags().Int64Var(&opts.After, "after", 0, "only events after this sequence")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of events (0 for all)")
	return cmd
}

func runEvents(opts *EventsOptions, cmd *cobra.Command, args []string) error {
	f := opts.formatter(cmd)

	return opts.withApp(cmd, f, func(ctx context.Context, a *app) error {
		var seq iter.Seq2[ledger.Event, error]
		if len(args) == 1 {
			id, err := ledger.NormalizeEntityID(args[0])
			if err != nil {
				return f.Fail("invalid entity", err)
			}
			seq = a.store.ReadEntity(ctx, id, opts.After)
		} else {
			seq = a.store.ReadAll(ctx)
		}

		view := eventsView{Events: []eventView{}}
		for ev, err := range seq {
			if err != nil {
				return f.Fail("failed to read events", err)
			}
			if ev.Sequence <= opts.After {
				continue
			}
			v, err := newEventView(ev)
			if err != nil {
				return f.Fail("failed to encode event", err)
			}
			view.Events = append(view.Events, v)
			if opts.Limit > 0 && len(view.Events) == opts.Limit {
				break
			}
		}
		return f.Success(view)
	})
}
