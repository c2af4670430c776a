package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/config"
	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/engine"
	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Root, ConfigPath, and Timeout override the environment when set.
	Root       string
	ConfigPath string
	Timeout    time.Duration

	// Settings is resolved before any subcommand runs.
	Settings config.Settings
	Logger   *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the evolution CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "evolution",
		Short: "Evolution - contribution-driven progression ledger",
		Long: "Records contributions toward per-entity goals, applies daily decay,\n" +
			"and keeps an append-only event log that snapshots can be rebuilt from.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.resolve(cmd.ErrOrStderr())
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Root, "root", "", "storage root (default $EVOLUTION_ROOT or ./data)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default <root>/config.yaml)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 0, "per-command timeout (default $EVOLUTION_TIMEOUT or 30s)")

	cmd.AddCommand(NewStateCommand(opts))
	cmd.AddCommand(NewTickCommand(opts))
	cmd.AddCommand(NewContributeCommand(opts))
	cmd.AddCommand(NewPopulationCommand(opts))
	cmd.AddCommand(NewEntityTypeCommand(opts))
	cmd.AddCommand(NewGiftCommand(opts))
	cmd.AddCommand(NewVoidCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))
	cmd.AddCommand(NewRebuildCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

// Execute runs the root command with os.Args and returns the process exit
// code. Errors not already reported by a command are printed to stderr.
func Execute() int {
	cmd := NewRootCommand()
	err := cmd.Execute()
	if err != nil && !Reported(err) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	}
	return GetExitCode(err)
}

// resolve merges flag overrides onto the environment settings and builds
// the logger.
func (o *RootOptions) resolve(stderr io.Writer) error {
	s, err := config.LoadSettings()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid environment", err)
	}
	if o.Root != "" {
		s.Root = o.Root
	}
	if o.ConfigPath != "" {
		s.ConfigPath = o.ConfigPath
	}
	if o.Timeout > 0 {
		s.Timeout = o.Timeout
	}
	o.Settings = s

	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return WrapExitError(ExitCommandError, "invalid log level", err)
	}
	if o.Verbose {
		level = slog.LevelDebug
	}
	o.Logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	return nil
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// context returns the command context bounded by the configured timeout.
func (o *RootOptions) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if o.Settings.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.Settings.Timeout)
}

// app is an engine bound to an open storage root.
type app struct {
	engine   *engine.Engine
	store    *store.Store
	registry *prometheus.Registry
}

func (a *app) Close() error {
	return a.store.Close()
}

// writeMetrics writes the engine metrics gathered during this command in the
// Prometheus text format.
func (a *app) writeMetrics(w io.Writer) error {
	families, err := a.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

// openApp opens the ledger under the storage root, creating the root if
// needed.
func (o *RootOptions) openApp(extra ...engine.EngineOption) (*app, error) {
	if err := os.MkdirAll(o.Settings.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	st, err := store.Open(o.Settings.DatabasePath())
	if err != nil {
		return nil, err
	}
	o.Logger.Debug("opened ledger", "path", o.Settings.DatabasePath())

	provider := config.NewProvider(o.Settings.ResolvedConfigPath())
	registry := prometheus.NewRegistry()
	opts := []engine.EngineOption{
		engine.WithLogger(o.Logger),
		engine.WithMetrics(engine.NewMetrics(registry)),
	}
	opts = append(opts, extra...)
	return &app{
		engine:   engine.New(st, st, provider, opts...),
		store:    st,
		registry: registry,
	}, nil
}

// withApp runs fn against an open app and reports failures through f. In
// verbose mode the command's engine metrics follow on the error writer.
func (o *RootOptions) withApp(cmd *cobra.Command, f *OutputFormatter, fn func(ctx context.Context, a *app) error, extra ...engine.EngineOption) error {
	a, err := o.openApp(extra...)
	if err != nil {
		return f.Fail("failed to open ledger", err)
	}
	defer a.Close()

	ctx, cancel := o.context(cmd)
	defer cancel()
	err = fn(ctx, a)
	if o.Verbose {
		if mErr := a.writeMetrics(f.GetErrWriter()); mErr != nil {
			o.Logger.Warn("metrics unavailable", "error", mErr)
		}
	}
	return err
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
