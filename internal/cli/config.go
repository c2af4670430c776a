package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/config"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and manage the engine configuration",
	}

	cmd.AddCommand(newConfigShowCommand(rootOpts))
	cmd.AddCommand(newConfigValidateCommand(rootOpts))
	cmd.AddCommand(newConfigInitCommand(rootOpts))
	return cmd
}

// configView renders a configuration as YAML in text mode.
type configView struct {
	config.Config
}

func (v configView) RenderText(w io.Writer) error {
	data, err := v.Marshal()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func newConfigShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the configuration in effect",
		Long: `Print the configuration in effect for the storage root. Without a config
file this is the embedded default.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			path := rootOpts.Settings.ResolvedConfigPath()
			f.VerboseLog("config path: %s", path)

			cfg, err := config.NewProvider(path).Current()
			if err != nil {
				return f.Fail("failed to load config", err)
			}
			return f.Success(configView{cfg})
		},
	}
}

type configCheck struct {
	Path    string `json:"path"`
	Version int    `json:"version"`
	Bins    int    `json:"bins"`
}

func (c configCheck) String() string {
	return fmt.Sprintf("config ok: %s (version %d, %d bins)", c.Path, c.Version, c.Bins)
}

func newConfigValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [FILE]",
		Short: "Validate a config file",
		Long: `Check a config file against the schema and its invariants. The file
defaults to the one the storage root would use.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			path := rootOpts.Settings.ResolvedConfigPath()
			if len(args) == 1 {
				path = args[0]
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return f.Reject(ExitCommandError, ErrCodeCommand, "failed to read config", err, nil)
			}
			cfg, err := config.Parse(data)
			if err != nil {
				return f.Reject(ExitFailure, "INVALID_CONFIG", "invalid config", err,
					map[string]string{"path": path})
			}
			return f.Success(configCheck{Path: path, Version: cfg.Version, Bins: len(cfg.Bins)})
		},
	}
}

func newConfigInitCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:           "init",
		Short:         "Write the default config file",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			path := rootOpts.Settings.ResolvedConfigPath()

			_, err := os.Stat(path)
			switch {
			case err == nil && !force:
				return NewExitError(ExitCommandError, fmt.Sprintf("%s already exists (use --force to overwrite)", path))
			case err != nil && !errors.Is(err, fs.ErrNotExist):
				return WrapExitError(ExitCommandError, "failed to stat config", err)
			}

			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return WrapExitError(ExitCommandError, "failed to create config directory", err)
			}
			if err := config.WriteFileAtomic(path, config.DefaultYAML(), 0o644); err != nil {
				return WrapExitError(ExitCommandError, "failed to write config", err)
			}
			return f.Success(fmt.Sprintf("wrote %s", path))
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
