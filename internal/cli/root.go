/*
Package cli implements the taptalk commands.

Every command loads ~/.taptalk/config.json (creating it on first run),
applies TAPTALK_* environment overrides and opens the interaction log
through an app.App. Logs go to stderr; stdout carries command output.
*/
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/taptalk/commlog/internal/app"
	"github.com/taptalk/commlog/internal/config"
	"github.com/taptalk/commlog/internal/logging"
	"github.com/taptalk/commlog/internal/storage"
	"github.com/taptalk/commlog/internal/version"
)

// RootOptions holds the global flags.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	// Ephemeral keeps the log in memory for this run only.
	Ephemeral bool
}

// NewRootCmd creates the taptalk command tree.
func NewRootCmd() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "taptalk",
		Short: "Interaction log for the TapTalk AAC board",
		Long: `taptalk records every interaction on the TapTalk AAC board in a local,
append-only log, attributes each event to the student or the communication
partner, and exports the log with summary metrics for therapists and
researchers.`,
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	AddGlobalFlags(cmd, opts)

	cmd.AddCommand(NewServeCmd(opts))
	cmd.AddCommand(NewLogCmd(opts))
	cmd.AddCommand(NewExportCmd(opts))
	cmd.AddCommand(NewClearCmd(opts))
	cmd.AddCommand(NewStatusCmd(opts))
	cmd.AddCommand(NewSearchCmd(opts))
	cmd.AddCommand(NewSettingsCmd(opts))
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// AddGlobalFlags registers the global flags on the root command.
func AddGlobalFlags(cmd *cobra.Command, opts *RootOptions) {
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default ~/.taptalk/config.json)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().BoolVar(&opts.Ephemeral, "ephemeral", false, "keep the log in memory, nothing is written to disk")
}

// configPath returns the --config value or the default path.
func (o *RootOptions) configPath() (string, error) {
	if o != nil && o.ConfigPath != "" {
		return o.ConfigPath, nil
	}
	return config.GetDefaultConfigPath()
}

// environment is what every command needs before touching the log.
type environment struct {
	cfg        *config.Config
	configPath string
	logger     *slog.Logger
}

// loadEnvironment reads the config file and environment overrides and builds
// the logger.
func loadEnvironment(cmd *cobra.Command, opts *RootOptions) (*environment, error) {
	path, err := opts.configPath()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to get config path", err)
	}

	cfg, err := config.LoadOrCreate(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	overrides, err := config.ParseEnv()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid environment", err)
	}
	overrides.Apply(cfg)

	verbose := opts != nil && opts.Verbose
	logger, err := logging.New(cmd.ErrOrStderr(), logging.Options{
		Level:   overrides.LogLevel,
		Format:  overrides.LogFormat,
		Verbose: verbose,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid logging settings", err)
	}

	return &environment{cfg: cfg, configPath: path, logger: logger}, nil
}

// openApp loads the environment and starts an App. Passive apps do not
// open a new session in the log.
func openApp(ctx context.Context, cmd *cobra.Command, opts *RootOptions, passive bool) (*app.App, *environment, error) {
	env, err := loadEnvironment(cmd, opts)
	if err != nil {
		return nil, nil, err
	}

	appOpts := app.Options{
		ConfigPath: env.configPath,
		Logger:     env.logger,
		Passive:    passive,
	}
	if opts != nil && opts.Ephemeral {
		appOpts.Store = storage.NewMemory()
	}

	a, err := app.New(env.cfg, appOpts)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to create app", err)
	}
	if err := a.Start(ctx); err != nil {
		a.Close()
		return nil, nil, WrapExitError(ExitCommandError, "failed to start", err)
	}
	return a, env, nil
}

// requireReady fails commands that make no sense without a working store.
func requireReady(a *app.App, env *environment) error {
	if a.Ready() {
		return nil
	}
	dbPath, _ := env.cfg.ResolvedDBPath()
	return NewExitError(ExitCommandError, fmt.Sprintf("interaction log unavailable at %s", dbPath))
}
