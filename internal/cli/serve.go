package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/taptalk/commlog/internal/api"
	"github.com/taptalk/commlog/internal/app"
	"github.com/taptalk/commlog/internal/rpc"
	"github.com/taptalk/commlog/internal/scheduler"
)

// shutdownTimeout bounds the HTTP drain on exit.
const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the 'serve' command that runs the logging service for
// the board UI.
func NewServeCmd(opts *RootOptions) *cobra.Command {
	var httpAddr string
	var noStdio bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the interaction log service (stdio bridge)",
		Long: `Start the interaction log service.

The board UI host talks to the service over stdio with newline-delimited
JSON-RPC: log, getAll, clearAll, export, partnerMode.toggle and friends.

With --http the same log is also served as a localhost HTTP API for the
caregiver dashboard, including a live event stream.

When settings.autoExportSchedule is set, exports are written to the
export directory on that cron schedule.`,
		Example: `  # Run for the board UI
  taptalk serve

  # Also serve the dashboard API
  taptalk serve --http 127.0.0.1:8787

  # Dashboard only
  taptalk serve --http :8787 --no-stdio`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if noStdio && httpAddr == "" {
				return NewExitError(ExitCommandError, "--no-stdio requires --http")
			}
			return runServe(cmd, opts, httpAddr, !noStdio)
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", "", "also serve the HTTP API on this address (e.g. "+api.DefaultAddr+")")
	cmd.Flags().BoolVar(&noStdio, "no-stdio", false, "do not read requests from stdin")

	return cmd
}

// runServe runs the bridge until stdin closes or a signal arrives, then
// drains the logger and closes the store.
func runServe(cmd *cobra.Command, opts *RootOptions, httpAddr string, stdio bool) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, env, err := openApp(ctx, cmd, opts, false)
	if err != nil {
		return err
	}
	log := env.logger

	sched := scheduler.New(env.cfg.Settings.AutoExportSchedule, a, log)
	if err := sched.Start(); err != nil {
		a.Close()
		return WrapExitError(ExitCommandError, "failed to start auto export", err)
	}

	errChan := make(chan error, 2)

	var httpServer *api.Server
	if httpAddr != "" {
		handler := api.NewHandler(a, app.ConfirmClear, nil, log)
		httpServer = api.NewServer(httpAddr, handler, log)
		go func() {
			if err := httpServer.Start(); err != nil {
				errChan <- fmt.Errorf("http api: %w", err)
			}
		}()
	}

	if stdio {
		bridge := rpc.NewServer(a, app.ConfirmClear, cmd.OutOrStdout(), log)
		go func() {
			errChan <- bridge.Run(ctx, cmd.InOrStdin())
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case sig := <-sigChan:
		log.Info("received signal, shutting down", slog.String("signal", sig.String()))
	case runErr = <-errChan:
		// stdin closed or a server failed
	case <-ctx.Done():
	}

	cancel()
	sched.Stop()
	if httpServer != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", slog.Any("error", err))
		}
		done()
	}

	if err := a.Close(); err != nil {
		log.Warn("error during cleanup", slog.Any("error", err))
	}
	if dropped := a.Dropped(); dropped > 0 {
		log.Warn("events dropped because the queue was full", slog.Int64("dropped", dropped))
	}

	if runErr != nil {
		return WrapExitError(ExitFailure, "server error", runErr)
	}
	log.Info("shutdown complete")
	return nil
}
