package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taptalk/commlog/internal/app"
)

// NewClearCmd creates the 'clear' command that deletes every record.
func NewClearCmd(opts *RootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every logged interaction",
		Long: `Delete every logged interaction. This cannot be undone; export first.

You are asked to type DELETE to confirm unless --yes is given.`,
		Example: `  taptalk export && taptalk clear
  taptalk clear --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClear(cmd, opts, yes)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")

	return cmd
}

func runClear(cmd *cobra.Command, opts *RootOptions, yes bool) error {
	ctx := cmd.Context()
	a, env, err := openApp(ctx, cmd, opts, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := requireReady(a, env); err != nil {
		return err
	}

	summary, err := a.Summary(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read interaction log", err)
	}

	if !yes {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "This deletes %d logged interactions.\n", summary.Count)
		fmt.Fprintf(out, "Type %s to confirm: ", app.ClearConfirmation)

		typed, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err := app.ConfirmClear(strings.TrimSpace(typed)); err != nil {
			return WrapExitError(ExitFailure, "clear cancelled", err)
		}
	}

	if err := a.ClearAll(ctx); err != nil {
		return WrapExitError(ExitFailure, "failed to clear interaction log", err)
	}
	if err := a.Flush(ctx); err != nil {
		return WrapExitError(ExitFailure, "failed to record clear", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Cleared %d interactions\n", summary.Count)
	return nil
}
