package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taptalk/commlog/internal/eventlog"
)

// NewLogCmd creates the 'log' command for recording one interaction.
func NewLogCmd(opts *RootOptions) *cobra.Command {
	var dataJSON string
	var partner bool

	cmd := &cobra.Command{
		Use:   "log <type>",
		Short: "Record one interaction",
		Long: `Record one interaction in the log, e.g. from a script or a
switch-access device. --data takes the JSON payload. --partner turns
partner mode on first so the event is attributed to the communication
partner.`,
		Example: `  taptalk log vocabulary_use --data '{"word":"yes","category":"core_vocab"}'
  taptalk log choice_made --data '{"choice1":"Rocks","choice2":"Ball"}'
  taptalk log modeling --partner --data '{"word":"more"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(cmd, opts, args[0], dataJSON, partner)
		},
	}

	cmd.Flags().StringVarP(&dataJSON, "data", "d", "", "event payload as a JSON object")
	cmd.Flags().BoolVarP(&partner, "partner", "p", false, "attribute the event to the partner")

	return cmd
}

func runLog(cmd *cobra.Command, opts *RootOptions, eventType, dataJSON string, partner bool) error {
	var data map[string]any
	if dataJSON != "" {
		if err := json.Unmarshal([]byte(dataJSON), &data); err != nil {
			return WrapExitError(ExitCommandError, "--data must be a JSON object", err)
		}
	}

	a, env, err := openApp(cmd.Context(), cmd, opts, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := requireReady(a, env); err != nil {
		return err
	}
	if !eventlog.IsKnownEventType(eventType) {
		env.logger.Debug("logging custom event type", "type", eventType)
	}

	if partner {
		a.TogglePartnerMode()
	}
	a.Log(eventType, data)

	if err := a.Flush(cmd.Context()); err != nil {
		return WrapExitError(ExitFailure, "failed to record event", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Logged %s\n", eventType)
	return nil
}
