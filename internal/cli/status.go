package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/taptalk/commlog/internal/scheduler"
)

// StatusReport is the dashboard shown by 'status'.
type StatusReport struct {
	Ready      bool   `json:"ready"`
	Count      int    `json:"count"`
	Oldest     string `json:"oldest,omitempty"`
	DBPath     string `json:"dbPath"`
	ExportDir  string `json:"exportDir"`
	AutoExport string `json:"autoExport,omitempty"`
	NextExport string `json:"nextExport,omitempty"`
	Vocabulary int    `json:"activeVocabulary"`
}

// NewStatusCmd creates the 'status' command.
func NewStatusCmd(opts *RootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the interaction log dashboard",
		Long:  `Show how many interactions are stored, since when, and where the log and exports live.`,
		Example: `  taptalk status
  taptalk status --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, opts, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, opts *RootOptions, jsonOutput bool) error {
	ctx := cmd.Context()
	a, env, err := openApp(ctx, cmd, opts, true)
	if err != nil {
		return err
	}
	defer a.Close()

	report := StatusReport{
		Ready:      a.Ready(),
		AutoExport: env.cfg.Settings.AutoExportSchedule,
		Vocabulary: len(env.cfg.Vocabulary.Active),
	}
	report.DBPath, _ = env.cfg.ResolvedDBPath()
	report.ExportDir, _ = env.cfg.ResolvedExportDir()

	if report.Ready {
		summary, err := a.Summary(ctx)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to read interaction log", err)
		}
		report.Count = summary.Count
		report.Oldest = summary.Oldest
	}

	if report.AutoExport != "" {
		if next, err := scheduler.NextAfter(report.AutoExport, time.Now()); err == nil {
			report.NextExport = next.Format(time.RFC3339)
		}
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	state := "✓ ready"
	if !report.Ready {
		state = "✗ unavailable (events are not being saved)"
	}
	fmt.Fprintf(out, "Interaction log: %s\n", state)
	fmt.Fprintf(out, "  Records:    %d\n", report.Count)
	if report.Oldest != "" {
		fmt.Fprintf(out, "  Since:      %s\n", report.Oldest)
	}
	fmt.Fprintf(out, "  Database:   %s\n", report.DBPath)
	fmt.Fprintf(out, "  Exports:    %s\n", report.ExportDir)
	fmt.Fprintf(out, "  Vocabulary: %d active words\n", report.Vocabulary)
	if report.AutoExport == "" {
		fmt.Fprintln(out, "  Auto export: off")
	} else {
		fmt.Fprintf(out, "  Auto export: %s", report.AutoExport)
		if report.NextExport != "" {
			fmt.Fprintf(out, " (next %s)", report.NextExport)
		}
		fmt.Fprintln(out)
	}
	return nil
}
