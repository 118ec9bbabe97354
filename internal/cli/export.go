package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taptalk/commlog/internal/eventlog"
	"github.com/taptalk/commlog/internal/export"
)

// NewExportCmd creates the 'export' command.
func NewExportCmd(opts *RootOptions) *cobra.Command {
	var outputDir string
	var toStdout bool
	var format string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the interaction log",
		Long: `Export every logged interaction with summary metrics.

By default the export is written to the configured export directory
(~/.taptalk/exports) as taptalk-export-<timestamp>.json. --stdout writes
it to standard output instead, for piping into analysis tools.`,
		Example: `  taptalk export
  taptalk export --output ~/Desktop
  taptalk export --stdout --format jsonl | jq .type`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if toStdout && outputDir != "" {
				return NewExitError(ExitCommandError, "--stdout and --output are mutually exclusive")
			}
			return runExport(cmd, opts, outputDir, toStdout, format)
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "directory to write the export file to")
	cmd.Flags().BoolVar(&toStdout, "stdout", false, "write the export to stdout")
	cmd.Flags().StringVarP(&format, "format", "f", string(export.FormatJSON), "export format (json|jsonl)")

	return cmd
}

func runExport(cmd *cobra.Command, opts *RootOptions, outputDir string, toStdout bool, formatName string) error {
	format, err := export.ParseFormat(formatName)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid format", err)
	}

	ctx := cmd.Context()
	a, env, err := openApp(ctx, cmd, opts, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := requireReady(a, env); err != nil {
		return err
	}

	var sink export.Sink
	switch {
	case toStdout:
		sink = export.WriterSink{W: cmd.OutOrStdout()}
	case outputDir != "":
		sink = export.FileSink{Dir: outputDir, Clock: eventlog.SystemClock}
	default:
		fileSink, err := a.FileSink()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to resolve export directory", err)
		}
		sink = fileSink
	}

	res, err := a.Export(ctx, sink, format)
	if err != nil {
		return WrapExitError(ExitFailure, "export failed", err)
	}

	if toStdout {
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported %d records to %s\n", res.Records, res.Location)
	return nil
}
