package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewSettingsCmd creates the 'settings' command group.
func NewSettingsCmd(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "View or change board settings",
	}

	vocab := &cobra.Command{
		Use:   "vocab",
		Short: "Manage the active vocabulary",
		Long: `Manage which words appear on the board.

The active vocabulary is chosen from the word bank and core words.
Saving it records a settings_saved event in the interaction log.`,
	}
	vocab.AddCommand(newVocabListCmd(opts))
	vocab.AddCommand(newVocabSetCmd(opts))

	cmd.AddCommand(vocab)
	return cmd
}

func newVocabListCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List available and active words",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(cmd, opts)
			if err != nil {
				return err
			}
			v := env.cfg.Vocabulary

			active := make(map[string]bool, len(v.Active))
			for _, w := range v.Active {
				active[w] = true
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Active vocabulary (%d):\n", len(v.Active))
			fmt.Fprintf(out, "  %s\n\n", strings.Join(v.Active, ", "))

			fmt.Fprintln(out, "Available words:")
			for _, w := range v.Words() {
				mark := " "
				if active[w] {
					mark = "✓"
				}
				fmt.Fprintf(out, "  %s %s\n", mark, w)
			}
			return nil
		},
	}
}

func newVocabSetCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "set <word>...",
		Short:   "Replace the active vocabulary",
		Example: `  taptalk settings vocab set Rocks Ball Yes No`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := openApp(cmd.Context(), cmd, opts, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.SaveVocabulary(args); err != nil {
				return WrapExitError(ExitCommandError, "failed to save vocabulary", err)
			}
			if err := a.Flush(cmd.Context()); err != nil {
				return WrapExitError(ExitFailure, "failed to record settings change", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Active vocabulary set to %d words\n", len(args))
			return nil
		},
	}
}
