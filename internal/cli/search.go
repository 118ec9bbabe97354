package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taptalk/commlog/internal/search"
)

// NewSearchCmd creates the 'search' command.
func NewSearchCmd(opts *RootOptions) *cobra.Command {
	var user, eventType string
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search logged interactions",
		Long: `Search logged interactions by word, view or payload text.

Filters narrow results to one user (student or partner) or one event type.
Without a query every record matching the filters is listed.`,
		Example: `  taptalk search rocks
  taptalk search --type choice_made
  taptalk search yes --user partner --limit 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, opts, strings.Join(args, " "), search.Options{
				Limit: limit,
				User:  user,
				Type:  eventType,
			}, jsonOutput)
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "only student or partner events")
	cmd.Flags().StringVarP(&eventType, "type", "t", "", "only events of this type")
	cmd.Flags().IntVarP(&limit, "limit", "n", search.DefaultLimit, "maximum results")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}

func runSearch(cmd *cobra.Command, opts *RootOptions, query string, searchOpts search.Options, jsonOutput bool) error {
	ctx := cmd.Context()
	a, env, err := openApp(ctx, cmd, opts, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := requireReady(a, env); err != nil {
		return err
	}

	hits, err := a.Search(ctx, query, searchOpts)
	if err != nil {
		return WrapExitError(ExitFailure, "search failed", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		if hits == nil {
			hits = []search.Hit{}
		}
		return json.NewEncoder(out).Encode(hits)
	}

	if len(hits) == 0 {
		fmt.Fprintln(out, "No matching interactions.")
		return nil
	}

	fmt.Fprintf(out, "Found %d interactions:\n\n", len(hits))
	for _, hit := range hits {
		fmt.Fprintf(out, "  #%-6d %s  %-20s %s\n", hit.ID, hit.Timestamp, hit.Type, hit.User)
	}
	return nil
}
