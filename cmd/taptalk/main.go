/*
Package main is the entry point for the taptalk CLI.

taptalk keeps the interaction log of the TapTalk AAC board: every tap,
choice and view change is recorded locally, attributed to the student or
the communication partner, and exported for therapists and researchers.

Usage:
  taptalk [command]

Available Commands:
  serve       Run the interaction log service (stdio bridge, optional HTTP API)
  log         Record one interaction
  export      Export the interaction log
  clear       Delete every logged interaction
  status      Show the interaction log dashboard
  search      Search logged interactions
  settings    View or change board settings
  version     Show version information

Examples:
  # Run for the board UI
  taptalk serve

  # Export today's session for the therapist
  taptalk export --output ~/Desktop
*/
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/taptalk/commlog/internal/cli"
)

func main() {
	// TAPTALK_* overrides may come from a .env file next to the binary's cwd.
	_ = godotenv.Load()

	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
