// Command esglens is the CLI entry point: extraction, segmentation, matching
// and comparison runs from the terminal, plus the embedded results server.
package main

import (
	"fmt"
	"os"

	"github.com/esglens/esglens/internal/interfaces/cli"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
}

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
