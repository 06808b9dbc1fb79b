// Package cli implements the esglens command line interface: single-stage
// inspection commands (extract, segment), full comparison runs (match,
// compare), and the results server (serve).
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/esglens/esglens/internal/config"
	"github.com/esglens/esglens/internal/infrastructure/monitoring/logging"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// RootOptions holds the global CLI flags.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	Verbose    bool
}

// CLIContext carries the initialized configuration and logger through the
// command tree. ConfigPath is empty when configuration came from the
// environment only.
type CLIContext struct {
	Config     *config.Config
	ConfigPath string
	Logger     logging.Logger
}

type cliContextKey struct{}

// NewRootCommand creates the root command with global flags and all
// subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "esglens",
		Short: "Match sustainability-report passages against reporting-standard requirements",
		Long: "esglens extracts the numbered disclosure requirements of a reporting\n" +
			"standard (GRI, ESRS), segments corporate sustainability reports into\n" +
			"paragraphs, and ranks for every requirement the passages most likely to\n" +
			"address it, across one or many reports.",
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return persistentPreRun(cmd, opts)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: environment + built-in defaults)")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level override (debug, info, warn, error)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newExtractCmd(),
		newSegmentCmd(),
		newMatchCmd(),
		newCompareCmd(),
		newServeCmd(),
		newVersionCmd(),
	)

	return cmd
}

// persistentPreRun loads configuration and builds the CLI logger, then
// stashes both in the command context for subcommands.
func persistentPreRun(cmd *cobra.Command, opts *RootOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	level := cfg.Log.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	if opts.Verbose {
		level = "debug"
	}

	// CLI logs go to stderr in console format so stdout stays parseable.
	logger, err := logging.NewLogger(logging.LogConfig{
		Level:       level,
		Format:      "console",
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return err
	}

	cliCtx := &CLIContext{Config: cfg, ConfigPath: opts.ConfigPath, Logger: logger}
	cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cliCtx))
	return nil
}

func loadConfig(opts *RootOptions) (*config.Config, error) {
	if opts.ConfigPath != "" {
		return config.Load(opts.ConfigPath)
	}
	return config.LoadFromEnv()
}

// cliContextFrom extracts the CLIContext stored by persistentPreRun.
func cliContextFrom(cmd *cobra.Command) *CLIContext {
	if v, ok := cmd.Context().Value(cliContextKey{}).(*CLIContext); ok {
		return v
	}
	// Commands are only reachable through the root command, which always
	// stores a context; this fallback keeps direct test invocations safe.
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return &CLIContext{Config: cfg, Logger: logging.NewNopLogger()}
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "esglens %s\ncommit: %s\nbuilt:  %s\n",
				Version, GitCommit, BuildDate)
		},
	}
}
