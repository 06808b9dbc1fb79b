package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/esglens/esglens/internal/bootstrap"
	"github.com/esglens/esglens/internal/domain/document"
	"github.com/esglens/esglens/internal/domain/matching"
)

func newMatchCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "match <standard.txt> <report.txt>",
		Short: "Match a single report against a reporting standard",
		Long: "Runs the pipeline for one report and prints the per-requirement match\n" +
			"lists. Equivalent to compare with a single report, but the output is the\n" +
			"flat match set rather than a one-column matrix.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := cliContextFrom(cmd)

			standard, err := loadDocument(document.KindStandard, args[0])
			if err != nil {
				return err
			}
			report, err := loadDocument(document.KindReport, args[1])
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			comps, err := bootstrap.Build(ctx, cliCtx.Config, cliCtx.Logger)
			if err != nil {
				return err
			}
			defer comps.Close()

			runner := comps.NewRunner()
			events, unsub := runner.Subscribe()
			go reportProgress(cmd.ErrOrStderr(), events)

			result, err := runner.Run(ctx, standard, []*document.Document{report})
			unsub()
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			set := matching.NewMatchSet(result.StandardID, report.ID, comps.Policy())
			for _, code := range result.RequirementCodes {
				entry, ok := result.Entry(code, report.ID)
				if !ok {
					continue
				}
				if entry.Failure != nil {
					return fmt.Errorf("report %s failed: %s (%s)",
						report.Title, entry.Failure.Message, entry.Failure.Code)
				}
				set.Matches[code] = entry.Matches
			}

			return emitJSON(cmd.OutOrStdout(), out, set)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "O", "", "write JSON to file instead of stdout")
	return cmd
}
