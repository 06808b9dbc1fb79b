package cli

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/esglens/esglens/internal/application/pipeline"
	"github.com/esglens/esglens/internal/bootstrap"
	"github.com/esglens/esglens/internal/domain/document"
	"github.com/esglens/esglens/internal/domain/matching"
)

func newCompareCmd() *cobra.Command {
	var (
		out    string
		format string
	)

	cmd := &cobra.Command{
		Use:   "compare <standard.txt> <report.txt> [report.txt...]",
		Short: "Compare one or more reports against a reporting standard",
		Long: "Runs the full pipeline: extracts the standard's requirements, segments\n" +
			"every report, embeds and matches, and prints the requirement-by-report\n" +
			"comparison matrix. Reports that fail to parse are marked in the result\n" +
			"without aborting the run.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := cliContextFrom(cmd)

			if format != "json" && format != "summary" {
				return fmt.Errorf("invalid output format %q (must be json or summary)", format)
			}

			standard, err := loadDocument(document.KindStandard, args[0])
			if err != nil {
				return err
			}
			reports, err := loadReports(args[1:])
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

			result, err := runner.Run(ctx, standard, reports)
			unsub()
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			if format == "summary" {
				return printSummary(cmd.OutOrStdout(), result, titlesByID(reports))
			}
			return emitJSON(cmd.OutOrStdout(), out, result)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "O", "", "write JSON to file instead of stdout")
	cmd.Flags().StringVarP(&format, "output", "o", "json", "output format (json, summary)")
	return cmd
}

func reportProgress(w io.Writer, events <-chan pipeline.Progress) {
	for ev := range events {
		fmt.Fprintf(w, "\r%-11s %d/%d", ev.Stage, ev.Done, ev.Total)
	}
}

func titlesByID(reports []*document.Document) map[string]string {
	titles := make(map[string]string, len(reports))
	for _, r := range reports {
		titles[r.ID] = r.Title
	}
	return titles
}

// printSummary renders the comparison matrix as a table: one row per
// requirement, one column per report, each cell holding the top match score.
func printSummary(w io.Writer, result *matching.ComparisonResult, titles map[string]string) error {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)

	fmt.Fprint(tw, "REQUIREMENT")
	for _, id := range result.ReportIDs {
		title := titles[id]
		if title == "" {
			title = id
		}
		fmt.Fprintf(tw, "\t%s", title)
	}
	fmt.Fprintln(tw)

	for _, code := range result.RequirementCodes {
		fmt.Fprint(tw, code)
		for _, id := range result.ReportIDs {
			fmt.Fprintf(tw, "\t%s", summaryCell(result, code, id))
		}
		fmt.Fprintln(tw)
	}

	if failed := result.FailedReports(); len(failed) > 0 {
		fmt.Fprintf(tw, "\n%d report(s) failed: %v\n", len(failed), failed)
	}
	return tw.Flush()
}

func summaryCell(result *matching.ComparisonResult, code, reportID string) string {
	entry, ok := result.Entry(code, reportID)
	switch {
	case !ok:
		return "-"
	case entry.Failure != nil:
		return "FAILED"
	case len(entry.Matches) == 0:
		return "no match"
	default:
		return fmt.Sprintf("%.3f (p.%d)", entry.Matches[0].Score, entry.Matches[0].Page)
	}
}
