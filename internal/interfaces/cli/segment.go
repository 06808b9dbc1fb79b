package cli

import (
	"github.com/spf13/cobra"

	"github.com/esglens/esglens/internal/domain/document"
	"github.com/esglens/esglens/internal/extraction/cleaner"
	"github.com/esglens/esglens/internal/extraction/paragraphs"
)

func newSegmentCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "segment <report.txt>",
		Short: "Segment a sustainability report into matchable paragraphs",
		Long: "Cleans the page text of a corporate report and segments it into the\n" +
			"paragraphs the matcher ranks against requirements. Useful for tuning the\n" +
			"segmentation thresholds before a full run.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := cliContextFrom(cmd)
			cfg := cliCtx.Config

			doc, err := loadDocument(document.KindReport, args[0])
			if err != nil {
				return err
			}

			cl, err := cleaner.New(cleaner.Config{
				MinLineTokens:     cfg.Cleaner.MinLineTokens,
				RepeatRatio:       cfg.Cleaner.RepeatRatio,
				MinPagesForRepeat: cfg.Cleaner.MinPagesForRepeat,
				NoisePatterns:     cfg.Cleaner.NoisePatterns,
			}, cliCtx.Logger)
			if err != nil {
				return err
			}

			cleaned, err := cl.Clean(doc)
			if err != nil {
				return err
			}
			seg := paragraphs.New(paragraphs.Config{
				MinChars: cfg.Segmenter.MinChars,
				MinWords: cfg.Segmenter.MinWords,
			}, cliCtx.Logger)
			set, err := seg.Segment(doc.ID, cleaned.Blocks)
			if err != nil {
				return err
			}

			return emitJSON(cmd.OutOrStdout(), out, set)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "O", "", "write JSON to file instead of stdout")
	return cmd
}
