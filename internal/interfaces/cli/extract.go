package cli

import (
	"github.com/spf13/cobra"

	"github.com/esglens/esglens/internal/domain/document"
	"github.com/esglens/esglens/internal/extraction/cleaner"
	"github.com/esglens/esglens/internal/extraction/requirements"
)

func newExtractCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "extract <standard.txt>",
		Short: "Extract the requirement hierarchy from a reporting standard",
		Long: "Cleans the page text of a reporting standard and extracts its numbered\n" +
			"disclosure requirements as a hierarchy of codes (e.g. 305-1, 305-1.a,\n" +
			"305-1.a.ii). Input is plain text with form-feed page breaks, as produced\n" +
			"by pdftotext.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := cliContextFrom(cmd)
			cfg := cliCtx.Config

			doc, err := loadDocument(document.KindStandard, args[0])
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
			reqs, err := requirements.New(cliCtx.Logger).Extract(doc.ID, cleaned.Blocks)
			if err != nil {
				return err
			}

			return emitJSON(cmd.OutOrStdout(), out, reqs)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "O", "", "write JSON to file instead of stdout")
	return cmd
}
