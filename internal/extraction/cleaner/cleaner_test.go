package cleaner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esglens/esglens/internal/domain/document"
	"github.com/esglens/esglens/pkg/errors"
)

func testConfig() Config {
	return Config{
		MinLineTokens:     3,
		RepeatRatio:       0.5,
		MinPagesForRepeat: 3,
	}
}

func mustClean(t *testing.T, cfg Config, pages ...string) *Result {
	t.Helper()
	c, err := New(cfg, nil)
	require.NoError(t, err)
	res, err := c.Clean(docFromPages(t, pages...))
	require.NoError(t, err)
	return res
}

func docFromPages(t *testing.T, pages ...string) *document.Document {
	t.Helper()
	doc, err := document.NewDocument(document.KindReport, "test report", pages)
	require.NoError(t, err)
	return doc
}

func blockTexts(res *Result) []string {
	out := make([]string, len(res.Blocks))
	for i, b := range res.Blocks {
		out[i] = b.Text
	}
	return out
}

func TestCleanDropsPageNumbers(t *testing.T) {
	res := mustClean(t, testConfig(),
		"Emissions are reported per scope and category.\n\n7",
		"Page 2 of 10\nTargets were set against the 2019 baseline year.",
	)

	for _, b := range res.Blocks {
		assert.NotContains(t, b.Text, "Page 2")
		assert.NotEqual(t, "7", b.Text)
	}
	assert.Len(t, res.Blocks, 2)
}

func TestCleanDropsRepeatedHeadersAndFooters(t *testing.T) {
	header := "Acme Corp Annual Report 2023"
	body := []string{
		"Scope 1 emissions decreased by twelve percent year over year.",
		"Scope 2 emissions are reported using the market-based method.",
		"Water withdrawal is disclosed for all production facilities.",
		"Board oversight of climate topics is described in the governance chapter.",
	}
	pages := make([]string, 4)
	for i := range pages {
		pages[i] = header + "\n" + body[i] + "\nConfidential"
	}

	res := mustClean(t, testConfig(), pages...)

	require.Len(t, res.Blocks, 4)
	for i, b := range res.Blocks {
		assert.Equal(t, body[i], b.Text)
		assert.Equal(t, i, b.Page)
		assert.Equal(t, i, b.Ordinal)
	}
}

func TestCleanKeepsRepeatsOnShortDocuments(t *testing.T) {
	// Two pages is below MinPagesForRepeat: the shared line must survive.
	line := "Acme Corp Annual Report 2023"
	res := mustClean(t, testConfig(),
		line+"\nEmissions data covers all consolidated entities.",
		line+"\nTargets are validated by an external initiative.",
	)

	joined := strings.Join(blockTexts(res), "\n")
	assert.Contains(t, joined, line)
}

func TestCleanRepairsHyphenation(t *testing.T) {
	res := mustClean(t, testConfig(),
		"The company reports gross direct greenhouse gas emis-\nsions in metric tons of CO2 equivalent.",
	)

	require.Len(t, res.Blocks, 1)
	assert.Contains(t, res.Blocks[0].Text, "emissions")
	assert.NotContains(t, res.Blocks[0].Text, "emis-")
}

func TestCleanDropsIsolatedShortLines(t *testing.T) {
	res := mustClean(t, testConfig(),
		"3.2\n\nEnergy consumption within the organization is disclosed in joules.",
	)

	require.Len(t, res.Blocks, 1)
	assert.Contains(t, res.Blocks[0].Text, "Energy consumption")
}

func TestCleanAppliesNoisePatterns(t *testing.T) {
	cfg := testConfig()
	cfg.NoisePatterns = []string{`(?i)^www\.`, `(?i)all rights reserved`}

	res := mustClean(t, cfg,
		"www.example.com sustainability portal\nAll Rights Reserved by Acme Corp\nBiodiversity impacts are assessed at all operational sites.",
	)

	require.Len(t, res.Blocks, 1)
	assert.Contains(t, res.Blocks[0].Text, "Biodiversity")
}

func TestCleanRejectsInvalidNoisePattern(t *testing.T) {
	cfg := testConfig()
	cfg.NoisePatterns = []string{`([`}

	_, err := New(cfg, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestCleanRecordsEmptyPages(t *testing.T) {
	res := mustClean(t, testConfig(),
		"Waste generation is reported by composition and disposal method.",
		"\n\n12\n",
		"Supplier screening covers environmental and social criteria.",
	)

	assert.Equal(t, []int{1}, res.EmptyPages)
	require.Len(t, res.Blocks, 2)
	assert.Equal(t, 0, res.Blocks[0].Page)
	assert.Equal(t, 2, res.Blocks[1].Page)
}

func TestCleanFailsOnFullyEmptyDocument(t *testing.T) {
	c, err := New(testConfig(), nil)
	require.NoError(t, err)

	_, err = c.Clean(docFromPages(t, "\n\n", "  \n 4 \n"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeParsingFailure))
}

func TestCleanSplitsOnBlankLinesAndIndentation(t *testing.T) {
	res := mustClean(t, testConfig(),
		"The reporting boundary covers all subsidiaries.\n\nEmission factors follow national inventories.\n   Residual mixes are used where supplier data is missing.",
	)

	texts := blockTexts(res)
	require.Len(t, texts, 3)
	assert.Equal(t, "The reporting boundary covers all subsidiaries.", texts[0])
	assert.Equal(t, "Emission factors follow national inventories.", texts[1])
	assert.Equal(t, "Residual mixes are used where supplier data is missing.", texts[2])
}

func TestCleanIsIdempotent(t *testing.T) {
	header := "Acme Corp Annual Report 2023"
	pages := []string{
		header + "\nEmissions are reported per scope and per gas.\n\nOffsets are excluded from gross figures.\n14",
		header + "\nEnergy intensity is computed per unit of revenue.\n15",
		header + "\nTargets follow a science-based trajectory.\n16",
	}
	first := mustClean(t, testConfig(), pages...)

	// Rebuild pages from the cleaned output and clean again.
	rebuilt := make([]string, 0)
	var current []string
	page := first.Blocks[0].Page
	for _, b := range first.Blocks {
		if b.Page != page {
			rebuilt = append(rebuilt, strings.Join(current, "\n\n"))
			current = nil
			page = b.Page
		}
		current = append(current, b.Text)
	}
	rebuilt = append(rebuilt, strings.Join(current, "\n\n"))

	second := mustClean(t, testConfig(), rebuilt...)
	assert.Equal(t, blockTexts(first), blockTexts(second))
}
