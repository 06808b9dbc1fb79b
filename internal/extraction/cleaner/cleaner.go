// Package cleaner removes layout noise from raw per-page document text:
// repeated headers and footers, page numbers, isolated short lines, and
// configured boilerplate patterns. Its output is an ordered sequence of
// paragraph blocks with page and position metadata preserved for
// traceability.
package cleaner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/esglens/esglens/internal/domain/document"
	"github.com/esglens/esglens/internal/infrastructure/monitoring/logging"
	"github.com/esglens/esglens/pkg/errors"
)

// pageNumberRe matches lines that are page markers: bare digits, digits with
// short surrounding punctuation, or "Page N [of M]" forms.
var pageNumberRe = regexp.MustCompile(`(?i)^\s*(?:[-–—(\[]?\s*\d{1,4}\s*[-–—)\]]?|página\s+\d+|page\s+\d+(?:\s+of\s+\d+)?|seite\s+\d+(?:\s+von\s+\d+)?)\s*$`)

// Config holds the noise-filtering thresholds. All values come from run
// configuration; see internal/config for defaults.
type Config struct {
	// MinLineTokens drops blocks whose total token count falls below it.
	MinLineTokens int

	// RepeatRatio is the fraction of pages on which a normalized line must
	// appear to be classified as a repeated header/footer.
	RepeatRatio float64

	// MinPagesForRepeat disables repetition detection for documents with
	// fewer pages, where "majority of pages" is meaningless.
	MinPagesForRepeat int

	// NoisePatterns is an optional list of regular expressions; matching
	// lines are dropped as boilerplate.
	NoisePatterns []string
}

// Block is one cleaned paragraph-like unit: consecutive non-noise lines
// re-joined with hyphenation repaired. Lines preserves the constituent
// cleaned lines for consumers that need line granularity (the requirement
// extractor); Text is the joined form used for paragraph segmentation.
type Block struct {
	Page    int      `json:"page"`
	Ordinal int      `json:"ordinal"`
	Text    string   `json:"text"`
	Lines   []string `json:"lines,omitempty"`
}

// Result is the cleaned view of one document.
type Result struct {
	DocumentID string  `json:"document_id"`
	Blocks     []Block `json:"blocks"`

	// EmptyPages lists page indexes that yielded zero usable lines. Recorded
	// for diagnostics; an empty page is not an error.
	EmptyPages []int `json:"empty_pages,omitempty"`
}

// Cleaner removes layout noise from documents. It is stateless across calls
// and safe for concurrent use.
type Cleaner struct {
	cfg    Config
	noise  []*regexp.Regexp
	logger logging.Logger
}

// New constructs a Cleaner, compiling any configured noise patterns.
func New(cfg Config, logger logging.Logger) (*Cleaner, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	noise := make([]*regexp.Regexp, 0, len(cfg.NoisePatterns))
	for _, p := range cfg.NoisePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeValidation,
				fmt.Sprintf("invalid noise pattern %q", p))
		}
		noise = append(noise, re)
	}
	return &Cleaner{cfg: cfg, noise: noise, logger: logger.Named("cleaner")}, nil
}

// Clean processes the document's raw pages and returns the cleaned blocks in
// reading order. A document whose every page yields zero usable lines is a
// parsing failure; individual empty pages are recorded and skipped.
//
// Clean is idempotent: feeding its output back through produces the same
// blocks.
func (c *Cleaner) Clean(doc *document.Document) (*Result, error) {
	normalized := make([][]string, len(doc.Pages))
	for i, p := range doc.Pages {
		normalized[i] = normalizeLines(p.Text)
	}

	repeated := c.repeatedLines(normalized)

	res := &Result{DocumentID: doc.ID}
	ordinal := 0
	for i, lines := range normalized {
		blocks := c.cleanPage(doc.Pages[i].Index, lines, repeated)
		if len(blocks) == 0 {
			res.EmptyPages = append(res.EmptyPages, doc.Pages[i].Index)
			continue
		}
		for _, b := range blocks {
			b.Ordinal = ordinal
			ordinal++
			res.Blocks = append(res.Blocks, b)
		}
	}

	if len(res.Blocks) == 0 {
		return nil, errors.New(errors.ErrCodeParsingFailure, "document yielded no usable cleaned text").
			WithDetail("document_id=" + doc.ID)
	}

	c.logger.Debug("document cleaned",
		logging.String("document_id", doc.ID),
		logging.Int("blocks", len(res.Blocks)),
		logging.Int("empty_pages", len(res.EmptyPages)),
	)
	return res, nil
}

// normalizeLines splits page text into lines with normalized whitespace:
// CRLF/CR to LF, tabs to spaces, internal space runs collapsed. Leading
// indentation is reduced to a single marker space so that indentation
// changes still signal paragraph breaks during grouping.
func normalizeLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	raw := strings.Split(text, "\n")
	out := make([]string, len(raw))
	for i, line := range raw {
		line = strings.ReplaceAll(line, "\t", " ")
		indented := strings.HasPrefix(line, " ")
		line = strings.Join(strings.Fields(line), " ")
		if indented && line != "" {
			line = " " + line
		}
		out[i] = line
	}
	return out
}

// repeatedLines returns the set of normalized lines that appear on at least
// RepeatRatio of pages. Detection requires MinPagesForRepeat pages.
func (c *Cleaner) repeatedLines(pages [][]string) map[string]struct{} {
	repeated := make(map[string]struct{})
	if len(pages) < c.cfg.MinPagesForRepeat {
		return repeated
	}

	pageCount := make(map[string]int)
	for _, lines := range pages {
		seen := make(map[string]struct{})
		for _, l := range lines {
			key := strings.TrimSpace(l)
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			pageCount[key]++
		}
	}

	threshold := c.cfg.RepeatRatio * float64(len(pages))
	for line, n := range pageCount {
		if float64(n) > threshold {
			repeated[line] = struct{}{}
		}
	}
	return repeated
}

// cleanPage filters one page's normalized lines and groups the survivors
// into blocks. A blank line or a change to indented text starts a new block.
func (c *Cleaner) cleanPage(pageIndex int, lines []string, repeated map[string]struct{}) []Block {
	var blocks []Block
	var current []string

	flush := func() {
		if len(current) == 0 {
			return
		}
		text := joinLines(current)
		if tokenCount(text) >= c.cfg.MinLineTokens {
			trimmed := make([]string, len(current))
			for i, l := range current {
				trimmed[i] = strings.TrimSpace(l)
			}
			blocks = append(blocks, Block{Page: pageIndex, Text: text, Lines: trimmed})
		}
		current = nil
	}

	for _, line := range lines {
		key := strings.TrimSpace(line)
		if key == "" {
			flush()
			continue
		}
		if _, ok := repeated[key]; ok {
			continue
		}
		if pageNumberRe.MatchString(key) {
			continue
		}
		if c.isNoise(key) {
			continue
		}
		// Indented line after flush-worthy content signals a new paragraph.
		if strings.HasPrefix(line, " ") && len(current) > 0 {
			flush()
		}
		current = append(current, line)
	}
	flush()

	return blocks
}

func (c *Cleaner) isNoise(line string) bool {
	for _, re := range c.noise {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// joinLines merges the lines of one block into a single paragraph string,
// repairing words hyphenated across line breaks.
func joinLines(lines []string) string {
	var sb strings.Builder
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if i == 0 {
			sb.WriteString(line)
			continue
		}
		prev := sb.String()
		if strings.HasSuffix(prev, "-") && !strings.HasSuffix(prev, " -") {
			// De-hyphenate: "emis-" + "sions" → "emissions".
			out := prev[:len(prev)-1] + line
			sb.Reset()
			sb.WriteString(out)
			continue
		}
		sb.WriteString(" ")
		sb.WriteString(line)
	}
	return sb.String()
}

func tokenCount(s string) int {
	return len(strings.Fields(s))
}
