// Package paragraphs splits cleaned report text into ordered paragraph
// units. Short fragments are merged into the following paragraph so that
// headings and list stubs do not become spurious match candidates; documents
// whose layout produced no usable paragraph breaks fall back to sentence
// grouping.
package paragraphs

import (
	"regexp"
	"strings"

	"github.com/esglens/esglens/internal/domain/document"
	"github.com/esglens/esglens/internal/extraction/cleaner"
	"github.com/esglens/esglens/internal/infrastructure/monitoring/logging"
	"github.com/esglens/esglens/pkg/errors"
)

// sentenceEndRe finds sentence boundaries: terminal punctuation followed by
// whitespace and an upper-case or digit sentence opener.
var sentenceEndRe = regexp.MustCompile(`([.!?])\s+(\p{Lu}|\d)`)

// Config holds the segmentation thresholds; see internal/config for
// defaults.
type Config struct {
	// MinChars is the length below which a fragment is merged into the
	// following paragraph instead of standing alone.
	MinChars int

	// MinWords drops paragraphs that remain below this word count after
	// merging. Headings and table residue rarely exceed it.
	MinWords int
}

// Segmenter turns cleaned report blocks into a ParagraphSet. Stateless and
// safe for concurrent use.
type Segmenter struct {
	cfg    Config
	logger logging.Logger
}

// New constructs a Segmenter.
func New(cfg Config, logger logging.Logger) *Segmenter {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Segmenter{cfg: cfg, logger: logger.Named("segmenter")}
}

// Segment produces the report's paragraphs in reading order with
// monotonically increasing ordinals. If block-based segmentation yields
// fewer than two paragraphs (single-block extractions are common with
// layout-less PDF text), the text is re-segmented on sentence boundaries.
// A report with no usable paragraphs at all is a parsing failure.
func (s *Segmenter) Segment(reportID string, blocks []cleaner.Block) (*document.ParagraphSet, error) {
	paras := s.fromBlocks(reportID, blocks)
	if len(paras) < 2 {
		if sentences := s.fromSentences(reportID, blocks); len(sentences) > len(paras) {
			s.logger.Debug("falling back to sentence segmentation",
				logging.String("report_id", reportID),
				logging.Int("block_paragraphs", len(paras)),
				logging.Int("sentence_paragraphs", len(sentences)),
			)
			paras = sentences
		}
	}

	if len(paras) == 0 {
		return nil, errors.New(errors.ErrCodeParsingFailure, "report yielded no paragraphs").
			WithDetail("report_id=" + reportID)
	}

	set := &document.ParagraphSet{ReportID: reportID, Items: paras}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

// fromBlocks maps cleaned blocks to paragraphs, merging fragments shorter
// than MinChars into their successor and dropping leftovers below MinWords.
// Raw keeps the constituent block texts separated by newlines.
func (s *Segmenter) fromBlocks(reportID string, blocks []cleaner.Block) []document.Paragraph {
	var paras []document.Paragraph
	carry := ""
	carryRaw := ""
	carryPage := 0

	emit := func(text, raw string, page int) {
		if len(strings.Fields(text)) < s.cfg.MinWords {
			return
		}
		ordinal := len(paras)
		paras = append(paras, document.Paragraph{Segment: document.Segment{
			ID:      document.SegmentID(reportID, ordinal),
			Page:    page,
			Ordinal: ordinal,
			Raw:     raw,
			Text:    text,
		}})
	}

	for _, b := range blocks {
		text := strings.TrimSpace(b.Text)
		if text == "" {
			continue
		}
		raw := text
		page := b.Page
		if carry != "" {
			text = carry + " " + text
			raw = carryRaw + "\n" + raw
			page = carryPage
			carry = ""
		}
		if len(text) < s.cfg.MinChars {
			carry = text
			carryRaw = raw
			carryPage = page
			continue
		}
		emit(text, raw, page)
	}
	// A trailing short fragment has no successor; emit it if it stands on
	// its own, MinWords decides.
	if carry != "" {
		emit(carry, carryRaw, carryPage)
	}
	return paras
}

// fromSentences re-segments the concatenated text on sentence boundaries,
// accumulating sentences until both thresholds are met. Each paragraph is
// stamped with the page of the block its first sentence starts on.
func (s *Segmenter) fromSentences(reportID string, blocks []cleaner.Block) []document.Paragraph {
	var sb strings.Builder
	var starts []int
	var pages []int
	for i, b := range blocks {
		if i > 0 {
			sb.WriteString(" ")
		}
		starts = append(starts, sb.Len())
		pages = append(pages, b.Page)
		sb.WriteString(strings.TrimSpace(b.Text))
	}
	text := sb.String()

	// pageAt maps a byte offset back to the page of the block it fell in.
	pageAt := func(off int) int {
		page := 0
		for i, start := range starts {
			if start > off {
				break
			}
			page = pages[i]
		}
		return page
	}

	sentences := splitSentences(text)

	var paras []document.Paragraph
	var acc []string
	accLen := 0
	accPage := 0
	flush := func() {
		if len(acc) == 0 {
			return
		}
		joined := strings.Join(acc, " ")
		acc = acc[:0]
		accLen = 0
		if len(strings.Fields(joined)) < s.cfg.MinWords {
			return
		}
		ordinal := len(paras)
		paras = append(paras, document.Paragraph{Segment: document.Segment{
			ID:      document.SegmentID(reportID, ordinal),
			Page:    accPage,
			Ordinal: ordinal,
			Text:    joined,
		}})
	}

	for _, sent := range sentences {
		if len(acc) == 0 {
			accPage = pageAt(sent.start)
		}
		acc = append(acc, sent.text)
		accLen += len(sent.text)
		if accLen >= s.cfg.MinChars && len(strings.Fields(strings.Join(acc, " "))) >= s.cfg.MinWords {
			flush()
		}
	}
	flush()
	return paras
}

// sentenceSpan is one sentence and the byte offset it starts at in the
// source text.
type sentenceSpan struct {
	text  string
	start int
}

// splitSentences cuts text at terminal punctuation followed by a sentence
// opener. The opener stays with the following sentence.
func splitSentences(text string) []sentenceSpan {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var out []sentenceSpan
	start := 0
	for _, loc := range sentenceEndRe.FindAllStringSubmatchIndex(text, -1) {
		// loc[3] is the end of the terminal punctuation group; the opener
		// group begins at loc[4].
		out = append(out, sentenceSpan{text: strings.TrimSpace(text[start:loc[3]]), start: start})
		start = loc[4]
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		out = append(out, sentenceSpan{text: rest, start: start})
	}
	return out
}
