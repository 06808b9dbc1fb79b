// Package requirements parses cleaned standard documents into ordered,
// hierarchical requirement sets. Clause numbering conventions from GRI and
// ESRS standards are recognised ("305-1", "305-1.a", "E1-6", numbered
// paragraphs, letter and roman sub-points); everything between two clause
// prefixes is continuation text of the current requirement.
package requirements

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/esglens/esglens/internal/domain/document"
	"github.com/esglens/esglens/internal/extraction/cleaner"
	"github.com/esglens/esglens/internal/infrastructure/monitoring/logging"
	"github.com/esglens/esglens/pkg/errors"
)

var (
	// rootRe matches a top-level clause code, optionally introduced by a
	// standard-specific label: "305-1", "GRI 305-1", "Disclosure 305-1",
	// "Disclosure Requirement E1-6", "ESRS E1-6".
	rootRe = regexp.MustCompile(`^(?:(?:Disclosure(?:\s+Requirement)?|GRI|ESRS)\s+)?([A-Z]{0,3}\d{1,3}-\d{1,2})(?:[.:]\s*|\s+|$)`)

	// letterRe matches a letter sub-point: "a.", "a)", "(a)".
	letterRe = regexp.MustCompile(`^\(?([a-z])[.)]\s+`)

	// romanRe matches a roman-numeral sub-sub-point: "ii.", "(iv)". A single
	// "i" is deliberately excluded; it is indistinguishable from the letter
	// sub-point "i." and letters are far more common at that position.
	romanRe = regexp.MustCompile(`^\(?(i[ivx]+|iv|ix|v|vi+|x[ivx]*)[.)]\s+`)

	// numberedRe matches a numbered paragraph: "44.", "12)". ESRS standards
	// number their disclosure paragraphs this way below the clause heading.
	numberedRe = regexp.MustCompile(`^(\d{1,3})[.)]\s+`)

	// footnoteRe matches footnote lines: a bare number directly followed by
	// lowercase prose, with no ordinal punctuation.
	footnoteRe = regexp.MustCompile(`^\d{1,3}\s+\p{Ll}`)

	// stopRe matches back-matter section headings that end the normative
	// body of a standard.
	stopRe = regexp.MustCompile(`(?i)^(glossary|appendix|annex|bibliography|abbreviations|acronyms|imprint|list of (figures|tables|abbreviations))\b`)

	dashNormalizer = strings.NewReplacer("–", "-", "—", "-")
)

// frame is one level of the extraction state machine's depth stack.
type frame struct {
	depth int
	code  string
	idx   int // position of the requirement in the result slice
}

// Extractor turns cleaned standard text into a RequirementSet. It is
// stateless across calls and safe for concurrent use; all scanning state
// lives on the stack of Extract.
type Extractor struct {
	logger logging.Logger
}

// New constructs an Extractor.
func New(logger logging.Logger) *Extractor {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Extractor{logger: logger.Named("extractor")}
}

// Extract scans the cleaned blocks of one standard document and returns its
// requirements in reading order. Extraction is deterministic: the same
// blocks always yield identical codes, ordering, and parent linkage.
//
// A repeated clause code continues the requirement it first introduced (a
// standard restating "305-1" mid-text is a cross reference, not a new
// clause). Text before the first recognised code is discarded; back-matter
// headings (glossary, appendix) end the scan once at least one requirement
// exists. Zero extracted requirements is an extraction failure.
func (e *Extractor) Extract(standardID string, blocks []cleaner.Block) (*document.RequirementSet, error) {
	s := scanner{standardID: standardID, byCode: make(map[string]int)}

scan:
	for _, b := range blocks {
		lines := b.Lines
		if len(lines) == 0 {
			lines = []string{b.Text}
		}
		for _, raw := range lines {
			raw = strings.TrimSpace(raw)
			line := dashNormalizer.Replace(raw)
			if line == "" {
				continue
			}
			if len(s.items) > 0 && stopRe.MatchString(line) {
				break scan
			}
			s.consume(line, raw, b.Page)
		}
	}

	if len(s.items) == 0 {
		return nil, errors.New(errors.ErrCodeExtractionFailure,
			"no requirements recognised in standard text").
			WithDetail("standard_id=" + standardID)
	}

	set := &document.RequirementSet{StandardID: standardID, Items: s.items}
	if err := set.Validate(); err != nil {
		return nil, err
	}

	e.logger.Debug("requirements extracted",
		logging.String("standard_id", standardID),
		logging.Int("count", len(set.Items)),
	)
	return set, nil
}

// scanner holds the in-progress extraction state: the result slice, a
// code-to-index table for merging repeated codes, and the depth stack whose
// top is the requirement currently receiving text.
type scanner struct {
	standardID string
	items      []document.Requirement
	byCode     map[string]int
	stack      []frame
}

// consume routes one cleaned line through the state machine. raw is the
// line before dash normalization, kept as the requirement's source text.
func (s *scanner) consume(line, raw string, page int) {
	if m := rootRe.FindStringSubmatch(line); m != nil {
		s.open(m[1], 0, line, raw, page)
		return
	}

	// Sub-points only make sense inside an open root clause.
	if len(s.stack) > 0 {
		if m := romanRe.FindStringSubmatch(line); m != nil && s.depthAvailable(2) {
			s.open(s.parentCode(2)+"."+m[1], 2, line, raw, page)
			return
		}
		if m := letterRe.FindStringSubmatch(line); m != nil {
			s.open(s.parentCode(1)+"."+m[1], 1, line, raw, page)
			return
		}
		if footnoteRe.MatchString(line) {
			return
		}
		if m := numberedRe.FindStringSubmatch(line); m != nil {
			s.open(s.parentCode(1)+"."+m[1], 1, line, raw, page)
			return
		}
	}

	s.appendText(line, raw)
}

// open starts (or resumes) the requirement identified by code at the given
// depth, trimming the stack to its parent level first.
func (s *scanner) open(code string, depth int, line, raw string, page int) {
	for len(s.stack) > 0 && s.stack[len(s.stack)-1].depth >= depth {
		s.stack = s.stack[:len(s.stack)-1]
	}

	if idx, ok := s.byCode[code]; ok {
		// Repeated code: resume the existing requirement.
		s.stack = append(s.stack, frame{depth: depth, code: code, idx: idx})
		s.appendText(line, raw)
		return
	}

	parentID := ""
	if len(s.stack) > 0 {
		parentID = s.items[s.stack[len(s.stack)-1].idx].ID
	}

	ordinal := len(s.items)
	s.items = append(s.items, document.Requirement{
		Segment: document.Segment{
			ID:      document.SegmentID(s.standardID, ordinal),
			Page:    page,
			Ordinal: ordinal,
			Raw:     raw,
			Text:    line,
		},
		Code:     code,
		Depth:    depth,
		ParentID: parentID,
	})
	s.byCode[code] = ordinal
	s.stack = append(s.stack, frame{depth: depth, code: code, idx: ordinal})
}

// depthAvailable reports whether a requirement at depth-1 is on the stack,
// i.e. whether a sub-sub-point has something to attach to.
func (s *scanner) depthAvailable(depth int) bool {
	for _, f := range s.stack {
		if f.depth == depth-1 {
			return true
		}
	}
	return false
}

// parentCode returns the code of the deepest stack frame shallower than
// depth. Callers guarantee the stack is non-empty.
func (s *scanner) parentCode(depth int) string {
	for i := len(s.stack) - 1; i >= 0; i-- {
		if s.stack[i].depth < depth {
			return s.stack[i].code
		}
	}
	return s.stack[len(s.stack)-1].code
}

// appendText attaches continuation text to the requirement on top of the
// stack. Text with no open requirement is discarded. Raw keeps the source
// lines separated by newlines.
func (s *scanner) appendText(line, raw string) {
	if len(s.stack) == 0 {
		return
	}
	item := &s.items[s.stack[len(s.stack)-1].idx]
	item.Text = fmt.Sprintf("%s %s", item.Text, line)
	item.Raw = item.Raw + "\n" + raw
}
