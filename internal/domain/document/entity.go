// Package document defines the core entities of the matching pipeline:
// documents, their raw pages, and the segment units (requirements and
// paragraphs) produced by extraction and segmentation.
package document

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/esglens/esglens/pkg/errors"
)

// Kind distinguishes the two document roles in a run.
type Kind string

const (
	// KindStandard is a reporting standard whose clauses become Requirements.
	KindStandard Kind = "standard"

	// KindReport is a corporate report whose text becomes Paragraphs.
	KindReport Kind = "report"
)

// IsValid reports whether k is a recognised document kind.
func (k Kind) IsValid() bool {
	return k == KindStandard || k == KindReport
}

// Page is one raw page of text as delivered by the external PDF-text
// extractor. Index is zero-based.
type Page struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Document is an immutable input document: an identifier, a kind, and the
// ordered sequence of raw page texts. Construct via NewDocument; fields are
// never mutated after construction.
type Document struct {
	ID    string `json:"id"`
	Kind  Kind   `json:"kind"`
	Title string `json:"title"`
	Pages []Page `json:"pages"`
}

// NewDocument constructs a Document from ordered raw page texts. Page indexes
// are assigned from position. An empty page list is rejected; individual
// empty pages are allowed (they surface later as parsing markers).
func NewDocument(kind Kind, title string, pageTexts []string) (*Document, error) {
	if !kind.IsValid() {
		return nil, errors.New(errors.ErrCodeDocumentInvalid,
			fmt.Sprintf("unknown document kind %q", kind))
	}
	if len(pageTexts) == 0 {
		return nil, errors.New(errors.ErrCodeDocumentEmpty, "document has no pages")
	}

	pages := make([]Page, len(pageTexts))
	for i, t := range pageTexts {
		pages[i] = Page{Index: i, Text: t}
	}
	return &Document{
		ID:    uuid.NewString(),
		Kind:  kind,
		Title: title,
		Pages: pages,
	}, nil
}

// Segment is the generic unit of cleaned text. For standards a segment is a
// Requirement; for reports it is a Paragraph. IDs are stable within a
// document.
type Segment struct {
	ID      string `json:"id"`
	Page    int    `json:"page"`
	Ordinal int    `json:"ordinal"`

	// Raw is the segment's source text before stage-level normalization
	// (dash folding, line joining, fragment merging). Empty when the
	// segment was regrouped from sentences and no contiguous source span
	// exists.
	Raw string `json:"raw,omitempty"`

	// Text is the cleaned, normalized form used for embedding and display.
	Text string `json:"text"`
}

// Requirement is a discrete numbered obligation extracted from a standard.
// Code is the hierarchical clause identifier (e.g. "305-1.a"); Depth is the
// nesting level with roots at 0; ParentID is empty for root requirements.
type Requirement struct {
	Segment

	Code     string `json:"code"`
	Depth    int    `json:"depth"`
	ParentID string `json:"parent_id,omitempty"`
}

// Paragraph is a contiguous block of report text, the atomic unit for
// matching. Paragraphs carry no hierarchy; Ordinal preserves reading order.
type Paragraph struct {
	Segment
}

// RequirementSet is the ordered result of extracting one standard document.
type RequirementSet struct {
	StandardID string        `json:"standard_id"`
	Items      []Requirement `json:"items"`
}

// Validate checks the structural invariants of an extracted requirement set:
// codes unique within the standard, and every child's depth exactly one
// greater than its parent's.
func (s *RequirementSet) Validate() error {
	if len(s.Items) == 0 {
		return errors.New(errors.ErrCodeExtractionFailure, "requirement set is empty").
			WithDetail("standard_id=" + s.StandardID)
	}

	byID := make(map[string]*Requirement, len(s.Items))
	seen := make(map[string]struct{}, len(s.Items))
	for i := range s.Items {
		r := &s.Items[i]
		if r.Code == "" {
			return errors.New(errors.ErrCodeRequirementInvalid, "requirement has empty code").
				WithDetail(fmt.Sprintf("ordinal=%d", r.Ordinal))
		}
		if _, dup := seen[r.Code]; dup {
			return errors.New(errors.ErrCodeDuplicateCode, "duplicate requirement code").
				WithDetail("code=" + r.Code)
		}
		seen[r.Code] = struct{}{}
		byID[r.ID] = r
	}

	for i := range s.Items {
		r := &s.Items[i]
		if r.ParentID == "" {
			if r.Depth != 0 {
				return errors.New(errors.ErrCodeRequirementInvalid, "root requirement has non-zero depth").
					WithDetail("code=" + r.Code)
			}
			continue
		}
		parent, ok := byID[r.ParentID]
		if !ok {
			return errors.New(errors.ErrCodeRequirementInvalid, "requirement references unknown parent").
				WithDetail("code=" + r.Code)
		}
		if r.Depth != parent.Depth+1 {
			return errors.New(errors.ErrCodeRequirementInvalid,
				fmt.Sprintf("depth %d does not equal parent depth %d + 1", r.Depth, parent.Depth)).
				WithDetail("code=" + r.Code)
		}
	}
	return nil
}

// Codes returns the requirement codes in extraction order.
func (s *RequirementSet) Codes() []string {
	out := make([]string, len(s.Items))
	for i, r := range s.Items {
		out[i] = r.Code
	}
	return out
}

// ParagraphSet is the ordered result of segmenting one report document.
type ParagraphSet struct {
	ReportID string      `json:"report_id"`
	Items    []Paragraph `json:"items"`
}

// Validate checks that paragraph ordinals are strictly increasing, i.e. the
// original reading order is preserved.
func (s *ParagraphSet) Validate() error {
	last := -1
	for i := range s.Items {
		p := &s.Items[i]
		if strings.TrimSpace(p.Text) == "" {
			return errors.New(errors.ErrCodeParsingFailure, "paragraph has empty text").
				WithDetail(fmt.Sprintf("ordinal=%d", p.Ordinal))
		}
		if p.Ordinal <= last {
			return errors.New(errors.ErrCodeParsingFailure, "paragraph ordinals are not strictly increasing").
				WithDetail(fmt.Sprintf("ordinal=%d after %d", p.Ordinal, last))
		}
		last = p.Ordinal
	}
	return nil
}

// SegmentID builds a stable segment identifier from a document ID and an
// ordinal. Stable IDs let vectors and matches reference segments across the
// run without holding pointers.
func SegmentID(docID string, ordinal int) string {
	return fmt.Sprintf("%s:%d", docID, ordinal)
}
