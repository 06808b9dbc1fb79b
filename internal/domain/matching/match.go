package matching

import (
	"fmt"
	"sort"

	"github.com/esglens/esglens/pkg/errors"
)

// Match is a scored association between one requirement and one paragraph in
// one report. Score is a cosine similarity in [-1, 1]; Rank is 1-based and
// dense within a (requirement, report) pair.
type Match struct {
	RequirementCode string  `json:"requirement_code"`
	ParagraphID     string  `json:"paragraph_id"`
	ParagraphText   string  `json:"paragraph_text"`
	Page            int     `json:"page"`
	Ordinal         int     `json:"ordinal"`
	ReportID        string  `json:"report_id"`
	Score           float64 `json:"score"`
	Rank            int     `json:"rank"`

	// Commentary holds free-text analysis returned by the external LLM
	// service. Stored verbatim, never interpreted.
	Commentary string `json:"commentary,omitempty"`
}

// Candidate is an unranked scored paragraph, the input to RankMatches.
type Candidate struct {
	ParagraphID   string
	ParagraphText string
	Page          int
	Ordinal       int
	Score         float64
}

// Policy holds the ranking parameters of a run. Both values are explicit
// run-level configuration; callers may override them per run.
type Policy struct {
	// TopK is the maximum number of matches kept per requirement.
	TopK int

	// MinScore drops candidates scoring below it. Range [-1, 1].
	MinScore float64
}

// Validate checks the policy is usable.
func (p Policy) Validate() error {
	if p.TopK < 1 {
		return errors.New(errors.ErrCodeThresholdInvalid,
			fmt.Sprintf("top_k must be >= 1, got %d", p.TopK))
	}
	if p.MinScore < -1 || p.MinScore > 1 {
		return errors.New(errors.ErrCodeThresholdInvalid,
			fmt.Sprintf("min_score %v is out of range [-1, 1]", p.MinScore))
	}
	return nil
}

// RankMatches applies the ranking policy to a candidate list: sort descending
// by score with ties broken by ascending paragraph ordinal, drop candidates
// below MinScore, keep at most TopK, and assign dense 1-based ranks. The
// tie-break makes ranking fully deterministic for identical inputs.
func RankMatches(requirementCode, reportID string, candidates []Candidate, policy Policy) ([]Match, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	kept := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Score >= policy.MinScore {
			kept = append(kept, c)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		return kept[i].Ordinal < kept[j].Ordinal
	})

	if len(kept) > policy.TopK {
		kept = kept[:policy.TopK]
	}

	matches := make([]Match, len(kept))
	for i, c := range kept {
		matches[i] = Match{
			RequirementCode: requirementCode,
			ParagraphID:     c.ParagraphID,
			ParagraphText:   c.ParagraphText,
			Page:            c.Page,
			Ordinal:         c.Ordinal,
			ReportID:        reportID,
			Score:           c.Score,
			Rank:            i + 1,
		}
	}
	return matches, nil
}

// MatchSet holds all matches for one (standard, report) pair: a mapping from
// requirement code to its ordered match sequence. Attempted distinguishes
// "nothing matched above threshold" (true, empty lists) from "matching could
// not be attempted" (a failure marker elsewhere).
type MatchSet struct {
	StandardID string             `json:"standard_id"`
	ReportID   string             `json:"report_id"`
	Policy     Policy             `json:"policy"`
	Matches    map[string][]Match `json:"matches"`
	Attempted  bool               `json:"attempted"`
}

// NewMatchSet constructs an empty, attempted MatchSet.
func NewMatchSet(standardID, reportID string, policy Policy) *MatchSet {
	return &MatchSet{
		StandardID: standardID,
		ReportID:   reportID,
		Policy:     policy,
		Matches:    make(map[string][]Match),
		Attempted:  true,
	}
}

// Validate checks the MatchSet invariants: ranks dense from 1, scores
// non-increasing with rank, no score below MinScore, and at most TopK
// matches per requirement.
func (s *MatchSet) Validate() error {
	for code, ms := range s.Matches {
		if len(ms) > s.Policy.TopK {
			return errors.New(errors.ErrCodeValidation,
				fmt.Sprintf("requirement %s has %d matches, top_k is %d", code, len(ms), s.Policy.TopK))
		}
		prev := 2.0
		for i, m := range ms {
			if m.Rank != i+1 {
				return errors.New(errors.ErrCodeValidation,
					fmt.Sprintf("requirement %s rank %d at position %d", code, m.Rank, i))
			}
			if m.Score > prev {
				return errors.New(errors.ErrCodeValidation,
					fmt.Sprintf("requirement %s scores increase at rank %d", code, m.Rank))
			}
			if m.Score < s.Policy.MinScore {
				return errors.New(errors.ErrCodeValidation,
					fmt.Sprintf("requirement %s score %v below min_score %v", code, m.Score, s.Policy.MinScore))
			}
			prev = m.Score
		}
	}
	return nil
}

// ReportFailure records one report that could not be processed. It appears
// in the ComparisonResult in place of that report's match lists so callers
// can distinguish a failed report from a silent gap.
type ReportFailure struct {
	ReportID string `json:"report_id"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// ReportEntry is one cell of the comparison matrix: either a match sequence
// or a failure marker, never both.
type ReportEntry struct {
	Matches []Match        `json:"matches,omitempty"`
	Failure *ReportFailure `json:"failure,omitempty"`
}

// ComparisonResult aligns matches by requirement across N reports: a mapping
// from requirement code to report ID to that report's entry. Built once by
// the aggregator and read-only afterwards.
type ComparisonResult struct {
	StandardID       string                            `json:"standard_id"`
	RequirementCodes []string                          `json:"requirement_codes"`
	ReportIDs        []string                          `json:"report_ids"`
	Cells            map[string]map[string]ReportEntry `json:"cells"`
}

// Entry returns the cell for (requirementCode, reportID) and whether it exists.
func (r *ComparisonResult) Entry(requirementCode, reportID string) (ReportEntry, bool) {
	row, ok := r.Cells[requirementCode]
	if !ok {
		return ReportEntry{}, false
	}
	e, ok := row[reportID]
	return e, ok
}

// FailedReports returns the IDs of reports recorded as failures, in the
// result's report order.
func (r *ComparisonResult) FailedReports() []string {
	failed := make(map[string]struct{})
	for _, row := range r.Cells {
		for id, e := range row {
			if e.Failure != nil {
				failed[id] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(failed))
	for _, id := range r.ReportIDs {
		if _, ok := failed[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
