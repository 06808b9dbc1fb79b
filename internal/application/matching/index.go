// Package matching provides the application services that turn extracted
// requirements and segmented paragraphs into ranked match results: a
// substitutable paragraph index, the per-report matcher, and the
// multi-report aggregator.
package matching

import (
	"context"
	"sort"
	"sync"

	"github.com/esglens/esglens/internal/domain/matching"
	"github.com/esglens/esglens/pkg/errors"
)

// IndexedParagraph is one paragraph prepared for similarity search: its
// stable ID, reading-order metadata, text, and normalized vector.
type IndexedParagraph struct {
	ID      string
	Page    int
	Ordinal int
	Text    string
	Vector  []float32
}

// ParagraphIndex answers nearest-paragraph queries for one or more reports.
// The default implementation is an exhaustive in-memory scan, which is
// exact and fast enough at the scale of one report; an approximate
// nearest-neighbor backend can be substituted without changing the Match
// contract, as long as Search returns candidates sorted by descending score
// with ties broken by ascending ordinal.
type ParagraphIndex interface {
	// Index registers the report's paragraphs, replacing any previous
	// paragraphs for the same report.
	Index(ctx context.Context, reportID string, paras []IndexedParagraph) error

	// Search returns up to limit candidates for the query vector.
	Search(ctx context.Context, reportID string, vector []float32, limit int) ([]matching.Candidate, error)

	// Drop discards the report's paragraphs.
	Drop(ctx context.Context, reportID string) error

	// Close releases backend resources.
	Close(ctx context.Context) error
}

// BruteForceIndex is the exact in-memory ParagraphIndex: a dot product
// against every paragraph vector of the report. Vectors are normalized
// upstream, so the dot product is the cosine similarity.
type BruteForceIndex struct {
	mu      sync.RWMutex
	reports map[string][]IndexedParagraph
}

// NewBruteForceIndex constructs an empty index.
func NewBruteForceIndex() *BruteForceIndex {
	return &BruteForceIndex{reports: make(map[string][]IndexedParagraph)}
}

// Index stores the paragraphs for reportID.
func (x *BruteForceIndex) Index(_ context.Context, reportID string, paras []IndexedParagraph) error {
	cp := make([]IndexedParagraph, len(paras))
	copy(cp, paras)
	x.mu.Lock()
	defer x.mu.Unlock()
	x.reports[reportID] = cp
	return nil
}

// Search scores every paragraph of the report against the query vector.
func (x *BruteForceIndex) Search(_ context.Context, reportID string, vector []float32, limit int) ([]matching.Candidate, error) {
	x.mu.RLock()
	paras, ok := x.reports[reportID]
	x.mu.RUnlock()
	if !ok {
		return nil, errors.New(errors.ErrCodeIndexUnavailable, "report not indexed").
			WithDetail("report_id=" + reportID)
	}

	candidates := make([]matching.Candidate, 0, len(paras))
	for _, p := range paras {
		score, err := matching.Dot(vector, p.Vector)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, matching.Candidate{
			ParagraphID:   p.ID,
			ParagraphText: p.Text,
			Page:          p.Page,
			Ordinal:       p.Ordinal,
			Score:         score,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Ordinal < candidates[j].Ordinal
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// Drop removes the report from the index.
func (x *BruteForceIndex) Drop(_ context.Context, reportID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.reports, reportID)
	return nil
}

// Close is a no-op for the in-memory index.
func (x *BruteForceIndex) Close(context.Context) error { return nil }
