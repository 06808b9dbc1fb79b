// Package pipeline orchestrates a full comparison run: clean the standard
// and extract its requirements, clean and segment every report, match and
// aggregate, and optionally annotate matches with LLM commentary. The
// runner publishes progress events so a driving interface can stay
// responsive while the long steps (embedding, matching) block.
package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	appmatching "github.com/esglens/esglens/internal/application/matching"
	"github.com/esglens/esglens/internal/domain/document"
	"github.com/esglens/esglens/internal/domain/matching"
	"github.com/esglens/esglens/internal/extraction/cleaner"
	"github.com/esglens/esglens/internal/extraction/paragraphs"
	"github.com/esglens/esglens/internal/extraction/requirements"
	"github.com/esglens/esglens/internal/infrastructure/monitoring/logging"
	"github.com/esglens/esglens/pkg/errors"
)

// Stage identifies where a run currently is.
type Stage string

const (
	StageExtracting Stage = "extracting"
	StageSegmenting Stage = "segmenting"
	StageMatching   Stage = "matching"
	StageAnnotating Stage = "annotating"
	StageDone       Stage = "done"
)

// Progress is one progress event. Done/Total count reports within the
// current stage; ReportID is set for per-report events.
type Progress struct {
	Stage    Stage  `json:"stage"`
	ReportID string `json:"report_id,omitempty"`
	Done     int    `json:"done"`
	Total    int    `json:"total"`
}

// Annotator is the optional commentary step; see the analysis package.
type Annotator interface {
	Annotate(ctx context.Context, reqs *document.RequirementSet, set *matching.MatchSet) int
}

// Runner wires the pipeline stages together. Construct with NewRunner; one
// Runner serves one run at a time per Run call but is itself stateless
// between runs apart from progress subscribers.
type Runner struct {
	cleaner    *cleaner.Cleaner
	extractor  *requirements.Extractor
	segmenter  *paragraphs.Segmenter
	aggregator *appmatching.Aggregator
	annotator  Annotator
	policy     matching.Policy
	logger     logging.Logger

	mu   sync.Mutex
	subs map[int]chan Progress
	next int
	last Progress
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithAnnotator enables the commentary step.
func WithAnnotator(a Annotator) RunnerOption {
	return func(r *Runner) { r.annotator = a }
}

// WithRunnerLogger attaches a logger.
func WithRunnerLogger(l logging.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l.Named("pipeline")
		}
	}
}

// NewRunner constructs a Runner.
func NewRunner(cl *cleaner.Cleaner, ex *requirements.Extractor, seg *paragraphs.Segmenter,
	agg *appmatching.Aggregator, policy matching.Policy, opts ...RunnerOption) *Runner {
	r := &Runner{
		cleaner:    cl,
		extractor:  ex,
		segmenter:  seg,
		aggregator: agg,
		policy:     policy,
		logger:     logging.NewNopLogger(),
		subs:       make(map[int]chan Progress),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe registers a progress listener. Events are delivered best-effort:
// a slow listener misses intermediate events rather than stalling the run.
// The returned func unsubscribes.
func (r *Runner) Subscribe() (<-chan Progress, func()) {
	ch := make(chan Progress, 16)
	r.mu.Lock()
	id := r.next
	r.next++
	r.subs[id] = ch
	r.mu.Unlock()

	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(ch)
		}
	}
}

// Snapshot returns the most recent progress event.
func (r *Runner) Snapshot() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func (r *Runner) publish(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = p
	for _, ch := range r.subs {
		select {
		case ch <- p:
		default:
		}
	}
}

// Run executes one full comparison. Extraction failure of the standard is
// fatal; per-report cleaning or segmentation failures become failure markers
// in the result, matching the aggregator's isolation of matcher failures.
func (r *Runner) Run(ctx context.Context, standard *document.Document, reports []*document.Document) (*matching.ComparisonResult, error) {
	if standard.Kind != document.KindStandard {
		return nil, errors.New(errors.ErrCodeDocumentInvalid, "comparison needs a standard document").
			WithDetail("kind=" + string(standard.Kind))
	}

	r.publish(Progress{Stage: StageExtracting, Total: 1})
	cleanedStd, err := r.cleaner.Clean(standard)
	if err != nil {
		return nil, err
	}
	reqs, err := r.extractor.Extract(standard.ID, cleanedStd.Blocks)
	if err != nil {
		return nil, err
	}
	r.publish(Progress{Stage: StageExtracting, Done: 1, Total: 1})

	sets, failures, err := r.segmentReports(ctx, reports)
	if err != nil {
		return nil, err
	}

	r.publish(Progress{Stage: StageMatching, Total: len(sets)})
	result, err := r.aggregator.Compare(ctx, reqs, sets, r.policy)
	if err != nil {
		return nil, err
	}
	r.publish(Progress{Stage: StageMatching, Done: len(sets), Total: len(sets)})

	mergeFailures(result, reports, failures)

	if r.annotator != nil {
		r.annotate(ctx, reqs, result)
	}

	r.publish(Progress{Stage: StageDone, Done: len(reports), Total: len(reports)})
	return result, nil
}

// segmentReports cleans and segments every report concurrently. Pure,
// deterministic work: safe to parallelize without touching the model.
func (r *Runner) segmentReports(ctx context.Context, reports []*document.Document) ([]*document.ParagraphSet, map[string]*matching.ReportFailure, error) {
	sets := make([]*document.ParagraphSet, len(reports))
	failures := make(map[string]*matching.ReportFailure)
	var mu sync.Mutex

	done := 0
	r.publish(Progress{Stage: StageSegmenting, Total: len(reports)})

	g, gctx := errgroup.WithContext(ctx)
	for i, report := range reports {
		i, report := i, report
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			set, err := r.segmentOne(report)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[report.ID] = &matching.ReportFailure{
					ReportID: report.ID,
					Code:     errors.CodeOf(err).String(),
					Message:  err.Error(),
				}
			} else {
				sets[i] = set
			}
			done++
			r.publish(Progress{Stage: StageSegmenting, Done: done, Total: len(reports)})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeRunCancelled, "segmentation cancelled")
	}

	ok := sets[:0]
	for _, s := range sets {
		if s != nil {
			ok = append(ok, s)
		}
	}
	return ok, failures, nil
}

func (r *Runner) segmentOne(report *document.Document) (*document.ParagraphSet, error) {
	cleaned, err := r.cleaner.Clean(report)
	if err != nil {
		return nil, err
	}
	return r.segmenter.Segment(report.ID, cleaned.Blocks)
}

// mergeFailures inserts pre-matching failures into the comparison result so
// every input report has a column, in input order.
func mergeFailures(result *matching.ComparisonResult, reports []*document.Document, failures map[string]*matching.ReportFailure) {
	if len(failures) == 0 {
		return
	}

	result.ReportIDs = result.ReportIDs[:0]
	for _, report := range reports {
		result.ReportIDs = append(result.ReportIDs, report.ID)
	}
	for _, code := range result.RequirementCodes {
		row := result.Cells[code]
		if row == nil {
			row = make(map[string]matching.ReportEntry)
			result.Cells[code] = row
		}
		for id, f := range failures {
			row[id] = matching.ReportEntry{Failure: f}
		}
	}
}

// annotate runs the commentary step per report over the assembled result.
// Matches live in the result cells; the per-report MatchSet view shares
// their backing arrays, so annotations land in the result directly.
func (r *Runner) annotate(ctx context.Context, reqs *document.RequirementSet, result *matching.ComparisonResult) {
	r.publish(Progress{Stage: StageAnnotating, Total: len(result.ReportIDs)})
	done := 0
	for _, reportID := range result.ReportIDs {
		set := matching.NewMatchSet(result.StandardID, reportID, r.policy)
		for _, code := range result.RequirementCodes {
			entry, ok := result.Entry(code, reportID)
			if !ok || entry.Failure != nil {
				continue
			}
			set.Matches[code] = entry.Matches
		}
		n := r.annotator.Annotate(ctx, reqs, set)
		done++
		r.publish(Progress{Stage: StageAnnotating, Done: done, Total: len(result.ReportIDs)})
		r.logger.Debug("report annotated",
			logging.String("report_id", reportID),
			logging.Int("annotated", n),
		)
	}
}
