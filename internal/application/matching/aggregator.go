package matching

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/esglens/esglens/internal/domain/document"
	"github.com/esglens/esglens/internal/domain/matching"
	"github.com/esglens/esglens/internal/infrastructure/monitoring/logging"
	"github.com/esglens/esglens/pkg/errors"
)

// Aggregator runs the matcher across N reports and reshapes the per-report
// MatchSets into a requirement-by-report comparison matrix. Reports are
// independent: one report's failure becomes a failure marker in its column
// while the others proceed.
type Aggregator struct {
	matcher     *Service
	concurrency int
	logger      logging.Logger
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithConcurrency bounds how many reports are matched at once.
func WithConcurrency(n int) AggregatorOption {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithAggregatorLogger attaches a logger.
func WithAggregatorLogger(l logging.Logger) AggregatorOption {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l.Named("aggregator")
		}
	}
}

const defaultConcurrency = 4

// NewAggregator constructs an Aggregator over a matcher service.
func NewAggregator(matcher *Service, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		matcher:     matcher,
		concurrency: defaultConcurrency,
		logger:      logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// fatalBackendErr reports whether a per-report error must abort the whole
// comparison. A dead or unloaded embedding backend fails every report the
// same way, so recording it as N failure markers would mask the outage.
func fatalBackendErr(err error) bool {
	return errors.IsCode(err, errors.ErrCodeEmbeddingUnavailable) ||
		errors.IsCode(err, errors.ErrCodeModelNotLoaded) ||
		errors.IsCode(err, errors.ErrCodeEmbedderClosed)
}

// Compare matches the requirement set against every report and assembles
// the ComparisonResult. Aggregation never alters individual match lists; it
// only joins them by requirement code. Fatal outcomes are an invalid
// policy, context cancellation, and an unavailable embedding backend;
// other per-report errors are recorded as failure markers.
func (a *Aggregator) Compare(ctx context.Context, reqs *document.RequirementSet, reports []*document.ParagraphSet, policy matching.Policy) (*matching.ComparisonResult, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	type outcome struct {
		set     *matching.MatchSet
		failure *matching.ReportFailure
	}

	var mu sync.Mutex
	outcomes := make(map[string]outcome, len(reports))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for _, report := range reports {
		report := report
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			set, err := a.matcher.MatchReport(gctx, reqs, report, policy)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if errors.IsCode(err, errors.ErrCodeRunCancelled) || fatalBackendErr(err) {
					return err
				}
				a.logger.Warn("report failed, continuing with remaining reports",
					logging.String("report_id", report.ReportID),
					logging.Err(err),
				)
				outcomes[report.ReportID] = outcome{failure: &matching.ReportFailure{
					ReportID: report.ReportID,
					Code:     errors.ErrCodeReportProcessingFailure.String(),
					Message:  err.Error(),
				}}
				return nil
			}
			outcomes[report.ReportID] = outcome{set: set}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if fatalBackendErr(err) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrCodeRunCancelled, "comparison cancelled")
	}

	result := &matching.ComparisonResult{
		StandardID:       reqs.StandardID,
		RequirementCodes: reqs.Codes(),
		ReportIDs:        make([]string, len(reports)),
		Cells:            make(map[string]map[string]matching.ReportEntry, len(reqs.Items)),
	}
	for i, report := range reports {
		result.ReportIDs[i] = report.ReportID
	}

	for _, code := range result.RequirementCodes {
		row := make(map[string]matching.ReportEntry, len(reports))
		for _, reportID := range result.ReportIDs {
			o := outcomes[reportID]
			switch {
			case o.failure != nil:
				row[reportID] = matching.ReportEntry{Failure: o.failure}
			case o.set != nil:
				row[reportID] = matching.ReportEntry{Matches: o.set.Matches[code]}
			}
		}
		result.Cells[code] = row
	}
	return result, nil
}
