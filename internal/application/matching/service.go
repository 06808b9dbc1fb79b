package matching

import (
	"context"
	"time"

	"github.com/esglens/esglens/internal/domain/document"
	"github.com/esglens/esglens/internal/domain/matching"
	"github.com/esglens/esglens/internal/infrastructure/monitoring/logging"
	"github.com/esglens/esglens/internal/intelligence/embedder"
)

// Metrics receives matching instrumentation events.
type Metrics interface {
	ObserveReportMatch(d time.Duration, requirements, paragraphs int)
}

type nopMetrics struct{}

func (nopMetrics) ObserveReportMatch(time.Duration, int, int) {}

// Service matches one requirement set against one report's paragraphs. It
// owns no state beyond its collaborators and is safe for concurrent use
// across reports: the embedder serializes encode batches internally, and
// each report occupies its own slot in the index.
type Service struct {
	embedder *embedder.Embedder
	index    ParagraphIndex
	logger   logging.Logger
	metrics  Metrics
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger attaches a logger.
func WithLogger(l logging.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l.Named("matcher")
		}
	}
}

// WithMetrics attaches an instrumentation sink.
func WithMetrics(m Metrics) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewService constructs a matcher service.
func NewService(emb *embedder.Embedder, index ParagraphIndex, opts ...ServiceOption) *Service {
	s := &Service{
		embedder: emb,
		index:    index,
		logger:   logging.NewNopLogger(),
		metrics:  nopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MatchReport embeds the report's paragraphs, indexes them, and ranks every
// requirement's candidates under the given policy. Requirements that match
// nothing above threshold get an empty (not missing) entry, so callers can
// tell "nothing found" from "not attempted". The report's index slot is
// dropped before returning.
func (s *Service) MatchReport(ctx context.Context, reqs *document.RequirementSet, paras *document.ParagraphSet, policy matching.Policy) (*matching.MatchSet, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	texts := make([]string, len(paras.Items))
	for i, p := range paras.Items {
		texts[i] = p.Text
	}
	paraVecs, err := s.embedder.EmbedAll(ctx, texts)
	if err != nil {
		return nil, err
	}

	indexed := make([]IndexedParagraph, len(paras.Items))
	for i, p := range paras.Items {
		indexed[i] = IndexedParagraph{
			ID:      p.ID,
			Page:    p.Page,
			Ordinal: p.Ordinal,
			Text:    p.Text,
			Vector:  paraVecs[i],
		}
	}
	if err := s.index.Index(ctx, paras.ReportID, indexed); err != nil {
		return nil, err
	}
	defer func() {
		_ = s.index.Drop(context.WithoutCancel(ctx), paras.ReportID)
	}()

	reqTexts := make([]string, len(reqs.Items))
	for i, r := range reqs.Items {
		reqTexts[i] = r.Text
	}
	reqVecs, err := s.embedder.EmbedAll(ctx, reqTexts)
	if err != nil {
		return nil, err
	}

	set := matching.NewMatchSet(reqs.StandardID, paras.ReportID, policy)
	for i, r := range reqs.Items {
		candidates, err := s.index.Search(ctx, paras.ReportID, reqVecs[i], policy.TopK)
		if err != nil {
			return nil, err
		}
		ranked, err := matching.RankMatches(r.Code, paras.ReportID, candidates, policy)
		if err != nil {
			return nil, err
		}
		set.Matches[r.Code] = ranked
	}

	s.metrics.ObserveReportMatch(time.Since(start), len(reqs.Items), len(paras.Items))
	s.logger.Info("report matched",
		logging.String("standard_id", reqs.StandardID),
		logging.String("report_id", paras.ReportID),
		logging.Int("requirements", len(reqs.Items)),
		logging.Int("paragraphs", len(paras.Items)),
		logging.Duration("took", time.Since(start)),
	)
	return set, nil
}
