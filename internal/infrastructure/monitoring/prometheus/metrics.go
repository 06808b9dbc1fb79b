// Package prometheus exposes the pipeline's operational metrics: encode
// batches, vector cache effectiveness, and per-report matching durations.
// One Metrics value is registered per process and handed to the embedder
// and matcher as their instrumentation sink.
package prometheus

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "esglens"

// Metrics holds the pipeline's prometheus collectors. It implements the
// embedder's and matcher's Metrics interfaces.
type Metrics struct {
	registry *prometheus.Registry

	encodeDuration  prometheus.Histogram
	encodeBatchSize prometheus.Histogram
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	matchDuration     prometheus.Histogram
	matchRequirements prometheus.Histogram
	matchParagraphs   prometheus.Histogram
	reportsMatched    prometheus.Counter
}

// New registers the pipeline metrics on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		encodeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "encode_batch_duration_seconds",
			Help:      "Wall time of one serialized encode batch.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		encodeBatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "encode_batch_size",
			Help:      "Texts per encode batch.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128},
		}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vector_cache_hits_total",
			Help:      "Embedding cache hits.",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vector_cache_misses_total",
			Help:      "Embedding cache misses.",
		}),
		matchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_match_duration_seconds",
			Help:      "Wall time of matching one report against a standard.",
			Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300},
		}),
		matchRequirements: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_match_requirements",
			Help:      "Requirements per matched report.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000},
		}),
		matchParagraphs: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_match_paragraphs",
			Help:      "Paragraphs per matched report.",
			Buckets:   []float64{10, 50, 100, 250, 500, 1000, 2500, 5000},
		}),
		reportsMatched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_matched_total",
			Help:      "Reports matched since process start.",
		}),
	}
}

// ObserveEncode records one serialized encode batch.
func (m *Metrics) ObserveEncode(batch int, d time.Duration) {
	m.encodeBatchSize.Observe(float64(batch))
	m.encodeDuration.Observe(d.Seconds())
}

// CacheHit counts an embedding cache hit.
func (m *Metrics) CacheHit() { m.cacheHits.Inc() }

// CacheMiss counts an embedding cache miss.
func (m *Metrics) CacheMiss() { m.cacheMisses.Inc() }

// ObserveReportMatch records one completed report match.
func (m *Metrics) ObserveReportMatch(d time.Duration, requirements, paragraphs int) {
	m.matchDuration.Observe(d.Seconds())
	m.matchRequirements.Observe(float64(requirements))
	m.matchParagraphs.Observe(float64(paragraphs))
	m.reportsMatched.Inc()
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for additional collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
