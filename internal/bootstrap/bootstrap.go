// Package bootstrap wires configuration into the concrete pipeline
// components: embedding backend, vector cache, paragraph index, matcher and
// aggregator. Both the CLI and the results server build from here so the
// two entry points cannot drift apart.
package bootstrap

import (
	"context"
	"sync"

	"github.com/esglens/esglens/internal/application/analysis"
	appmatching "github.com/esglens/esglens/internal/application/matching"
	"github.com/esglens/esglens/internal/application/pipeline"
	"github.com/esglens/esglens/internal/config"
	"github.com/esglens/esglens/internal/domain/matching"
	"github.com/esglens/esglens/internal/extraction/cleaner"
	"github.com/esglens/esglens/internal/extraction/paragraphs"
	"github.com/esglens/esglens/internal/extraction/requirements"
	"github.com/esglens/esglens/internal/infrastructure/cache/redis"
	"github.com/esglens/esglens/internal/infrastructure/monitoring/logging"
	"github.com/esglens/esglens/internal/infrastructure/monitoring/prometheus"
	"github.com/esglens/esglens/internal/infrastructure/search/milvus"
	"github.com/esglens/esglens/internal/intelligence/embedder"
	"github.com/esglens/esglens/pkg/errors"
)

// Checker is a named health probe over one wired dependency. It satisfies
// the HTTP readiness handler's checker interface.
type Checker struct {
	name  string
	check func(ctx context.Context) error
}

func (c Checker) Name() string                    { return c.name }
func (c Checker) Check(ctx context.Context) error { return c.check(ctx) }

// Components aggregates every wired pipeline dependency for one process.
// Construct with Build and release with Close.
type Components struct {
	Config  *config.Config
	Logger  logging.Logger
	Metrics *prometheus.Metrics

	Embedder *embedder.Embedder
	Index    appmatching.ParagraphIndex

	// Analyzer is nil when commentary is disabled (no analysis.base_url).
	Analyzer *analysis.Service

	mu     sync.RWMutex
	policy matching.Policy

	cleaner    *cleaner.Cleaner
	extractor  *requirements.Extractor
	segmenter  *paragraphs.Segmenter
	aggregator *appmatching.Aggregator
	encoder    *embedder.HTTPEncoder

	closers []func() error
}

// Build wires cfg into live components. Remote backends (redis, milvus) are
// dialed eagerly so misconfiguration surfaces at startup, not mid-run.
func Build(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Components, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	c := &Components{
		Config:  cfg,
		Logger:  logger,
		Metrics: prometheus.New(),
		policy: matching.Policy{
			TopK:     cfg.Matcher.TopK,
			MinScore: cfg.Matcher.MinScore,
		},
	}

	c.encoder = embedder.NewHTTPEncoder(embedder.HTTPConfig{
		BaseURL: cfg.Embedder.BackendURL,
		Model:   cfg.Embedder.Model,
		Timeout: cfg.Embedder.Timeout,
	})

	cache, err := buildCache(cfg, logger)
	if err != nil {
		return nil, err
	}
	c.Embedder = embedder.New(c.encoder, cache,
		embedder.WithBatchSize(cfg.Embedder.BatchSize),
		embedder.WithMetrics(c.Metrics),
		embedder.WithLogger(logger),
	)
	c.closers = append(c.closers, c.Embedder.Close)

	c.Index, err = buildIndex(ctx, cfg, logger)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.closers = append(c.closers, func() error {
		return c.Index.Close(context.Background())
	})

	c.cleaner, err = cleaner.New(cleaner.Config{
		MinLineTokens:     cfg.Cleaner.MinLineTokens,
		RepeatRatio:       cfg.Cleaner.RepeatRatio,
		MinPagesForRepeat: cfg.Cleaner.MinPagesForRepeat,
		NoisePatterns:     cfg.Cleaner.NoisePatterns,
	}, logger)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.extractor = requirements.New(logger)
	c.segmenter = paragraphs.New(paragraphs.Config{
		MinChars: cfg.Segmenter.MinChars,
		MinWords: cfg.Segmenter.MinWords,
	}, logger)

	matcher := appmatching.NewService(c.Embedder, c.Index,
		appmatching.WithLogger(logger),
		appmatching.WithMetrics(c.Metrics),
	)
	c.aggregator = appmatching.NewAggregator(matcher,
		appmatching.WithAggregatorLogger(logger),
	)

	if cfg.Analysis.BaseURL != "" {
		c.Analyzer = analysis.New(analysis.Config{
			BaseURL: cfg.Analysis.BaseURL,
			Model:   cfg.Analysis.Model,
			Timeout: cfg.Analysis.Timeout,
		}, logger)
	}

	return c, nil
}

func buildCache(cfg *config.Config, logger logging.Logger) (embedder.VectorCache, error) {
	switch cfg.Embedder.CacheBackend {
	case "memory":
		return embedder.NewMemoryCache(cfg.Embedder.CachePath)
	case "redis":
		return redis.NewVectorCache(redis.Config{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			Prefix:       cfg.Redis.KeyPrefix + "vec:",
			TTL:          cfg.Redis.DefaultTTL,
		}, logger)
	default:
		return nil, errors.Newf(errors.ErrCodeRunConfig,
			"unknown cache backend %q", cfg.Embedder.CacheBackend)
	}
}

func buildIndex(ctx context.Context, cfg *config.Config, logger logging.Logger) (appmatching.ParagraphIndex, error) {
	switch cfg.Matcher.Index {
	case "brute":
		return appmatching.NewBruteForceIndex(), nil
	case "milvus":
		return milvus.NewIndex(ctx, milvus.Config{
			Addr:            cfg.Milvus.Addr,
			Collection:      cfg.Milvus.CollectionPrefix + "paragraphs",
			Timeout:         cfg.Milvus.SearchTimeout,
			InsertBatchSize: cfg.Milvus.InsertBatchSize,
		}, logger)
	default:
		return nil, errors.Newf(errors.ErrCodeRunConfig,
			"unknown paragraph index %q", cfg.Matcher.Index)
	}
}

// NewRunner builds a pipeline runner over the shared components. Each run
// that needs an isolated progress stream gets its own runner; the heavy
// state (embedder, index, caches) stays shared.
func (c *Components) NewRunner() *pipeline.Runner {
	opts := []pipeline.RunnerOption{pipeline.WithRunnerLogger(c.Logger)}
	if c.Analyzer != nil {
		opts = append(opts, pipeline.WithAnnotator(c.Analyzer))
	}
	return pipeline.NewRunner(c.cleaner, c.extractor, c.segmenter, c.aggregator, c.Policy(), opts...)
}

// Policy returns the current matching policy.
func (c *Components) Policy() matching.Policy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.policy
}

// Reload applies the hot-reloadable subset of a freshly parsed config: the
// matching thresholds. Runners built after the call pick up the new policy;
// in-flight runs keep the one they started with.
func (c *Components) Reload(cfg *config.Config) {
	c.mu.Lock()
	c.policy = matching.Policy{
		TopK:     cfg.Matcher.TopK,
		MinScore: cfg.Matcher.MinScore,
	}
	c.mu.Unlock()
}

// Cleaner exposes the wired cleaner for single-stage commands.
func (c *Components) Cleaner() *cleaner.Cleaner { return c.cleaner }

// Extractor exposes the wired requirement extractor.
func (c *Components) Extractor() *requirements.Extractor { return c.extractor }

// Segmenter exposes the wired paragraph segmenter.
func (c *Components) Segmenter() *paragraphs.Segmenter { return c.segmenter }

// Checkers returns the readiness probes for the wired remote dependencies.
func (c *Components) Checkers() []Checker {
	return []Checker{
		{name: "embedding-backend", check: c.encoder.Ping},
	}
}

// Close releases every wired component in reverse construction order and
// returns the first error encountered.
func (c *Components) Close() error {
	var first error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	c.closers = nil
	return first
}
