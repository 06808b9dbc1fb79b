package embedder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/esglens/esglens/internal/domain/matching"
	"github.com/esglens/esglens/internal/infrastructure/monitoring/logging"
	"github.com/esglens/esglens/pkg/errors"
)

// Metrics receives embedding instrumentation events. The prometheus
// monitoring package provides the production implementation; the zero-value
// nop is used when metrics are disabled.
type Metrics interface {
	ObserveEncode(batch int, d time.Duration)
	CacheHit()
	CacheMiss()
}

type nopMetrics struct{}

func (nopMetrics) ObserveEncode(int, time.Duration) {}
func (nopMetrics) CacheHit()                        {}
func (nopMetrics) CacheMiss()                       {}

// Option configures an Embedder.
type Option func(*Embedder)

// WithBatchSize sets how many texts are sent to the backend per batch.
func WithBatchSize(n int) Option {
	return func(e *Embedder) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithMetrics attaches an instrumentation sink.
func WithMetrics(m Metrics) Option {
	return func(e *Embedder) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l logging.Logger) Option {
	return func(e *Embedder) {
		if l != nil {
			e.logger = l.Named("embedder")
		}
	}
}

const defaultBatchSize = 32

// Embedder is the process-wide embedding handle: one Encoder, one cache, one
// queue. Concurrent callers are admitted, but encode batches run one at a
// time because the backing model does not support parallel execution.
// Cancellation is cooperative: it is observed between batches, and an
// in-flight batch always completes.
//
// The handle is initialized lazily on first use (or explicitly via Init) and
// shut down with Close.
type Embedder struct {
	enc       Encoder
	cache     VectorCache
	batchSize int
	metrics   Metrics
	logger    logging.Logger

	initOnce sync.Once
	initErr  error

	// encodeMu serializes access to the backend model.
	encodeMu sync.Mutex

	mu     sync.Mutex
	closed bool
	dim    int
}

// New constructs an Embedder around an Encoder and a VectorCache. A nil
// cache disables caching.
func New(enc Encoder, cache VectorCache, opts ...Option) *Embedder {
	e := &Embedder{
		enc:       enc,
		cache:     cache,
		batchSize: defaultBatchSize,
		metrics:   nopMetrics{},
		logger:    logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Init verifies the backend once per handle. Subsequent calls return the
// first result. Embed and EmbedAll call Init implicitly.
func (e *Embedder) Init(ctx context.Context) error {
	e.initOnce.Do(func() {
		if err := e.enc.Ping(ctx); err != nil {
			e.initErr = errors.Wrap(err, errors.ErrCodeEmbeddingUnavailable, "embedding backend init")
			return
		}
		e.logger.Info("embedding backend ready")
	})
	return e.initErr
}

// Close marks the handle unusable and closes the cache. Safe to call more
// than once.
func (e *Embedder) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	if e.cache != nil {
		return e.cache.Close()
	}
	return nil
}

// Embed returns the normalized vector for one text unit.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedAll(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedAll returns one normalized vector per text, in input order. Cached
// texts never reach the backend; misses are encoded in serialized batches
// with cancellation checked between batches.
func (e *Embedder) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	if err := e.Init(ctx); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missIdx []int
	for i, text := range texts {
		keys[i] = HashText(text)
		if e.cache != nil {
			if vec, ok := e.cache.Get(keys[i]); ok {
				out[i] = vec
				e.metrics.CacheHit()
				continue
			}
		}
		e.metrics.CacheMiss()
		missIdx = append(missIdx, i)
	}

	for start := 0; start < len(missIdx); start += e.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeRunCancelled, "embedding cancelled between batches")
		}

		end := start + e.batchSize
		if end > len(missIdx) {
			end = len(missIdx)
		}
		batch := missIdx[start:end]
		batchTexts := make([]string, len(batch))
		for j, idx := range batch {
			batchTexts[j] = texts[idx]
		}

		vecs, err := e.encodeBatch(ctx, batchTexts)
		if err != nil {
			return nil, err
		}
		for j, idx := range batch {
			vec := matching.Normalize(vecs[j])
			if err := e.checkDim(len(vec)); err != nil {
				return nil, err
			}
			out[idx] = vec
			if e.cache != nil {
				e.cache.Put(keys[idx], vec)
			}
		}
	}

	return out, nil
}

// Dimension returns the vector dimension observed so far, 0 before the
// first encode.
func (e *Embedder) Dimension() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dim
}

// encodeBatch runs one serialized backend call.
func (e *Embedder) encodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.encodeMu.Lock()
	defer e.encodeMu.Unlock()

	start := time.Now()
	vecs, err := e.enc.EncodeBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, errors.New(errors.ErrCodeEncodeFailed,
			fmt.Sprintf("backend returned %d vectors for %d texts", len(vecs), len(texts)))
	}
	e.metrics.ObserveEncode(len(texts), time.Since(start))
	return vecs, nil
}

func (e *Embedder) checkOpen() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.New(errors.ErrCodeEmbedderClosed, "embedder is closed")
	}
	return nil
}

// checkDim pins the vector dimension to the first observed value; a backend
// that changes dimension mid-run would silently corrupt similarity scores.
func (e *Embedder) checkDim(dim int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dim == 0 {
		e.dim = dim
		return nil
	}
	if dim != e.dim {
		return errors.New(errors.ErrCodeDimensionMismatch,
			fmt.Sprintf("backend returned dimension %d, expected %d", dim, e.dim))
	}
	return nil
}

// Process-wide shared handle. The model is expensive to load relative to a
// single encode, so one handle serves the whole process; SetShared installs
// it during startup and Shared hands it to components that need vectors.
var (
	sharedMu sync.RWMutex
	shared   *Embedder
)

// SetShared installs the process-wide embedder. A nil handle is ignored.
func SetShared(e *Embedder) {
	if e == nil {
		return
	}
	sharedMu.Lock()
	defer sharedMu.Unlock()
	shared = e
}

// Shared returns the process-wide embedder, or an error when none was
// installed.
func Shared() (*Embedder, error) {
	sharedMu.RLock()
	defer sharedMu.RUnlock()
	if shared == nil {
		return nil, errors.New(errors.ErrCodeModelNotLoaded, "no shared embedder installed")
	}
	return shared, nil
}
