package embedder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esglens/esglens/internal/domain/matching"
	"github.com/esglens/esglens/pkg/errors"
)

// fakeEncoder returns a deterministic vector per text and records calls.
type fakeEncoder struct {
	mu      sync.Mutex
	calls   int
	encoded []string
	dim     int
	pingErr error
	err     error
}

func newFakeEncoder() *fakeEncoder { return &fakeEncoder{dim: 4} }

func (f *fakeEncoder) vector(text string) []float32 {
	vec := make([]float32, f.dim)
	for i := 0; i < f.dim; i++ {
		vec[i] = float32(len(text)%7+i) + 1
	}
	return vec
}

func (f *fakeEncoder) Encode(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.encoded = append(f.encoded, text)
	return f.vector(text), nil
}

func (f *fakeEncoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := f.Encode(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fakeEncoder) Ping(context.Context) error { return f.pingErr }

func (f *fakeEncoder) batchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestEmbedAllPreservesOrderAndNormalizes(t *testing.T) {
	e := New(newFakeEncoder(), nil)
	texts := []string{"first paragraph", "second one", "third paragraph text"}

	vecs, err := e.EmbedAll(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))
	for i, vec := range vecs {
		assert.True(t, matching.IsNormalized(vec, 1e-5), "vector %d not normalized", i)
	}

	again, err := e.EmbedAll(context.Background(), texts)
	require.NoError(t, err)
	assert.Equal(t, vecs, again)
}

func TestEmbedAllUsesCache(t *testing.T) {
	enc := newFakeEncoder()
	cache, err := NewMemoryCache("")
	require.NoError(t, err)
	e := New(enc, cache)

	_, err = e.EmbedAll(context.Background(), []string{"alpha text", "beta text"})
	require.NoError(t, err)
	require.Len(t, enc.encoded, 2)

	_, err = e.EmbedAll(context.Background(), []string{"alpha text", "gamma text"})
	require.NoError(t, err)

	// Only the new text reached the backend.
	assert.Equal(t, []string{"alpha text", "beta text", "gamma text"}, enc.encoded)
	assert.Equal(t, 2, cache.Len())
}

func TestEmbedAllBatches(t *testing.T) {
	enc := newFakeEncoder()
	e := New(enc, nil, WithBatchSize(2))

	texts := []string{"one one one", "two two", "three", "four four four four", "five"}
	vecs, err := e.EmbedAll(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, 5)
	assert.Equal(t, 3, enc.batchCalls())
	assert.Equal(t, texts, enc.encoded)
}

func TestEmbedAllObservesCancellationBetweenBatches(t *testing.T) {
	enc := newFakeEncoder()
	e := New(enc, nil, WithBatchSize(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.EmbedAll(ctx, []string{"a text", "b text"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeRunCancelled))
	assert.Zero(t, enc.batchCalls())
}

func TestEmbedFailsWhenBackendDown(t *testing.T) {
	enc := newFakeEncoder()
	enc.pingErr = errors.New(errors.ErrCodeEmbeddingUnavailable, "connection refused")
	e := New(enc, nil)

	_, err := e.Embed(context.Background(), "any text")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeEmbeddingUnavailable))

	// Init failure is sticky.
	enc.pingErr = nil
	_, err = e.Embed(context.Background(), "any text")
	require.Error(t, err)
}

func TestEmbedAfterCloseFails(t *testing.T) {
	e := New(newFakeEncoder(), nil)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	_, err := e.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeEmbedderClosed))
}

func TestEmbedderRejectsDimensionChange(t *testing.T) {
	enc := newFakeEncoder()
	e := New(enc, nil)

	_, err := e.Embed(context.Background(), "first")
	require.NoError(t, err)
	assert.Equal(t, 4, e.Dimension())

	enc.dim = 8
	_, err = e.Embed(context.Background(), "second text of different length")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDimensionMismatch))
}

func TestHashTextIsStable(t *testing.T) {
	assert.Equal(t, HashText("same text"), HashText("same text"))
	assert.NotEqual(t, HashText("same text"), HashText("other text"))
	assert.Len(t, HashText(""), 64)
}

func TestMemoryCachePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "vectors.json")

	first, err := NewMemoryCache(path)
	require.NoError(t, err)
	first.Put("k1", []float32{1, 0, 0})
	first.Put("k2", []float32{0, 1, 0})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewMemoryCache(path)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Len())
	vec, ok := second.Get("k1")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 0, 0}, vec)
}

func TestSharedHandle(t *testing.T) {
	_, err := Shared()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelNotLoaded))

	e := New(newFakeEncoder(), nil)
	SetShared(e)
	t.Cleanup(func() { SetShared(New(newFakeEncoder(), nil)) })

	got, err := Shared()
	require.NoError(t, err)
	assert.Same(t, e, got)
}

func TestHTTPEncoderRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/embeddings":
			assert.Equal(t, http.MethodPost, r.Method)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"embedding":[3.0,4.0]}`))
		case "/api/tags":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	enc := NewHTTPEncoder(HTTPConfig{BaseURL: srv.URL, Timeout: time.Second})
	require.NoError(t, enc.Ping(context.Background()))

	vec, err := enc.Encode(context.Background(), "some text")
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 4}, vec)

	batch, err := enc.EncodeBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, batch, 2)
}

func TestHTTPEncoderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	enc := NewHTTPEncoder(HTTPConfig{BaseURL: srv.URL})

	_, err := enc.Encode(context.Background(), "text")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeEncodeFailed))

	err = enc.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeEmbeddingUnavailable))
}
