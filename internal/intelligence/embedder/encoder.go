// Package embedder turns cleaned text units into L2-normalized embedding
// vectors. It wraps a remote model backend behind an Encoder interface, adds
// a content-hash vector cache, and serializes batch encode calls so a single
// model instance is never asked to encode concurrently.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/esglens/esglens/pkg/errors"
)

// Encoder produces raw (not yet normalized) embedding vectors. EncodeBatch
// returns one vector per input text, in input order.
type Encoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Ping verifies the backend is reachable and the model can serve.
	Ping(ctx context.Context) error
}

// HTTPConfig configures the HTTP encoder. Zero values fall back to the
// documented defaults.
type HTTPConfig struct {
	// BaseURL of the model server (default http://localhost:11434).
	BaseURL string

	// Model is the embedding model name (default nomic-embed-text).
	Model string

	// Timeout bounds each embedding request.
	Timeout time.Duration

	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

const (
	defaultBaseURL = "http://localhost:11434"
	defaultModel   = "nomic-embed-text"
	defaultTimeout = 60 * time.Second
)

// HTTPEncoder talks to an Ollama-compatible embedding endpoint
// (POST /api/embeddings with {model, prompt}).
type HTTPEncoder struct {
	client  *http.Client
	baseURL string
	model   string
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// NewHTTPEncoder constructs an encoder for an Ollama-compatible backend.
func NewHTTPEncoder(cfg HTTPConfig) *HTTPEncoder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPEncoder{client: client, baseURL: cfg.BaseURL, model: cfg.Model}
}

// Encode requests one embedding vector.
func (e *HTTPEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "marshal embedding request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEncodeFailed, "build embedding request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEmbeddingUnavailable, "embedding backend unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, errors.New(errors.ErrCodeEncodeFailed,
			fmt.Sprintf("embedding backend returned status %d", resp.StatusCode)).
			WithDetail(string(payload))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode embedding response")
	}
	if len(out.Embedding) == 0 {
		return nil, errors.New(errors.ErrCodeEncodeFailed, "embedding backend returned empty vector")
	}

	vec := make([]float32, len(out.Embedding))
	for i, v := range out.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

// EncodeBatch encodes each text sequentially. The backend has no native
// batch endpoint; order is preserved by construction.
func (e *HTTPEncoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Encode(ctx, text)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeEncodeFailed,
				fmt.Sprintf("encode text %d of %d", i+1, len(texts)))
		}
		vecs[i] = vec
	}
	return vecs, nil
}

// Ping checks backend liveness via the model listing endpoint.
func (e *HTTPEncoder) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/api/tags", nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeEmbeddingUnavailable, "build ping request")
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeEmbeddingUnavailable, "embedding backend unreachable")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.New(errors.ErrCodeEmbeddingUnavailable,
			fmt.Sprintf("embedding backend ping returned status %d", resp.StatusCode))
	}
	return nil
}
