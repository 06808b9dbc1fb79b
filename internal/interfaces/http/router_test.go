package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esglens/esglens/internal/application/pipeline"
	"github.com/esglens/esglens/internal/domain/document"
	"github.com/esglens/esglens/internal/domain/matching"
	"github.com/esglens/esglens/internal/interfaces/http/handlers"
)

type noopPipeline struct{}

func (noopPipeline) Run(_ context.Context, _ *document.Document, _ []*document.Document) (*matching.ComparisonResult, error) {
	return &matching.ComparisonResult{Cells: map[string]map[string]matching.ReportEntry{}}, nil
}

func (noopPipeline) Subscribe() (<-chan pipeline.Progress, func()) {
	ch := make(chan pipeline.Progress)
	close(ch)
	return ch, func() {}
}

func testRouterConfig() RouterConfig {
	return RouterConfig{
		Factory: func() handlers.Pipeline { return noopPipeline{} },
		Version: "test",
		Mode:    "test",
	}
}

func TestNewRouter_HealthAndRuns(t *testing.T) {
	r := NewRouter(testRouterConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	body := `{"standard":{"title":"s","pages":["305-1 Emissions."]},"reports":[{"title":"r","pages":["text"]}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestNewRouter_MetricsMounted(t *testing.T) {
	cfg := testRouterConfig()
	cfg.Metrics = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("metrics ok"))
	})

	r := NewRouter(cfg)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "metrics ok", w.Body.String())
}

func TestNewRouter_MetricsDisabled(t *testing.T) {
	r := NewRouter(testRouterConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNewRouter_CustomMetricsPath(t *testing.T) {
	cfg := testRouterConfig()
	cfg.MetricsPath = "/internal/metrics"
	cfg.Metrics = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r := NewRouter(cfg)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/internal/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
