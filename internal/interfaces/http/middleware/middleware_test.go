package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/esglens/esglens/internal/infrastructure/monitoring/logging"
	"github.com/esglens/esglens/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func observedLogger(t *testing.T) (logging.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	return logging.NewLoggerFromCore(core), logs
}

func perform(r *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestLogging_LevelsByStatus(t *testing.T) {
	logger, logs := observedLogger(t)

	r := gin.New()
	r.Use(RequestLogging(logger))
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/broken", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	perform(r, http.MethodGet, "/ok", nil)
	perform(r, http.MethodGet, "/missing", nil)
	perform(r, http.MethodGet, "/broken", nil)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)

	fields := entries[0].ContextMap()
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/ok", fields["path"])
	assert.Equal(t, int64(http.StatusOK), fields["status"])
}

func TestRequestLogging_SkipsConfiguredPaths(t *testing.T) {
	logger, logs := observedLogger(t)

	r := gin.New()
	r.Use(RequestLogging(logger, "/healthz"))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/runs", func(c *gin.Context) { c.Status(http.StatusOK) })

	perform(r, http.MethodGet, "/healthz", nil)
	perform(r, http.MethodGet, "/runs", nil)

	require.Len(t, logs.All(), 1)
	assert.Equal(t, "/runs", logs.All()[0].ContextMap()["path"])
}

func TestRecovery_ConvertsPanicTo500(t *testing.T) {
	logger, logs := observedLogger(t)

	r := gin.New()
	r.Use(Recovery(logger))
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := perform(r, http.MethodGet, "/panic", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), errors.ErrCodeInternal.String())

	require.Len(t, logs.All(), 1)
	entry := logs.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, "boom", entry.ContextMap()["panic"])
}

func TestRecovery_PassesThroughNormally(t *testing.T) {
	logger, _ := observedLogger(t)

	r := gin.New()
	r.Use(Recovery(logger))
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "fine") })

	w := perform(r, http.MethodGet, "/ok", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fine", w.Body.String())
}

func TestCORS_AllowAllEchoesWildcard(t *testing.T) {
	r := gin.New()
	r.Use(CORS())
	r.GET("/runs", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodGet, "/runs", map[string]string{"Origin": "http://viewer.local"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_RestrictedOriginList(t *testing.T) {
	r := gin.New()
	r.Use(CORS("http://allowed.local"))
	r.GET("/runs", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodGet, "/runs", map[string]string{"Origin": "http://allowed.local"})
	assert.Equal(t, "http://allowed.local", w.Header().Get("Access-Control-Allow-Origin"))

	w = perform(r, http.MethodGet, "/runs", map[string]string{"Origin": "http://other.local"})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	handlerCalled := false
	r := gin.New()
	r.Use(CORS())
	r.OPTIONS("/runs", func(c *gin.Context) { handlerCalled = true })

	w := perform(r, http.MethodOptions, "/runs", map[string]string{"Origin": "http://viewer.local"})

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, handlerCalled)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}
