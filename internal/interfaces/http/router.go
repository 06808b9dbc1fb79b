// Package http assembles the results server: run lifecycle endpoints,
// health probes, and the metrics exposition.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/esglens/esglens/internal/infrastructure/monitoring/logging"
	"github.com/esglens/esglens/internal/interfaces/http/handlers"
	"github.com/esglens/esglens/internal/interfaces/http/middleware"
)

const defaultMetricsPath = "/metrics"

// RouterConfig wires handler dependencies into the HTTP surface.
type RouterConfig struct {
	// Factory builds one pipeline per submitted run.
	Factory handlers.PipelineFactory

	// Version is reported by the liveness probe.
	Version string

	// Checkers are consulted by the readiness probe.
	Checkers []handlers.HealthChecker

	// Metrics, when non-nil, is mounted at MetricsPath.
	Metrics     http.Handler
	MetricsPath string

	// Mode selects the gin mode: "debug" | "release" | "test".
	Mode string

	// AllowedOrigins restricts CORS; empty allows every origin.
	AllowedOrigins []string

	Logger logging.Logger
}

// NewRouter builds the gin engine with the full middleware chain and all
// routes mounted.
func NewRouter(cfg RouterConfig) *gin.Engine {
	switch cfg.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	metricsPath := cfg.MetricsPath
	if metricsPath == "" {
		metricsPath = defaultMetricsPath
	}

	r := gin.New()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger, "/healthz", "/readyz", metricsPath))
	r.Use(middleware.CORS(cfg.AllowedOrigins...))

	handlers.NewHealthHandler(cfg.Version, cfg.Checkers...).RegisterRoutes(r)
	if cfg.Metrics != nil {
		r.GET(metricsPath, gin.WrapH(cfg.Metrics))
	}

	api := r.Group("/api/v1")
	handlers.NewRunHandler(cfg.Factory, logger).RegisterRoutes(api)

	return r
}
