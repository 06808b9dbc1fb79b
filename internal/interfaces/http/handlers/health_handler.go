package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const readinessTimeout = 5 * time.Second

// HealthChecker reports the health of one external dependency (embedding
// backend, redis, milvus).
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	version  string
	startAt  time.Time
	checkers []HealthChecker
}

// NewHealthHandler constructs a HealthHandler over the given dependency
// checkers.
func NewHealthHandler(version string, checkers ...HealthChecker) *HealthHandler {
	return &HealthHandler{
		version:  version,
		startAt:  time.Now(),
		checkers: checkers,
	}
}

// RegisterRoutes mounts the probe endpoints.
func (h *HealthHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/healthz", h.Liveness)
	r.GET("/readyz", h.Readiness)
}

// Liveness confirms the process is alive. Dependencies are not consulted.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.version,
		"uptime":  time.Since(h.startAt).Round(time.Second).String(),
	})
}

type componentStatus struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// Readiness checks every registered dependency concurrently. Any failing
// dependency makes the endpoint report 503 with per-component detail.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	statuses := make([]componentStatus, len(h.checkers))
	var wg sync.WaitGroup
	for i, checker := range h.checkers {
		wg.Add(1)
		go func(i int, checker HealthChecker) {
			defer wg.Done()
			start := time.Now()
			err := checker.Check(ctx)
			s := componentStatus{
				Name:      checker.Name(),
				Status:    "ok",
				LatencyMS: time.Since(start).Milliseconds(),
			}
			if err != nil {
				s.Status = "unhealthy"
				s.Error = err.Error()
			}
			statuses[i] = s
		}(i, checker)
	}
	wg.Wait()

	status := http.StatusOK
	overall := "ok"
	for _, s := range statuses {
		if s.Status != "ok" {
			status = http.StatusServiceUnavailable
			overall = "unhealthy"
			break
		}
	}

	c.JSON(status, gin.H{
		"status":     overall,
		"components": statuses,
	})
}
