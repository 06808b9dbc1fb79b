// Package middleware holds the HTTP middleware chain: request logging,
// panic recovery, and CORS for browser frontends reading results.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/esglens/esglens/internal/infrastructure/monitoring/logging"
)

// RequestLogging logs one structured line per request: method, path, status,
// latency, response size and client address. Paths listed in skip (health
// probes, metrics scrapes) are not logged.
func RequestLogging(logger logging.Logger, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}
	log := logger.Named("http")

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		if _, ok := skipped[path]; ok {
			return
		}

		status := c.Writer.Status()
		fields := []logging.Field{
			logging.String("method", c.Request.Method),
			logging.String("path", path),
			logging.Int("status", status),
			logging.Duration("latency", time.Since(start)),
			logging.Int("bytes", c.Writer.Size()),
			logging.String("client_ip", c.ClientIP()),
		}
		switch {
		case status >= 500:
			log.Error("request failed", fields...)
		case status >= 400:
			log.Warn("request rejected", fields...)
		default:
			log.Info("request served", fields...)
		}
	}
}
