package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/esglens/esglens/internal/infrastructure/monitoring/logging"
	"github.com/esglens/esglens/pkg/errors"
)

// Recovery converts handler panics into 500 responses so a single bad run
// cannot take the results server down. The panic value and stack are logged.
func Recovery(logger logging.Logger) gin.HandlerFunc {
	log := logger.Named("http")

	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("handler panic",
					logging.String("method", c.Request.Method),
					logging.String("path", c.Request.URL.Path),
					logging.Any("panic", rec),
					logging.String("stack", string(debug.Stack())),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"code":    errors.ErrCodeInternal.String(),
					"message": "internal server error",
				})
			}
		}()
		c.Next()
	}
}
