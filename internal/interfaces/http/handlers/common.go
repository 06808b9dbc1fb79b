// Package handlers implements the HTTP handlers of the results server:
// comparison run lifecycle and health probes.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/esglens/esglens/pkg/errors"
)

// errorBody is the uniform error response payload.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondError maps application error codes onto HTTP status codes and
// writes the uniform error body.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch errors.CodeOf(err) {
	case errors.ErrCodeBadRequest, errors.ErrCodeValidation,
		errors.ErrCodeDocumentEmpty, errors.ErrCodeDocumentInvalid,
		errors.ErrCodeThresholdInvalid:
		status = http.StatusBadRequest
	case errors.ErrCodeNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeConflict:
		status = http.StatusConflict
	case errors.ErrCodeServiceUnavailable, errors.ErrCodeEmbeddingUnavailable,
		errors.ErrCodeIndexUnavailable, errors.ErrCodeAnalysisUnavailable:
		status = http.StatusServiceUnavailable
	case errors.ErrCodeTimeout:
		status = http.StatusGatewayTimeout
	}

	c.AbortWithStatusJSON(status, errorBody{
		Code:    errors.CodeOf(err).String(),
		Message: err.Error(),
	})
}
