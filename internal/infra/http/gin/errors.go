package ginserver

import (
	"context"
	"errors"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentcar/internal/app/apperrors"
)

type errorBody struct {
	Kind    apperrors.Kind `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// statusFor maps error kinds to HTTP status. A date conflict stays a 400 like
// every other rejected booking; clients tell it apart by kind.
func statusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindValidation, apperrors.KindConflict:
		return http.StatusBadRequest
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindConcurrencyExhausted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func toBody(err error) (int, errorBody) {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable, errorBody{Kind: apperrors.KindConcurrencyExhausted, Message: "request timed out"}
	}
	appErr, ok := apperrors.As(err)
	if !ok {
		return http.StatusInternalServerError, errorBody{Kind: apperrors.KindInternal, Message: "internal error"}
	}
	body := errorBody{Kind: appErr.Kind, Message: appErr.Message, Details: appErr.Details}
	if !appErr.Kind.Transient() {
		return statusFor(appErr.Kind), body
	}
	// Store and internal failures are reported opaquely.
	if appErr.Kind != apperrors.KindConcurrencyExhausted {
		body.Message = "internal error"
		body.Details = nil
	}
	return statusFor(appErr.Kind), body
}

func writeError(c *gin.Context, err error) {
	status, body := toBody(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}

// writeLegacyError keeps the {"error": "<message>"} shape of the old API.
func writeLegacyError(c *gin.Context, err error) {
	status, body := toBody(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": body.Message})
}

func badRequest(c *gin.Context, err error) {
	writeError(c, apperrors.Wrap(err, apperrors.KindValidation, "malformed request body"))
}
