// Package response renders service errors as JSON so handlers and
// middleware report failures in the same shape.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sparkcampus/doubts/backend/internal/apperror"
)

// Error codes sent in the "code" field of every error body.
const (
	CodeValidation          = "validation_error"
	CodeNotFound            = "not_found"
	CodeForbidden           = "forbidden"
	CodeConflict            = "conflict"
	CodeUnauthenticated     = "unauthenticated"
	CodeInsufficientBalance = "insufficient_credits"
	CodeQuotaExhausted      = "quota_exhausted"
	CodeUnavailable         = "service_unavailable"
	CodeUpstream            = "upstream_error"
	CodeInternal            = "internal_error"

	InternalMessage = "Internal server error"
)

var kinds = []struct {
	sentinel error
	status   int
	code     string
}{
	{apperror.ErrValidation, http.StatusBadRequest, CodeValidation},
	{apperror.ErrNotFound, http.StatusNotFound, CodeNotFound},
	{apperror.ErrForbidden, http.StatusForbidden, CodeForbidden},
	{apperror.ErrConflict, http.StatusConflict, CodeConflict},
	{apperror.ErrUnauthenticated, http.StatusUnauthorized, CodeUnauthenticated},
	{apperror.ErrInsufficientBalance, http.StatusPaymentRequired, CodeInsufficientBalance},
	{apperror.ErrQuotaExhausted, http.StatusForbidden, CodeQuotaExhausted},
	{apperror.ErrUnavailable, http.StatusServiceUnavailable, CodeUnavailable},
	{apperror.ErrUpstream, http.StatusBadGateway, CodeUpstream},
}

// Render maps err to a status code and body. Errors that are not an
// *apperror.AppError become a generic 500.
func Render(err error) (int, gin.H) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		for _, k := range kinds {
			if !errors.Is(appErr, k.sentinel) {
				continue
			}
			body := gin.H{"error": appErr.Message, "code": k.code}
			if appErr.Code != "" {
				body["code"] = appErr.Code
			}
			if appErr.Field != "" {
				body["field"] = appErr.Field
			}
			for key, v := range appErr.Details {
				body[key] = v
			}
			return k.status, body
		}
	}
	return http.StatusInternalServerError, gin.H{"error": InternalMessage, "code": CodeInternal}
}

// Error writes err and aborts the chain. 5xx responses are logged.
func Error(c *gin.Context, logger *zap.Logger, err error) {
	status, body := Render(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, body)
}
