package response

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sparkcampus/doubts/backend/internal/apperror"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", apperror.ValidationFailed("title", "Title is required"), http.StatusBadRequest, CodeValidation},
		{"wrapped not found", fmt.Errorf("load: %w", apperror.NotFound("doubt", 7)), http.StatusNotFound, CodeNotFound},
		{"forbidden", apperror.Forbidden("no"), http.StatusForbidden, CodeForbidden},
		{"quota", apperror.QuotaExhausted(), http.StatusForbidden, CodeQuotaExhausted},
		{"conflict", apperror.Conflict("dup"), http.StatusConflict, CodeConflict},
		{"token expired", apperror.Unauthenticated("token_expired", "Token expired"), http.StatusUnauthorized, "token_expired"},
		{"insufficient", apperror.InsufficientBalance(5, 2), http.StatusPaymentRequired, CodeInsufficientBalance},
		{"unavailable", apperror.Unavailable("ai_agent", "down"), http.StatusServiceUnavailable, CodeUnavailable},
		{"upstream", apperror.Upstream(500, "boom"), http.StatusBadGateway, CodeUpstream},
		{"unknown", errors.New("pq: connection reset"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := Render(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body["code"])
		})
	}
}

func TestRenderBodies(t *testing.T) {
	_, body := Render(apperror.InsufficientBalance(5, 2))
	assert.Equal(t, 5, body["required"])
	assert.Equal(t, 2, body["available"])

	_, body = Render(apperror.ValidationFailed("title", "Title is required"))
	assert.Equal(t, "title", body["field"])
	assert.Equal(t, "Title is required", body["error"])

	_, body = Render(errors.New("secret dsn in message"))
	assert.Equal(t, InternalMessage, body["error"])
}
