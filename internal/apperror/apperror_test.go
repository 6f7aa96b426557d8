package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{"NotFound wraps ErrNotFound", NotFound("doubt", 12), ErrNotFound, true},
		{"ValidationFailed wraps ErrValidation", ValidationFailed("title", "title is required"), ErrValidation, true},
		{"Conflict wraps ErrConflict", Conflict("already a member"), ErrConflict, true},
		{"InsufficientBalance wraps its sentinel", InsufficientBalance(5, 2), ErrInsufficientBalance, true},
		{"QuotaExhausted wraps its sentinel", QuotaExhausted(), ErrQuotaExhausted, true},
		{"Unauthenticated wraps its sentinel", Unauthenticated("token_expired", "expired"), ErrUnauthenticated, true},
		{"wrapped twice still matches", fmt.Errorf("ledger: %w", NotFound("user", 1)), ErrNotFound, true},
		{"NotFound does not match ErrValidation", NotFound("doubt", 12), ErrValidation, false},
		{"Forbidden does not match QuotaExhausted", Forbidden("nope"), ErrQuotaExhausted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMatch, errors.Is(tt.err, tt.target))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{"not found", NotFound("answer", 7), "answer not found with id 7"},
		{"validation", ValidationFailed("content", "content is required"), "content is required"},
		{"insufficient", InsufficientBalance(3, 1), "Insufficient credits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMessage, tt.err.Error())
		})
	}
}

func TestDetails(t *testing.T) {
	err := InsufficientBalance(5, 2)
	assert.Equal(t, 5, err.Details["required"])
	assert.Equal(t, 2, err.Details["available"])

	var appErr *AppError
	wrapped := fmt.Errorf("redeem: %w", err)
	if assert.True(t, errors.As(wrapped, &appErr)) {
		assert.Same(t, err, appErr)
	}
}
