package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation error")
	ErrConflict            = errors.New("conflict")
	ErrForbidden           = errors.New("forbidden")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrQuotaExhausted      = errors.New("free query quota exhausted")
	ErrUnavailable         = errors.New("upstream unavailable")
	ErrUpstream            = errors.New("upstream error")
)

type AppError struct {
	Err     error          // actual error
	Message string         // Human-readable error message
	Field   string         // Optional: field causing the error
	Code    string         // Optional: machine-readable refinement of Err
	Details map[string]any // Optional: extra fields merged into the response body
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource string, id any) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %v", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthenticated wraps a credential failure. code distinguishes missing,
// malformed, expired and invalid tokens; all of them map to 401.
func Unauthenticated(code, message string) *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: message,
		Code:    code,
	}
}

func InsufficientBalance(required, available int) *AppError {
	return &AppError{
		Err:     ErrInsufficientBalance,
		Message: "Insufficient credits",
		Details: map[string]any{
			"required":  required,
			"available": available,
		},
	}
}

func QuotaExhausted() *AppError {
	return &AppError{
		Err:     ErrQuotaExhausted,
		Message: "Free query limit reached. Please sign in to continue.",
		Details: map[string]any{"remaining": 0},
	}
}

func Unavailable(service, fallback string) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Message: fallback,
		Details: map[string]any{"service": service},
	}
}

func Upstream(status int, detail string) *AppError {
	return &AppError{
		Err:     ErrUpstream,
		Message: "AI backend returned an error",
		Details: map[string]any{
			"upstreamStatus": status,
			"detail":         detail,
		},
	}
}
