package auth

import (
	"errors"
	"fmt"

	"github.com/sparkcampus/doubts/backend/internal/apperror"
)

// Source tells which trust domain vouched for an identity.
type Source string

const (
	SourceSession   Source = "session"
	SourceFederated Source = "federated"
)

// Provider names stored on users.auth_provider.
const (
	ProviderCredentials = "credentials"
	ProviderFirebase    = "firebase"
	ProviderGitHub      = "github"
)

// VerifiedIdentity is the single shape every credential is normalized into
// before it reaches the rest of the service.
type VerifiedIdentity struct {
	Source        Source
	Provider      string
	Subject       string // provider user id, or the internal user id for sessions
	UserID        int    // set for session identities
	Email         string
	EmailVerified bool
	Name          string
	AvatarURL     string
}

// Credential is a verified claim set from one trust domain.
type Credential interface {
	Identity() VerifiedIdentity
	credential()
}

// SessionIdentity is a token this service issued after a successful sign-in.
type SessionIdentity struct {
	Claims *SessionClaims
}

func (s SessionIdentity) credential() {}

func (s SessionIdentity) Identity() VerifiedIdentity {
	return VerifiedIdentity{
		Source:   SourceSession,
		Provider: s.Claims.Provider,
		Subject:  s.Claims.Subject,
		UserID:   s.Claims.UserID,
		Email:    s.Claims.Email,
		Name:     s.Claims.Name,
	}
}

// FederatedIdentity is an identity asserted by an external provider: a
// Firebase ID token on API calls, or a GitHub profile during OAuth sign-in.
type FederatedIdentity struct {
	Provider      string
	UID           string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

func (f FederatedIdentity) credential() {}

func (f FederatedIdentity) Identity() VerifiedIdentity {
	return VerifiedIdentity{
		Source:        SourceFederated,
		Provider:      f.Provider,
		Subject:       f.UID,
		Email:         f.Email,
		EmailVerified: f.EmailVerified,
		Name:          f.Name,
		AvatarURL:     f.Picture,
	}
}

// Failure codes surfaced in 401 bodies.
const (
	CodeTokenMissing   = "token_missing"
	CodeTokenMalformed = "token_malformed"
	CodeTokenExpired   = "token_expired"
	CodeTokenInvalid   = "token_invalid"
)

var (
	ErrTokenMissing   = apperror.Unauthenticated(CodeTokenMissing, "Authentication required")
	ErrTokenMalformed = apperror.Unauthenticated(CodeTokenMalformed, "Malformed token")
	ErrTokenExpired   = apperror.Unauthenticated(CodeTokenExpired, "Token expired")
	ErrTokenInvalid   = apperror.Unauthenticated(CodeTokenInvalid, "Invalid token")
)

// tokenError keeps the kind sentinel matchable while recording the cause for logs.
type tokenError struct {
	kind  *apperror.AppError
	cause error
}

func (e *tokenError) Error() string {
	if e.cause == nil {
		return e.kind.Error()
	}
	return fmt.Sprintf("%s: %v", e.kind.Error(), e.cause)
}

func (e *tokenError) Unwrap() error { return e.kind }

func newTokenError(kind *apperror.AppError, cause error) error {
	return &tokenError{kind: kind, cause: cause}
}

// Code returns the failure code of a verification error, or "" when err is
// not one.
func Code(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && errors.Is(appErr, apperror.ErrUnauthenticated) {
		return appErr.Code
	}
	return ""
}
