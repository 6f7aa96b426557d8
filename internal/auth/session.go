package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sparkcampus/doubts/backend/internal/models"
)

// SessionClaims is the payload of a session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	UserID   int    `json:"user_id"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// SessionTokens issues and validates HS256 session tokens.
type SessionTokens struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionTokens(secret, issuer string, ttl time.Duration) (*SessionTokens, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &SessionTokens{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

func (s *SessionTokens) Issuer() string { return s.issuer }
func (s *SessionTokens) TTL() time.Duration { return s.ttl }

// Issue signs a session token for user.
func (s *SessionTokens) Issue(user *models.User) (string, error) {
	return s.IssueWithDuration(user, s.ttl)
}

// IssueWithDuration signs a token with a custom lifetime. Negative durations
// produce already-expired tokens, which tests rely on.
func (s *SessionTokens) IssueWithDuration(user *models.User, d time.Duration) (string, error) {
	now := s.now()
	c := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(user.ID),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
		},
		UserID:   user.ID,
		Email:    user.Email,
		Name:     user.Name,
		Provider: user.AuthProvider,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing session token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer and expiry.
func (s *SessionTokens) Verify(tokenStr string) (*SessionIdentity, error) {
	if tokenStr == "" {
		return nil, ErrTokenMissing
	}

	var c SessionClaims
	_, err := jwt.ParseWithClaims(tokenStr, &c,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, classify(err)
	}

	if c.UserID <= 0 || c.Email == "" {
		return nil, newTokenError(ErrTokenInvalid, errors.New("session token has no user"))
	}
	return &SessionIdentity{Claims: &c}, nil
}

// classify maps jwt errors onto the four failure kinds.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return newTokenError(ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return newTokenError(ErrTokenExpired, err)
	default:
		return newTokenError(ErrTokenInvalid, err)
	}
}
