package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkcampus/doubts/backend/internal/apperror"
	"github.com/sparkcampus/doubts/backend/internal/models"
)

const testSecret = "test-secret-that-is-long-enough"

func newTestSessions(t *testing.T) *SessionTokens {
	t.Helper()
	s, err := NewSessionTokens(testSecret, "doubts-session", time.Hour)
	require.NoError(t, err)
	return s
}

var testUser = &models.User{ID: 42, Email: "ada@example.com", Name: "Ada", AuthProvider: ProviderGitHub}

func TestNewSessionTokensRejectsShortSecret(t *testing.T) {
	_, err := NewSessionTokens("short", "x", time.Hour)
	assert.Error(t, err)
}

func TestSessionRoundTrip(t *testing.T) {
	s := newTestSessions(t)

	token, err := s.Issue(testUser)
	require.NoError(t, err)

	id, err := s.Verify(token)
	require.NoError(t, err)

	got := id.Identity()
	assert.Equal(t, SourceSession, got.Source)
	assert.Equal(t, 42, got.UserID)
	assert.Equal(t, "42", got.Subject)
	assert.Equal(t, "ada@example.com", got.Email)
	assert.Equal(t, ProviderGitHub, got.Provider)
}

func TestSessionVerifyFailures(t *testing.T) {
	s := newTestSessions(t)

	expired, err := s.IssueWithDuration(testUser, -time.Minute)
	require.NoError(t, err)

	other, err := NewSessionTokens("another-secret-also-long", "doubts-session", time.Hour)
	require.NoError(t, err)
	forged, err := other.Issue(testUser)
	require.NoError(t, err)

	foreign, err := NewSessionTokens(testSecret, "someone-else", time.Hour)
	require.NoError(t, err)
	wrongIssuer, err := foreign.Issue(testUser)
	require.NoError(t, err)

	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "doubts-session",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name     string
		token    string
		wantCode string
	}{
		{"empty", "", CodeTokenMissing},
		{"garbage", "not-a-jwt", CodeTokenMalformed},
		{"expired", expired, CodeTokenExpired},
		{"wrong secret", forged, CodeTokenInvalid},
		{"wrong issuer", wrongIssuer, CodeTokenInvalid},
		{"no user", noUser, CodeTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Verify(tt.token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrUnauthenticated))
			assert.Equal(t, tt.wantCode, Code(err))
		})
	}
}

func TestPasswordService(t *testing.T) {
	p := NewPasswordService(4)

	hash, err := p.Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.NoError(t, p.Compare(hash, "correct horse"))
	assert.ErrorIs(t, p.Compare(hash, "battery staple"), ErrPasswordMismatch)
	assert.ErrorIs(t, p.Compare("", "anything"), ErrPasswordMismatch)
}
