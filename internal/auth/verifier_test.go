package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestVerifierRoutesByAlgorithm(t *testing.T) {
	sessions := newTestSessions(t)
	key := newRSAKey(t)
	v := NewVerifier(sessions, NewFirebaseVerifier(testProject, staticKeys{"k1": &key.PublicKey}))
	ctx := context.Background()

	session, err := sessions.Issue(testUser)
	require.NoError(t, err)
	id, err := v.Verify(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, SourceSession, id.Source)
	assert.Equal(t, 42, id.UserID)

	federated := signRS256(t, key, "k1", firebaseClaims(time.Now()))
	id, err = v.Verify(ctx, federated)
	require.NoError(t, err)
	assert.Equal(t, SourceFederated, id.Source)
	assert.Equal(t, "uid-123", id.Subject)

	cred, err := v.Credential(ctx, federated)
	require.NoError(t, err)
	_, isFederated := cred.(FederatedIdentity)
	assert.True(t, isFederated)
}

func TestVerifierRejects(t *testing.T) {
	sessions := newTestSessions(t)
	ctx := context.Background()

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": 1}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	key := newRSAKey(t)
	federated := signRS256(t, key, "k1", firebaseClaims(time.Now()))

	tests := []struct {
		name     string
		v        *Verifier
		token    string
		wantCode string
	}{
		{"missing", NewVerifier(sessions, nil), "", CodeTokenMissing},
		{"malformed", NewVerifier(sessions, nil), "x.y", CodeTokenMalformed},
		{"alg none", NewVerifier(sessions, nil), unsigned, CodeTokenInvalid},
		{"federated without firebase", NewVerifier(sessions, nil), federated, CodeTokenInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.v.Verify(ctx, tt.token)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, Code(err))
		})
	}
}

func TestGitHubExchange(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "gho_test", "token_type": "bearer"})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer gho_test", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(GitHubUser{ID: 7, Login: "octo", AvatarURL: "https://gh/a.png"})
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]gitHubEmail{
			{Email: "old@example.com", Primary: false, Verified: true},
			{Email: "octo@example.com", Primary: true, Verified: true},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewGitHubProvider("id", "secret", "http://localhost/callback")
	p.config.Endpoint = oauth2.Endpoint{
		AuthURL:  srv.URL + "/login/oauth/authorize",
		TokenURL: srv.URL + "/login/oauth/access_token",
	}
	p.apiBase = srv.URL

	assert.True(t, p.Enabled())
	assert.True(t, strings.Contains(p.AuthURL("state-1"), "state=state-1"))

	id, err := p.Exchange(context.Background(), "code-1")
	require.NoError(t, err)
	assert.Equal(t, ProviderGitHub, id.Provider)
	assert.Equal(t, "7", id.UID)
	assert.Equal(t, "octo@example.com", id.Email)
	assert.True(t, id.EmailVerified)
	assert.Equal(t, "octo", id.Name)
}
