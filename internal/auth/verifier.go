package auth

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier decides which trust domain a bearer string belongs to and
// validates it there. Nothing downstream sees an unverified claim.
type Verifier struct {
	sessions *SessionTokens
	firebase *FirebaseVerifier
}

// NewVerifier builds a Verifier. firebase may be nil when federated sign-in
// is not configured; such tokens are then rejected as invalid.
func NewVerifier(sessions *SessionTokens, firebase *FirebaseVerifier) *Verifier {
	return &Verifier{sessions: sessions, firebase: firebase}
}

func (v *Verifier) Verify(ctx context.Context, token string) (VerifiedIdentity, error) {
	cred, err := v.Credential(ctx, token)
	if err != nil {
		return VerifiedIdentity{}, err
	}
	return cred.Identity(), nil
}

// Credential returns the verified claim set before normalization.
func (v *Verifier) Credential(ctx context.Context, token string) (Credential, error) {
	if token == "" {
		return nil, ErrTokenMissing
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, newTokenError(ErrTokenMalformed, err)
		}
		return nil, newTokenError(ErrTokenInvalid, err)
	}

	switch parsed.Method.Alg() {
	case jwt.SigningMethodHS256.Alg():
		id, err := v.sessions.Verify(token)
		if err != nil {
			return nil, err
		}
		return *id, nil
	case jwt.SigningMethodRS256.Alg():
		if v.firebase == nil {
			return nil, newTokenError(ErrTokenInvalid, errors.New("federated tokens are not accepted"))
		}
		id, err := v.firebase.Verify(ctx, token)
		if err != nil {
			return nil, err
		}
		return *id, nil
	default:
		return nil, newTokenError(ErrTokenInvalid, errors.New("unsupported signing algorithm"))
	}
}

// Federated verifies token as a Firebase ID token only. Endpoints that exist
// to exchange a provider token for a session use this.
func (v *Verifier) Federated(ctx context.Context, token string) (*FederatedIdentity, error) {
	if v.firebase == nil {
		return nil, newTokenError(ErrTokenInvalid, errors.New("federated tokens are not accepted"))
	}
	return v.firebase.Verify(ctx, token)
}

func (v *Verifier) Sessions() *SessionTokens {
	return v.sessions
}
