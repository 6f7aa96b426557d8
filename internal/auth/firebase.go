package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sparkcampus/doubts/backend/internal/apperror"
)

const firebaseIssuerPrefix = "https://securetoken.google.com/"

// KeySource resolves the public key a federated token was signed with.
type KeySource interface {
	PublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

var errKeyFetch = errors.New("auth: fetching signing keys failed")

// CertSource serves Google's securetoken x509 certificates, cached for the
// max-age the endpoint advertises.
type CertSource struct {
	url    string
	client *http.Client
	now    func() time.Time

	mu      sync.RWMutex
	keys    map[string]*rsa.PublicKey
	expires time.Time
}

func NewCertSource(url string, client *http.Client) *CertSource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &CertSource{url: url, client: client, now: time.Now}
}

func (c *CertSource) PublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	key, ok := c.keys[kid]
	fresh := c.now().Before(c.expires)
	c.mu.RUnlock()
	if fresh {
		// Google publishes a key before signing with it, so an unknown kid
		// inside max-age is rejected without going back to the network.
		if ok {
			return key, nil
		}
		return nil, fmt.Errorf("auth: unknown signing key %q", kid)
	}

	if err := c.refresh(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if key, ok := c.keys[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("auth: unknown signing key %q", kid)
}

func (c *CertSource) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", errKeyFetch, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errKeyFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", errKeyFetch, resp.StatusCode)
	}

	var certs map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&certs); err != nil {
		return fmt.Errorf("%w: decode: %v", errKeyFetch, err)
	}

	keys := make(map[string]*rsa.PublicKey, len(certs))
	for kid, pem := range certs {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
		if err != nil {
			return fmt.Errorf("%w: parse cert %s: %v", errKeyFetch, kid, err)
		}
		keys[kid] = key
	}

	c.mu.Lock()
	c.keys = keys
	c.expires = c.now().Add(maxAge(resp.Header.Get("Cache-Control")))
	c.mu.Unlock()
	return nil
}

func maxAge(cacheControl string) time.Duration {
	for _, part := range strings.Split(cacheControl, ",") {
		part = strings.TrimSpace(part)
		if v, ok := strings.CutPrefix(part, "max-age="); ok {
			if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
				return time.Duration(secs) * time.Second
			}
		}
	}
	return time.Hour
}

// FirebaseClaims is the payload of a Firebase ID token.
type FirebaseClaims struct {
	jwt.RegisteredClaims
	AuthTime      int64  `json:"auth_time"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// FirebaseVerifier validates Firebase ID tokens for one project.
type FirebaseVerifier struct {
	projectID string
	keys      KeySource
	now       func() time.Time
}

func NewFirebaseVerifier(projectID string, keys KeySource) *FirebaseVerifier {
	return &FirebaseVerifier{projectID: projectID, keys: keys, now: time.Now}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, tokenStr string) (*FederatedIdentity, error) {
	if tokenStr == "" {
		return nil, ErrTokenMissing
	}
	if v.projectID == "" {
		return nil, newTokenError(ErrTokenInvalid, errors.New("firebase project is not configured"))
	}

	var c FirebaseClaims
	_, err := jwt.ParseWithClaims(tokenStr, &c,
		func(t *jwt.Token) (any, error) {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("auth: token has no kid header")
			}
			return v.keys.PublicKey(ctx, kid)
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.projectID),
		jwt.WithIssuer(firebaseIssuerPrefix+v.projectID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		if errors.Is(err, errKeyFetch) {
			return nil, apperror.Unavailable("identity", "Unable to verify credentials right now")
		}
		return nil, classify(err)
	}

	switch {
	case c.Subject == "" || len(c.Subject) > 128:
		return nil, newTokenError(ErrTokenInvalid, errors.New("subject must be 1-128 characters"))
	case c.AuthTime > v.now().Unix():
		return nil, newTokenError(ErrTokenInvalid, errors.New("auth_time is in the future"))
	}

	return &FederatedIdentity{
		Provider:      ProviderFirebase,
		UID:           c.Subject,
		Email:         c.Email,
		EmailVerified: c.EmailVerified,
		Name:          c.Name,
		Picture:       c.Picture,
	}, nil
}
