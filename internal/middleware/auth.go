package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sparkcampus/doubts/backend/internal/auth"
	"github.com/sparkcampus/doubts/backend/internal/models"
	"github.com/sparkcampus/doubts/backend/internal/response"
)

// Context keys set by the auth middleware.
const (
	userKey     = "user"
	identityKey = "identity"
)

type Verifier interface {
	Verify(ctx context.Context, token string) (auth.VerifiedIdentity, error)
}

type Resolver interface {
	Resolve(ctx context.Context, id auth.VerifiedIdentity) (*models.User, error)
}

// Authenticator turns a bearer token or session cookie into the caller's
// user row. The resolver only ever sees verified identities.
type Authenticator struct {
	verifier   Verifier
	resolver   Resolver
	cookieName string
	logger     *zap.Logger
}

func NewAuthenticator(verifier Verifier, resolver Resolver, cookieName string, logger *zap.Logger) *Authenticator {
	return &Authenticator{verifier: verifier, resolver: resolver, cookieName: cookieName, logger: logger}
}

// RequireAuth rejects the request with 401 unless a valid credential is
// present.
func (a *Authenticator) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, id, err := a.authenticate(c)
		if err != nil {
			response.Error(c, a.logger, err)
			return
		}
		setUser(c, user, id)
		c.Next()
	}
}

// OptionalAuth attaches the user when a valid credential is present and
// otherwise lets the request through anonymously.
func (a *Authenticator) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if Token(c.Request, a.cookieName) != "" {
			user, id, err := a.authenticate(c)
			if err == nil {
				setUser(c, user, id)
			} else if auth.Code(err) == "" {
				a.logger.Warn("optional auth failed", zap.Error(err))
			}
		}
		c.Next()
	}
}

func (a *Authenticator) authenticate(c *gin.Context) (*models.User, auth.VerifiedIdentity, error) {
	ctx := c.Request.Context()
	id, err := a.verifier.Verify(ctx, Token(c.Request, a.cookieName))
	if err != nil {
		return nil, id, err
	}
	user, err := a.resolver.Resolve(ctx, id)
	if err != nil {
		return nil, id, err
	}
	return user, id, nil
}

func setUser(c *gin.Context, user *models.User, id auth.VerifiedIdentity) {
	c.Set(userKey, user)
	c.Set(identityKey, id)
}

// Token returns the bearer token, falling back to the session cookie.
func Token(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if cookieName == "" {
		return ""
	}
	if cookie, err := r.Cookie(cookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// CurrentUser returns the authenticated user, if any.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

func CurrentIdentity(c *gin.Context) (auth.VerifiedIdentity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.VerifiedIdentity{}, false
	}
	id, ok := v.(auth.VerifiedIdentity)
	return id, ok
}
