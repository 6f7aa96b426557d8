package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/sparkcampus/doubts/backend/internal/apperror"
	"github.com/sparkcampus/doubts/backend/internal/auth"
	"github.com/sparkcampus/doubts/backend/internal/config"
	"github.com/sparkcampus/doubts/backend/internal/identity"
	"github.com/sparkcampus/doubts/backend/internal/middleware"
	"github.com/sparkcampus/doubts/backend/internal/models"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateMaxAge = 10 * time.Minute
)

type AuthHandler struct {
	cfg        config.AuthConfig
	verifier   *auth.Verifier
	passwords  *auth.PasswordService
	github     *auth.GitHubProvider
	reconciler *identity.Reconciler
	logger     *zap.Logger
}

func NewAuthHandler(d Deps) *AuthHandler {
	return &AuthHandler{
		cfg:        d.Config.Auth,
		verifier:   d.Verifier,
		passwords:  d.Passwords,
		github:     d.GitHub,
		reconciler: d.Reconciler,
		logger:     d.Logger,
	}
}

var errInvalidCredentials = apperror.Unauthenticated("invalid_credentials", "Invalid credentials")

// Register handles credential sign-up
func (h *AuthHandler) Register(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
		Name     string `json:"name"`
	}
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}

	hash, err := h.passwords.Hash(input.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	user, err := h.reconciler.Register(c.Request.Context(), input.Email, strings.TrimSpace(input.Name), hash)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.startSession(c, http.StatusCreated, user, "User registered successfully")
}

// Login handles credential sign-in
func (h *AuthHandler) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}

	user, err := h.reconciler.ByEmail(c.Request.Context(), input.Email)
	if errors.Is(err, apperror.ErrNotFound) {
		respondError(c, h.logger, errInvalidCredentials)
		return
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := h.passwords.Compare(user.PasswordHash, input.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			err = errInvalidCredentials
		}
		respondError(c, h.logger, err)
		return
	}

	h.startSession(c, http.StatusOK, user, "Login successful")
}

// Firebase exchanges a Firebase ID token for a session cookie.
func (h *AuthHandler) Firebase(c *gin.Context) {
	var input struct {
		IDToken string `json:"fbIdToken"`
	}
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}
	if input.IDToken == "" {
		respondError(c, h.logger, auth.ErrTokenMissing)
		return
	}

	user, _, err := h.federated(c, input.IDToken)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.startSession(c, http.StatusOK, user, "Login successful")
}

// Sync upserts the user behind a bearer Firebase token.
func (h *AuthHandler) Sync(c *gin.Context) {
	user, fed, err := h.federated(c, middleware.Token(c.Request, ""))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "uid": fed.UID})
}

// Session reports who the bearer token or session cookie belongs to. It
// always answers 200 so clients can poll it.
func (h *AuthHandler) Session(c *gin.Context) {
	ctx := c.Request.Context()
	id, err := h.verifier.Verify(ctx, middleware.Token(c.Request, h.cfg.CookieName))
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"user": nil})
		return
	}
	user, err := h.reconciler.Resolve(ctx, id)
	if err != nil {
		h.logger.Warn("session lookup failed", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"user": nil})
		return
	}

	body := gin.H{"user": user}
	if id.Source == auth.SourceFederated {
		body["firebase"] = gin.H{"uid": id.Subject}
	}
	c.JSON(http.StatusOK, body)
}

func (h *AuthHandler) federated(c *gin.Context, token string) (*models.User, *auth.FederatedIdentity, error) {
	if token == "" {
		return nil, nil, auth.ErrTokenMissing
	}
	ctx := c.Request.Context()
	fed, err := h.verifier.Federated(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	user, err := h.reconciler.Resolve(ctx, fed.Identity())
	if err != nil {
		return nil, nil, err
	}
	return user, fed, nil
}

// GitHubLogin starts the OAuth flow with a random state kept in a cookie.
func (h *AuthHandler) GitHubLogin(c *gin.Context) {
	if !h.github.Enabled() {
		respondError(c, h.logger, apperror.Unavailable("github", "GitHub sign-in is not configured"))
		return
	}

	state := xid.New().String()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, state, int(oauthStateMaxAge.Seconds()), "/", "", h.cfg.CookieSecure, true)
	c.Redirect(http.StatusFound, h.github.AuthURL(state))
}

// GitHubCallback finishes the OAuth flow and redirects back to the app.
func (h *AuthHandler) GitHubCallback(c *gin.Context) {
	if !h.github.Enabled() {
		respondError(c, h.logger, apperror.Unavailable("github", "GitHub sign-in is not configured"))
		return
	}

	state, err := c.Cookie(oauthStateCookie)
	if err != nil || state == "" || state != c.Query("state") {
		respondError(c, h.logger, apperror.ValidationFailed("state", "OAuth state mismatch"))
		return
	}
	c.SetCookie(oauthStateCookie, "", -1, "/", "", h.cfg.CookieSecure, true)

	code := c.Query("code")
	if code == "" {
		respondError(c, h.logger, apperror.ValidationFailed("code", "Missing authorization code"))
		return
	}

	ctx := c.Request.Context()
	fed, err := h.github.Exchange(ctx, code)
	if err != nil {
		h.logger.Warn("github exchange failed", zap.Error(err))
		respondError(c, h.logger, apperror.Unauthenticated("oauth_failed", "GitHub sign-in failed"))
		return
	}
	user, err := h.reconciler.Resolve(ctx, fed.Identity())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if _, err := h.issueCookie(c, user); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Redirect(http.StatusFound, h.cfg.PostLoginRedirect)
}

// Logout clears the session cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.CookieName, "", -1, "/", "", h.cfg.CookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// GetMe returns the current authenticated user
func (h *AuthHandler) GetMe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": currentUser(c)})
}

func (h *AuthHandler) startSession(c *gin.Context, status int, user *models.User, message string) {
	token, err := h.issueCookie(c, user)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.logger.Info("session started", zap.Int("user_id", user.ID), zap.String("provider", user.AuthProvider))
	c.JSON(status, gin.H{"message": message, "token": token, "user": user})
}

func (h *AuthHandler) issueCookie(c *gin.Context, user *models.User) (string, error) {
	sessions := h.verifier.Sessions()
	token, err := sessions.Issue(user)
	if err != nil {
		return "", err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.CookieName, token, int(sessions.TTL().Seconds()), "/", "", h.cfg.CookieSecure, true)
	return token, nil
}
