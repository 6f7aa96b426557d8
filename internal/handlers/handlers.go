package handlers

import (
	"errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sparkcampus/doubts/backend/internal/aiagent"
	"github.com/sparkcampus/doubts/backend/internal/apperror"
	"github.com/sparkcampus/doubts/backend/internal/auth"
	"github.com/sparkcampus/doubts/backend/internal/config"
	"github.com/sparkcampus/doubts/backend/internal/identity"
	"github.com/sparkcampus/doubts/backend/internal/ledger"
	"github.com/sparkcampus/doubts/backend/internal/middleware"
	"github.com/sparkcampus/doubts/backend/internal/models"
	"github.com/sparkcampus/doubts/backend/internal/quota"
	"github.com/sparkcampus/doubts/backend/internal/response"
	"github.com/sparkcampus/doubts/backend/internal/services"
)

// Deps is everything the handlers need, built once by the entry point.
type Deps struct {
	Config     *config.Config
	Logger     *zap.Logger
	Verifier   *auth.Verifier
	Passwords  *auth.PasswordService
	GitHub     *auth.GitHubProvider
	Reconciler *identity.Reconciler
	Ledger     *ledger.Service
	Quota      *quota.Gate
	AI         *aiagent.Client

	Doubts      *services.DoubtService
	Answers     *services.AnswerService
	Votes       *services.VoteService
	Communities *services.CommunityService
	Search      *services.SearchService
	Chats       *services.ChatService
	Users       *services.UserService
}

// Handler combines all handler types
type Handler struct {
	Auth      *AuthHandler
	Doubt     *DoubtHandler
	Answer    *AnswerHandler
	Community *CommunityHandler
	User      *UserHandler
	Credit    *CreditHandler
	AI        *AIHandler
	Search    *SearchHandler
}

// NewHandler creates a unified handler with all sub-handlers
func NewHandler(d Deps) *Handler {
	return &Handler{
		Auth:      NewAuthHandler(d),
		Doubt:     NewDoubtHandler(d.Doubts, d.Answers, d.Votes, d.Logger),
		Answer:    NewAnswerHandler(d.Answers, d.Votes, d.Logger),
		Community: NewCommunityHandler(d.Communities, d.Logger),
		User:      NewUserHandler(d.Users, d.Logger),
		Credit:    NewCreditHandler(d.Ledger, d.Users, d.Config.Auth, d.Logger),
		AI:        NewAIHandler(d),
		Search:    NewSearchHandler(d.Search, d.Logger),
	}
}

// bindJSON decodes the request body, reporting bad input as a validation error.
func bindJSON(c *gin.Context, out any) error {
	if err := c.ShouldBindJSON(out); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.ValidationFailed("body", "Request body is required")
		}
		return apperror.ValidationFailed("body", "Invalid request body: "+err.Error())
	}
	return nil
}

func paramID(c *gin.Context, name string) (int, error) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed(name, "Invalid "+name)
	}
	return id, nil
}

func queryInt(c *gin.Context, name string, fallback int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return fallback
	}
	return v
}

// currentUser is only called behind RequireAuth.
func currentUser(c *gin.Context) *models.User {
	user, _ := middleware.CurrentUser(c)
	return user
}

func optionalUser(c *gin.Context) *models.User {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return nil
	}
	return user
}

func respondError(c *gin.Context, logger *zap.Logger, err error) {
	response.Error(c, logger, err)
}
