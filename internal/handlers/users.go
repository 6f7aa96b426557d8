package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sparkcampus/doubts/backend/internal/services"
)

type UserHandler struct {
	users  *services.UserService
	logger *zap.Logger
}

func NewUserHandler(users *services.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// GetUserProfile returns the public profile of any user
func (h *UserHandler) GetUserProfile(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	profile, err := h.users.Profile(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// GetMyProfile returns the caller's profile along with their private fields
func (h *UserHandler) GetMyProfile(c *gin.Context) {
	user := currentUser(c)
	profile, err := h.users.Profile(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":         user,
		"stats":        profile.Stats,
		"recentDoubts": profile.RecentDoubts,
	})
}

func (h *UserHandler) UpdateMyProfile(c *gin.Context) {
	var input services.ProfileInput
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), currentUser(c), input)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated", "user": user})
}

func (h *UserHandler) GetLeaderboard(c *gin.Context) {
	users, err := h.users.Leaderboard(c.Request.Context(), queryInt(c, "limit", services.LeaderboardSize))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, users)
}
