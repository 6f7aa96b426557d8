// Package policy holds every ownership and role rule in one place so
// handlers and services ask the same question the same way.
package policy

import (
	"github.com/sparkcampus/doubts/backend/internal/apperror"
	"github.com/sparkcampus/doubts/backend/internal/models"
)

// CanAcceptAnswer allows only whoever posted the doubt, including anonymous
// posters, to accept an answer on it.
func CanAcceptAnswer(user *models.User, doubt *models.Doubt) error {
	if user == nil || doubt.PosterID != user.ID {
		return apperror.Forbidden("Only the author of the doubt can accept an answer")
	}
	return nil
}

func CanEditDoubt(user *models.User, doubt *models.Doubt) error {
	if user == nil || doubt.PosterID != user.ID {
		return apperror.Forbidden("You can only edit your own doubts")
	}
	return nil
}

func CanEditAnswer(user *models.User, answer *models.Answer) error {
	if user == nil || answer.AuthorID == nil || *answer.AuthorID != user.ID {
		return apperror.Forbidden("You can only edit your own answers")
	}
	return nil
}

func CanViewChatSession(user *models.User, session *models.ChatSession) error {
	if user == nil || session.UserID != user.ID {
		return apperror.Forbidden("This chat session belongs to someone else")
	}
	return nil
}

// CanLeaveCommunity keeps the creator attached so a community always has an owner.
func CanLeaveCommunity(user *models.User, community *models.Community) error {
	if user == nil {
		return apperror.Forbidden("Sign in to manage memberships")
	}
	if community.CreatedBy == user.ID {
		return apperror.ValidationFailed("community", "Creator cannot leave the community")
	}
	return nil
}

// Admins decides who may grant credits and subscriptions.
type Admins interface {
	IsAdmin(email string) bool
}

func CanAdministerCredits(admins Admins, user *models.User) error {
	if user == nil || admins == nil || !admins.IsAdmin(user.Email) {
		return apperror.Forbidden("Admin access required")
	}
	return nil
}
