package policy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sparkcampus/doubts/backend/internal/apperror"
	"github.com/sparkcampus/doubts/backend/internal/models"
)

type adminList []string

func (a adminList) IsAdmin(email string) bool {
	for _, e := range a {
		if e == email {
			return true
		}
	}
	return false
}

func intPtr(i int) *int { return &i }

func TestCanAcceptAnswer(t *testing.T) {
	poster := &models.User{ID: 1}
	other := &models.User{ID: 2}
	anonymous := &models.Doubt{PosterID: 1, IsAnonymous: true}

	assert.NoError(t, CanAcceptAnswer(poster, anonymous))
	assert.True(t, errors.Is(CanAcceptAnswer(other, anonymous), apperror.ErrForbidden))
	assert.True(t, errors.Is(CanAcceptAnswer(nil, anonymous), apperror.ErrForbidden))
}

func TestCanEditAnswer(t *testing.T) {
	author := &models.User{ID: 5}

	assert.NoError(t, CanEditAnswer(author, &models.Answer{AuthorID: intPtr(5)}))
	assert.Error(t, CanEditAnswer(author, &models.Answer{AuthorID: intPtr(6)}))
	assert.Error(t, CanEditAnswer(author, &models.Answer{IsAI: true}))
}

func TestCanLeaveCommunity(t *testing.T) {
	c := &models.Community{CreatedBy: 1}

	assert.True(t, errors.Is(CanLeaveCommunity(&models.User{ID: 1}, c), apperror.ErrValidation))
	assert.NoError(t, CanLeaveCommunity(&models.User{ID: 2}, c))
}

func TestCanViewChatSession(t *testing.T) {
	s := &models.ChatSession{UserID: 3}

	assert.NoError(t, CanViewChatSession(&models.User{ID: 3}, s))
	assert.Error(t, CanViewChatSession(&models.User{ID: 4}, s))
}

func TestCanAdministerCredits(t *testing.T) {
	admins := adminList{"root@example.com"}

	assert.NoError(t, CanAdministerCredits(admins, &models.User{Email: "root@example.com"}))
	assert.Error(t, CanAdministerCredits(admins, &models.User{Email: "eve@example.com"}))
	assert.Error(t, CanAdministerCredits(nil, &models.User{Email: "root@example.com"}))
}
