package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkcampus/doubts/backend/internal/apperror"
	"github.com/sparkcampus/doubts/backend/internal/database/dbtest"
	"github.com/sparkcampus/doubts/backend/internal/models"
)

func TestChatSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chats := NewChatService(f.db)
	owner := dbtest.CreateUser(t, f.db, "owner@example.com", 0)
	other := dbtest.CreateUser(t, f.db, "other@example.com", 0)

	qa, err := chats.CreateSession(ctx, owner, "", "", "")
	require.NoError(t, err)
	assert.Equal(t, models.SessionQA, qa.Type)
	assert.Equal(t, models.DefaultSystemPrompt, qa.SystemPrompt)
	assert.Len(t, qa.ID, 36)

	quiz, err := chats.CreateSession(ctx, owner, "quiz", "Organic chemistry", "Quiz me")
	require.NoError(t, err)
	assert.Equal(t, models.SessionQuiz, quiz.Type)

	_, err = chats.CreateSession(ctx, owner, "poetry", "", "")
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	require.NoError(t, chats.Append(ctx, qa.ID,
		models.ChatMessage{Role: "user", Content: "hi"},
		models.ChatMessage{Role: "assistant", Content: "hello"},
	))

	got, err := chats.Get(ctx, owner, qa.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "hello", got.Messages[1].Content)

	_, err = chats.Get(ctx, other, qa.ID)
	assert.True(t, errors.Is(err, apperror.ErrForbidden))

	_, err = chats.Get(ctx, owner, "missing")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	all, err := chats.ListSessions(ctx, owner, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, qa.ID, all[0].ID)

	quizzes, err := chats.ListSessions(ctx, owner, "QUIZ")
	require.NoError(t, err)
	require.Len(t, quizzes, 1)
	assert.Equal(t, quiz.ID, quizzes[0].ID)

	none, err := chats.ListSessions(ctx, other, "")
	require.NoError(t, err)
	assert.Empty(t, none)
}
