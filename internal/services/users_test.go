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

func TestProfileStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	poster := dbtest.CreateUser(t, f.db, "poster@example.com", 0)
	helper := dbtest.CreateUser(t, f.db, "helper@example.com", 0)

	created, err := f.doubts.Create(ctx, poster, CreateDoubtInput{Title: "public", Content: "c"})
	require.NoError(t, err)
	_, err = f.doubts.Create(ctx, poster, CreateDoubtInput{Title: "secret", Content: "c", IsAnonymous: true})
	require.NoError(t, err)
	answer, err := f.answers.Create(ctx, helper, created.Doubt.ID, "a")
	require.NoError(t, err)
	_, err = f.answers.Accept(ctx, poster, answer.ID)
	require.NoError(t, err)

	profile, err := f.users.Profile(ctx, poster.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, profile.Stats.Doubts, "anonymous doubts stay off the public count")
	require.Len(t, profile.RecentDoubts, 1)
	assert.Equal(t, "public", profile.RecentDoubts[0].Title)
	assert.Equal(t, 2, profile.User.Credits)

	profile, err = f.users.Profile(ctx, helper.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, profile.Stats.Answers)
	assert.EqualValues(t, 1, profile.Stats.AcceptedAnswers)

	_, err = f.users.Profile(ctx, 999)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	user := dbtest.CreateUser(t, f.db, "me@example.com", 5)

	name, bio := "Ada", "  counting engines "
	updated, err := f.users.UpdateProfile(context.Background(), user, ProfileInput{Name: &name, Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "Ada", updated.Name)
	assert.Equal(t, "counting engines", updated.Bio)
	assert.Equal(t, 5, updated.Credits)

	blank := " "
	_, err = f.users.UpdateProfile(context.Background(), user, ProfileInput{Name: &blank})
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}

func TestLeaderboard(t *testing.T) {
	f := newFixture(t)
	dbtest.CreateUser(t, f.db, "low@example.com", 1)
	dbtest.CreateUser(t, f.db, "high@example.com", 9)
	dbtest.CreateUser(t, f.db, "mid@example.com", 4)

	board, err := f.users.Leaderboard(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, board, 3)
	assert.Equal(t, []int{9, 4, 1}, []int{board[0].Credits, board[1].Credits, board[2].Credits})
}

func TestSetSubscriptionGrantsCredits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := dbtest.CreateUser(t, f.db, "pro@example.com", 3)

	updated, err := f.users.SetSubscription(ctx, user.ID, models.TierStudentPro)
	require.NoError(t, err)
	assert.Equal(t, models.TierStudentPro, updated.SubscriptionTier)
	assert.Equal(t, 503, updated.Credits)

	updated, err = f.users.SetSubscription(ctx, user.ID, models.TierFree)
	require.NoError(t, err)
	assert.Equal(t, 503, updated.Credits)

	_, err = f.users.SetSubscription(ctx, user.ID, models.SubscriptionTier("GOLD"))
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	_, err = f.users.SetSubscription(ctx, 999, models.TierPremium)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	issues, err := f.ledger.Audit(ctx)
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestRecordFreeQuery(t *testing.T) {
	f := newFixture(t)
	user := dbtest.CreateUser(t, f.db, "me@example.com", 0)

	require.NoError(t, f.users.RecordFreeQuery(context.Background(), user.ID))
	require.NoError(t, f.users.RecordFreeQuery(context.Background(), user.ID))

	var fresh models.User
	require.NoError(t, f.db.First(&fresh, user.ID).Error)
	assert.Equal(t, 2, fresh.FreeQueriesUsed)
}
