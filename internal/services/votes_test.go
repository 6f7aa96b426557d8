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

func TestVoteDoubtToggles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	poster := dbtest.CreateUser(t, f.db, "poster@example.com", 0)
	voter := dbtest.CreateUser(t, f.db, "voter@example.com", 0)
	second := dbtest.CreateUser(t, f.db, "second@example.com", 0)

	created, err := f.doubts.Create(ctx, poster, CreateDoubtInput{Title: "t", Content: "c"})
	require.NoError(t, err)
	id := created.Doubt.ID

	steps := []struct {
		name     string
		user     *models.User
		vote     models.VoteType
		up, down int
		userVote models.VoteType
	}{
		{"first upvote", voter, models.VoteUp, 1, 0, models.VoteUp},
		{"same vote withdraws", voter, models.VoteUp, 0, 0, ""},
		{"downvote", voter, models.VoteDown, 0, 1, models.VoteDown},
		{"opposite vote flips", voter, models.VoteUp, 1, 0, models.VoteUp},
		{"second voter adds", second, models.VoteUp, 2, 0, models.VoteUp},
		{"second voter flips", second, models.VoteDown, 1, 1, models.VoteDown},
	}
	for _, step := range steps {
		res, err := f.votes.VoteDoubt(ctx, step.user, id, step.vote)
		require.NoError(t, err, step.name)
		assert.Equal(t, step.up, res.Upvotes, step.name)
		assert.Equal(t, step.down, res.Downvotes, step.name)
		assert.Equal(t, step.up-step.down, res.Score, step.name)
		assert.Equal(t, step.userVote, res.UserVote, step.name)
	}

	var doubt models.Doubt
	require.NoError(t, f.db.First(&doubt, id).Error)
	assert.Equal(t, 1, doubt.Upvotes)
	assert.Equal(t, 1, doubt.Downvotes)
}

func TestVoteAnswer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	poster := dbtest.CreateUser(t, f.db, "poster@example.com", 0)

	created, err := f.doubts.Create(ctx, poster, CreateDoubtInput{Title: "t", Content: "c"})
	require.NoError(t, err)
	answer, err := f.answers.Create(ctx, poster, created.Doubt.ID, "a")
	require.NoError(t, err)

	res, err := f.votes.VoteAnswer(ctx, poster, answer.ID, models.VoteDown)
	require.NoError(t, err)
	assert.Equal(t, -1, res.Score)

	// a doubt vote with the same id is tracked separately
	res, err = f.votes.VoteDoubt(ctx, poster, created.Doubt.ID, models.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Score)

	_, err = f.votes.VoteAnswer(ctx, poster, 999, models.VoteUp)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	_, err = f.votes.VoteAnswer(ctx, poster, answer.ID, models.VoteType("SIDEWAYS"))
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}
