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

func TestCommunityMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := dbtest.CreateUser(t, f.db, "owner@example.com", 0)
	member := dbtest.CreateUser(t, f.db, "member@example.com", 0)

	community, err := f.communities.Create(ctx, owner, "Physics Club", "forces and fields")
	require.NoError(t, err)
	assert.EqualValues(t, 1, community.MemberCount)
	assert.True(t, community.IsMember)

	_, err = f.communities.Create(ctx, member, "Physics Club", "")
	assert.True(t, errors.Is(err, apperror.ErrConflict))

	m, err := f.communities.Join(ctx, member, community.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, m.Role)

	_, err = f.communities.Join(ctx, member, community.ID)
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	view, err := f.communities.Get(ctx, community.ID, member)
	require.NoError(t, err)
	assert.EqualValues(t, 2, view.MemberCount)
	assert.True(t, view.IsMember)

	err = f.communities.Leave(ctx, owner, community.ID)
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	require.NoError(t, f.communities.Leave(ctx, member, community.ID))
	err = f.communities.Leave(ctx, member, community.ID)
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	m, err = f.communities.Membership(ctx, member, community.ID)
	require.NoError(t, err)
	assert.False(t, m.IsMember)

	_, err = f.communities.Join(ctx, member, 999)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestCommunityPostsAndComments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := dbtest.CreateUser(t, f.db, "owner@example.com", 0)
	outsider := dbtest.CreateUser(t, f.db, "outsider@example.com", 0)

	community, err := f.communities.Create(ctx, owner, "Chemistry", "")
	require.NoError(t, err)

	_, err = f.communities.CreatePost(ctx, outsider, community.ID, CreateDoubtInput{Title: "t", Content: "c"})
	assert.True(t, errors.Is(err, apperror.ErrForbidden))

	// the plain doubt endpoint enforces the same rule
	_, err = f.doubts.Create(ctx, outsider, CreateDoubtInput{Title: "t", Content: "c", CommunityID: &community.ID})
	assert.True(t, errors.Is(err, apperror.ErrForbidden))
	balance, err := f.ledger.Balance(ctx, outsider.ID)
	require.NoError(t, err)
	assert.Zero(t, balance)

	post, err := f.communities.CreatePost(ctx, owner, community.ID, CreateDoubtInput{Title: "Titration", Content: "how?"})
	require.NoError(t, err)
	assert.Equal(t, 1, post.Credits)
	require.NotNil(t, post.Doubt.CommunityID)

	// unrelated doubts stay out of the community feed
	_, err = f.doubts.Create(ctx, owner, CreateDoubtInput{Title: "elsewhere", Content: "c"})
	require.NoError(t, err)

	page, err := f.communities.Posts(ctx, community.ID, ListQuery{})
	require.NoError(t, err)
	require.Len(t, page.Doubts, 1)
	assert.Equal(t, "Titration", page.Doubts[0].Title)

	_, err = f.communities.AddComment(ctx, outsider, community.ID, post.Doubt.ID, "first")
	require.NoError(t, err)
	_, err = f.communities.AddComment(ctx, owner, community.ID, post.Doubt.ID, "second")
	require.NoError(t, err)

	comments, err := f.communities.Comments(ctx, community.ID, post.Doubt.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "first", comments[0].Content)

	_, err = f.communities.Comments(ctx, community.ID+1, post.Doubt.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestListCommunitiesNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := dbtest.CreateUser(t, f.db, "owner@example.com", 0)

	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		_, err := f.communities.Create(ctx, owner, name, "")
		require.NoError(t, err)
	}

	recent, err := f.communities.List(ctx, RecentCommunities, nil)
	require.NoError(t, err)
	require.Len(t, recent, RecentCommunities)
	assert.Equal(t, "f", recent[0].Name)
	assert.False(t, recent[0].IsMember)

	all, err := f.communities.List(ctx, 0, owner)
	require.NoError(t, err)
	require.Len(t, all, 6)
	assert.True(t, all[5].IsMember)
}
