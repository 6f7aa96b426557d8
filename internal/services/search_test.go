package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkcampus/doubts/backend/internal/apperror"
	"github.com/sparkcampus/doubts/backend/internal/database/dbtest"
)

func TestSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	search := NewSearchService(f.db, f.communities)

	owner := dbtest.CreateUser(t, f.db, "newton@example.com", 0)
	owner.Name = "Isaac Newton"
	require.NoError(t, f.db.Save(owner).Error)
	dbtest.CreateUser(t, f.db, "leibniz@example.com", 0)

	_, err := f.doubts.Create(ctx, owner, CreateDoubtInput{Title: "Newton's third law", Content: "action and reaction"})
	require.NoError(t, err)
	_, err = f.doubts.Create(ctx, owner, CreateDoubtInput{Title: "Benzene", Content: "ring structure"})
	require.NoError(t, err)
	_, err = f.communities.Create(ctx, owner, "Newtonian mechanics", "")
	require.NoError(t, err)

	res, err := search.Search(ctx, "NEWTON", "")
	require.NoError(t, err)
	require.Len(t, res.Doubts, 1)
	assert.Equal(t, "Newton's third law", res.Doubts[0].Title)
	require.Len(t, res.Communities, 1)
	assert.EqualValues(t, 1, res.Communities[0].MemberCount)
	require.Len(t, res.Users, 1)
	assert.Equal(t, "Isaac Newton", res.Users[0].Name)

	res, err = search.Search(ctx, "newton", "users")
	require.NoError(t, err)
	assert.Empty(t, res.Doubts)
	assert.Empty(t, res.Communities)
	assert.Len(t, res.Users, 1)

	// email addresses are not searchable
	res, err = search.Search(ctx, "newton@example", "users")
	require.NoError(t, err)
	assert.Empty(t, res.Users)

	res, err = search.Search(ctx, "_", "doubts")
	require.NoError(t, err)
	assert.Empty(t, res.Doubts)

	_, err = search.Search(ctx, "  ", "")
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	_, err = search.Search(ctx, "x", "posts")
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}
