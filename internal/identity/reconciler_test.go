package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sparkcampus/doubts/backend/internal/apperror"
	"github.com/sparkcampus/doubts/backend/internal/auth"
	"github.com/sparkcampus/doubts/backend/internal/database/dbtest"
	"github.com/sparkcampus/doubts/backend/internal/models"
)

func federated(email, name string) auth.VerifiedIdentity {
	return auth.VerifiedIdentity{
		Source:        auth.SourceFederated,
		Provider:      auth.ProviderFirebase,
		Subject:       "uid-1",
		Email:         email,
		EmailVerified: true,
		Name:          name,
		AvatarURL:     "https://example.com/a.png",
	}
}

func TestResolveCreatesOnce(t *testing.T) {
	db := dbtest.New(t)
	r := NewReconciler(db, zap.NewNop())
	ctx := context.Background()

	first, err := r.Resolve(ctx, federated("Ada@Example.com", "Ada"))
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", first.Email)
	assert.Equal(t, 0, first.Credits)
	assert.Equal(t, "uid-1", first.FirebaseUID)
	assert.NotNil(t, first.EmailVerifiedAt)

	second, err := r.Resolve(ctx, federated("ada@example.com", "Ada"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestResolveRefreshesProfileLastWriterWins(t *testing.T) {
	db := dbtest.New(t)
	r := NewReconciler(db, zap.NewNop())
	ctx := context.Background()

	user, err := r.Resolve(ctx, federated("ada@example.com", "Ada"))
	require.NoError(t, err)

	id := federated("ada@example.com", "Ada Lovelace")
	id.AvatarURL = "https://example.com/new.png"
	_, err = r.Resolve(ctx, id)
	require.NoError(t, err)

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, user.ID).Error)
	assert.Equal(t, "Ada Lovelace", reloaded.Name)
	assert.Equal(t, "https://example.com/new.png", reloaded.AvatarURL)
}

func TestResolveSessionNeverRefreshes(t *testing.T) {
	db := dbtest.New(t)
	r := NewReconciler(db, zap.NewNop())
	ctx := context.Background()
	user := dbtest.CreateUser(t, db, "ada@example.com", 3)

	got, err := r.Resolve(ctx, auth.VerifiedIdentity{
		Source: auth.SourceSession,
		UserID: user.ID,
		Email:  "ada@example.com",
		Name:   "Stale Name",
	})
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, 3, got.Credits)
	assert.Equal(t, "ada@example.com", got.Name)
}

func TestResolveFallbackEmail(t *testing.T) {
	r := NewReconciler(dbtest.New(t), zap.NewNop())

	user, err := r.Resolve(context.Background(), federated("", ""))
	require.NoError(t, err)
	assert.Equal(t, "uid-1@users.noreply.firebaseapp.com", user.Email)
	assert.Equal(t, "uid-1", user.Name)
}

func TestResolveWithoutEmail(t *testing.T) {
	r := NewReconciler(dbtest.New(t), zap.NewNop())

	_, err := r.Resolve(context.Background(), auth.VerifiedIdentity{Source: auth.SourceSession})
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}

func TestRegister(t *testing.T) {
	r := NewReconciler(dbtest.New(t), zap.NewNop())
	ctx := context.Background()

	user, err := r.Register(ctx, " Bob@Example.com ", "", "hash")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", user.Email)
	assert.Equal(t, "bob", user.Name)
	assert.Equal(t, auth.ProviderCredentials, user.AuthProvider)

	_, err = r.Register(ctx, "bob@example.com", "Bob", "hash")
	assert.True(t, errors.Is(err, apperror.ErrConflict))

	found, err := r.ByEmail(ctx, "BOB@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = r.ByEmail(ctx, "nobody@example.com")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}
