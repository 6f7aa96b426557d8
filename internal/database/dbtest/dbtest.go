// Package dbtest provides an in-memory SQLite database with the full schema
// for package tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sparkcampus/doubts/backend/internal/config"
	"github.com/sparkcampus/doubts/backend/internal/database"
	"github.com/sparkcampus/doubts/backend/internal/models"
)

// New returns a migrated database private to t. A single connection
// serializes transactions the way row locks would on Postgres.
func New(t *testing.T) *gorm.DB {
	t.Helper()
	return NewService(t).DB()
}

// NewService is New for callers that need the full database.Service.
func NewService(t *testing.T) database.Service {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	svc, err := database.Open(sqlite.Open(dsn), config.DatabaseConfig{DBName: "test", MaxOpenConns: 1}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	require.NoError(t, database.Migrate(svc.DB()))
	return svc
}

// CreateUser inserts a user with the given balance. The balance is backed by
// an ADMIN_ADJUSTMENT journal entry so ledger audits stay clean.
func CreateUser(t *testing.T, db *gorm.DB, email string, credits int) *models.User {
	t.Helper()

	user := &models.User{
		Email:            email,
		Name:             email,
		Credits:          credits,
		SubscriptionTier: models.TierFree,
		AuthProvider:     "credentials",
	}
	require.NoError(t, db.Create(user).Error)

	if credits != 0 {
		entry := &models.LedgerEntry{
			UserID:       user.ID,
			Delta:        credits,
			EventType:    models.EventAdminAdjustment,
			Description:  "test seed",
			BalanceAfter: credits,
		}
		require.NoError(t, db.Create(entry).Error)
	}
	return user
}
