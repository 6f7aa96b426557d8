package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sparkcampus/doubts/backend/internal/apperror"
	"github.com/sparkcampus/doubts/backend/internal/ledger"
	"github.com/sparkcampus/doubts/backend/internal/models"
)

const LeaderboardSize = 10

type UserService struct {
	db     *gorm.DB
	ledger *ledger.Service
	logger *zap.Logger
}

func NewUserService(db *gorm.DB, ledger *ledger.Service, logger *zap.Logger) *UserService {
	return &UserService{db: db, ledger: ledger, logger: logger}
}

type UserStats struct {
	Doubts          int64 `json:"doubts"`
	Answers         int64 `json:"answers"`
	AcceptedAnswers int64 `json:"acceptedAnswers"`
}

type Profile struct {
	User         *models.PublicUser `json:"user"`
	Bio          string             `json:"bio"`
	Stats        UserStats          `json:"stats"`
	RecentDoubts []models.DoubtView `json:"recentDoubts"`
}

// Profile is the public view of a user. Anonymous doubts are left out.
func (s *UserService) Profile(ctx context.Context, id int) (*Profile, error) {
	db := s.db.WithContext(ctx)

	var user models.User
	if err := db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	stats, err := s.stats(ctx, id)
	if err != nil {
		return nil, err
	}

	var doubts []models.Doubt
	if err := db.Where("author_id = ?", id).Order("created_at desc").Limit(DefaultPageSize).Find(&doubts).Error; err != nil {
		return nil, fmt.Errorf("load doubts: %w", err)
	}
	recent := make([]models.DoubtView, 0, len(doubts))
	for i := range doubts {
		doubts[i].Author = &user
		recent = append(recent, doubts[i].View())
	}

	return &Profile{User: user.Public(), Bio: user.Bio, Stats: *stats, RecentDoubts: recent}, nil
}

func (s *UserService) stats(ctx context.Context, id int) (*UserStats, error) {
	db := s.db.WithContext(ctx)
	var st UserStats
	if err := db.Model(&models.Doubt{}).Where("author_id = ?", id).Count(&st.Doubts).Error; err != nil {
		return nil, fmt.Errorf("count doubts: %w", err)
	}
	if err := db.Model(&models.Answer{}).Where("author_id = ?", id).Count(&st.Answers).Error; err != nil {
		return nil, fmt.Errorf("count answers: %w", err)
	}
	if err := db.Model(&models.Answer{}).Where("author_id = ? AND is_accepted = ?", id, true).Count(&st.AcceptedAnswers).Error; err != nil {
		return nil, fmt.Errorf("count accepted answers: %w", err)
	}
	return &st, nil
}

type ProfileInput struct {
	Name      *string `json:"name"`
	Bio       *string `json:"bio"`
	AvatarURL *string `json:"avatarUrl"`
}

// UpdateProfile changes the caller's own display fields. Credits and tier
// are never writable here.
func (s *UserService) UpdateProfile(ctx context.Context, user *models.User, in ProfileInput) (*models.User, error) {
	updates := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" || len(name) > 100 {
			return nil, apperror.ValidationFailed("name", "Name must be 1-100 characters")
		}
		updates["name"] = name
	}
	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		if len(bio) > 500 {
			return nil, apperror.ValidationFailed("bio", "Bio must be at most 500 characters")
		}
		updates["bio"] = bio
	}
	if in.AvatarURL != nil {
		updates["avatar_url"] = strings.TrimSpace(*in.AvatarURL)
	}

	db := s.db.WithContext(ctx)
	if len(updates) > 0 {
		if err := db.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update profile: %w", err)
		}
	}

	var fresh models.User
	if err := db.First(&fresh, user.ID).Error; err != nil {
		return nil, fmt.Errorf("reload user: %w", err)
	}
	return &fresh, nil
}

// Leaderboard ranks users by credits, highest first.
func (s *UserService) Leaderboard(ctx context.Context, limit int) ([]models.PublicUser, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = LeaderboardSize
	}
	var users []models.User
	if err := s.db.WithContext(ctx).Order("credits desc").Order("id asc").Limit(limit).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}
	out := make([]models.PublicUser, 0, len(users))
	for i := range users {
		out = append(out, *users[i].Public())
	}
	return out, nil
}

// RecordFreeQuery counts one AI query against a signed-in user's usage.
func (s *UserService) RecordFreeQuery(ctx context.Context, userID int) error {
	err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		UpdateColumn("free_queries_used", gorm.Expr("free_queries_used + 1")).Error
	if err != nil {
		return fmt.Errorf("record free query: %w", err)
	}
	return nil
}

// SetSubscription moves a user to tier and journals the tier's credit grant
// in the same transaction.
func (s *UserService) SetSubscription(ctx context.Context, userID int, tier models.SubscriptionTier) (*models.User, error) {
	if !tier.Valid() {
		return nil, apperror.ValidationFailed("tier", "Tier must be FREE, STUDENT_PRO or PREMIUM")
	}

	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).Where("id = ?", userID).Update("subscription_tier", tier)
		if res.Error != nil {
			return fmt.Errorf("update tier: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperror.NotFound("user", userID)
		}
		if grant := ledger.TierGrant(tier); grant > 0 {
			if _, err := s.ledger.AdjustTx(tx, ledger.Adjustment{
				UserID:      userID,
				Delta:       grant,
				EventType:   models.EventSubscriptionGrant,
				Description: fmt.Sprintf("Upgraded to %s", tier),
			}); err != nil {
				return err
			}
		}
		return tx.First(&user, userID).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("subscription changed", zap.Int("user_id", userID), zap.String("tier", string(tier)))
	return &user, nil
}
