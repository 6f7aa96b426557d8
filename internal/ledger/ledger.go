package ledger

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sparkcampus/doubts/backend/internal/apperror"
	"github.com/sparkcampus/doubts/backend/internal/database"
	"github.com/sparkcampus/doubts/backend/internal/models"
)

const (
	DoubtCreatedReward   = 1
	AnswerAcceptedReward = 2

	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// Adjustment describes one balance mutation. Negative deltas only apply when
// the balance covers them.
type Adjustment struct {
	UserID         int
	Delta          int
	EventType      models.EventType
	Description    string
	DoubtID        *int
	IdempotencyKey string
}

type Result struct {
	Entry    *models.LedgerEntry `json:"entry"`
	Balance  int                 `json:"balance"`
	Replayed bool                `json:"replayed"`
}

// Discrepancy is a user whose balance disagrees with their journal.
type Discrepancy struct {
	UserID      int    `json:"userId"`
	Email       string `json:"email"`
	Credits     int    `json:"credits"`
	LedgerTotal int    `json:"ledgerTotal"`
}

type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// Adjust applies adj in its own transaction.
func (s *Service) Adjust(ctx context.Context, adj Adjustment) (*Result, error) {
	var res *Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		res, err = s.AdjustTx(tx, adj)
		return err
	})
	if err != nil {
		// Two requests raced on the same key; the loser reports the winner's entry.
		if adj.IdempotencyKey != "" && database.IsUniqueViolation(err) {
			return s.replay(s.db.WithContext(ctx), adj)
		}
		return nil, err
	}

	if !res.Replayed {
		s.logger.Info("credits adjusted",
			zap.Int("user_id", adj.UserID),
			zap.Int("delta", adj.Delta),
			zap.String("event", string(adj.EventType)),
			zap.Int("balance", res.Balance),
		)
	}
	return res, nil
}

// AdjustTx applies adj inside the caller's transaction so the balance change
// and its journal entry commit together with the caller's own writes.
func (s *Service) AdjustTx(tx *gorm.DB, adj Adjustment) (*Result, error) {
	if err := validate(adj); err != nil {
		return nil, err
	}

	if adj.IdempotencyKey != "" {
		res, err := s.replay(tx, adj)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	q := tx.Model(&models.User{}).Where("id = ?", adj.UserID)
	if adj.Delta < 0 {
		q = q.Where("credits >= ?", -adj.Delta)
	}
	upd := q.Update("credits", gorm.Expr("credits + ?", adj.Delta))
	if upd.Error != nil {
		return nil, fmt.Errorf("update balance: %w", upd.Error)
	}

	if upd.RowsAffected == 0 {
		var user models.User
		if err := tx.Select("id", "credits").First(&user, adj.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperror.NotFound("user", adj.UserID)
			}
			return nil, fmt.Errorf("load user: %w", err)
		}
		return nil, apperror.InsufficientBalance(-adj.Delta, user.Credits)
	}

	var balance int
	if err := tx.Model(&models.User{}).Select("credits").Where("id = ?", adj.UserID).Row().Scan(&balance); err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}

	entry := &models.LedgerEntry{
		UserID:       adj.UserID,
		Delta:        adj.Delta,
		EventType:    adj.EventType,
		Description:  adj.Description,
		DoubtID:      adj.DoubtID,
		BalanceAfter: balance,
	}
	if adj.IdempotencyKey != "" {
		key := adj.IdempotencyKey
		entry.IdempotencyKey = &key
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("append ledger entry: %w", err)
	}

	return &Result{Entry: entry, Balance: balance}, nil
}

func (s *Service) replay(tx *gorm.DB, adj Adjustment) (*Result, error) {
	var entry models.LedgerEntry
	err := tx.Where("user_id = ? AND idempotency_key = ?", adj.UserID, adj.IdempotencyKey).First(&entry).Error
	if err != nil {
		return nil, err
	}
	if entry.Delta != adj.Delta || entry.EventType != adj.EventType {
		return nil, apperror.Conflict("idempotency key was already used for a different adjustment")
	}

	var balance int
	if err := tx.Model(&models.User{}).Select("credits").Where("id = ?", adj.UserID).Row().Scan(&balance); err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}
	return &Result{Entry: &entry, Balance: balance, Replayed: true}, nil
}

func validate(adj Adjustment) error {
	switch {
	case adj.UserID <= 0:
		return apperror.ValidationFailed("userId", "user id is required")
	case adj.Delta == 0:
		return apperror.ValidationFailed("amount", "amount must not be zero")
	case adj.EventType == "":
		return apperror.ValidationFailed("eventType", "event type is required")
	case len(adj.IdempotencyKey) > 128:
		return apperror.ValidationFailed("idempotencyKey", "idempotency key is too long")
	}
	return nil
}

func (s *Service) Balance(ctx context.Context, userID int) (int, error) {
	var user models.User
	err := s.db.WithContext(ctx).Select("id", "credits").First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, apperror.NotFound("user", userID)
	}
	if err != nil {
		return 0, fmt.Errorf("load balance: %w", err)
	}
	return user.Credits, nil
}

// History returns the newest entries first. limit <= 0 means the default.
func (s *Service) History(ctx context.Context, userID, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	entries := []models.LedgerEntry{}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").Order("id desc").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return entries, nil
}

// Audit lists every user whose balance differs from the sum of their journal.
func (s *Service) Audit(ctx context.Context) ([]Discrepancy, error) {
	var out []Discrepancy
	err := s.db.WithContext(ctx).
		Table("users AS u").
		Select("u.id AS user_id, u.email AS email, u.credits AS credits, COALESCE(SUM(l.delta), 0) AS ledger_total").
		Joins("LEFT JOIN ledger_entries AS l ON l.user_id = u.id").
		Group("u.id, u.email, u.credits").
		Having("u.credits <> COALESCE(SUM(l.delta), 0)").
		Order("u.id").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("audit ledger: %w", err)
	}
	return out, nil
}
