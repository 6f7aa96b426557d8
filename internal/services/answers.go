package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sparkcampus/doubts/backend/internal/apperror"
	"github.com/sparkcampus/doubts/backend/internal/ledger"
	"github.com/sparkcampus/doubts/backend/internal/models"
	"github.com/sparkcampus/doubts/backend/internal/policy"
)

type AnswerService struct {
	db     *gorm.DB
	ledger *ledger.Service
	logger *zap.Logger
}

func NewAnswerService(db *gorm.DB, ledger *ledger.Service, logger *zap.Logger) *AnswerService {
	return &AnswerService{db: db, ledger: ledger, logger: logger}
}

// Create adds a human answer to a doubt.
func (s *AnswerService) Create(ctx context.Context, user *models.User, doubtID int, content string) (*models.AnswerView, error) {
	answer := &models.Answer{DoubtID: doubtID, AuthorID: &user.ID, Content: strings.TrimSpace(content)}
	if err := s.insert(ctx, answer); err != nil {
		return nil, err
	}
	answer.Author = user
	view := answer.View()
	return &view, nil
}

// CreateAI stores an AI-generated reply on a doubt.
func (s *AnswerService) CreateAI(ctx context.Context, doubtID int, content string) (*models.AnswerView, error) {
	answer := &models.Answer{DoubtID: doubtID, IsAI: true, Content: strings.TrimSpace(content)}
	if err := s.insert(ctx, answer); err != nil {
		return nil, err
	}
	view := answer.View()
	return &view, nil
}

func (s *AnswerService) insert(ctx context.Context, answer *models.Answer) error {
	if answer.Content == "" {
		return apperror.ValidationFailed("content", "Content is required")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Doubt{}).Where("id = ?", answer.DoubtID).
			UpdateColumn("answers_count", gorm.Expr("answers_count + 1"))
		if res.Error != nil {
			return fmt.Errorf("count answer: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperror.NotFound("doubt", answer.DoubtID)
		}
		if err := tx.Create(answer).Error; err != nil {
			return fmt.Errorf("create answer: %w", err)
		}
		return nil
	})
}

// ListForDoubt returns answers newest first.
func (s *AnswerService) ListForDoubt(ctx context.Context, doubtID int) ([]models.AnswerView, error) {
	db := s.db.WithContext(ctx)
	if err := db.Select("id").First(&models.Doubt{}, doubtID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("doubt", doubtID)
		}
		return nil, err
	}

	var answers []models.Answer
	if err := db.Preload("Author").Where("doubt_id = ?", doubtID).Order("created_at desc").Order("id desc").Find(&answers).Error; err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	views := make([]models.AnswerView, 0, len(answers))
	for i := range answers {
		views = append(views, answers[i].View())
	}
	return views, nil
}

func (s *AnswerService) Update(ctx context.Context, user *models.User, id int, content string) (*models.AnswerView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperror.ValidationFailed("content", "Content is required")
	}

	db := s.db.WithContext(ctx)
	var answer models.Answer
	if err := db.First(&answer, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("answer", id)
		}
		return nil, err
	}
	if err := policy.CanEditAnswer(user, &answer); err != nil {
		return nil, err
	}
	if err := db.Model(&answer).Update("content", content).Error; err != nil {
		return nil, fmt.Errorf("update answer: %w", err)
	}
	answer.Author = user
	view := answer.View()
	return &view, nil
}

type AcceptResult struct {
	Answer  models.AnswerView `json:"answer"`
	Awarded int               `json:"awarded"`
}

// Accept marks answerID as the single accepted answer of its doubt, resolves
// the doubt and pays the answer author. Self-answers and AI answers earn
// nothing, and re-accepting the current answer pays nothing again.
func (s *AnswerService) Accept(ctx context.Context, user *models.User, answerID int) (*AcceptResult, error) {
	var (
		answer  models.Answer
		awarded int
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&answer, answerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("answer", answerID)
			}
			return err
		}

		// Serializes concurrent accepts on the same doubt.
		var doubt models.Doubt
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&doubt, answer.DoubtID).Error; err != nil {
			return fmt.Errorf("load doubt: %w", err)
		}
		if err := policy.CanAcceptAnswer(user, &doubt); err != nil {
			return err
		}

		if err := tx.First(&answer, answerID).Error; err != nil {
			return err
		}
		if answer.IsAccepted {
			return nil
		}

		if err := tx.Model(&models.Answer{}).
			Where("doubt_id = ? AND id <> ? AND is_accepted = ?", doubt.ID, answer.ID, true).
			Update("is_accepted", false).Error; err != nil {
			return fmt.Errorf("clear accepted: %w", err)
		}
		if err := tx.Model(&answer).Update("is_accepted", true).Error; err != nil {
			return fmt.Errorf("accept answer: %w", err)
		}
		if err := tx.Model(&doubt).Update("is_resolved", true).Error; err != nil {
			return fmt.Errorf("resolve doubt: %w", err)
		}

		if answer.AuthorID == nil || *answer.AuthorID == user.ID {
			return nil
		}
		if _, err := s.ledger.AdjustTx(tx, ledger.Adjustment{
			UserID:      *answer.AuthorID,
			Delta:       ledger.AnswerAcceptedReward,
			EventType:   models.EventAnswerAccepted,
			Description: "Answer accepted",
			DoubtID:     &doubt.ID,
		}); err != nil {
			return err
		}
		awarded = ledger.AnswerAcceptedReward
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Preload("Author").First(&answer, answerID).Error; err != nil {
		return nil, fmt.Errorf("reload answer: %w", err)
	}

	s.logger.Info("answer accepted", zap.Int("answer_id", answerID), zap.Int("awarded", awarded))
	return &AcceptResult{Answer: answer.View(), Awarded: awarded}, nil
}
