package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sparkcampus/doubts/backend/internal/apperror"
	"github.com/sparkcampus/doubts/backend/internal/database"
	"github.com/sparkcampus/doubts/backend/internal/models"
)

type VoteService struct {
	db *gorm.DB
}

func NewVoteService(db *gorm.DB) *VoteService {
	return &VoteService{db: db}
}

type VoteResult struct {
	Upvotes   int             `json:"upvotes"`
	Downvotes int             `json:"downvotes"`
	Score     int             `json:"score"`
	UserVote  models.VoteType `json:"userVote"` // "" when the vote was withdrawn
}

func (s *VoteService) VoteDoubt(ctx context.Context, user *models.User, doubtID int, vt models.VoteType) (*VoteResult, error) {
	return s.vote(ctx, user, &models.Doubt{}, "doubt", "doubt_id", doubtID, vt)
}

func (s *VoteService) VoteAnswer(ctx context.Context, user *models.User, answerID int, vt models.VoteType) (*VoteResult, error) {
	return s.vote(ctx, user, &models.Answer{}, "answer", "answer_id", answerID, vt)
}

// vote toggles: the same type again withdraws the vote, the other type flips
// it. Tallies are recounted from the votes table inside the transaction.
func (s *VoteService) vote(ctx context.Context, user *models.User, target any, resource, column string, id int, vt models.VoteType) (*VoteResult, error) {
	if !vt.Valid() {
		return nil, apperror.ValidationFailed("type", "Vote type must be UP or DOWN")
	}

	var result VoteResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(target, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound(resource, id)
			}
			return err
		}

		var existing models.Vote
		err := tx.Where("user_id = ? AND "+column+" = ?", user.ID, id).First(&existing).Error
		switch {
		case err == nil && existing.Type == vt:
			if err := tx.Delete(&existing).Error; err != nil {
				return fmt.Errorf("withdraw vote: %w", err)
			}
		case err == nil:
			if err := tx.Model(&existing).Update("type", vt).Error; err != nil {
				return fmt.Errorf("change vote: %w", err)
			}
			result.UserVote = vt
		case errors.Is(err, gorm.ErrRecordNotFound):
			v := models.Vote{UserID: user.ID, Type: vt}
			if column == "doubt_id" {
				v.DoubtID = &id
			} else {
				v.AnswerID = &id
			}
			if err := tx.Create(&v).Error; err != nil {
				if database.IsUniqueViolation(err) {
					return apperror.Conflict("Vote already recorded")
				}
				return fmt.Errorf("create vote: %w", err)
			}
			result.UserVote = vt
		default:
			return fmt.Errorf("load vote: %w", err)
		}

		var up, down int64
		if err := tx.Model(&models.Vote{}).Where(column+" = ? AND type = ?", id, models.VoteUp).Count(&up).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Vote{}).Where(column+" = ? AND type = ?", id, models.VoteDown).Count(&down).Error; err != nil {
			return err
		}
		result.Upvotes, result.Downvotes = int(up), int(down)
		result.Score = result.Upvotes - result.Downvotes

		return tx.Model(target).Where("id = ?", id).UpdateColumns(map[string]any{
			"upvotes":   result.Upvotes,
			"downvotes": result.Downvotes,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
