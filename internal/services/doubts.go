package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/sparkcampus/doubts/backend/internal/apperror"
	"github.com/sparkcampus/doubts/backend/internal/ledger"
	"github.com/sparkcampus/doubts/backend/internal/models"
	"github.com/sparkcampus/doubts/backend/internal/policy"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 50
	maxTags         = 10
	maxTitleLength  = 200
)

type DoubtService struct {
	db     *gorm.DB
	ledger *ledger.Service
	logger *zap.Logger
}

func NewDoubtService(db *gorm.DB, ledger *ledger.Service, logger *zap.Logger) *DoubtService {
	return &DoubtService{db: db, ledger: ledger, logger: logger}
}

type CreateDoubtInput struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Subject     string   `json:"subject"`
	Tags        []string `json:"tags"`
	ImageURL    string   `json:"imageUrl"`
	IsAnonymous bool     `json:"isAnonymous"`
	CommunityID *int     `json:"communityId"`
}

type CreatedDoubt struct {
	Doubt   models.DoubtView `json:"doubt"`
	Credits int              `json:"credits"`
}

// Create stores the doubt and awards the poster in one transaction; if the
// journal write fails the doubt is not stored either. A doubt can only be
// placed in a community the poster belongs to.
func (s *DoubtService) Create(ctx context.Context, user *models.User, in CreateDoubtInput) (*CreatedDoubt, error) {
	title := strings.TrimSpace(in.Title)
	content := strings.TrimSpace(in.Content)
	switch {
	case title == "":
		return nil, apperror.ValidationFailed("title", "Title is required")
	case len(title) > maxTitleLength:
		return nil, apperror.ValidationFailed("title", "Title is too long")
	case content == "":
		return nil, apperror.ValidationFailed("content", "Content is required")
	}

	doubt := &models.Doubt{
		Title:       title,
		Content:     content,
		Subject:     NormalizeSubject(in.Subject),
		Tags:        NormalizeTags(in.Tags),
		ImageURL:    strings.TrimSpace(in.ImageURL),
		IsAnonymous: in.IsAnonymous,
		PosterID:    user.ID,
		CommunityID: in.CommunityID,
	}
	if !in.IsAnonymous {
		doubt.AuthorID = &user.ID
	}

	var balance int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.CommunityID != nil {
			if err := tx.Select("id").First(&models.Community{}, *in.CommunityID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperror.NotFound("community", *in.CommunityID)
				}
				return err
			}
			var members int64
			if err := tx.Model(&models.CommunityMember{}).
				Where("user_id = ? AND community_id = ?", user.ID, *in.CommunityID).
				Count(&members).Error; err != nil {
				return fmt.Errorf("load membership: %w", err)
			}
			if members == 0 {
				return apperror.Forbidden("Join the community to post")
			}
		}

		if err := tx.Create(doubt).Error; err != nil {
			return fmt.Errorf("create doubt: %w", err)
		}

		res, err := s.ledger.AdjustTx(tx, ledger.Adjustment{
			UserID:      user.ID,
			Delta:       ledger.DoubtCreatedReward,
			EventType:   models.EventDoubtCreated,
			Description: "Posted a doubt",
			DoubtID:     &doubt.ID,
		})
		if err != nil {
			return err
		}
		balance = res.Balance
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("doubt created", zap.Int("doubt_id", doubt.ID), zap.Int("user_id", user.ID))

	if !doubt.IsAnonymous {
		doubt.Author = user
	}
	return &CreatedDoubt{Doubt: doubt.View(), Credits: balance}, nil
}

type ListQuery struct {
	Page        int
	Limit       int
	Subject     string
	Tag         string
	Search      string
	SortBy      string
	Order       string
	CommunityID *int
}

type DoubtPage struct {
	Doubts     []models.DoubtView `json:"doubts"`
	Total      int64              `json:"total"`
	Page       int                `json:"page"`
	Limit      int                `json:"limit"`
	TotalPages int                `json:"totalPages"`
	HasMore    bool               `json:"hasMore"`
}

var sortColumns = map[string]string{
	"createdAt": "created_at",
	"upvotes":   "upvotes",
	"views":     "views",
}

func (s *DoubtService) List(ctx context.Context, q ListQuery) (*DoubtPage, error) {
	page, limit := clampPage(q.Page, q.Limit)

	db := s.db.WithContext(ctx).Model(&models.Doubt{})
	if q.Subject != "" {
		db = db.Where("subject = ?", NormalizeSubject(q.Subject))
	}
	if tag := strings.TrimSpace(q.Tag); tag != "" {
		db = db.Where("tags LIKE ? ESCAPE '\\'", "%"+escapeLike(`"`+cases.Lower(language.Und).String(tag)+`"`)+"%")
	}
	if q.Search != "" {
		pattern := likePattern(q.Search)
		db = db.Where("(LOWER(title) LIKE ? ESCAPE '\\' OR LOWER(content) LIKE ? ESCAPE '\\')", pattern, pattern)
	}
	if q.CommunityID != nil {
		db = db.Where("community_id = ?", *q.CommunityID)
	}
	db = db.Session(&gorm.Session{})

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count doubts: %w", err)
	}

	column, ok := sortColumns[q.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "desc"
	if strings.EqualFold(q.Order, "asc") {
		direction = "asc"
	}

	var doubts []models.Doubt
	err := db.Preload("Author").
		Order(column + " " + direction).Order("id " + direction).
		Offset((page - 1) * limit).Limit(limit).
		Find(&doubts).Error
	if err != nil {
		return nil, fmt.Errorf("list doubts: %w", err)
	}

	views := make([]models.DoubtView, 0, len(doubts))
	for i := range doubts {
		views = append(views, doubts[i].View())
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &DoubtPage{
		Doubts:     views,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
		HasMore:    page < totalPages,
	}, nil
}

// Get returns a doubt with its answers oldest first and counts the view.
func (s *DoubtService) Get(ctx context.Context, id int) (*models.DoubtView, error) {
	db := s.db.WithContext(ctx)

	res := db.Model(&models.Doubt{}).Where("id = ?", id).UpdateColumn("views", gorm.Expr("views + 1"))
	if res.Error != nil {
		return nil, fmt.Errorf("count view: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperror.NotFound("doubt", id)
	}

	var doubt models.Doubt
	if err := db.Preload("Author").First(&doubt, id).Error; err != nil {
		return nil, fmt.Errorf("load doubt: %w", err)
	}

	var answers []models.Answer
	if err := db.Preload("Author").Where("doubt_id = ?", id).Order("created_at asc").Order("id asc").Find(&answers).Error; err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}

	view := doubt.View()
	view.Answers = make([]models.AnswerView, 0, len(answers))
	for i := range answers {
		view.Answers = append(view.Answers, answers[i].View())
	}
	return &view, nil
}

type UpdateDoubtInput struct {
	Title      *string  `json:"title"`
	Content    *string  `json:"content"`
	Subject    *string  `json:"subject"`
	Tags       []string `json:"tags"`
	IsResolved *bool    `json:"isResolved"`
}

// Find loads a doubt without counting a view.
func (s *DoubtService) Find(ctx context.Context, id int) (*models.Doubt, error) {
	var doubt models.Doubt
	if err := s.db.WithContext(ctx).First(&doubt, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("doubt", id)
		}
		return nil, fmt.Errorf("load doubt: %w", err)
	}
	return &doubt, nil
}

func (s *DoubtService) Update(ctx context.Context, user *models.User, id int, in UpdateDoubtInput) (*models.DoubtView, error) {
	db := s.db.WithContext(ctx)

	found, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	doubt := *found
	if err := policy.CanEditDoubt(user, &doubt); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" || len(title) > maxTitleLength {
			return nil, apperror.ValidationFailed("title", "Title must be 1-200 characters")
		}
		updates["title"] = title
	}
	if in.Content != nil {
		content := strings.TrimSpace(*in.Content)
		if content == "" {
			return nil, apperror.ValidationFailed("content", "Content is required")
		}
		updates["content"] = content
	}
	if in.Subject != nil {
		updates["subject"] = NormalizeSubject(*in.Subject)
	}
	if in.IsResolved != nil {
		updates["is_resolved"] = *in.IsResolved
	}
	if in.Tags != nil {
		doubt.Tags = NormalizeTags(in.Tags)
		if err := db.Model(&doubt).Select("tags").Updates(&models.Doubt{Tags: doubt.Tags}).Error; err != nil {
			return nil, fmt.Errorf("update tags: %w", err)
		}
	}
	if len(updates) > 0 {
		if err := db.Model(&doubt).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update doubt: %w", err)
		}
	}

	if err := db.Preload("Author").First(&doubt, id).Error; err != nil {
		return nil, fmt.Errorf("reload doubt: %w", err)
	}
	view := doubt.View()
	return &view, nil
}

// NormalizeSubject upper-cases a subject tag and joins words with
// underscores. Empty subjects become OTHER.
func NormalizeSubject(subject string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return models.DefaultSubject
	}
	return strings.Join(strings.Fields(cases.Upper(language.Und).String(subject)), "_")
}

// NormalizeTags lower-cases, trims and de-duplicates tags, keeping the first ten.
func NormalizeTags(tags []string) []string {
	lower := cases.Lower(language.Und)
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(lower.String(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if len(out) == maxTags {
			break
		}
	}
	return out
}

func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// likePattern builds a case-insensitive substring pattern for LOWER(col) LIKE.
func likePattern(q string) string {
	return "%" + escapeLike(strings.ToLower(strings.TrimSpace(q))) + "%"
}
