package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sparkcampus/doubts/backend/internal/apperror"
	"github.com/sparkcampus/doubts/backend/internal/database"
	"github.com/sparkcampus/doubts/backend/internal/models"
	"github.com/sparkcampus/doubts/backend/internal/policy"
)

const RecentCommunities = 5

type CommunityService struct {
	db      *gorm.DB
	doubts  *DoubtService
	answers *AnswerService
	logger  *zap.Logger
}

func NewCommunityService(db *gorm.DB, doubts *DoubtService, answers *AnswerService, logger *zap.Logger) *CommunityService {
	return &CommunityService{db: db, doubts: doubts, answers: answers, logger: logger}
}

// Create makes the community and its owner membership together.
func (s *CommunityService) Create(ctx context.Context, user *models.User, name, description string) (*models.CommunityView, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 80 {
		return nil, apperror.ValidationFailed("name", "Name must be 1-80 characters")
	}

	community := &models.Community{Name: name, Description: strings.TrimSpace(description), CreatedBy: user.ID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(community).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return apperror.Conflict("A community with this name already exists")
			}
			return fmt.Errorf("create community: %w", err)
		}
		member := &models.CommunityMember{UserID: user.ID, CommunityID: community.ID, Role: models.RoleOwner}
		if err := tx.Create(member).Error; err != nil {
			return fmt.Errorf("add owner: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("community created", zap.Int("community_id", community.ID), zap.Int("user_id", user.ID))
	community.Creator = user
	return &models.CommunityView{Community: *community, Creator: user.Public(), MemberCount: 1, IsMember: true}, nil
}

// List returns communities newest first. limit <= 0 means every community.
func (s *CommunityService) List(ctx context.Context, limit int, viewer *models.User) ([]models.CommunityView, error) {
	q := s.db.WithContext(ctx).Preload("Creator").Order("created_at desc").Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var communities []models.Community
	if err := q.Find(&communities).Error; err != nil {
		return nil, fmt.Errorf("list communities: %w", err)
	}
	return s.views(ctx, communities, viewer)
}

func (s *CommunityService) Get(ctx context.Context, id int, viewer *models.User) (*models.CommunityView, error) {
	community, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := s.views(ctx, []models.Community{*community}, viewer)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *CommunityService) load(ctx context.Context, id int) (*models.Community, error) {
	var community models.Community
	if err := s.db.WithContext(ctx).Preload("Creator").First(&community, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("community", id)
		}
		return nil, fmt.Errorf("load community: %w", err)
	}
	return &community, nil
}

func (s *CommunityService) views(ctx context.Context, communities []models.Community, viewer *models.User) ([]models.CommunityView, error) {
	views := make([]models.CommunityView, 0, len(communities))
	if len(communities) == 0 {
		return views, nil
	}

	ids := make([]int, len(communities))
	for i, c := range communities {
		ids[i] = c.ID
	}

	var counts []memberCount
	err := s.db.WithContext(ctx).Model(&models.CommunityMember{}).
		Select("community_id, COUNT(*) AS members").
		Where("community_id IN ?", ids).
		Group("community_id").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("count members: %w", err)
	}
	byID := make(map[int]int64, len(counts))
	for _, c := range counts {
		byID[c.CommunityID] = c.Members
	}

	joined := map[int]bool{}
	if viewer != nil {
		var mine []int
		if err := s.db.WithContext(ctx).Model(&models.CommunityMember{}).
			Where("user_id = ? AND community_id IN ?", viewer.ID, ids).
			Pluck("community_id", &mine).Error; err != nil {
			return nil, fmt.Errorf("load memberships: %w", err)
		}
		for _, id := range mine {
			joined[id] = true
		}
	}

	for i := range communities {
		c := communities[i]
		views = append(views, models.CommunityView{
			Community:   c,
			Creator:     c.Creator.Public(),
			MemberCount: byID[c.ID],
			IsMember:    joined[c.ID],
		})
	}
	return views, nil
}

type memberCount struct {
	CommunityID int
	Members     int64
}

type Membership struct {
	IsMember bool              `json:"isMember"`
	Role     models.MemberRole `json:"role,omitempty"`
}

func (s *CommunityService) Membership(ctx context.Context, user *models.User, id int) (*Membership, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	if user == nil {
		return &Membership{}, nil
	}
	var m models.CommunityMember
	err := s.db.WithContext(ctx).Where("user_id = ? AND community_id = ?", user.ID, id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Membership{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load membership: %w", err)
	}
	return &Membership{IsMember: true, Role: m.Role}, nil
}

func (s *CommunityService) Join(ctx context.Context, user *models.User, id int) (*Membership, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	m := &models.CommunityMember{UserID: user.ID, CommunityID: id, Role: models.RoleMember}
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperror.ValidationFailed("community", "Already a member")
		}
		return nil, fmt.Errorf("join community: %w", err)
	}
	return &Membership{IsMember: true, Role: m.Role}, nil
}

func (s *CommunityService) Leave(ctx context.Context, user *models.User, id int) error {
	community, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := policy.CanLeaveCommunity(user, community); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Where("user_id = ? AND community_id = ?", user.ID, id).Delete(&models.CommunityMember{})
	if res.Error != nil {
		return fmt.Errorf("leave community: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.ValidationFailed("community", "Not a member")
	}
	return nil
}

// Posts lists the doubts posted into a community.
func (s *CommunityService) Posts(ctx context.Context, id int, q ListQuery) (*DoubtPage, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	q.CommunityID = &id
	return s.doubts.List(ctx, q)
}

// CreatePost posts a doubt into a community the caller belongs to.
func (s *CommunityService) CreatePost(ctx context.Context, user *models.User, id int, in CreateDoubtInput) (*CreatedDoubt, error) {
	m, err := s.Membership(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if !m.IsMember {
		return nil, apperror.Forbidden("Join the community to post")
	}
	in.CommunityID = &id
	return s.doubts.Create(ctx, user, in)
}

func (s *CommunityService) post(ctx context.Context, communityID, postID int) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Doubt{}).
		Where("id = ? AND community_id = ?", postID, communityID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("load post: %w", err)
	}
	if count == 0 {
		return apperror.NotFound("post", postID)
	}
	return nil
}

// Comments are the answers on a community post, oldest first.
func (s *CommunityService) Comments(ctx context.Context, communityID, postID int) ([]models.AnswerView, error) {
	if err := s.post(ctx, communityID, postID); err != nil {
		return nil, err
	}
	answers, err := s.answers.ListForDoubt(ctx, postID)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(answers)-1; i < j; i, j = i+1, j-1 {
		answers[i], answers[j] = answers[j], answers[i]
	}
	return answers, nil
}

func (s *CommunityService) AddComment(ctx context.Context, user *models.User, communityID, postID int, content string) (*models.AnswerView, error) {
	if err := s.post(ctx, communityID, postID); err != nil {
		return nil, err
	}
	return s.answers.Create(ctx, user, postID, content)
}
