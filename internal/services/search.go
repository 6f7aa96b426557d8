package services

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/sparkcampus/doubts/backend/internal/apperror"
	"github.com/sparkcampus/doubts/backend/internal/models"
)

const searchLimit = 10

type SearchService struct {
	db          *gorm.DB
	communities *CommunityService
}

func NewSearchService(db *gorm.DB, communities *CommunityService) *SearchService {
	return &SearchService{db: db, communities: communities}
}

type SearchResults struct {
	Doubts      []models.DoubtView     `json:"doubts"`
	Communities []models.CommunityView `json:"communities"`
	Users       []models.PublicUser    `json:"users"`
}

// Search matches q case-insensitively against doubts, communities and users.
// kind narrows the search to one of "doubts", "communities" or "users".
func (s *SearchService) Search(ctx context.Context, q, kind string) (*SearchResults, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, apperror.ValidationFailed("q", "Search query is required")
	}
	if kind == "" {
		kind = "all"
	}
	switch kind {
	case "all", "doubts", "communities", "users":
	default:
		return nil, apperror.ValidationFailed("type", "type must be all, doubts, communities or users")
	}

	pattern := likePattern(q)
	db := s.db.WithContext(ctx)
	out := &SearchResults{
		Doubts:      []models.DoubtView{},
		Communities: []models.CommunityView{},
		Users:       []models.PublicUser{},
	}

	if kind == "all" || kind == "doubts" {
		var doubts []models.Doubt
		err := db.Preload("Author").
			Where("LOWER(title) LIKE ? ESCAPE '\\' OR LOWER(content) LIKE ? ESCAPE '\\'", pattern, pattern).
			Order("created_at desc").Limit(searchLimit).
			Find(&doubts).Error
		if err != nil {
			return nil, fmt.Errorf("search doubts: %w", err)
		}
		for i := range doubts {
			out.Doubts = append(out.Doubts, doubts[i].View())
		}
	}

	if kind == "all" || kind == "communities" {
		var communities []models.Community
		err := db.Preload("Creator").
			Where("LOWER(name) LIKE ? ESCAPE '\\' OR LOWER(description) LIKE ? ESCAPE '\\'", pattern, pattern).
			Order("created_at desc").Limit(searchLimit).
			Find(&communities).Error
		if err != nil {
			return nil, fmt.Errorf("search communities: %w", err)
		}
		views, err := s.communities.views(ctx, communities, nil)
		if err != nil {
			return nil, err
		}
		out.Communities = views
	}

	if kind == "all" || kind == "users" {
		var users []models.User
		err := db.Where("LOWER(name) LIKE ? ESCAPE '\\'", pattern).
			Order("credits desc").Limit(searchLimit).
			Find(&users).Error
		if err != nil {
			return nil, fmt.Errorf("search users: %w", err)
		}
		for i := range users {
			out.Users = append(out.Users, *users[i].Public())
		}
	}

	return out, nil
}
