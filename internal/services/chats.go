package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sparkcampus/doubts/backend/internal/apperror"
	"github.com/sparkcampus/doubts/backend/internal/models"
	"github.com/sparkcampus/doubts/backend/internal/policy"
)

const chatSessionLimit = 50

type ChatService struct {
	db *gorm.DB
}

func NewChatService(db *gorm.DB) *ChatService {
	return &ChatService{db: db}
}

// ListSessions returns the caller's most recently active sessions.
func (s *ChatService) ListSessions(ctx context.Context, user *models.User, sessionType string) ([]models.ChatSession, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", user.ID)
	if sessionType != "" {
		st := models.SessionType(strings.ToUpper(sessionType))
		if !st.Valid() {
			return nil, apperror.ValidationFailed("type", "Unknown session type")
		}
		q = q.Where("type = ?", st)
	}

	sessions := []models.ChatSession{}
	if err := q.Order("updated_at desc").Limit(chatSessionLimit).Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

func (s *ChatService) CreateSession(ctx context.Context, user *models.User, sessionType, title, systemPrompt string) (*models.ChatSession, error) {
	st := models.SessionQA
	if sessionType != "" {
		st = models.SessionType(strings.ToUpper(sessionType))
		if !st.Valid() {
			return nil, apperror.ValidationFailed("sessionType", "Session type must be QA, MINDMAP, QUIZ or FLASHCARDS")
		}
	}
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = models.DefaultSystemPrompt
	}
	if strings.TrimSpace(title) == "" {
		title = "New " + strings.ToLower(string(st)) + " session"
	}

	session := &models.ChatSession{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		Type:         st,
		Title:        strings.TrimSpace(title),
		SystemPrompt: systemPrompt,
	}
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// Get loads a session with its messages in order, for its owner only.
func (s *ChatService) Get(ctx context.Context, user *models.User, id string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := s.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc").Order("id asc") }).
		First(&session, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("chat session", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if err := policy.CanViewChatSession(user, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Append adds messages to a session. Messages are never edited or removed.
func (s *ChatService) Append(ctx context.Context, sessionID string, msgs ...models.ChatMessage) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range msgs {
			msgs[i].ID = 0
			msgs[i].SessionID = sessionID
			if err := tx.Create(&msgs[i]).Error; err != nil {
				return fmt.Errorf("append message: %w", err)
			}
		}
		return tx.Model(&models.ChatSession{}).Where("id = ?", sessionID).
			UpdateColumn("updated_at", time.Now().UTC()).Error
	})
}
