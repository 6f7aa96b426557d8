package models

import "time"

type SessionType string

const (
	SessionQA         SessionType = "QA"
	SessionMindmap    SessionType = "MINDMAP"
	SessionQuiz       SessionType = "QUIZ"
	SessionFlashcards SessionType = "FLASHCARDS"

	DefaultSystemPrompt = "You are a helpful AI tutor."
)

func (s SessionType) Valid() bool {
	switch s {
	case SessionQA, SessionMindmap, SessionQuiz, SessionFlashcards:
		return true
	}
	return false
}

type ChatSession struct {
	ID           string        `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID       int           `gorm:"index;not null" json:"userId"`
	Type         SessionType   `gorm:"type:varchar(20);not null" json:"sessionType"`
	Title        string        `json:"title"`
	SystemPrompt string        `gorm:"type:text" json:"systemPrompt"`
	Messages     []ChatMessage `gorm:"foreignKey:SessionID" json:"messages,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `gorm:"index" json:"updatedAt"`
}

// ChatMessage is append-only
type ChatMessage struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	SessionID string    `gorm:"type:varchar(36);index;not null" json:"sessionId"`
	Role      string    `gorm:"type:varchar(16);not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
