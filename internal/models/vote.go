package models

import "time"

type VoteType string

const (
	VoteUp   VoteType = "UP"
	VoteDown VoteType = "DOWN"
)

func (v VoteType) Valid() bool {
	return v == VoteUp || v == VoteDown
}

// Vote tracks one user's vote on exactly one doubt or answer
type Vote struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	UserID    int       `gorm:"not null;uniqueIndex:idx_vote_user_doubt;uniqueIndex:idx_vote_user_answer" json:"userId"`
	DoubtID   *int      `gorm:"uniqueIndex:idx_vote_user_doubt" json:"doubtId,omitempty"`   // set for doubt votes
	AnswerID  *int      `gorm:"uniqueIndex:idx_vote_user_answer" json:"answerId,omitempty"` // set for answer votes
	Type      VoteType  `gorm:"type:varchar(4);not null" json:"type"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
