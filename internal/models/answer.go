package models

import "time"

type Answer struct {
	ID         int       `gorm:"primaryKey" json:"id"`
	DoubtID    int       `gorm:"index;not null" json:"doubtId"`
	AuthorID   *int      `gorm:"index" json:"authorId"` // nil for AI-generated answers
	Author     *User     `gorm:"foreignKey:AuthorID" json:"-"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	IsAI       bool      `gorm:"not null;default:false" json:"isAI"`
	Upvotes    int       `gorm:"not null;default:0" json:"upvotes"`
	Downvotes  int       `gorm:"not null;default:0" json:"downvotes"`
	IsAccepted bool      `gorm:"not null;default:false" json:"isAccepted"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type AnswerView struct {
	Answer
	Author *PublicUser `json:"author"`
}

func (a *Answer) View() AnswerView {
	return AnswerView{Answer: *a, Author: a.Author.Public()}
}
