package models

import "time"

const DefaultSubject = "OTHER"

type Doubt struct {
	ID           int       `gorm:"primaryKey" json:"id"`
	Title        string    `gorm:"not null" json:"title"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	Subject      string    `gorm:"type:varchar(40);index;not null" json:"subject"`
	Tags         []string  `gorm:"type:text;serializer:json" json:"tags"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	IsAnonymous  bool      `gorm:"not null;default:false" json:"isAnonymous"`
	PosterID     int       `gorm:"index;not null" json:"-"` // always the authenticated creator
	AuthorID     *int      `gorm:"index" json:"authorId"`   // nil when anonymous
	Author       *User     `gorm:"foreignKey:AuthorID" json:"-"`
	CommunityID  *int      `gorm:"index" json:"communityId,omitempty"`
	Upvotes      int       `gorm:"not null;default:0" json:"upvotes"`
	Downvotes    int       `gorm:"not null;default:0" json:"downvotes"`
	Views        int       `gorm:"not null;default:0" json:"views"`
	AnswersCount int       `gorm:"not null;default:0" json:"answersCount"`
	IsResolved   bool      `gorm:"not null;default:false" json:"isResolved"`
	CreatedAt    time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// DoubtView is a doubt as returned by the API, with the author projected.
type DoubtView struct {
	Doubt
	Author  *PublicUser  `json:"author"`
	Answers []AnswerView `json:"answers,omitempty"`
}

func (d *Doubt) View() DoubtView {
	return DoubtView{Doubt: *d, Author: d.Author.Public()}
}
