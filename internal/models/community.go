package models

import "time"

type MemberRole string

const (
	RoleOwner  MemberRole = "OWNER"
	RoleMember MemberRole = "MEMBER"
)

type Community struct {
	ID          int       `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedBy   int       `gorm:"index;not null" json:"createdBy"`
	Creator     *User     `gorm:"foreignKey:CreatedBy" json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CommunityMember links a user to a community
type CommunityMember struct {
	ID          int        `gorm:"primaryKey" json:"id"`
	UserID      int        `gorm:"not null;uniqueIndex:idx_member_user_community" json:"userId"`
	CommunityID int        `gorm:"not null;uniqueIndex:idx_member_user_community;index" json:"communityId"`
	Role        MemberRole `gorm:"type:varchar(10);not null" json:"role"`
	User        *User      `gorm:"foreignKey:UserID" json:"-"`
	CreatedAt   time.Time  `json:"joinedAt"`
}

type CommunityView struct {
	Community
	Creator     *PublicUser `json:"creator"`
	MemberCount int64       `json:"memberCount"`
	IsMember    bool        `json:"isMember"`
}
