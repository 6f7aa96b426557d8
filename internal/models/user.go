package models

import "time"

type SubscriptionTier string

const (
	TierFree       SubscriptionTier = "FREE"
	TierStudentPro SubscriptionTier = "STUDENT_PRO"
	TierPremium    SubscriptionTier = "PREMIUM"
)

// Valid reports whether t is one of the known tiers.
func (t SubscriptionTier) Valid() bool {
	switch t {
	case TierFree, TierStudentPro, TierPremium:
		return true
	}
	return false
}

type User struct {
	ID              int        `gorm:"primaryKey" json:"id"`
	Email           string     `gorm:"uniqueIndex;not null" json:"email"`
	Name            string     `json:"name"`
	AvatarURL       string     `json:"avatarUrl"`
	Bio             string     `json:"bio"`
	Credits         int        `gorm:"not null;default:0" json:"credits"`
	FreeQueriesUsed int        `gorm:"not null;default:0" json:"freeQueriesUsed"`
	EmailVerifiedAt *time.Time `json:"emailVerifiedAt,omitempty"`

	SubscriptionTier SubscriptionTier `gorm:"type:varchar(20);not null;default:FREE" json:"subscriptionTier"`

	// Sign-in fields
	PasswordHash string `json:"-"`                                // credential sign-in only
	FirebaseUID  string `gorm:"column:firebase_uid;index" json:"-"` // Firebase user id
	GitHubID     string `gorm:"column:github_id;index" json:"-"`    // GitHub numeric id
	AuthProvider string `json:"authProvider"`                     // "credentials", "firebase", "github"

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PublicUser is the subset of a user shown next to content they authored.
type PublicUser struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
	Credits   int    `json:"credits"`
}

func (u *User) Public() *PublicUser {
	if u == nil {
		return nil
	}
	return &PublicUser{ID: u.ID, Name: u.Name, AvatarURL: u.AvatarURL, Credits: u.Credits}
}
