package models

import "time"

type EventType string

const (
	EventDoubtCreated      EventType = "DOUBT_CREATED"
	EventAnswerAccepted    EventType = "ANSWER_ACCEPTED"
	EventCreditsRedeemed   EventType = "CREDITS_REDEEMED"
	EventAIUsage           EventType = "AI_USAGE"
	EventAIRefund          EventType = "AI_REFUND"
	EventSubscriptionGrant EventType = "SUBSCRIPTION_GRANT"
	EventAdminAdjustment   EventType = "ADMIN_ADJUSTMENT"
)

// LedgerEntry is one immutable line of a user's credit journal. The sum of a
// user's deltas always equals users.credits.
type LedgerEntry struct {
	ID             int       `gorm:"primaryKey" json:"id"`
	UserID         int       `gorm:"not null;index;uniqueIndex:idx_ledger_user_idempotency" json:"userId"`
	Delta          int       `gorm:"not null" json:"delta"`
	EventType      EventType `gorm:"type:varchar(40);not null" json:"eventType"`
	Description    string    `json:"description"`
	DoubtID        *int      `json:"doubtId,omitempty"`
	BalanceAfter   int       `gorm:"not null" json:"balanceAfter"`
	IdempotencyKey *string   `gorm:"type:varchar(128);uniqueIndex:idx_ledger_user_idempotency" json:"-"`
	CreatedAt      time.Time `gorm:"index" json:"createdAt"`
}
