package ledger

import "github.com/sparkcampus/doubts/backend/internal/models"

// Operation is a billable AI feature.
type Operation string

const (
	OpChat       Operation = "chat"
	OpMindmap    Operation = "mindmap"
	OpFlowchart  Operation = "flowchart"
	OpQuiz       Operation = "quiz"
	OpFlashcards Operation = "flashcard"
)

var operationCosts = map[Operation]int{
	OpMindmap:    5,
	OpFlowchart:  5,
	OpQuiz:       3,
	OpFlashcards: 3,
	OpChat:       1,
}

// Cost returns the credit price of op and whether op is known.
func Cost(op Operation) (int, bool) {
	c, ok := operationCosts[op]
	return c, ok
}

// Billable reports whether users on tier pay per AI operation. Paid tiers
// have unlimited usage.
func Billable(tier models.SubscriptionTier) bool {
	return tier == "" || tier == models.TierFree
}

var tierGrants = map[models.SubscriptionTier]int{
	models.TierStudentPro: 500,
	models.TierPremium:    2000,
}

// TierGrant returns the credits granted when a user moves to tier.
func TierGrant(tier models.SubscriptionTier) int {
	return tierGrants[tier]
}
