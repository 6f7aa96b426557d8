package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sparkcampus/doubts/backend/internal/apperror"
	"github.com/sparkcampus/doubts/backend/internal/config"
	"github.com/sparkcampus/doubts/backend/internal/ledger"
	"github.com/sparkcampus/doubts/backend/internal/models"
	"github.com/sparkcampus/doubts/backend/internal/policy"
	"github.com/sparkcampus/doubts/backend/internal/services"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type CreditHandler struct {
	ledger *ledger.Service
	users  *services.UserService
	admins policy.Admins
	logger *zap.Logger
}

func NewCreditHandler(ledger *ledger.Service, users *services.UserService, admins config.AuthConfig, logger *zap.Logger) *CreditHandler {
	return &CreditHandler{ledger: ledger, users: users, admins: admins, logger: logger}
}

func (h *CreditHandler) GetCredits(c *gin.Context) {
	user := currentUser(c)
	c.JSON(http.StatusOK, gin.H{
		"credits":          user.Credits,
		"freeQueriesUsed":  user.FreeQueriesUsed,
		"subscriptionTier": user.SubscriptionTier,
	})
}

func (h *CreditHandler) GetHistory(c *gin.Context) {
	entries, err := h.ledger.History(c.Request.Context(), currentUser(c).ID, queryInt(c, "limit", ledger.DefaultHistoryLimit))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}

// Redeem spends credits on a named reward. A repeated Idempotency-Key returns
// the first result instead of charging twice.
func (h *CreditHandler) Redeem(c *gin.Context) {
	var input struct {
		Action string `json:"action"`
		Amount int    `json:"amount"`
	}
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}
	action := strings.TrimSpace(input.Action)
	if action == "" {
		respondError(c, h.logger, apperror.ValidationFailed("action", "action is required"))
		return
	}
	if input.Amount <= 0 {
		respondError(c, h.logger, apperror.ValidationFailed("amount", "amount must be positive"))
		return
	}

	res, err := h.ledger.Adjust(c.Request.Context(), ledger.Adjustment{
		UserID:         currentUser(c).ID,
		Delta:          -input.Amount,
		EventType:      models.EventCreditsRedeemed,
		Description:    action,
		IdempotencyKey: c.GetHeader(IdempotencyKeyHeader),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"credits": res.Balance, "entry": res.Entry, "replayed": res.Replayed})
}

// Check charges a FREE-tier caller for one AI operation. Paid tiers are
// always allowed at no cost. Running out of credits is an answer here, not
// an error.
func (h *CreditHandler) Check(c *gin.Context) {
	var input struct {
		Operation string `json:"operation"`
	}
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}
	op := ledger.Operation(strings.ToLower(strings.TrimSpace(input.Operation)))
	cost, ok := ledger.Cost(op)
	if !ok {
		respondError(c, h.logger, apperror.ValidationFailed("operation", "Unknown operation"))
		return
	}

	user := currentUser(c)
	if !ledger.Billable(user.SubscriptionTier) {
		c.JSON(http.StatusOK, gin.H{"allowed": true, "credits": user.Credits, "cost": 0, "needsUpgrade": false})
		return
	}

	res, err := h.ledger.Adjust(c.Request.Context(), ledger.Adjustment{
		UserID:      user.ID,
		Delta:       -cost,
		EventType:   models.EventAIUsage,
		Description: "AI " + string(op),
	})
	if errors.Is(err, apperror.ErrInsufficientBalance) {
		balance, berr := h.ledger.Balance(c.Request.Context(), user.ID)
		if berr != nil {
			respondError(c, h.logger, berr)
			return
		}
		c.JSON(http.StatusOK, gin.H{"allowed": false, "credits": balance, "cost": cost, "needsUpgrade": true})
		return
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"allowed": true, "credits": res.Balance, "cost": cost, "needsUpgrade": false})
}

// AdminAdjust grants or removes credits on any account
func (h *CreditHandler) AdminAdjust(c *gin.Context) {
	admin := currentUser(c)
	if err := policy.CanAdministerCredits(h.admins, admin); err != nil {
		respondError(c, h.logger, err)
		return
	}
	var input struct {
		UserID      int    `json:"userId"`
		Amount      int    `json:"amount"`
		Description string `json:"description"`
	}
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		description = "Admin adjustment"
	}

	res, err := h.ledger.Adjust(c.Request.Context(), ledger.Adjustment{
		UserID:         input.UserID,
		Delta:          input.Amount,
		EventType:      models.EventAdminAdjustment,
		Description:    description,
		IdempotencyKey: c.GetHeader(IdempotencyKeyHeader),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.logger.Info("admin credit adjustment",
		zap.Int("admin_id", admin.ID),
		zap.Int("user_id", input.UserID),
		zap.Int("amount", input.Amount),
	)
	c.JSON(http.StatusOK, gin.H{"credits": res.Balance, "entry": res.Entry})
}

func (h *CreditHandler) AdminSubscription(c *gin.Context) {
	admin := currentUser(c)
	if err := policy.CanAdministerCredits(h.admins, admin); err != nil {
		respondError(c, h.logger, err)
		return
	}
	var input struct {
		UserID int    `json:"userId"`
		Tier   string `json:"tier"`
	}
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}

	tier := models.SubscriptionTier(strings.ToUpper(strings.TrimSpace(input.Tier)))
	user, err := h.users.SetSubscription(c.Request.Context(), input.UserID, tier)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.logger.Info("subscription changed", zap.Int("admin_id", admin.ID), zap.Int("user_id", user.ID), zap.String("tier", string(tier)))
	c.JSON(http.StatusOK, gin.H{"user": user})
}
