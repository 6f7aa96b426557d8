package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sparkcampus/doubts/backend/internal/models"
	"github.com/sparkcampus/doubts/backend/internal/services"
)

type DoubtHandler struct {
	doubts  *services.DoubtService
	answers *services.AnswerService
	votes   *services.VoteService
	logger  *zap.Logger
}

func NewDoubtHandler(doubts *services.DoubtService, answers *services.AnswerService, votes *services.VoteService, logger *zap.Logger) *DoubtHandler {
	return &DoubtHandler{doubts: doubts, answers: answers, votes: votes, logger: logger}
}

// GetDoubts lists doubts with filters, search and pagination
func (h *DoubtHandler) GetDoubts(c *gin.Context) {
	page, err := h.doubts.List(c.Request.Context(), services.ListQuery{
		Page:    queryInt(c, "page", 1),
		Limit:   queryInt(c, "limit", services.DefaultPageSize),
		Subject: c.Query("subject"),
		Tag:     c.Query("tag"),
		Search:  strings.TrimSpace(c.Query("search")),
		SortBy:  c.Query("sortBy"),
		Order:   c.Query("order"),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetDoubt returns a single doubt with its answers
func (h *DoubtHandler) GetDoubt(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	doubt, err := h.doubts.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, doubt)
}

func (h *DoubtHandler) CreateDoubt(c *gin.Context) {
	var input services.CreateDoubtInput
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}

	created, err := h.doubts.Create(c.Request.Context(), currentUser(c), input)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *DoubtHandler) UpdateDoubt(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	var input services.UpdateDoubtInput
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}

	doubt, err := h.doubts.Update(c.Request.Context(), currentUser(c), id, input)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, doubt)
}

// VoteDoubt toggles the caller's vote on a doubt
func (h *DoubtHandler) VoteDoubt(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	vt, err := bindVote(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	result, err := h.votes.VoteDoubt(c.Request.Context(), currentUser(c), id, vt)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetAnswers returns the answers of a doubt, newest first
func (h *DoubtHandler) GetAnswers(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	answers, err := h.answers.ListForDoubt(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, answers)
}

func (h *DoubtHandler) CreateAnswer(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	var input struct {
		Content string `json:"content"`
	}
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}

	answer, err := h.answers.Create(c.Request.Context(), currentUser(c), id, input.Content)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, answer)
}

// bindVote reads {"type": "UP"|"DOWN"}; the vote service rejects anything else.
func bindVote(c *gin.Context) (models.VoteType, error) {
	var input struct {
		Type string `json:"type"`
	}
	if err := bindJSON(c, &input); err != nil {
		return "", err
	}
	return models.VoteType(strings.ToUpper(strings.TrimSpace(input.Type))), nil
}
