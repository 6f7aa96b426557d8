package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sparkcampus/doubts/backend/internal/apperror"
	"github.com/sparkcampus/doubts/backend/internal/services"
)

type AnswerHandler struct {
	answers *services.AnswerService
	votes   *services.VoteService
	logger  *zap.Logger
}

func NewAnswerHandler(answers *services.AnswerService, votes *services.VoteService, logger *zap.Logger) *AnswerHandler {
	return &AnswerHandler{answers: answers, votes: votes, logger: logger}
}

// CreateAnswer adds an answer to the doubt named in the body
func (h *AnswerHandler) CreateAnswer(c *gin.Context) {
	var input struct {
		DoubtID int    `json:"doubtId"`
		Content string `json:"content"`
	}
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}
	if input.DoubtID <= 0 {
		respondError(c, h.logger, apperror.ValidationFailed("doubtId", "doubtId is required"))
		return
	}

	answer, err := h.answers.Create(c.Request.Context(), currentUser(c), input.DoubtID, input.Content)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, answer)
}

func (h *AnswerHandler) UpdateAnswer(c *gin.Context) {
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

	answer, err := h.answers.Update(c.Request.Context(), currentUser(c), id, input.Content)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, answer)
}

func (h *AnswerHandler) VoteAnswer(c *gin.Context) {
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

	result, err := h.votes.VoteAnswer(c.Request.Context(), currentUser(c), id, vt)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AcceptAnswer marks the answer accepted. Only the doubt's poster may do it.
func (h *AnswerHandler) AcceptAnswer(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	result, err := h.answers.Accept(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
