package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sparkcampus/doubts/backend/internal/aiagent"
	"github.com/sparkcampus/doubts/backend/internal/apperror"
	"github.com/sparkcampus/doubts/backend/internal/ledger"
	"github.com/sparkcampus/doubts/backend/internal/models"
	"github.com/sparkcampus/doubts/backend/internal/quota"
	"github.com/sparkcampus/doubts/backend/internal/services"
)

// Canned answers for anonymous queries when the AI backend is down,
// indexed by the queries left after this one.
var freeAnswers = []string{
	"Third free answer. Please sign in to continue exploring more detailed help.",
	"This is another helpful suggestion for the query.",
	"Here's a concise answer to your question.",
}

type AIHandler struct {
	ai      *aiagent.Client
	ledger  *ledger.Service
	doubts  *services.DoubtService
	answers *services.AnswerService
	chats   *services.ChatService
	users   *services.UserService
	quota   *quota.Gate
	logger  *zap.Logger
}

func NewAIHandler(d Deps) *AIHandler {
	return &AIHandler{
		ai:      d.AI,
		ledger:  d.Ledger,
		doubts:  d.Doubts,
		answers: d.Answers,
		chats:   d.Chats,
		users:   d.Users,
		quota:   d.Quota,
		logger:  d.Logger,
	}
}

// FreeQueriesInfo describes the anonymous allowance and what is left of it.
func (h *AIHandler) FreeQueriesInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"allowed":     true,
		"limit":       h.quota.Allowance(),
		"remaining":   h.quota.Remaining(c.Request),
		"description": "POST a JSON body { question: string } to consume a free query.",
	})
}

// FreeQuery spends one anonymous query. The answer comes from the AI
// backend, or a canned reply when it cannot be reached.
func (h *AIHandler) FreeQuery(c *gin.Context) {
	var input struct {
		Question string `json:"question"`
	}
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}
	question := strings.TrimSpace(input.Question)
	if question == "" {
		respondError(c, h.logger, apperror.ValidationFailed("question", "Question is required"))
		return
	}

	remaining, err := h.quota.Consume(c.Writer, c.Request)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	ctx := c.Request.Context()
	if user := optionalUser(c); user != nil {
		if err := h.users.RecordFreeQuery(ctx, user.ID); err != nil {
			h.logger.Warn("recording free query failed", zap.Int("user_id", user.ID), zap.Error(err))
		}
	}

	answer := freeAnswers[min(remaining, len(freeAnswers)-1)]
	reply, err := h.ai.QA(ctx, aiagent.QARequest{Question: question})
	if err != nil {
		h.logger.Warn("free query fell back to canned answer", zap.Error(err))
	} else if reply.Answer != "" {
		answer = reply.Answer
	}

	c.JSON(http.StatusOK, gin.H{"allowed": true, "remaining": remaining, "answer": answer})
}

// Health always answers 200 with ok, error or degraded.
func (h *AIHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.ai.Health(c.Request.Context()))
}

func (h *AIHandler) Greeting(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"greeting": h.ai.Greeting(c.Request.Context())})
}

// Agent sends a conversation to the backend's /chat. With a doubtId the
// doubt becomes the prompt context and the reply is stored as an AI answer.
func (h *AIHandler) Agent(c *gin.Context) {
	var input struct {
		DoubtID  int               `json:"doubtId"`
		Prompt   string            `json:"prompt"`
		Messages []aiagent.Message `json:"messages"`
	}
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}
	prompt := strings.TrimSpace(input.Prompt)
	if input.DoubtID <= 0 && prompt == "" {
		respondError(c, h.logger, apperror.ValidationFailed("prompt", "doubtId or prompt is required"))
		return
	}

	ctx := c.Request.Context()
	messages := input.Messages
	switch {
	case prompt != "":
		if input.DoubtID > 0 {
			if _, err := h.doubts.Find(ctx, input.DoubtID); err != nil {
				respondError(c, h.logger, err)
				return
			}
		}
		messages = append(messages, aiagent.Message{Role: "user", Content: prompt})
	default:
		doubt, err := h.doubts.Find(ctx, input.DoubtID)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		messages = append(messages, aiagent.Message{
			Role:    "user",
			Content: fmt.Sprintf("Question: %s\nContent: %s\n\nPlease provide a helpful answer to this question.", doubt.Title, doubt.Content),
		})
	}

	var reply *aiagent.ChatReply
	err := h.charged(c, ledger.OpChat, func() error {
		var err error
		reply, err = h.ai.Chat(ctx, messages)
		return err
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	body := gin.H{"reply": reply.Reply, "sources": reply.Sources, "usage": reply.Usage}
	if input.DoubtID > 0 {
		answer, err := h.answers.CreateAI(ctx, input.DoubtID, reply.Reply)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		body["answer"] = answer
	}
	c.JSON(http.StatusOK, body)
}

// Chat asks the QA endpoint and, when a session is named, records both turns
// in that session.
func (h *AIHandler) Chat(c *gin.Context) {
	var input struct {
		Message      string `json:"message"`
		Question     string `json:"question"`
		SessionID    string `json:"sessionId"`
		SystemPrompt string `json:"systemPrompt"`
	}
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}
	question := strings.TrimSpace(input.Message)
	if question == "" {
		question = strings.TrimSpace(input.Question)
	}
	if question == "" {
		respondError(c, h.logger, apperror.ValidationFailed("message", "Message is required"))
		return
	}

	ctx := c.Request.Context()
	user := currentUser(c)
	systemPrompt := input.SystemPrompt
	var session *models.ChatSession
	if input.SessionID != "" {
		var err error
		if session, err = h.chats.Get(ctx, user, input.SessionID); err != nil {
			respondError(c, h.logger, err)
			return
		}
		if systemPrompt == "" {
			systemPrompt = session.SystemPrompt
		}
	}

	var reply *aiagent.QAReply
	err := h.charged(c, ledger.OpChat, func() error {
		var err error
		reply, err = h.ai.QA(ctx, aiagent.QARequest{
			Question:     question,
			UserID:       strconv.Itoa(user.ID),
			SystemPrompt: systemPrompt,
		})
		return err
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	sessionID := reply.QAID
	if session != nil {
		sessionID = session.ID
		err := h.chats.Append(ctx, session.ID,
			models.ChatMessage{Role: "user", Content: question},
			models.ChatMessage{Role: "assistant", Content: reply.Answer},
		)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"response":  reply.Answer,
		"sessionId": sessionID,
		"sources":   reply.Sources,
		"mode":      reply.Mode,
	})
}

// QA forwards a question to the backend's /api/qa as the signed-in user.
func (h *AIHandler) QA(c *gin.Context) {
	var input aiagent.QARequest
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}
	if strings.TrimSpace(input.Question) == "" {
		respondError(c, h.logger, apperror.ValidationFailed("question", "Question is required"))
		return
	}
	input.UserID = strconv.Itoa(currentUser(c).ID)

	var reply *aiagent.QAReply
	err := h.charged(c, ledger.OpChat, func() error {
		var err error
		reply, err = h.ai.QA(c.Request.Context(), input)
		return err
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (h *AIHandler) Quiz(c *gin.Context) {
	var input aiagent.QuizRequest
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}
	input, err := input.Normalize()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	input.UserID = strconv.Itoa(currentUser(c).ID)

	var quiz *aiagent.Quiz
	err = h.charged(c, ledger.OpQuiz, func() error {
		var err error
		quiz, err = h.ai.Quiz(c.Request.Context(), input)
		return err
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, quiz)
}

// Flashcards passes the request body through to the backend unchanged.
func (h *AIHandler) Flashcards(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil || len(body) == 0 || !json.Valid(body) {
		respondError(c, h.logger, apperror.ValidationFailed("body", "Invalid request body"))
		return
	}

	var out json.RawMessage
	err = h.charged(c, ledger.OpFlashcards, func() error {
		var err error
		out, err = h.ai.Flashcards(c.Request.Context(), body)
		return err
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", out)
}

func (h *AIHandler) ListSessions(c *gin.Context) {
	sessions, err := h.chats.ListSessions(c.Request.Context(), currentUser(c), c.Query("type"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *AIHandler) CreateSession(c *gin.Context) {
	var input struct {
		SessionType  string `json:"sessionType"`
		Title        string `json:"title"`
		SystemPrompt string `json:"systemPrompt"`
	}
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}

	session, err := h.chats.CreateSession(c.Request.Context(), currentUser(c), input.SessionType, input.Title, input.SystemPrompt)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": session})
}

func (h *AIHandler) GetSession(c *gin.Context) {
	session, err := h.chats.Get(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

// charged runs call after charging a FREE-tier caller for op, and refunds
// the charge when call fails. Paid tiers run call for free.
func (h *AIHandler) charged(c *gin.Context, op ledger.Operation, call func() error) error {
	user := currentUser(c)
	cost, _ := ledger.Cost(op)
	if !ledger.Billable(user.SubscriptionTier) || cost == 0 {
		return call()
	}

	ctx := c.Request.Context()
	if _, err := h.ledger.Adjust(ctx, ledger.Adjustment{
		UserID:      user.ID,
		Delta:       -cost,
		EventType:   models.EventAIUsage,
		Description: "AI " + string(op),
	}); err != nil {
		return err
	}

	err := call()
	if err == nil {
		return nil
	}

	// The client may already be gone; the refund still has to land.
	_, rerr := h.ledger.Adjust(context.WithoutCancel(ctx), ledger.Adjustment{
		UserID:      user.ID,
		Delta:       cost,
		EventType:   models.EventAIRefund,
		Description: "Refund for failed AI " + string(op),
	})
	if rerr != nil {
		h.logger.Error("AI refund failed",
			zap.Int("user_id", user.ID),
			zap.String("operation", string(op)),
			zap.Int("amount", cost),
			zap.Error(rerr),
		)
	}
	return err
}
