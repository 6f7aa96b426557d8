// Package aiagent talks to the external AI tutoring backend. The backend is
// opaque: this package only knows its request and response shapes.
package aiagent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/sparkcampus/doubts/backend/internal/apperror"
	"github.com/sparkcampus/doubts/backend/internal/config"
)

const (
	ServiceName = "ai_agent"

	FallbackMessage  = "AI agent is not available"
	FallbackGreeting = "Hi! I'm Spark, your AI study buddy!"
	FallbackReply    = "I'm sorry, I couldn't generate a response."

	maxResponseBytes = 4 << 20
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatReply struct {
	Reply   string          `json:"reply"`
	Sources json.RawMessage `json:"sources,omitempty"`
	Usage   json.RawMessage `json:"usage,omitempty"`
}

type QARequest struct {
	Question       string `json:"question"`
	UserID         string `json:"userId"`
	SystemPrompt   string `json:"system_prompt,omitempty"`
	CollectionName string `json:"collection_name"`
}

type QAReply struct {
	Answer  string          `json:"answer"`
	QAID    string          `json:"qaId,omitempty"`
	Sources json.RawMessage `json:"sources,omitempty"`
	Mode    string          `json:"mode,omitempty"`
}

// Health never fails; Status is ok, error or degraded.
type Health struct {
	Status   string          `json:"status"`
	Upstream json.RawMessage `json:"upstream,omitempty"`
	Error    string          `json:"error,omitempty"`
}

type Client struct {
	baseURL       string
	token         string
	http          *http.Client
	healthTimeout time.Duration
	retryWait     time.Duration
	logger        *zap.Logger
}

func New(cfg config.AIAgentConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	health := cfg.HealthTimeout
	if health <= 0 {
		health = 5 * time.Second
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		token:         cfg.Token,
		http:          &http.Client{Timeout: timeout},
		healthTimeout: health,
		retryWait:     250 * time.Millisecond,
		logger:        logger.Named("aiagent"),
	}
}

// Chat sends a conversation to /chat.
func (c *Client) Chat(ctx context.Context, messages []Message) (*ChatReply, error) {
	if messages == nil {
		messages = []Message{}
	}
	var out ChatReply
	if err := c.do(ctx, http.MethodPost, "/chat", map[string]any{"messages": messages}, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.Reply) == "" {
		out.Reply = FallbackReply
	}
	return &out, nil
}

// QA asks a single question of /api/qa.
func (c *Client) QA(ctx context.Context, req QARequest) (*QAReply, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, apperror.ValidationFailed("question", "Question is required")
	}
	if req.UserID == "" {
		req.UserID = "anonymous"
	}
	if req.CollectionName == "" {
		req.CollectionName = "default"
	}
	var out QAReply
	if err := c.do(ctx, http.MethodPost, "/api/qa", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Greeting returns the backend's greeting, or FallbackGreeting when the
// backend cannot provide one.
func (c *Client) Greeting(ctx context.Context) string {
	var out struct {
		Greeting string `json:"greeting"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/qa/greeting", nil, &out); err != nil || out.Greeting == "" {
		return FallbackGreeting
	}
	return out.Greeting
}

// Flashcards forwards body to /api/flashcards and returns the backend's JSON
// unchanged.
func (c *Client) Flashcards(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/api/flashcards", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Health(ctx context.Context) Health {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return Health{Status: "degraded", Error: err.Error()}
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("health check failed", zap.Error(err))
		return Health{Status: "degraded", Error: "agent unreachable"}
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	h := Health{Status: "ok"}
	if resp.StatusCode >= 300 {
		h.Status = "error"
	}
	if json.Valid(data) {
		h.Upstream = data
	}
	return h
}

// statusError is a non-2xx answer from the backend.
type statusError struct {
	status int
	body   []byte
}

func (e *statusError) Error() string {
	return fmt.Sprintf("ai agent returned %d", e.status)
}

// detail prefers FastAPI's {"detail": ...} over the raw body.
func (e *statusError) detail() string {
	var parsed struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(e.body, &parsed) == nil && len(parsed.Detail) > 0 {
		var s string
		if json.Unmarshal(parsed.Detail, &s) == nil {
			return s
		}
		return string(parsed.Detail)
	}
	return strings.TrimSpace(string(e.body))
}

// do performs one JSON call, retrying once on transport errors and 5xx.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
	}

	var body []byte
	attempt := func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return err
		}
		if resp.StatusCode >= 500 {
			return &statusError{status: resp.StatusCode, body: data}
		}
		if resp.StatusCode >= 300 {
			return backoff.Permanent(&statusError{status: resp.StatusCode, body: data})
		}
		body = data
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryWait
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, 1), ctx)

	err := backoff.RetryNotify(attempt, retry, func(err error, wait time.Duration) {
		c.logger.Warn("retrying ai agent call", zap.String("path", path), zap.Duration("wait", wait), zap.Error(err))
	})
	if err != nil {
		var se *statusError
		if errors.As(err, &se) {
			c.logger.Warn("ai agent error", zap.String("path", path), zap.Int("status", se.status))
			return apperror.Upstream(se.status, se.detail())
		}
		c.logger.Error("ai agent unreachable", zap.String("path", path), zap.Error(err))
		return apperror.Unavailable(ServiceName, FallbackMessage)
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], body...)
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperror.Upstream(http.StatusOK, "invalid JSON from AI backend")
	}
	return nil
}
