package aiagent

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/sparkcampus/doubts/backend/internal/apperror"
)

const (
	DefaultQuizCount      = 5
	MaxQuizCount          = 20
	DefaultQuizDifficulty = "medium"
	QuizOptions           = 4
	PaddingOption         = "None of the above"
)

type QuizRequest struct {
	Topic        string `json:"topic"`
	Count        int    `json:"count"`
	Difficulty   string `json:"difficulty"`
	SystemPrompt string `json:"systemPrompt,omitempty"`
	UserID       string `json:"userId,omitempty"`
}

type Question struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Explanation   string   `json:"explanation"`
}

type Quiz struct {
	Questions []Question      `json:"questions"`
	Count     int             `json:"count"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// Normalize trims the topic, clamps the count to 1..20 and defaults the
// difficulty.
func (r QuizRequest) Normalize() (QuizRequest, error) {
	r.Topic = strings.TrimSpace(r.Topic)
	if r.Topic == "" {
		return r, apperror.ValidationFailed("topic", "Topic is required")
	}
	switch {
	case r.Count == 0:
		r.Count = DefaultQuizCount
	case r.Count < 1:
		r.Count = 1
	case r.Count > MaxQuizCount:
		r.Count = MaxQuizCount
	}
	r.Difficulty = strings.TrimSpace(r.Difficulty)
	if r.Difficulty == "" {
		r.Difficulty = DefaultQuizDifficulty
	}
	return r, nil
}

func (c *Client) Quiz(ctx context.Context, req QuizRequest) (*Quiz, error) {
	req, err := req.Normalize()
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/api/quiz", req, &raw); err != nil {
		return nil, err
	}
	quiz, err := NormalizeQuiz(raw)
	if err != nil {
		return nil, apperror.Upstream(http.StatusOK, err.Error())
	}
	return quiz, nil
}

type rawQuestion struct {
	Question      any   `json:"question"`
	Prompt        any   `json:"prompt"`
	Options       []any `json:"options"`
	Choices       []any `json:"choices"`
	CorrectAnswer any   `json:"correctAnswer"`
	CorrectSnake  any   `json:"correct_answer"`
	Explanation   any   `json:"explanation"`
}

// NormalizeQuiz accepts {questions:[...]} or {data:{questions:[...]}} and
// returns questions with exactly four options. Options beyond four are
// dropped and missing ones padded; questions with no text, or whose answer
// is not one of the kept options, are skipped.
func NormalizeQuiz(data []byte) (*Quiz, error) {
	var envelope struct {
		Questions []rawQuestion `json:"questions"`
		Data      *struct {
			Questions []rawQuestion `json:"questions"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode quiz: %w", err)
	}
	questions := envelope.Questions
	if questions == nil && envelope.Data != nil {
		questions = envelope.Data.Questions
	}

	out := make([]Question, 0, len(questions))
	for _, q := range questions {
		prompt := strings.TrimSpace(stringify(q.Question))
		if prompt == "" {
			prompt = strings.TrimSpace(stringify(q.Prompt))
		}
		if prompt == "" {
			continue
		}

		src := q.Options
		if len(src) == 0 {
			src = q.Choices
		}
		options := make([]string, 0, QuizOptions)
		for _, o := range src {
			if len(options) == QuizOptions {
				break
			}
			options = append(options, stringify(o))
		}
		given := len(options)
		for len(options) < QuizOptions {
			options = append(options, PaddingOption)
		}

		correct := q.CorrectAnswer
		if correct == nil {
			correct = q.CorrectSnake
		}
		answer := toInt(correct)
		if answer < 0 || answer >= given {
			continue
		}
		out = append(out, Question{
			Question:      prompt,
			Options:       options,
			CorrectAnswer: answer,
			Explanation:   stringify(q.Explanation),
		})
	}
	return &Quiz{Questions: out, Count: len(out), Raw: json.RawMessage(data)}, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

func toInt(v any) int {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0
		}
		return int(t)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0
		}
		return n
	case bool:
		if t {
			return 1
		}
	}
	return 0
}
