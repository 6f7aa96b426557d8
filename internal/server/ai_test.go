package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkcampus/doubts/backend/internal/aiagent"
	"github.com/sparkcampus/doubts/backend/internal/database/dbtest"
	"github.com/sparkcampus/doubts/backend/internal/models"
	"github.com/sparkcampus/doubts/backend/internal/quota"
)

// premium creates a PREMIUM user directly and returns a session for it.
func (e *testEnv) premium(email string) (string, *models.User) {
	e.t.Helper()
	user := dbtest.CreateUser(e.t, e.db, email, 0)
	require.NoError(e.t, e.db.Model(user).Update("subscription_tier", models.TierPremium).Error)
	user.SubscriptionTier = models.TierPremium
	return e.login(user), user
}

func (e *testEnv) eventTypes(userID int) []string {
	e.t.Helper()
	var types []string
	require.NoError(e.t, e.db.Model(&models.LedgerEntry{}).Where("user_id = ?", userID).Order("id").Pluck("event_type", &types).Error)
	return types
}

func TestFreeQueries(t *testing.T) {
	env := newTestEnv(t)

	rr := env.get("/api/ai/free-queries", "")
	require.Equal(t, http.StatusOK, rr.Code)
	info := decode(t, rr)
	assert.EqualValues(t, 3, info["limit"])
	assert.EqualValues(t, 3, info["remaining"])

	var cookies []*http.Cookie
	ask := func() *httptest.ResponseRecorder {
		rr := env.serve(request{
			method:  http.MethodPost,
			path:    "/api/ai/free-queries",
			body:    map[string]string{"question": "What is 6 x 7?"},
			cookies: cookies,
		})
		for _, c := range rr.Result().Cookies() {
			if c.Name == quota.CookieName {
				cookies = []*http.Cookie{c}
			}
		}
		return rr
	}

	for want := 2; want >= 0; want-- {
		rr := ask()
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		body := decode(t, rr)
		assert.EqualValues(t, want, body["remaining"])
		assert.Equal(t, "42", body["answer"])
	}

	rr = ask()
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "quota_exhausted", decode(t, rr)["code"])

	rr = env.serve(request{method: http.MethodGet, path: "/api/ai/free-queries", cookies: cookies})
	assert.EqualValues(t, 0, decode(t, rr)["remaining"])

	rr = env.post("/api/ai/free-queries", "", map[string]string{"question": " "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestFreeQueryFallsBackWhenBackendFails(t *testing.T) {
	env := newTestEnv(t)
	env.aiFail.Store(true)
	token, userID := env.register("curious@example.com")

	rr := env.post("/api/ai/free-queries", token, map[string]string{"question": "Why is ice slippery?"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode(t, rr)
	assert.EqualValues(t, 2, body["remaining"])
	assert.Equal(t, "Here's a concise answer to your question.", body["answer"])

	var user models.User
	require.NoError(t, env.db.First(&user, userID).Error)
	assert.Equal(t, 1, user.FreeQueriesUsed)
}

func TestAIHealthAndGreeting(t *testing.T) {
	env := newTestEnv(t)

	rr := env.get("/api/ai-agent/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decode(t, rr)["status"])

	rr = env.get("/api/ai-agent/qa", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Hello from Spark", decode(t, rr)["greeting"])

	env.aiFail.Store(true)

	rr = env.get("/api/ai-agent/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "error", decode(t, rr)["status"])

	rr = env.get("/api/ai-agent/chat", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, aiagent.FallbackGreeting, decode(t, rr)["greeting"])
}

func TestAgentAnswersDoubt(t *testing.T) {
	env := newTestEnv(t)
	token, userID := env.register("asker@example.com")
	doubtID := env.createDoubt(token, "What is entropy?")
	require.Equal(t, 1, env.balance(userID))

	rr := env.post("/api/ai-agent", token, map[string]any{"doubtId": doubtID})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode(t, rr)
	assert.Equal(t, "Entropy measures disorder.", body["reply"])
	answer := body["answer"].(map[string]any)
	assert.Equal(t, true, answer["isAI"])
	assert.Nil(t, answer["authorId"])
	assert.Equal(t, 0, env.balance(userID))

	rr = env.get(fmt.Sprintf("/api/doubts/%d", doubtID), "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 1, decode(t, rr)["answersCount"])

	rr = env.post("/api/ai-agent", token, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestFailedAICallIsRefunded(t *testing.T) {
	env := newTestEnv(t)
	token, userID := env.register("refund@example.com")
	env.createDoubt(token, "Earn a credit")
	env.aiFail.Store(true)

	rr := env.post("/api/ai-agent/chat", token, map[string]string{"message": "Explain entropy"})
	require.Equal(t, http.StatusBadGateway, rr.Code, rr.Body.String())
	body := decode(t, rr)
	assert.Equal(t, "upstream_error", body["code"])
	assert.Equal(t, "model offline", body["detail"])

	assert.Equal(t, 1, env.balance(userID))
	assert.Equal(t, []string{
		string(models.EventDoubtCreated),
		string(models.EventAIUsage),
		string(models.EventAIRefund),
	}, env.eventTypes(userID))
}

func TestAICallWithoutCreditsIsRejected(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register("broke@example.com")
	before := env.aiCalls.Load()

	rr := env.post("/api/ai-agent/quiz", token, map[string]string{"topic": "Algebra"})
	require.Equal(t, http.StatusPaymentRequired, rr.Code, rr.Body.String())
	body := decode(t, rr)
	assert.Equal(t, "insufficient_credits", body["code"])
	assert.EqualValues(t, 3, body["required"])
	assert.Equal(t, before, env.aiCalls.Load())
}

func TestPremiumQuiz(t *testing.T) {
	env := newTestEnv(t)
	token, user := env.premium("premium@example.com")

	rr := env.post("/api/ai-agent/quiz", token, map[string]any{"topic": "Arithmetic", "count": 1})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode(t, rr)
	assert.EqualValues(t, 1, body["count"])
	questions := body["questions"].([]any)
	require.Len(t, questions, 1)
	q := questions[0].(map[string]any)
	assert.Equal(t, []any{"3", "4", aiagent.PaddingOption, aiagent.PaddingOption}, q["options"])
	assert.EqualValues(t, 1, q["correctAnswer"])

	assert.Empty(t, env.eventTypes(user.ID))

	rr = env.post("/api/ai-agent/quiz", token, map[string]string{"topic": ""})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestFlashcardsPassThrough(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.premium("cards@example.com")

	rr := env.post("/api/ai-agent/flashcards", token, `{"topic":"chemistry","count":1}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"cards":[{"front":"H2O","back":"Water"}]}`, rr.Body.String())

	rr = env.post("/api/ai-agent/flashcards", token, `not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestChatSessions(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.premium("chatter@example.com")
	other, _ := env.register("other@example.com")

	rr := env.post("/api/ai-agent/sessions", token, map[string]string{"title": "Thermo revision"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	session := decode(t, rr)["session"].(map[string]any)
	assert.Equal(t, "QA", session["sessionType"])
	assert.Equal(t, models.DefaultSystemPrompt, session["systemPrompt"])
	id := session["id"].(string)

	rr = env.post("/api/ai-agent/chat", token, map[string]string{"question": "What is 6 x 7?", "sessionId": id})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode(t, rr)
	assert.Equal(t, "42", body["response"])
	assert.Equal(t, id, body["sessionId"])

	rr = env.get("/api/ai-agent/sessions/"+id, token)
	require.Equal(t, http.StatusOK, rr.Code)
	messages := decode(t, rr)["session"].(map[string]any)["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].(map[string]any)["role"])
	assert.Equal(t, "42", messages[1].(map[string]any)["content"])

	rr = env.get("/api/ai-agent/sessions", token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode(t, rr)["sessions"], 1)

	rr = env.get("/api/ai-agent/sessions/"+id, other)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.post("/api/ai-agent/sessions", token, map[string]string{"sessionType": "poetry"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// Without a session the backend's qaId is echoed back.
	rr = env.post("/api/ai-agent/chat", token, map[string]string{"message": "Again?"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "qa-1", decode(t, rr)["sessionId"])
}
