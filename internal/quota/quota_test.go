package quota

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkcampus/doubts/backend/internal/apperror"
)

func requestWith(cookie *http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/ai/free-queries", nil)
	if cookie != nil {
		r.AddCookie(cookie)
	}
	return r
}

func TestRemaining(t *testing.T) {
	g := NewGate(DefaultAllowance, 0, false)

	tests := []struct {
		name   string
		cookie *http.Cookie
		want   int
	}{
		{"no cookie", nil, 3},
		{"valid", &http.Cookie{Name: CookieName, Value: "2"}, 2},
		{"zero", &http.Cookie{Name: CookieName, Value: "0"}, 0},
		{"garbage", &http.Cookie{Name: CookieName, Value: "lots"}, 3},
		{"negative", &http.Cookie{Name: CookieName, Value: "-4"}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Remaining(requestWith(tt.cookie)))
		})
	}
}

func TestConsumeCountsDownThenRefuses(t *testing.T) {
	g := NewGate(DefaultAllowance, DefaultMaxAge, false)
	var cookie *http.Cookie

	for _, want := range []int{2, 1, 0} {
		w := httptest.NewRecorder()
		got, err := g.Consume(w, requestWith(cookie))
		require.NoError(t, err)
		assert.Equal(t, want, got)

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		cookie = cookies[0]
		assert.Equal(t, CookieName, cookie.Name)
		assert.Equal(t, "/", cookie.Path)
		assert.Equal(t, 7*24*60*60, cookie.MaxAge)
		assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	}

	w := httptest.NewRecorder()
	_, err := g.Consume(w, requestWith(cookie))
	assert.True(t, errors.Is(err, apperror.ErrQuotaExhausted))
	assert.Empty(t, w.Result().Cookies())
}
