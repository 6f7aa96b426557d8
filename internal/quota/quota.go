// Package quota tracks the anonymous free AI query allowance.
//
// The remaining count lives in a cookie the client can read and rewrite, so
// this is a usage nudge rather than an enforcement boundary. Anything that
// costs real money must sit behind authentication and the credit ledger.
package quota

import (
	"net/http"
	"strconv"
	"time"

	"github.com/sparkcampus/doubts/backend/internal/apperror"
)

const (
	CookieName       = "free_queries"
	DefaultAllowance = 3
	DefaultMaxAge    = 7 * 24 * time.Hour
)

type Gate struct {
	allowance int
	maxAge    time.Duration
	secure    bool
}

func NewGate(allowance int, maxAge time.Duration, secure bool) *Gate {
	if allowance < 0 {
		allowance = DefaultAllowance
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Gate{allowance: allowance, maxAge: maxAge, secure: secure}
}

func (g *Gate) Allowance() int { return g.allowance }

// Remaining reads the cookie. Missing, unparsable or negative values reset
// to the full allowance.
func (g *Gate) Remaining(r *http.Request) int {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return g.allowance
	}
	n, err := strconv.Atoi(c.Value)
	if err != nil || n < 0 {
		return g.allowance
	}
	return n
}

// Consume spends one query and writes the new count. At zero it returns
// QuotaExhausted and leaves the cookie untouched.
func (g *Gate) Consume(w http.ResponseWriter, r *http.Request) (int, error) {
	remaining := g.Remaining(r)
	if remaining <= 0 {
		return 0, apperror.QuotaExhausted()
	}

	remaining--
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    strconv.Itoa(remaining),
		Path:     "/",
		MaxAge:   int(g.maxAge.Seconds()),
		HttpOnly: false,
		Secure:   g.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return remaining, nil
}
