package middleware

import (
	"net/http"

	"golang.org/x/time/rate"
)

// RateLimit consults a shared token bucket before letting a request
// through. Exhausted budgets answer 429 without invoking the handler.
func RateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
