package report

import (
	"net/http"

	"golang.org/x/time/rate"
)

// RateLimit rejects requests beyond rps/burst with 429. The report page is
// meant for one operator; anything hammering it is a broken dashboard or a
// scraper gone wild, and probing must never be starved by serving HTML.
func RateLimit(rps rate.Limit, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rps, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
