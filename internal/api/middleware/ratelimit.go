package middleware

import (
	"net"
	"net/http"
	"strconv"

	"github.com/ocgrimoire/grimoire-api/internal/api/shared"
	"github.com/ocgrimoire/grimoire-api/internal/ratelimit"
)

// Limiter decides whether a request keyed by client address may proceed.
// *ratelimit.KeyedRateLimiter satisfies it.
type Limiter interface {
	Allow(key string) bool
}

var _ Limiter = (*ratelimit.KeyedRateLimiter)(nil)

// RateLimit answers 429 when the client's address exceeds its budget.
// Run chi's RealIP first when the server sits behind a proxy.
func RateLimit(limiter Limiter, retryAfterSeconds int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientKey(r)) {
				if retryAfterSeconds > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
				}
				shared.RespondWithError(w, r, http.StatusTooManyRequests, "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
