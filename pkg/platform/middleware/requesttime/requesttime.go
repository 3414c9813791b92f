// Package requesttime pins one "now" per HTTP request so every ledger
// transition in the request sees the same timestamp.
package requesttime

import (
	"net/http"
	"time"

	"memoledger/pkg/requestcontext"
)

// Middleware stores the request start time via requestcontext.WithTime.
func Middleware(next http.Handler) http.Handler {
	return MiddlewareWithClock(time.Now)(next)
}

// MiddlewareWithClock is Middleware with an injectable clock, used by the
// feature tests to move the ledger through days.
func MiddlewareWithClock(clock func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), clock())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
