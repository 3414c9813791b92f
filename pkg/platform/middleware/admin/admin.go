// Package admin guards operator routes with a shared token.
package admin

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"memoledger/pkg/requestcontext"
)

type contextKeyAdminActorID struct{}

type contextKeyAdminAuthorized struct{}

// GetAdminActorID returns the X-Admin-Actor-ID of an authorized admin request, or "".
func GetAdminActorID(ctx context.Context) string {
	if actorID, ok := ctx.Value(contextKeyAdminActorID{}).(string); ok {
		return actorID
	}
	return ""
}

// IsAdminRequest reports whether ctx passed RequireAdminToken.
func IsAdminRequest(ctx context.Context) bool {
	ok, _ := ctx.Value(contextKeyAdminAuthorized{}).(bool)
	return ok
}

// RequireAdminToken compares X-Admin-Token against expectedToken in constant
// time. An empty expectedToken disables the routes it guards.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := r.Header.Get("X-Admin-Token")
			if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"admin token required"}`))
				return
			}

			ctx = context.WithValue(ctx, contextKeyAdminAuthorized{}, true)
			if actorID := r.Header.Get("X-Admin-Actor-ID"); actorID != "" {
				ctx = context.WithValue(ctx, contextKeyAdminActorID{}, actorID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
