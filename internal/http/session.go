package http

import (
	"context"
	"net/http"
)

type contextKey string

const sessionKey contextKey = "session-id"

// SessionMiddleware requires an X-Session-ID header on every request. The
// session is the unit of cart ownership: one reconciliation engine per
// session.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := r.Header.Get("X-Session-ID")
		if session == "" {
			respondError(w, http.StatusBadRequest, "missing_session", "X-Session-ID header is required")
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFromContext(ctx context.Context) string {
	if session, ok := ctx.Value(sessionKey).(string); ok {
		return session
	}
	return ""
}
