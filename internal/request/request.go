// Package request holds helpers shared by middleware and handlers for
// reading per-request state: the authenticated user and the client address.
package request

import (
	"context"
	"net/http"
	"strings"

	"github.com/taskpilot/taskpilot/internal/models"
)

type contextKey string

const userContextKey contextKey = "user"

// WithUser attaches the authenticated user to a context.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext returns the authenticated user, or nil when the request
// never passed the auth middleware.
func UserFromContext(r *http.Request) *models.User {
	u, _ := r.Context().Value(userContextKey).(*models.User)
	return u
}

// ClientIP resolves the caller's address, preferring proxy-set headers.
// X-Forwarded-For may hold a chain; the first entry is the origin.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return r.RemoteAddr
}
