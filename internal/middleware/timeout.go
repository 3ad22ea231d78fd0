package middleware

import (
	"context"
	"net/http"
	"time"
)

// DefaultRequestTimeout bounds a request when no timeout is given.
const DefaultRequestTimeout = 30 * time.Second

// Timeout cancels the request context and writes 503 when a handler runs
// past the deadline. Chat turns carry their own wall clock and skip this.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			handler := http.TimeoutHandler(next, timeout, "Request Timeout")
			handler.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
