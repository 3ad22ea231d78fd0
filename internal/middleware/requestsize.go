package middleware

import (
	"net/http"
)

// DefaultMaxRequestSize caps request bodies at 1MB. Chat messages are far
// smaller; anything near this limit is not a legitimate request.
const DefaultMaxRequestSize int64 = 1 << 20

// MaxRequestSize rejects oversized bodies. A declared Content-Length over
// the cap fails fast with 413; otherwise MaxBytesReader enforces the cap as
// handlers read.
func MaxRequestSize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestSize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			defer r.Body.Close()

			next.ServeHTTP(w, r)
		})
	}
}
