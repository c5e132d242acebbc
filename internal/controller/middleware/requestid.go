// Package middleware contains HTTP middleware for the controller API.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"taskplane/internal/logger"
)

// RequestID assigns a correlation ID to every request. An incoming
// X-Request-ID is honored so callers can stitch traces across services.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		ctx := logger.WithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
