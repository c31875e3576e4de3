// Package middleware provides HTTP middleware for the status server.
package middleware

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/3leaps/jobprobe/internal/observability"
	"github.com/3leaps/jobprobe/internal/server/handlers"
)

// ErrorResponse is the JSON body written on recovered panics.
type ErrorResponse = handlers.ErrorResponse

// Recovery turns a panic in next into a 500 JSON error response.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				observability.CLILogger.Error("Panic in status handler",
					zap.String("path", r.URL.Path),
					zap.Any("panic", rec))
				handlers.RespondWithError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR",
					fmt.Sprintf("panic: %v", rec), nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// RequestID echoes the caller's X-Request-ID or assigns a new one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(handlers.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(handlers.RequestIDHeader, id)
		}
		w.Header().Set(handlers.RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}
