// Package middleware provides the HTTP middleware chain shared by all
// handlers: request IDs, panic recovery, request logging, request-time
// capture, and bearer-token authentication.
package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"supplytrail/pkg/requestcontext"
)

// RequestID assigns each request a UUID, exposing it via context and the
// X-Request-ID response header. An inbound X-Request-ID is honoured so
// callers can correlate across services.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(requestcontext.WithRequestID(r.Context(), reqID)))
	})
}

// RequestTime captures one wall-clock instant per request. Services read it
// via requestcontext.Now so every timestamp derived from a single request is
// identical.
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(requestcontext.WithTime(r.Context(), time.Now().UTC())))
	})
}

// Recovery converts panics into 500 responses and logs the panic value.
func Recovery(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error("panic recovered",
						"request_id", requestcontext.RequestID(r.Context()),
						"panic", rec,
						"path", r.URL.Path,
					)
					writeJSONError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Logger emits one structured log line per request.
func Logger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			log.Info("request",
				"request_id", requestcontext.RequestID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

// BearerAuth enforces static bearer-token authentication. With no configured
// tokens the middleware is a no-op, which keeps local development friction
// free.
func BearerAuth(tokens []string) func(http.Handler) http.Handler {
	accepted := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		accepted[t] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(accepted) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			const prefix = "Bearer "
			header := r.Header.Get("Authorization")
			if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
				writeJSONError(w, http.StatusUnauthorized, "bearer token required")
				return
			}
			if _, ok := accepted[header[len(prefix):]]; !ok {
				writeJSONError(w, http.StatusForbidden, "invalid bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
