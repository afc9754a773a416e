package server

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	reqcontext "github.com/raglab/raglab/internal/pkg/context"
	"github.com/raglab/raglab/internal/pkg/errors"
	"github.com/raglab/raglab/internal/pkg/logger"
	"github.com/raglab/raglab/internal/pkg/security"
)

// requestIDHeader carries the per-request correlation id.
const requestIDHeader = "X-Request-ID"

// generateRequestID returns a random hex request id.
func generateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b)
}

// requestIDMiddleware assigns a request id when the client did not
// supply one, stores it in the request context, and echoes it on the
// response.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = generateRequestID()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(reqcontext.WithRequestID(r.Context(), id)))
	})
}

// corsMiddleware handles cross-origin requests for the dashboard.
func corsMiddleware(origins string, next http.Handler) http.Handler {
	if origins == "" {
		origins = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origins)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware converts handler panics into 500 responses so one
// bad request cannot take the server down.
func recoveryMiddleware(log *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("handler panic",
					"method", r.Method,
					"path", r.URL.Path,
					"panic", rec,
					"request_id", reqcontext.GetRequestID(r.Context()),
					"headers", security.MaskSensitiveHeaders(r.Header),
				)
				errors.WriteJSON(w, http.StatusInternalServerError, errors.ErrorResponse{
					Error:   "internal server error",
					Code:    errors.CodeInternal,
					Message: "An unexpected error occurred",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// statusWriter captures the response status for access logging.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush passes through so streaming handlers keep working when wrapped.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// loggingMiddleware emits one access log line per request.
func loggingMiddleware(log *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		log.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
			"request_id", reqcontext.GetRequestID(r.Context()),
		)
	})
}
