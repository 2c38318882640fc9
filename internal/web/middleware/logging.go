// Package middleware provides HTTP middleware for the portal server:
// request logging, trusted proxy handling, rate limiting and session
// authentication.
package middleware

import (
	"net/http"
	"time"

	"github.com/JonMunkholm/RegistryPortal/internal/logging"
)

// Logger logs one line per request with timing, status and client details.
// It runs after chi's RequestID so every line carries the request ID.
//
// Log fields:
//   - method, path: request line
//   - status: response status code
//   - bytes: response body size
//   - duration_ms: processing time in milliseconds
//   - ip: client IP after trusted proxy handling
//   - user_agent: client user agent string
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(ww, r)

		logger := logging.FromContext(r.Context())
		level := logger.Info
		if ww.status >= http.StatusInternalServerError {
			level = logger.Error
		}
		level("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.status,
			"bytes", ww.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", ClientIP(r),
			"user_agent", r.UserAgent(),
		)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Unwrap exposes the underlying ResponseWriter to http.ResponseController.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
