package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is:
//   - Logged with full technical details and the request ID
//   - Mapped through core.MapError to a user message with a suggested action
//   - Returned as JSON for API routes and as plain text for pages
//
// statusFor picks the HTTP status when a handler has no better idea.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/RegistryPortal/internal/auth"
	"github.com/JonMunkholm/RegistryPortal/internal/core"
	"github.com/JonMunkholm/RegistryPortal/internal/logging"
	"github.com/JonMunkholm/RegistryPortal/internal/portal"
	"github.com/go-chi/chi/v5/middleware"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes the mapped user message.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	level := slog.LevelWarn
	if statusCode >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logging.FromContext(r.Context()).Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	if wantsJSON(r) {
		respondErrorJSON(w, userMsg, statusCode)
		return
	}
	http.Error(w, userMsg.Message+" ("+userMsg.Code+")", statusCode)
}

// respondErr writes err with the status statusFor picks.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	respondError(w, r, err, statusFor(err))
}

func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidCredentials),
		errors.Is(err, core.ErrSessionNotFound),
		errors.Is(err, core.ErrNotAuthorized):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrForbidden),
		errors.Is(err, core.ErrAccountSuspended):
		return http.StatusForbidden
	case errors.Is(err, core.ErrIdentityExists):
		return http.StatusConflict
	case errors.Is(err, core.ErrUserNotFound),
		errors.Is(err, core.ErrFileNotFound),
		errors.Is(err, core.ErrMessageNotFound):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrTooManyAttempts):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrOTPInvalid),
		errors.Is(err, core.ErrOTPExpired),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, portal.ErrNoRecipients),
		errors.Is(err, errInvalidRequest):
		return http.StatusBadRequest
	}
	if code := core.MapError(err).Code; strings.HasPrefix(code, "IMP") {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// wantsJSON checks if the client prefers a JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	// API routes default to JSON
	return strings.HasPrefix(r.URL.Path, "/api/")
}
