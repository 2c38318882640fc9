package core

import "errors"

// Sentinel errors shared by the backend, auth and portal layers.
// Callers match them with errors.Is; MapError turns them into user messages.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrIdentityExists     = errors.New("identity already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrOTPInvalid         = errors.New("invalid verification code")
	ErrOTPExpired         = errors.New("verification code expired")
	ErrSessionNotFound    = errors.New("session not found")
	ErrNotAuthorized      = errors.New("session not authorized")
	ErrForbidden          = errors.New("forbidden")
	ErrAccountSuspended   = errors.New("account suspended")
	ErrFileNotFound       = errors.New("property file not found")
	ErrMessageNotFound    = errors.New("message not found")
	ErrTooManyImports     = errors.New("too many imports in progress, please try again later")
)
