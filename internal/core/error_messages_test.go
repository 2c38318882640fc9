package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "wrapped invalid credentials",
			err:         fmt.Errorf("sign in: %w", ErrInvalidCredentials),
			wantCode:    "AUTH001",
			wantMessage: "Invalid email or password",
		},
		{
			name:        "identity exists",
			err:         fmt.Errorf("sign up a@b.c: %w", ErrIdentityExists),
			wantCode:    "AUTH002",
			wantMessage: "This CNIC or email is already registered",
		},
		{
			name:        "forbidden",
			err:         ErrForbidden,
			wantCode:    "AUTH006",
			wantMessage: "Administrator access required",
		},
		{
			name:        "suspended account",
			err:         fmt.Errorf("open session: %w", ErrAccountSuspended),
			wantCode:    "AUTH008",
			wantMessage: "This account is suspended",
		},
		{
			name:        "expired code",
			err:         fmt.Errorf("verify: %w", ErrOTPExpired),
			wantCode:    "OTP002",
			wantMessage: "Verification code has expired",
		},
		{
			name:        "too many code attempts",
			err:         errors.New("verify: too many attempts"),
			wantCode:    "OTP003",
			wantMessage: "Too many attempts for this code",
		},
		{
			name:        "file not found",
			err:         fmt.Errorf("get F-1: %w", ErrFileNotFound),
			wantCode:    "DB007",
			wantMessage: "Property file not found",
		},
		{
			name:        "duplicate key maps correctly",
			err:         errors.New("ERROR: duplicate key value violates unique constraint \"property_files_pkey\""),
			wantCode:    "DB001",
			wantMessage: "A record with this ID already exists",
		},
		{
			name:        "connection refused maps correctly",
			err:         errors.New("dial tcp: connection refused"),
			wantCode:    "DB004",
			wantMessage: "Unable to connect to database",
		},
		{
			name:        "context deadline maps to timeout",
			err:         fmt.Errorf("fetch files: %w", context.DeadlineExceeded),
			wantCode:    "DB006",
			wantMessage: "Operation timed out",
		},
		{
			name:        "sync batch failure",
			err:         &BatchError{Batch: 2, Start: 100, End: 150, Err: errors.New("boom")},
			wantCode:    "SYNC001",
			wantMessage: "Cloud sync stopped partway",
		},
		{
			name:        "import busy",
			err:         ErrTooManyImports,
			wantCode:    "IMP005",
			wantMessage: "System is busy processing other imports",
		},
		{
			name:        "rate limit maps correctly",
			err:         errors.New("rate limit exceeded"),
			wantCode:    "RATE001",
			wantMessage: "Too many requests",
		},
		{
			name:        "short password maps correctly",
			err:         errors.New("sign up: password must be at least 8 characters"),
			wantCode:    "AUTH007",
			wantMessage: "Password is too short",
		},
		{
			name:        "message without recipients maps correctly",
			err:         errors.New("message has no recipients"),
			wantCode:    "MSG001",
			wantMessage: "Message has no recipients",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("DUPLICATE KEY value violates"),
			wantCode:    "DB001",
			wantMessage: "A record with this ID already exists",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrSessionNotFound)

	expected := "Your session has expired (Code: AUTH004). Please sign in again"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error is not user facing", nil, false},
		{"sentinel is user facing", ErrNotAuthorized, true},
		{"known pattern is user facing", errors.New("duplicate key"), true},
		{"unknown error is not user facing", errors.New("random internal error xyz"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := fmt.Errorf("lookup: %w", ErrUserNotFound)
		userErr := NewUserError(techErr)

		if userErr.Error() != "No account exists for this email" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}
		if !errors.Is(userErr, ErrUserNotFound) {
			t.Error("Unwrap() should reach the original error")
		}
	})
}
