package core

// # Error Codes Reference
//
// User-facing error messages carry a code that members and staff can quote
// to support.
//
// # Authentication (AUTH001-AUTH008)
//
//	AUTH001 - Invalid email or password
//	AUTH002 - CNIC or email already registered
//	AUTH003 - No account exists for this email
//	AUTH004 - Session expired or not found
//	AUTH005 - Session waiting for verification code
//	AUTH006 - Administrator access required
//	AUTH007 - Password too short
//	AUTH008 - Account suspended
//
// # One-time codes (OTP001-OTP003)
//
//	OTP001 - Verification code is incorrect
//	OTP002 - Verification code has expired
//	OTP003 - Too many attempts for this code
//
// # Database (DB001-DB008)
//
//	DB001 - Duplicate key
//	DB002 - Unique constraint
//	DB003 - Foreign key
//	DB004 - Connection refused
//	DB005 - Connection reset
//	DB006 - Timeout
//	DB007 - Property file not found
//	DB008 - Message not found
//
// # Cloud sync (SYNC001-SYNC002)
//
//	SYNC001 - A sync batch was rejected; earlier batches are saved
//	SYNC002 - A record has no file number
//
// # Import (IMP001-IMP006)
//
//	IMP001 - File too large
//	IMP002 - Not a valid CSV
//	IMP003 - Header row not found
//	IMP004 - Empty file
//	IMP005 - Too many imports in progress
//	IMP006 - Unknown import layout
//
// # Messages (MSG001)
//
//	MSG001 - Message has no recipients
//
// # Requests (REQ001)
//
//	REQ001 - Request body failed validation
//
// # Rate limiting (RATE001)
//
//	RATE001 - Too many requests
//
// # Default (ERR000)
//
// Fallback when nothing matches. Check the application logs for the
// original error.
//
// # Matching
//
// Sentinel errors are matched first with errors.Is, so wrapping never hides
// them. Everything else is matched case-insensitively on the error text with
// strings.Contains. The first matching pattern wins.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

type sentinelMessage struct {
	err error
	msg UserMessage
}

var (
	msgInvalidCredentials = UserMessage{
		Message: "Invalid email or password",
		Action:  "Check your credentials and try again",
		Code:    "AUTH001",
	}
	msgIdentityExists = UserMessage{
		Message: "This CNIC or email is already registered",
		Action:  "Sign in with your existing account",
		Code:    "AUTH002",
	}
	msgUserNotFound = UserMessage{
		Message: "No account exists for this email",
		Action:  "Register before signing in",
		Code:    "AUTH003",
	}
	msgSessionNotFound = UserMessage{
		Message: "Your session has expired",
		Action:  "Please sign in again",
		Code:    "AUTH004",
	}
	msgNotAuthorized = UserMessage{
		Message: "Your sign-in is not verified yet",
		Action:  "Enter the verification code sent to your email",
		Code:    "AUTH005",
	}
	msgForbidden = UserMessage{
		Message: "Administrator access required",
		Action:  "Contact an administrator if you need access",
		Code:    "AUTH006",
	}
	msgAccountSuspended = UserMessage{
		Message: "This account is suspended",
		Action:  "Contact the registry office",
		Code:    "AUTH008",
	}
	msgOTPInvalid = UserMessage{
		Message: "Verification code is incorrect",
		Action:  "Check the code in your email and try again",
		Code:    "OTP001",
	}
	msgOTPExpired = UserMessage{
		Message: "Verification code has expired",
		Action:  "Request a new code",
		Code:    "OTP002",
	}
	msgFileNotFound = UserMessage{
		Message: "Property file not found",
		Action:  "Check the file number",
		Code:    "DB007",
	}
	msgMessageNotFound = UserMessage{
		Message: "Message not found",
		Action:  "Refresh your inbox",
		Code:    "DB008",
	}
	msgSyncBatch = UserMessage{
		Message: "Cloud sync stopped partway",
		Action:  "Records before the failed batch are saved. Fix the data and sync again",
		Code:    "SYNC001",
	}
	msgEmptyFileNo = UserMessage{
		Message: "A record has no file number",
		Action:  "Every record needs a file number before it can be synced",
		Code:    "SYNC002",
	}
	msgTooManyImports = UserMessage{
		Message: "System is busy processing other imports",
		Action:  "Please wait a moment and try again",
		Code:    "IMP005",
	}
)

// sentinelMessages is consulted before errorPatterns.
var sentinelMessages = []sentinelMessage{
	{ErrInvalidCredentials, msgInvalidCredentials},
	{ErrIdentityExists, msgIdentityExists},
	{ErrUserNotFound, msgUserNotFound},
	{ErrSessionNotFound, msgSessionNotFound},
	{ErrNotAuthorized, msgNotAuthorized},
	{ErrForbidden, msgForbidden},
	{ErrAccountSuspended, msgAccountSuspended},
	{ErrOTPInvalid, msgOTPInvalid},
	{ErrOTPExpired, msgOTPExpired},
	{ErrFileNotFound, msgFileNotFound},
	{ErrMessageNotFound, msgMessageNotFound},
	{ErrEmptyFileNo, msgEmptyFileNo},
	{ErrTooManyImports, msgTooManyImports},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// More specific patterns come before general ones.
var errorPatterns = []errorPattern{
	// Sign-up
	{
		pattern: "password must be at least",
		msg: UserMessage{
			Message: "Password is too short",
			Action:  "Use at least 8 characters",
			Code:    "AUTH007",
		},
	},

	// One-time codes
	{
		pattern: "too many attempts",
		msg: UserMessage{
			Message: "Too many attempts for this code",
			Action:  "Request a new code",
			Code:    "OTP003",
		},
	},

	// Database constraints
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this ID already exists",
			Action:  "Review the data for duplicate file numbers",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Check for duplicate entries",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A duplicate value was found",
			Action:  "Review your data for duplicate key values",
			Code:    "DB002",
		},
	},
	{
		pattern: "foreign key",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Ensure the referenced user or file exists first",
			Code:    "DB003",
		},
	},

	// Database connectivity
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadline exceeded",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "DB006",
		},
	},

	// Import
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "IMP001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure file is comma-separated with consistent columns",
			Code:    "IMP002",
		},
	},
	{
		pattern: "header not found",
		msg: UserMessage{
			Message: "Could not find the header row",
			Action:  "Download the template and match its column names",
			Code:    "IMP003",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a CSV file with data rows",
			Code:    "IMP004",
		},
	},
	{
		pattern: "unknown layout",
		msg: UserMessage{
			Message: "Unknown import layout",
			Action:  "Choose property_files or users",
			Code:    "IMP006",
		},
	},

	// Messages
	{
		pattern: "no recipients",
		msg: UserMessage{
			Message: "Message has no recipients",
			Action:  "Choose at least one recipient",
			Code:    "MSG001",
		},
	},

	// Requests
	{
		pattern: "invalid request",
		msg: UserMessage{
			Message: "Some fields are missing or invalid",
			Action:  "Check the form and try again",
			Code:    "REQ001",
		},
	},

	// Rate limiting
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Sentinel errors are matched first, then a failed sync batch, then the
// text patterns. If nothing matches, the ERR000 fallback is returned.
//
// Example:
//
//	msg := MapError(fmt.Errorf("sign in: %w", ErrInvalidCredentials))
//	// msg.Code == "AUTH001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	var batchErr *BatchError
	if errors.As(err, &batchErr) {
		return msgSyncBatch
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err and keeps the original for logging via Unwrap.
// Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
