package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// OTPPurpose distinguishes sign-up confirmation codes from login challenges.
type OTPPurpose string

const (
	OTPEmail  OTPPurpose = "email"
	OTPSignup OTPPurpose = "signup"
)

// ParseOTPPurpose accepts "email", "signup" or empty (email).
func ParseOTPPurpose(s string) (OTPPurpose, error) {
	switch OTPPurpose(strings.ToLower(strings.TrimSpace(s))) {
	case "", OTPEmail:
		return OTPEmail, nil
	case OTPSignup:
		return OTPSignup, nil
	default:
		return "", fmt.Errorf("unknown code type %q", s)
	}
}

// OTPCode is a stored one-time code. Only the hash of the code is kept.
type OTPCode struct {
	ID         string
	Email      string
	Purpose    OTPPurpose
	CodeHash   string
	Attempts   int
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// Expired reports whether the code is past its expiry at now.
func (c OTPCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// GenerateCode returns a random numeric code with the given number of digits.
func GenerateCode(digits int) (string, error) {
	if digits <= 0 {
		return "", fmt.Errorf("code length must be positive, got %d", digits)
	}
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}

// HashCode binds a code to the address it was sent to.
func HashCode(email, code string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(email) + ":" + strings.TrimSpace(code)))
	return hex.EncodeToString(sum[:])
}

// codeMatches compares in constant time.
func codeMatches(stored OTPCode, code string) bool {
	return subtle.ConstantTimeCompare([]byte(stored.CodeHash), []byte(HashCode(stored.Email, code))) == 1
}
