package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/RegistryPortal/internal/core"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the session token claims. The token ID (jti) names the
// server-side session row.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and parses HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an issuer. ttl is the session lifetime.
func NewTokenIssuer(secret, issuer string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs a token for userID. It returns the token, its session ID and
// expiry.
func (t *TokenIssuer) Issue(userID, email string) (token, sessionID string, expiresAt time.Time, err error) {
	now := t.now()
	sessionID = uuid.NewString()
	expiresAt = now.Add(t.ttl)

	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Issuer:    t.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return token, sessionID, expiresAt, nil
}

// Parse validates the signature, issuer and expiry of a token. Any
// failure wraps core.ErrSessionNotFound.
func (t *TokenIssuer) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", core.ErrSessionNotFound)
		}
		return nil, fmt.Errorf("%w: %v", core.ErrSessionNotFound, err)
	}
	if !parsed.Valid || claims.ID == "" || claims.Subject == "" {
		return nil, fmt.Errorf("%w: incomplete claims", core.ErrSessionNotFound)
	}
	return claims, nil
}
