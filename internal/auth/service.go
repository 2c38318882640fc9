package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/RegistryPortal/internal/core"
	"github.com/JonMunkholm/RegistryPortal/internal/logging"
	"github.com/google/uuid"
)

// ErrTooManyAttempts is returned once a code has absorbed its allowed guesses.
var ErrTooManyAttempts = errors.New("too many attempts for this code")

// Metadata is the sign-up information kept with an identity.
type Metadata struct {
	Name  string `json:"name"`
	CNIC  string `json:"cnic"`
	Phone string `json:"phone"`
	Role  string `json:"role"`
}

// Identity is a password-bearing login.
type Identity struct {
	ID           string
	Email        string
	PasswordHash string
	Metadata     Metadata
	ConfirmedAt  *time.Time
	CreatedAt    time.Time
}

// SessionRecord is the server-side half of a session token.
type SessionRecord struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Session is an authenticated session as seen by callers.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
	Identity  *Identity `json:"-"`
}

// Store persists identities, codes and sessions. Lookups of missing rows
// return core.ErrUserNotFound, core.ErrOTPInvalid or core.ErrSessionNotFound.
type Store interface {
	CreateIdentity(ctx context.Context, id Identity, profile core.Profile) error
	GetIdentity(ctx context.Context, id string) (*Identity, error)
	GetIdentityByEmail(ctx context.Context, email string) (*Identity, error)
	ConfirmIdentity(ctx context.Context, id string, at time.Time) error
	CheckIdentityExists(ctx context.Context, cnicNormalized, email string) (bool, error)

	InsertOTP(ctx context.Context, code OTPCode) error
	LatestOTP(ctx context.Context, email string, purpose OTPPurpose) (*OTPCode, error)
	// ClaimOTPAttempt counts one guess against an unconsumed code while it
	// has fewer than max attempts, and returns ErrTooManyAttempts otherwise.
	ClaimOTPAttempt(ctx context.Context, id string, max int) error
	ConsumeOTP(ctx context.Context, id string, at time.Time) error

	CreateSession(ctx context.Context, s SessionRecord) error
	GetSession(ctx context.Context, id string) (*SessionRecord, error)
	DeleteSession(ctx context.Context, id string) error
}

// Sender delivers one-time codes.
type Sender interface {
	SendCode(ctx context.Context, to, code string, ttl time.Duration) error
}

// Options tune code and password handling.
type Options struct {
	OTPTTL         time.Duration
	OTPLength      int
	OTPMaxAttempts int
	BcryptCost     int
}

// Service implements sign-up, password sign-in, login challenges and
// session lookup over a Store.
type Service struct {
	store  Store
	sender Sender
	tokens *TokenIssuer
	opts   Options
	now    func() time.Time
}

// NewService creates a Service. Zero options fall back to 10m codes of six
// digits with five attempts.
func NewService(store Store, sender Sender, tokens *TokenIssuer, opts Options) *Service {
	if opts.OTPTTL <= 0 {
		opts.OTPTTL = 10 * time.Minute
	}
	if opts.OTPLength <= 0 {
		opts.OTPLength = 6
	}
	if opts.OTPMaxAttempts <= 0 {
		opts.OTPMaxAttempts = 5
	}
	return &Service{
		store:  store,
		sender: sender,
		tokens: tokens,
		opts:   opts,
		now:    time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CheckIdentityExists reports whether the CNIC (compared normalized) or
// the email (compared lower-cased) is already registered.
func (s *Service) CheckIdentityExists(ctx context.Context, cnic, email string) (bool, error) {
	exists, err := s.store.CheckIdentityExists(ctx, core.NormalizeCNIC(cnic), normalizeEmail(email))
	if err != nil {
		return false, fmt.Errorf("check identity: %w", err)
	}
	return exists, nil
}

// CheckCnicExists reports whether any profile carries the CNIC.
func (s *Service) CheckCnicExists(ctx context.Context, cnic string) (bool, error) {
	if core.NormalizeCNIC(cnic) == "" {
		return false, nil
	}
	return s.CheckIdentityExists(ctx, cnic, "")
}

// SignUp creates an identity with its profile and e-mails a sign-up code.
func (s *Service) SignUp(ctx context.Context, email, password string, meta Metadata) (*Identity, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("sign up: %w", core.ErrInvalidCredentials)
	}

	exists, err := s.CheckIdentityExists(ctx, meta.CNIC, email)
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("sign up %s: %w", email, core.ErrIdentityExists)
	}

	hash, err := HashPassword(password, s.opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}

	role, err := core.ParseRole(meta.Role)
	if err != nil {
		role = core.RoleClient
	}
	meta.Role = string(role)

	id := Identity{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Metadata:     meta,
		CreatedAt:    s.now().UTC(),
	}
	profile := core.UserToProfile(core.User{
		ID:     id.ID,
		Name:   meta.Name,
		Email:  email,
		Phone:  meta.Phone,
		CNIC:   meta.CNIC,
		Role:   role,
		Status: core.StatusActive,
	})

	if err := s.store.CreateIdentity(ctx, id, profile); err != nil {
		return nil, fmt.Errorf("sign up %s: %w", email, err)
	}

	if err := s.issueCode(ctx, email, OTPSignup); err != nil {
		return nil, err
	}
	return &id, nil
}

// SignIn verifies the password. It does not open a session.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	id, err := s.store.GetIdentityByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			return nil, fmt.Errorf("sign in: %w", core.ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("sign in: %w", err)
	}
	if !CheckPassword(id.PasswordHash, password) {
		return nil, fmt.Errorf("sign in: %w", core.ErrInvalidCredentials)
	}
	return id, nil
}

// SendLoginChallenge e-mails a login code to an existing identity. Unknown
// addresses are rejected rather than registered.
func (s *Service) SendLoginChallenge(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if _, err := s.store.GetIdentityByEmail(ctx, email); err != nil {
		return fmt.Errorf("login challenge: %w", err)
	}
	return s.issueCode(ctx, email, OTPEmail)
}

func (s *Service) issueCode(ctx context.Context, email string, purpose OTPPurpose) error {
	code, err := GenerateCode(s.opts.OTPLength)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	rec := OTPCode{
		ID:        uuid.NewString(),
		Email:     email,
		Purpose:   purpose,
		CodeHash:  HashCode(email, code),
		ExpiresAt: now.Add(s.opts.OTPTTL),
		CreatedAt: now,
	}
	if err := s.store.InsertOTP(ctx, rec); err != nil {
		return fmt.Errorf("store %s code: %w", purpose, err)
	}
	if err := s.sender.SendCode(ctx, email, code, s.opts.OTPTTL); err != nil {
		return fmt.Errorf("send %s code: %w", purpose, err)
	}
	logging.FromContext(ctx).Info("verification code sent", "purpose", purpose)
	return nil
}

// VerifyOTP checks code against the latest unconsumed code for email and
// purpose and, on success, opens a session.
func (s *Service) VerifyOTP(ctx context.Context, email, code string, purpose OTPPurpose) (*Session, error) {
	email = normalizeEmail(email)
	now := s.now().UTC()

	rec, err := s.store.LatestOTP(ctx, email, purpose)
	if err != nil {
		return nil, fmt.Errorf("verify code: %w", err)
	}
	if rec.Expired(now) {
		return nil, fmt.Errorf("verify code: %w", core.ErrOTPExpired)
	}
	// The attempt is claimed before the comparison so concurrent guesses
	// cannot share one count.
	if err := s.store.ClaimOTPAttempt(ctx, rec.ID, s.opts.OTPMaxAttempts); err != nil {
		if !errors.Is(err, ErrTooManyAttempts) {
			logging.FromContext(ctx).Warn("failed to count code attempt", "error", err)
		}
		return nil, fmt.Errorf("verify code: %w", err)
	}
	if !codeMatches(*rec, code) {
		return nil, fmt.Errorf("verify code: %w", core.ErrOTPInvalid)
	}
	if err := s.store.ConsumeOTP(ctx, rec.ID, now); err != nil {
		return nil, fmt.Errorf("verify code: %w", err)
	}

	id, err := s.store.GetIdentityByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("verify code: %w", err)
	}
	if purpose == OTPSignup && id.ConfirmedAt == nil {
		if err := s.store.ConfirmIdentity(ctx, id.ID, now); err != nil {
			return nil, fmt.Errorf("confirm identity: %w", err)
		}
		id.ConfirmedAt = &now
	}

	return s.openSession(ctx, id)
}

func (s *Service) openSession(ctx context.Context, id *Identity) (*Session, error) {
	token, sessionID, expiresAt, err := s.tokens.Issue(id.ID, id.Email)
	if err != nil {
		return nil, err
	}
	rec := SessionRecord{
		ID:        sessionID,
		UserID:    id.ID,
		ExpiresAt: expiresAt,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateSession(ctx, rec); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &Session{
		Token:     token,
		UserID:    id.ID,
		Email:     id.Email,
		ExpiresAt: expiresAt,
		Identity:  id,
	}, nil
}

// GetSession resolves a token to its live session.
func (s *Service) GetSession(ctx context.Context, token string) (*Session, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	rec, err := s.store.GetSession(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if rec.UserID != claims.Subject || !s.now().Before(rec.ExpiresAt) {
		return nil, fmt.Errorf("get session: %w", core.ErrSessionNotFound)
	}
	id, err := s.store.GetIdentity(ctx, rec.UserID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &Session{
		Token:     token,
		UserID:    rec.UserID,
		Email:     id.Email,
		ExpiresAt: rec.ExpiresAt,
		Identity:  id,
	}, nil
}

// SignOut revokes the session behind token. Invalid tokens are ignored.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil
	}
	if err := s.store.DeleteSession(ctx, claims.ID); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}
