package portal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/RegistryPortal/internal/auth"
	"github.com/JonMunkholm/RegistryPortal/internal/core"
	"github.com/JonMunkholm/RegistryPortal/internal/logging"
)

// Registration is a sign-up request.
type Registration struct {
	Email    string
	Password string
	Name     string
	CNIC     string
	Phone    string
}

// Register creates an identity and profile and mails a sign-up code.
// Self-registered users are always clients.
func (s *Service) Register(ctx context.Context, r Registration) (core.User, error) {
	meta := auth.Metadata{
		Name:  strings.TrimSpace(r.Name),
		CNIC:  strings.TrimSpace(r.CNIC),
		Phone: strings.TrimSpace(r.Phone),
		Role:  string(core.RoleClient),
	}
	id, err := s.auth.SignUp(ctx, r.Email, r.Password, meta)
	if err != nil {
		return core.User{}, err
	}
	logging.FromContext(ctx).Info("user registered", "user_id", id.ID)
	return buildUser(id.ID, id.Email, nil, id.Metadata), nil
}

// CheckCnic reports whether cnic is already registered.
func (s *Service) CheckCnic(ctx context.Context, cnic string) (bool, error) {
	return s.auth.CheckCnicExists(ctx, cnic)
}

// SignIn checks the password and mails a login code. The caller is not
// signed in until Verify accepts the code.
func (s *Service) SignIn(ctx context.Context, email, password string) error {
	id, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	if err := s.checkActive(ctx, id.ID); err != nil {
		return err
	}
	return s.auth.SendLoginChallenge(ctx, email)
}

// checkActive fails with ErrAccountSuspended when the user's profile is not
// active. Users without a profile yet are active.
func (s *Service) checkActive(ctx context.Context, userID string) error {
	p, err := s.backend.GetProfile(ctx, userID)
	switch {
	case errors.Is(err, core.ErrUserNotFound):
		return nil
	case err != nil:
		return err
	}
	return activeStatus(p.Status.String)
}

func activeStatus(status string) error {
	if status == "" || strings.EqualFold(status, core.StatusActive) {
		return nil
	}
	return fmt.Errorf("status %s: %w", status, core.ErrAccountSuspended)
}

// SendLoginChallenge mails a fresh login code to an existing, active user.
func (s *Service) SendLoginChallenge(ctx context.Context, email string) error {
	p, err := s.backend.FindProfileByEmail(ctx, email)
	switch {
	case err == nil:
		if err := activeStatus(p.Status.String); err != nil {
			return err
		}
	case !errors.Is(err, core.ErrUserNotFound):
		return err
	}
	return s.auth.SendLoginChallenge(ctx, email)
}

// Verify accepts a one-time code and returns the new authorized session
// with its records synced.
func (s *Service) Verify(ctx context.Context, email, code string, purpose auth.OTPPurpose) (*Session, error) {
	as, err := s.auth.VerifyOTP(ctx, email, code, purpose)
	if err != nil {
		return nil, err
	}
	sess, err := s.openSession(ctx, as)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("session authorized",
		"user_id", sess.user.ID,
		"role", sess.user.Role,
	)
	return sess, nil
}

// Resume returns the session behind token. A token only exists once its
// login challenge was passed, so a session rebuilt after a restart is
// authorized. Sessions dropped by a user edit are rebuilt from the current
// profile, and a suspended user's token is revoked.
func (s *Service) Resume(ctx context.Context, token string) (*Session, error) {
	as, err := s.auth.GetSession(ctx, token)
	if err != nil {
		s.forget(token)
		return nil, err
	}
	if sess := s.lookup(token); sess != nil {
		return sess, nil
	}
	return s.openSession(ctx, as)
}

func (s *Service) openSession(ctx context.Context, as *auth.Session) (*Session, error) {
	var meta auth.Metadata
	if as.Identity != nil {
		meta = as.Identity.Metadata
	}
	profile, err := s.backend.GetProfile(ctx, as.UserID)
	if err != nil {
		if !errors.Is(err, core.ErrUserNotFound) {
			logging.FromContext(ctx).Warn("profile lookup failed, using sign-up details",
				"user_id", as.UserID,
				"error", err,
			)
		}
		profile = nil
	}

	user := buildUser(as.UserID, as.Email, profile, meta)
	if err := activeStatus(user.Status); err != nil {
		if serr := s.auth.SignOut(ctx, as.Token); serr != nil {
			logging.FromContext(ctx).Warn("failed to revoke suspended session",
				"user_id", user.ID,
				"error", serr,
			)
		}
		logging.FromContext(ctx).Warn("session refused", "user_id", user.ID, "status", user.Status)
		return nil, fmt.Errorf("open session: %w", err)
	}

	sess := newSession(as.Token, as.ExpiresAt, user, s.opts.Seed)
	sess.authorized = true

	sess.mu.Lock()
	s.syncLocked(ctx, sess)
	sess.mu.Unlock()

	return s.remember(sess), nil
}

// SignOut revokes the session and clears its pinned flag, user files and
// authorization.
func (s *Service) SignOut(ctx context.Context, sess *Session) error {
	sess.mu.Lock()
	sess.pinned = false
	sess.userFiles = []core.PropertyFile{}
	sess.authorized = false
	sess.mu.Unlock()

	s.forget(sess.token)
	if err := s.auth.SignOut(ctx, sess.token); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// buildUser takes each field from the profile, then the sign-up metadata,
// then the defaults.
func buildUser(id, email string, p *core.Profile, meta auth.Metadata) core.User {
	var name, cnic, phone, role, status string
	if p != nil {
		name, cnic, phone = p.Name.String, p.CNIC.String, p.Phone.String
		role, status = p.Role.String, p.Status.String
		if p.Email.String != "" {
			email = p.Email.String
		}
	}

	parsed, err := core.ParseRole(firstNonEmpty(role, meta.Role, string(core.RoleClient)))
	if err != nil {
		parsed = core.RoleClient
	}

	return core.User{
		ID:     id,
		Name:   firstNonEmpty(name, meta.Name, core.DefaultUserName),
		Email:  email,
		Phone:  firstNonEmpty(phone, meta.Phone),
		CNIC:   firstNonEmpty(cnic, meta.CNIC, core.PendingCNIC),
		Role:   parsed,
		Status: firstNonEmpty(status, core.StatusActive),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
