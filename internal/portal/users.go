package portal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/RegistryPortal/internal/core"
)

// ProfileUpdate changes the signed-in user's own contact details. Nil
// fields are left as they are.
type ProfileUpdate struct {
	Name  *string
	Phone *string
}

// UpdateProfile saves the signed-in user's contact details.
func (s *Service) UpdateProfile(ctx context.Context, sess *Session, upd ProfileUpdate) (core.User, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.requireAuthorized(); err != nil {
		return core.User{}, err
	}

	u := sess.user
	if upd.Name != nil {
		u.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Phone != nil {
		u.Phone = strings.TrimSpace(*upd.Phone)
	}
	if err := s.backend.UpsertProfile(ctx, core.UserToProfile(u)); err != nil {
		return core.User{}, err
	}
	sess.user = u
	return u, nil
}

// UserUpdate is an administrator's change to a user. Nil fields are left
// as they are.
type UserUpdate struct {
	Name   *string
	Phone  *string
	CNIC   *string
	Role   *core.Role
	Status *string
}

func (u UserUpdate) apply(user core.User) core.User {
	if u.Name != nil {
		user.Name = strings.TrimSpace(*u.Name)
	}
	if u.Phone != nil {
		user.Phone = strings.TrimSpace(*u.Phone)
	}
	if u.CNIC != nil {
		user.CNIC = strings.TrimSpace(*u.CNIC)
	}
	if u.Role != nil {
		user.Role = *u.Role
	}
	if u.Status != nil {
		user.Status = *u.Status
	}
	return user
}

func (u UserUpdate) changes() map[string]any {
	out := map[string]any{}
	if u.Name != nil {
		out["name"] = *u.Name
	}
	if u.Phone != nil {
		out["phone"] = *u.Phone
	}
	if u.CNIC != nil {
		out["cnic"] = *u.CNIC
	}
	if u.Role != nil {
		out["role"] = string(*u.Role)
	}
	if u.Status != nil {
		out["status"] = *u.Status
	}
	return out
}

// ListUsers returns the session's users. A pinned session lists its
// imported users; otherwise the profiles are read from the backend and
// cached. Admin only.
func (s *Service) ListUsers(ctx context.Context, sess *Session, search string) ([]core.User, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.requireAdmin(); err != nil {
		return nil, err
	}

	if sess.pinned {
		return filterUsers(sess.users, search), nil
	}

	profiles, err := s.backend.ListProfiles(ctx, search)
	if err != nil {
		return nil, err
	}
	users := make([]core.User, 0, len(profiles))
	for _, p := range profiles {
		users = append(users, core.ProfileToUser(p))
	}
	if search == "" {
		sess.users = users
	}
	return users, nil
}

func filterUsers(users []core.User, search string) []core.User {
	term := strings.ToLower(strings.TrimSpace(search))
	out := make([]core.User, 0, len(users))
	for _, u := range users {
		if term == "" ||
			strings.Contains(strings.ToLower(u.Name), term) ||
			strings.Contains(strings.ToLower(u.Email), term) ||
			strings.Contains(strings.ToLower(u.CNIC), term) {
			out = append(out, u)
		}
	}
	return out
}

// UpdateUser applies an administrator's change to a user's profile. The
// user's other sessions are dropped so role and status changes apply on
// their next request. Admins cannot change their own role or status.
// Admin only.
func (s *Service) UpdateUser(ctx context.Context, sess *Session, id string, upd UserUpdate) (core.User, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.requireAdmin(); err != nil {
		return core.User{}, err
	}
	if id == sess.user.ID && upd.Role != nil && *upd.Role != sess.user.Role {
		return core.User{}, fmt.Errorf("change own role: %w", core.ErrForbidden)
	}
	if id == sess.user.ID && upd.Status != nil && *upd.Status != sess.user.Status {
		return core.User{}, fmt.Errorf("change own status: %w", core.ErrForbidden)
	}

	p, err := s.backend.GetProfile(ctx, id)
	if err != nil {
		return core.User{}, err
	}
	user := upd.apply(core.ProfileToUser(*p))
	if upd.CNIC != nil && !core.SameCNIC(user.CNIC, p.CNIC.String) {
		if err := s.checkCnicFree(ctx, id, user.CNIC); err != nil {
			return core.User{}, err
		}
	}
	if err := s.backend.UpsertProfile(ctx, core.UserToProfile(user)); err != nil {
		return core.User{}, err
	}

	for i := range sess.users {
		if sess.users[i].ID == id {
			sess.users[i] = user
		}
	}
	if id == sess.user.ID {
		sess.user = user
	}
	s.forgetUser(id, sess)
	s.audit(ctx, sess, core.AuditLogParams{
		Action:       core.ActionUserUpdate,
		Target:       id,
		RowsAffected: 1,
		Details:      upd.changes(),
	})
	return user, nil
}

// checkCnicFree fails with ErrIdentityExists when another profile already
// holds cnic.
func (s *Service) checkCnicFree(ctx context.Context, id, cnic string) error {
	other, err := s.backend.FindProfileByCNIC(ctx, cnic)
	switch {
	case errors.Is(err, core.ErrUserNotFound):
		return nil
	case err != nil:
		return err
	case other.ID != id:
		return fmt.Errorf("cnic held by %s: %w", other.ID, core.ErrIdentityExists)
	}
	return nil
}

// DeleteUser removes a user's profile together with their sign-in.
// Admins cannot delete themselves. Admin only.
func (s *Service) DeleteUser(ctx context.Context, sess *Session, id string) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.requireAdmin(); err != nil {
		return err
	}
	if id == sess.user.ID {
		return fmt.Errorf("delete own account: %w", core.ErrForbidden)
	}

	if err := s.backend.DeleteProfile(ctx, id); err != nil {
		return err
	}

	kept := sess.users[:0]
	for _, u := range sess.users {
		if u.ID != id {
			kept = append(kept, u)
		}
	}
	sess.users = kept
	s.forgetUser(id, nil)
	s.audit(ctx, sess, core.AuditLogParams{Action: core.ActionUserDelete, Target: id, RowsAffected: 1})
	return nil
}
