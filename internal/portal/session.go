package portal

import (
	"sync"
	"time"

	"github.com/JonMunkholm/RegistryPortal/internal/core"
)

// Session is the state of one signed-in browser session: the signed-in
// user, whether the login challenge was passed, the cached registry sets and
// the pinned flag. While pinned, the cached sets are never refreshed from the
// backend.
type Session struct {
	mu sync.Mutex

	token     string
	expiresAt time.Time
	// userID never changes after creation and may be read without mu.
	userID string

	user       core.User
	authorized bool
	pinned     bool

	users     []core.User
	allFiles  []core.PropertyFile
	userFiles []core.PropertyFile
}

// SessionState is a point-in-time copy of a session for display.
type SessionState struct {
	User       core.User `json:"user"`
	Authorized bool      `json:"authorized"`
	Pinned     bool      `json:"pinned"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Users      int       `json:"users"`
	Files      int       `json:"files"`
}

func newSession(token string, expiresAt time.Time, user core.User, seed Seed) *Session {
	return &Session{
		token:     token,
		expiresAt: expiresAt,
		userID:    user.ID,
		user:      user,
		users:     cloneUsers(seed.Users),
		allFiles:  cloneFiles(seed.Files),
		userFiles: []core.PropertyFile{},
	}
}

// Token returns the session's bearer token.
func (s *Session) Token() string { return s.token }

// User returns the signed-in user.
func (s *Session) User() core.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Authorized reports whether the session passed its login challenge.
func (s *Session) Authorized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authorized
}

// Pinned reports whether the session is in local cache mode.
func (s *Session) Pinned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pinned
}

// State returns a copy of the session's state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionState{
		User:       s.user,
		Authorized: s.authorized,
		Pinned:     s.pinned,
		ExpiresAt:  s.expiresAt,
		Users:      len(s.users),
		Files:      len(s.visibleFiles()),
	}
}

func (s *Session) requireAuthorized() error {
	if !s.authorized {
		return core.ErrNotAuthorized
	}
	return nil
}

func (s *Session) requireAdmin() error {
	if err := s.requireAuthorized(); err != nil {
		return err
	}
	if !s.user.Role.IsAdmin() {
		return core.ErrForbidden
	}
	return nil
}

// visibleFiles is the all-files set for admins and the user-files set for
// everyone else.
func (s *Session) visibleFiles() []core.PropertyFile {
	if s.user.Role.IsAdmin() {
		return s.allFiles
	}
	return s.userFiles
}

// updateCachedFile applies fn to every cached copy of fileNo.
func (s *Session) updateCachedFile(fileNo string, fn func(*core.PropertyFile)) {
	for _, set := range [][]core.PropertyFile{s.allFiles, s.userFiles} {
		for i := range set {
			if set[i].FileNo == fileNo {
				fn(&set[i])
			}
		}
	}
}

func cloneUsers(in []core.User) []core.User {
	out := make([]core.User, len(in))
	copy(out, in)
	return out
}

func cloneFiles(in []core.PropertyFile) []core.PropertyFile {
	out := make([]core.PropertyFile, len(in))
	copy(out, in)
	return out
}
