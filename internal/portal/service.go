// Package portal holds the per-session application logic of the registry
// portal: sign-in and verification, property record sync, pinned imports,
// cloud sync, user administration, notices, messages and statements.
//
// Every operation takes the caller's *Session. A session is used by one
// request at a time; its mutex is held for the whole operation.
package portal

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/JonMunkholm/RegistryPortal/internal/auth"
	"github.com/JonMunkholm/RegistryPortal/internal/core"
	_ "github.com/JonMunkholm/RegistryPortal/internal/core/tables"
	"github.com/JonMunkholm/RegistryPortal/internal/logging"
)

// Backend is the hosted record store.
type Backend interface {
	core.PropertyUpserter
	core.AuditStore

	FetchUserFiles(ctx context.Context, cnic string) ([]core.PropertyFile, error)
	FetchAllFiles(ctx context.Context) ([]core.PropertyFile, error)
	GetFile(ctx context.Context, fileNo string) (*core.PropertyFile, error)
	UpdateLastNotified(ctx context.Context, fileNo string, at time.Time) error
	SetStatement(ctx context.Context, fileNo, url, name string) error

	GetProfile(ctx context.Context, id string) (*core.Profile, error)
	FindProfileByCNIC(ctx context.Context, cnic string) (*core.Profile, error)
	FindProfileByEmail(ctx context.Context, email string) (*core.Profile, error)
	UpsertProfile(ctx context.Context, p core.Profile) error
	ListProfiles(ctx context.Context, search string) ([]core.Profile, error)
	DeleteProfile(ctx context.Context, id string) error
}

// Authenticator issues and resolves sessions.
type Authenticator interface {
	SignUp(ctx context.Context, email, password string, meta auth.Metadata) (*auth.Identity, error)
	SignIn(ctx context.Context, email, password string) (*auth.Identity, error)
	SendLoginChallenge(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string, purpose auth.OTPPurpose) (*auth.Session, error)
	GetSession(ctx context.Context, token string) (*auth.Session, error)
	SignOut(ctx context.Context, token string) error
	CheckCnicExists(ctx context.Context, cnic string) (bool, error)
}

// Mailbox stores notices and messages.
type Mailbox interface {
	ListNotices(ctx context.Context) ([]core.Notice, error)
	PublishNotice(ctx context.Context, n core.Notice) (core.Notice, error)
	ListMessages(ctx context.Context, userID string) ([]core.Message, error)
	SendMessage(ctx context.Context, msg core.Message) (core.Message, error)
	MarkRead(ctx context.Context, id, userID string) error
}

// ObjectStore keeps uploaded statement documents.
type ObjectStore interface {
	PutStatement(ctx context.Context, fileNo, name string, r io.Reader) (string, error)
}

// Deps are the collaborators of a Service.
type Deps struct {
	Backend Backend
	Auth    Authenticator
	Mailbox Mailbox
	Objects ObjectStore
	Limiter *core.ImportLimiter
}

// Options tune a Service.
type Options struct {
	// SyncBatchSize is the number of records per upsert call.
	SyncBatchSize int
	// SyncTimeout bounds one cloud sync. Zero means no extra bound.
	SyncTimeout time.Duration
	// MaxImportSize is the largest accepted CSV in bytes.
	MaxImportSize int64
	// Seed is what a reset restores.
	Seed Seed
}

// Service runs portal operations against its collaborators and tracks the
// live sessions.
type Service struct {
	backend Backend
	auth    Authenticator
	mailbox Mailbox
	objects ObjectStore
	limiter *core.ImportLimiter
	opts    Options
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewService creates a Service. A nil limiter gets the default limits.
func NewService(deps Deps, opts Options) *Service {
	if opts.SyncBatchSize <= 0 {
		opts.SyncBatchSize = core.DefaultSyncBatchSize
	}
	if opts.MaxImportSize <= 0 {
		opts.MaxImportSize = core.MaxFileSize
	}
	limiter := deps.Limiter
	if limiter == nil {
		limiter = core.NewImportLimiter(0, 0)
	}
	return &Service{
		backend:  deps.Backend,
		auth:     deps.Auth,
		mailbox:  deps.Mailbox,
		objects:  deps.Objects,
		limiter:  limiter,
		opts:     opts,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Limiter returns the import limiter so the server can drain it on shutdown.
func (s *Service) Limiter() *core.ImportLimiter { return s.limiter }

// ActiveSessions returns the number of sessions held in memory.
func (s *Service) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Service) lookup(token string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[token]
}

// remember registers sess and returns the session that ends up registered
// under its token, which is an earlier one if two requests raced. Expired
// sessions are dropped on the way.
func (s *Service) remember(sess *Session) *Session {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, other := range s.sessions {
		if !now.Before(other.expiresAt) {
			delete(s.sessions, token)
		}
	}
	if existing, ok := s.sessions[sess.token]; ok {
		return existing
	}
	s.sessions[sess.token] = sess
	return sess
}

func (s *Service) forget(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// forgetUser drops every cached session of userID except keep, so the next
// request rebuilds it from the stored profile.
func (s *Service) forgetUser(userID string, keep *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, other := range s.sessions {
		if other.userID == userID && other != keep {
			delete(s.sessions, token)
		}
	}
}

// audit records an action taken in sess. Failures are logged and never
// fail the action.
func (s *Service) audit(ctx context.Context, sess *Session, params core.AuditLogParams) {
	actor := core.AuditActorFromContext(ctx)
	if actor.UserID == "" {
		actor.UserID = sess.user.ID
		actor.UserEmail = sess.user.Email
	}
	ctx = core.WithAuditActor(ctx, actor)
	if _, err := core.LogAudit(ctx, s.backend, params); err != nil {
		logging.FromContext(ctx).Warn("failed to write audit entry",
			"action", params.Action,
			"error", err,
		)
	}
}

// ListAudit returns audit entries matching filter. Admin only.
func (s *Service) ListAudit(ctx context.Context, sess *Session, filter core.AuditLogFilter) ([]core.AuditEntry, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.requireAdmin(); err != nil {
		return nil, err
	}
	return s.backend.ListAudit(ctx, filter)
}
