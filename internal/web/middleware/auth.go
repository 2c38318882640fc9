package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/RegistryPortal/internal/core"
	"github.com/JonMunkholm/RegistryPortal/internal/logging"
	"github.com/JonMunkholm/RegistryPortal/internal/portal"
)

// SessionResolver turns a bearer token into a live portal session.
type SessionResolver interface {
	Resume(ctx context.Context, token string) (*portal.Session, error)
}

// ErrorWriter renders an error response.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error, status int)

type sessionKey struct{}

// WithSession returns a context carrying sess.
func WithSession(ctx context.Context, sess *portal.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// SessionFrom returns the session stored by RequireSession, or nil.
func SessionFrom(ctx context.Context) *portal.Session {
	sess, _ := ctx.Value(sessionKey{}).(*portal.Session)
	return sess
}

// SessionToken returns the bearer token of r, taken from the Authorization
// header or, failing that, from the session cookie.
func SessionToken(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}
	return ""
}

// RequireSession rejects requests without an authorized session. The
// session, the user ID for logging and the audit actor are added to the
// request context.
func RequireSession(resolver SessionResolver, cookieName string, onError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r, cookieName)
			if token == "" {
				onError(w, r, core.ErrSessionNotFound, http.StatusUnauthorized)
				return
			}

			sess, err := resolver.Resume(r.Context(), token)
			if err != nil {
				status := http.StatusInternalServerError
				switch {
				case errors.Is(err, core.ErrSessionNotFound) || errors.Is(err, core.ErrUserNotFound):
					status = http.StatusUnauthorized
				case errors.Is(err, core.ErrAccountSuspended):
					status = http.StatusForbidden
				}
				logging.FromContext(r.Context()).Warn("auth: session rejected",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", err,
				)
				onError(w, r, err, status)
				return
			}
			if !sess.Authorized() {
				onError(w, r, core.ErrNotAuthorized, http.StatusUnauthorized)
				return
			}

			user := sess.User()
			ctx := WithSession(r.Context(), sess)
			ctx = logging.WithUserID(ctx, user.ID)
			ctx = core.WithAuditActor(ctx, core.AuditActor{
				UserID:    user.ID,
				UserEmail: user.Email,
				IPAddress: ClientIP(r),
				UserAgent: r.UserAgent(),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects sessions whose user is not an administrator. It must
// run after RequireSession.
func RequireAdmin(onError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := SessionFrom(r.Context())
			if sess == nil {
				onError(w, r, core.ErrSessionNotFound, http.StatusUnauthorized)
				return
			}
			if !sess.User().Role.IsAdmin() {
				logging.FromContext(r.Context()).Warn("auth: admin route denied",
					"path", r.URL.Path,
					"user_id", sess.User().ID,
				)
				onError(w, r, core.ErrForbidden, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
