package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/RegistryPortal/internal/core"
	"github.com/JonMunkholm/RegistryPortal/internal/portal"
	"github.com/JonMunkholm/RegistryPortal/internal/web/middleware"
)

// WithRequestMetadata adds IP and User-Agent to context for audit logging
// on routes that run before a session exists.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	actor := core.AuditActorFromContext(ctx)
	actor.IPAddress = middleware.ClientIP(r)
	actor.UserAgent = r.UserAgent()
	return core.WithAuditActor(ctx, actor)
}

// sessionOf returns the session attached by RequireSession.
func sessionOf(r *http.Request) *portal.Session {
	return middleware.SessionFrom(r.Context())
}
