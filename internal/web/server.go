// Package web provides the HTTP server and JSON API for the registry portal.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/RegistryPortal/internal/config"
	"github.com/JonMunkholm/RegistryPortal/internal/portal"
	mw "github.com/JonMunkholm/RegistryPortal/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// StatementFiles locates uploaded statement documents on disk.
type StatementFiles interface {
	KeyFromURL(u string) (string, bool)
	Dir() string
}

// Server is the HTTP server for the registry portal.
type Server struct {
	portal     *portal.Service
	cfg        *config.Config
	statements StatementFiles
	router     *chi.Mux
	server     *http.Server
	limiters   []*mw.RateLimiter
}

// NewServer creates a new Server instance.
func NewServer(svc *portal.Service, cfg *config.Config, statements StatementFiles) *Server {
	s := &Server{
		portal:     svc,
		cfg:        cfg,
		statements: statements,
		router:     chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

	// Security hardening
	s.router.Use(securityHeaders)
	if len(s.cfg.Security.CORSOrigins) > 0 {
		s.router.Use(cors.New(cors.Options{
			AllowedOrigins:   s.cfg.Security.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
		}).Handler)
	}

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newLimiter(s.cfg.Rate.RequestsPerMinute))
	}
}

func (s *Server) newLimiter(perMinute int) func(http.Handler) http.Handler {
	rl := mw.NewRateLimiter(perMinute, time.Minute)
	s.limiters = append(s.limiters, rl)
	return rl.Handler(respondError)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	requireSession := mw.RequireSession(s.portal, s.cfg.Auth.CookieName, respondError)
	requireAdmin := mw.RequireAdmin(respondError)

	s.router.Get("/healthz", s.handleHealth)

	// Pages
	s.router.With(requireSession).Get("/files/{fileNo}/statement", s.handleStatementPage)

	s.router.Route("/api", func(r chi.Router) {
		// Sign-up and sign-in
		r.Group(func(r chi.Router) {
			if s.cfg.Rate.Enabled {
				r.Use(s.newLimiter(s.cfg.Rate.AuthLimit))
			}
			r.Post("/auth/register", s.handleRegister)
			r.Post("/auth/check-cnic", s.handleCheckCnic)
			r.Post("/auth/signin", s.handleSignIn)
			r.Post("/auth/challenge", s.handleChallenge)
			r.Post("/auth/verify", s.handleVerify)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireSession)

			r.Post("/auth/signout", s.handleSignOut)
			r.Get("/session", s.handleSession)
			r.Patch("/profile", s.handleUpdateProfile)

			// Property records
			r.Get("/dashboard", s.handleDashboard)
			r.Post("/sync", s.handleSync)
			r.Get("/files/{fileNo}", s.handleGetFile)
			r.Get("/files/{fileNo}/document", s.handleStatementDocument)

			// Notices and messages
			r.Get("/notices", s.handleListNotices)
			r.Get("/messages", s.handleInbox)
			r.Post("/messages", s.handleSendMessage)
			r.Post("/messages/{id}/read", s.handleMarkRead)

			// Administration
			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)

				r.Get("/files", s.handleListFiles)
				r.Post("/files/{fileNo}/notify", s.handleNotify)
				r.Post("/files/{fileNo}/document", s.handleUploadStatement)

				r.Post("/registry/import", s.handleImportDatabase)
				r.Post("/registry/import/{tableKey}", s.handleImportCSV)
				r.Post("/registry/reset", s.handleReset)
				r.Post("/registry/cloud-sync", s.handleCloudSync)
				r.Get("/registry/imports", s.handleImportStatus)
				r.Get("/layouts", s.handleListLayouts)
				r.Get("/layouts/{tableKey}/template", s.handleDownloadTemplate)

				r.Get("/users", s.handleListUsers)
				r.Patch("/users/{id}", s.handleUpdateUser)
				r.Delete("/users/{id}", s.handleDeleteUser)

				r.Post("/notices", s.handlePublishNotice)
				r.Get("/audit", s.handleAuditLog)
			})
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and its rate limiters.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, rl := range s.limiters {
		rl.Stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.portal.ActiveSessions(),
		"imports":  s.portal.Limiter().Status(),
	})
}
