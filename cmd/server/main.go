package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/JonMunkholm/RegistryPortal/internal/auth"
	"github.com/JonMunkholm/RegistryPortal/internal/backend"
	"github.com/JonMunkholm/RegistryPortal/internal/config"
	"github.com/JonMunkholm/RegistryPortal/internal/core"
	"github.com/JonMunkholm/RegistryPortal/internal/logging"
	"github.com/JonMunkholm/RegistryPortal/internal/mail"
	"github.com/JonMunkholm/RegistryPortal/internal/portal"
	"github.com/JonMunkholm/RegistryPortal/internal/web"
)

func main() {
	// Load and validate configuration (.env is merged if present)
	cfg, err := config.Load(".env")
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"sync_batch_size", cfg.Sync.BatchSize,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()
	pool, err := backend.Connect(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Log which database we connected to
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	store := backend.New(pool)
	if cfg.Database.AutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("failed to create schema", "error", err)
			os.Exit(1)
		}
	}

	mailbox, err := backend.OpenMailbox(pool, cfg.Database.AutoMigrate)
	if err != nil {
		slog.Error("failed to open mailbox", "error", err)
		os.Exit(1)
	}
	defer mailbox.Close()

	var sender auth.Sender = mail.LogSender{}
	if cfg.Mail.SendGridAPIKey != "" {
		sender = mail.NewSendGridSender(cfg.Mail.SendGridAPIKey, cfg.Mail.FromName, cfg.Mail.FromAddress, cfg.Mail.Timeout)
	} else {
		slog.Warn("no SendGrid key configured, verification codes are logged")
	}

	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.SessionTTL)
	authService := auth.NewService(store, sender, tokens, auth.Options{
		OTPTTL:         cfg.Auth.OTPTTL,
		OTPLength:      cfg.Auth.OTPLength,
		OTPMaxAttempts: cfg.Auth.OTPMaxAttempts,
		BcryptCost:     cfg.Auth.BcryptCost,
	})

	objects, err := backend.NewFileObjectStore(cfg.Storage.StatementDir, cfg.Storage.PublicBaseURL, cfg.Storage.MaxStatementSize)
	if err != nil {
		slog.Error("failed to open statement storage", "error", err)
		os.Exit(1)
	}

	seed, err := portal.LoadSeed(cfg.Import.SeedFile)
	if err != nil {
		slog.Error("failed to load seed", "error", err)
		os.Exit(1)
	}

	svc := portal.NewService(portal.Deps{
		Backend: store,
		Auth:    authService,
		Mailbox: mailbox,
		Objects: objects,
		Limiter: core.NewImportLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime),
	}, portal.Options{
		SyncBatchSize: cfg.Sync.BatchSize,
		SyncTimeout:   cfg.Sync.Timeout,
		MaxImportSize: cfg.Import.MaxFileSize,
		Seed:          seed,
	})

	// Log registered layouts
	slog.Info("import layouts registered",
		"count", len(core.All()),
		"seed_users", len(seed.Users),
		"seed_files", len(seed.Files),
	)

	server := web.NewServer(svc, cfg, objects)

	// Background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go backend.StartJanitor(jobCtx, store, cfg.Auth.CleanupInterval)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for active imports to complete (with timeout)
		if status := svc.Limiter().Status(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := svc.Limiter().WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
