// Package config loads the portal's settings from environment variables.
// Every setting has a default except the database URL and the session
// signing secret, and the whole configuration is validated on startup.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Mail     MailConfig
	Sync     SyncConfig
	Import   ImportConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Storage  StorageConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// AutoMigrate creates missing tables on startup (default: true)
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" default:"true"`
}

// AuthConfig holds sign-in, one-time code and session settings.
type AuthConfig struct {
	// JWTSecret signs session tokens (required, at least 32 bytes)
	JWTSecret string `env:"AUTH_JWT_SECRET" envAlt:"JWT_SECRET" required:"true"`

	// Issuer is the token issuer claim (default: registry-portal)
	Issuer string `env:"AUTH_ISSUER" default:"registry-portal"`

	// SessionTTL is how long a session stays valid (default: 12h)
	SessionTTL time.Duration `env:"AUTH_SESSION_TTL" default:"12h"`

	// OTPTTL is how long a one-time code stays valid (default: 10m)
	OTPTTL time.Duration `env:"AUTH_OTP_TTL" default:"10m"`

	// OTPLength is the number of digits in a one-time code (default: 6)
	OTPLength int `env:"AUTH_OTP_LENGTH" default:"6"`

	// OTPMaxAttempts is how many wrong guesses a code tolerates (default: 5)
	OTPMaxAttempts int `env:"AUTH_OTP_MAX_ATTEMPTS" default:"5"`

	// BcryptCost is the password hashing cost (default: 12)
	BcryptCost int `env:"AUTH_BCRYPT_COST" default:"12"`

	// CleanupInterval is how often expired sessions and codes are purged (default: 1h)
	CleanupInterval time.Duration `env:"AUTH_CLEANUP_INTERVAL" default:"1h"`

	// CookieName is the session cookie name (default: portal_session)
	CookieName string `env:"AUTH_COOKIE_NAME" default:"portal_session"`

	// CookieSecure marks the session cookie Secure (default: true)
	CookieSecure bool `env:"AUTH_COOKIE_SECURE" default:"true"`
}

// MailConfig holds one-time code delivery settings.
type MailConfig struct {
	// SendGridAPIKey enables SendGrid delivery; empty logs codes instead
	SendGridAPIKey string `env:"SENDGRID_API_KEY"`

	// FromAddress is the sender address (default: no-reply@registry.local)
	FromAddress string `env:"MAIL_FROM_ADDRESS" default:"no-reply@registry.local"`

	// FromName is the sender display name (default: Registry Portal)
	FromName string `env:"MAIL_FROM_NAME" default:"Registry Portal"`

	// Timeout bounds a single delivery (default: 10s)
	Timeout time.Duration `env:"MAIL_TIMEOUT" default:"10s"`
}

// SyncConfig holds cloud sync settings.
type SyncConfig struct {
	// BatchSize is the number of records per upsert call (default: 50)
	BatchSize int `env:"SYNC_BATCH_SIZE" default:"50"`

	// Timeout bounds a whole bulk sync (default: 5m)
	Timeout time.Duration `env:"SYNC_TIMEOUT" default:"5m"`
}

// ImportConfig holds CSV import settings.
type ImportConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 10MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"10485760"`

	// MaxConcurrent is the maximum number of parallel imports (default: 3)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"3"`

	// MaxWaitTime is how long to wait for an import slot (default: 10s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"10s"`

	// SeedFile is a JSON file with the users and files restored on reset
	SeedFile string `env:"IMPORT_SEED_FILE"`
}

// RateLimitConfig holds rate limiting settings.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 120)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`

	// AuthLimit is requests per minute for sign-in and code endpoints (default: 10)
	AuthLimit int `env:"RATE_LIMIT_AUTH" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// CORSOrigins is a comma-separated list of allowed browser origins
	CORSOrigins []string `env:"CORS_ORIGINS"`
}

// StorageConfig holds statement document storage settings.
type StorageConfig struct {
	// StatementDir is where uploaded statements are written (default: ./data/statements)
	StatementDir string `env:"STORAGE_STATEMENT_DIR" default:"./data/statements"`

	// PublicBaseURL prefixes statement URLs (default: /statements)
	PublicBaseURL string `env:"STORAGE_PUBLIC_BASE_URL" default:"/statements"`

	// MaxStatementSize is the maximum statement size in bytes (default: 20MB)
	MaxStatementSize int64 `env:"STORAGE_MAX_STATEMENT_SIZE" default:"20971520"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
