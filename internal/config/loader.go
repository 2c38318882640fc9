package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MinJWTSecretLength is the shortest accepted session signing secret.
const MinJWTSecretLength = 32

// Load reads configuration from environment variables, after merging any
// of the given .env files that exist. Variables already set in the
// environment win over file values.
// Returns an error if required values are missing or validation fails.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("config load %s: %w", f, err)
		}
	}

	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad(envFiles ...string) *Config {
	cfg, err := Load(envFiles...)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		// Skip unexported fields
		if !fieldVal.CanSet() {
			continue
		}

		// Recurse into nested structs
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		// Get tags
		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		// Try primary env var, then alternate
		value := os.Getenv(envName)
		if value == "" && envAlt != "" {
			value = os.Getenv(envAlt)
		}

		// Apply default if not set
		if value == "" {
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		// Set the field value
		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		// Handle time.Duration specially
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			// Split comma-separated values, trim whitespace
			parts := strings.Split(value, ",")
			result := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					result = append(result, p)
				}
			}
			field.Set(reflect.ValueOf(result))
		} else {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Database
	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Auth
	if len(c.Auth.JWTSecret) < MinJWTSecretLength {
		errs = append(errs, fmt.Sprintf("AUTH_JWT_SECRET must be at least %d bytes", MinJWTSecretLength))
	}
	if c.Auth.SessionTTL <= 0 {
		errs = append(errs, "AUTH_SESSION_TTL must be positive")
	}
	if c.Auth.OTPTTL <= 0 {
		errs = append(errs, "AUTH_OTP_TTL must be positive")
	}
	if c.Auth.OTPLength < 4 || c.Auth.OTPLength > 10 {
		errs = append(errs, fmt.Sprintf("AUTH_OTP_LENGTH (%d) must be 4-10", c.Auth.OTPLength))
	}
	if c.Auth.OTPMaxAttempts <= 0 {
		errs = append(errs, "AUTH_OTP_MAX_ATTEMPTS must be positive")
	}
	if c.Auth.CleanupInterval <= 0 {
		errs = append(errs, "AUTH_CLEANUP_INTERVAL must be positive")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		errs = append(errs, fmt.Sprintf("AUTH_BCRYPT_COST (%d) must be 4-31", c.Auth.BcryptCost))
	}

	// Mail
	if c.Mail.SendGridAPIKey != "" && c.Mail.FromAddress == "" {
		errs = append(errs, "MAIL_FROM_ADDRESS is required when SENDGRID_API_KEY is set")
	}

	// Sync and import
	if c.Sync.BatchSize <= 0 {
		errs = append(errs, "SYNC_BATCH_SIZE must be positive")
	}
	if c.Sync.Timeout <= 0 {
		errs = append(errs, "SYNC_TIMEOUT must be positive")
	}
	if c.Import.MaxFileSize <= 0 {
		errs = append(errs, "IMPORT_MAX_FILE_SIZE must be positive")
	}
	if c.Import.MaxConcurrent <= 0 {
		errs = append(errs, "IMPORT_MAX_CONCURRENT must be positive")
	}
	if c.Import.MaxWaitTime <= 0 {
		errs = append(errs, "IMPORT_MAX_WAIT_TIME must be positive")
	}

	// Rate limit
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.AuthLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_AUTH must be positive when rate limiting is enabled")
	}

	// Storage
	if c.Storage.StatementDir == "" {
		errs = append(errs, "STORAGE_STATEMENT_DIR is required")
	}
	if c.Storage.MaxStatementSize <= 0 {
		errs = append(errs, "STORAGE_MAX_STATEMENT_SIZE must be positive")
	}

	// Logging
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// The database URL, signing secret and mail API key are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Database: {URL: [MASKED], MaxConns: %d, MinConns: %d, AutoMigrate: %v}, ",
		c.Database.MaxConns, c.Database.MinConns, c.Database.AutoMigrate))
	b.WriteString(fmt.Sprintf("Auth: {JWTSecret: [MASKED], SessionTTL: %s, OTPTTL: %s}, ",
		c.Auth.SessionTTL, c.Auth.OTPTTL))
	b.WriteString(fmt.Sprintf("Mail: {SendGrid: %s, From: %q}, ", maskSet(c.Mail.SendGridAPIKey), c.Mail.FromAddress))
	b.WriteString(fmt.Sprintf("Sync: {BatchSize: %d}, ", c.Sync.BatchSize))
	b.WriteString(fmt.Sprintf("Import: {MaxFileSize: %d, MaxConcurrent: %d}, ",
		c.Import.MaxFileSize, c.Import.MaxConcurrent))
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute))
	b.WriteString(fmt.Sprintf("Storage: {StatementDir: %q}, ", c.Storage.StatementDir))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}

func maskSet(s string) string {
	if s == "" {
		return "[UNSET]"
	}
	return "[MASKED]"
}
