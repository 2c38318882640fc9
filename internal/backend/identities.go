package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/RegistryPortal/internal/auth"
	"github.com/JonMunkholm/RegistryPortal/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// CreateIdentity inserts the profile and identity together.
func (s *Store) CreateIdentity(ctx context.Context, id auth.Identity, profile core.Profile) error {
	meta, err := json.Marshal(id.Metadata)
	if err != nil {
		return fmt.Errorf("encode identity metadata: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO profiles (id, name, email, phone, cnic, cnic_normalized, role, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		core.ToPgUUID(profile.ID), profile.Name, profile.Email, profile.Phone,
		profile.CNIC, profile.CNICNormalized, profile.Role, profile.Status,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrIdentityExists
		}
		return fmt.Errorf("insert profile: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO identities (id, email, password_hash, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		core.ToPgUUID(id.ID), strings.ToLower(id.Email), id.PasswordHash, string(meta), id.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrIdentityExists
		}
		return fmt.Errorf("insert identity: %w", err)
	}

	return tx.Commit(ctx)
}

const identityColumns = `id, email, password_hash, metadata, confirmed_at, created_at`

func scanIdentity(row pgx.Row) (*auth.Identity, error) {
	var (
		id          auth.Identity
		meta        []byte
		confirmedAt pgtype.Timestamptz
	)
	if err := row.Scan(&id.ID, &id.Email, &id.PasswordHash, &meta, &confirmedAt, &id.CreatedAt); err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &id.Metadata)
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time
		id.ConfirmedAt = &t
	}
	return &id, nil
}

// GetIdentity returns the identity with id, or core.ErrUserNotFound.
func (s *Store) GetIdentity(ctx context.Context, id string) (*auth.Identity, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+identityColumns+` FROM identities WHERE id = $1`, core.ToPgUUID(id))
	ident, err := scanIdentity(row)
	if err != nil {
		return nil, notFound(err, core.ErrUserNotFound)
	}
	return ident, nil
}

// GetIdentityByEmail looks an identity up by lower-cased email.
func (s *Store) GetIdentityByEmail(ctx context.Context, email string) (*auth.Identity, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE lower(email) = lower($1)`, email)
	ident, err := scanIdentity(row)
	if err != nil {
		return nil, notFound(err, core.ErrUserNotFound)
	}
	return ident, nil
}

// ConfirmIdentity marks the identity's address as verified.
func (s *Store) ConfirmIdentity(ctx context.Context, id string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE identities SET confirmed_at = $2 WHERE id = $1`, core.ToPgUUID(id), at)
	return err
}

// CheckIdentityExists reports whether a profile has the normalized CNIC or
// the lower-cased email. Empty arguments never match.
func (s *Store) CheckIdentityExists(ctx context.Context, cnicNormalized, email string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM profiles
			WHERE ($1 <> '' AND cnic_normalized = $1)
			   OR ($2 <> '' AND lower(email) = lower($2))
		)`, cnicNormalized, email).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// InsertOTP stores a new code.
func (s *Store) InsertOTP(ctx context.Context, c auth.OTPCode) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO otp_codes (id, email, purpose, code_hash, attempts, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		core.ToPgUUID(c.ID), strings.ToLower(c.Email), string(c.Purpose), c.CodeHash, c.Attempts, c.ExpiresAt, c.CreatedAt,
	)
	return err
}

// LatestOTP returns the newest unconsumed code, or core.ErrOTPInvalid.
func (s *Store) LatestOTP(ctx context.Context, email string, purpose auth.OTPPurpose) (*auth.OTPCode, error) {
	var (
		c      auth.OTPCode
		p      string
		usedAt pgtype.Timestamptz
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, purpose, code_hash, attempts, expires_at, consumed_at, created_at
		FROM otp_codes
		WHERE email = lower($1) AND purpose = $2 AND consumed_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1`, email, string(purpose),
	).Scan(&c.ID, &c.Email, &p, &c.CodeHash, &c.Attempts, &c.ExpiresAt, &usedAt, &c.CreatedAt)
	if err != nil {
		return nil, notFound(err, core.ErrOTPInvalid)
	}
	c.Purpose = auth.OTPPurpose(p)
	if usedAt.Valid {
		t := usedAt.Time
		c.ConsumedAt = &t
	}
	return &c, nil
}

// ClaimOTPAttempt counts one guess against a code in a single statement, so
// concurrent guesses never exceed max between them.
func (s *Store) ClaimOTPAttempt(ctx context.Context, id string, max int) error {
	var attempts int
	err := s.pool.QueryRow(ctx, `
		UPDATE otp_codes SET attempts = attempts + 1
		WHERE id = $1 AND consumed_at IS NULL AND attempts < $2
		RETURNING attempts`, core.ToPgUUID(id), max,
	).Scan(&attempts)
	if err != nil {
		return notFound(err, auth.ErrTooManyAttempts)
	}
	return nil
}

// ConsumeOTP marks a code used. A code can only be consumed once.
func (s *Store) ConsumeOTP(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE otp_codes SET consumed_at = $2 WHERE id = $1 AND consumed_at IS NULL`, core.ToPgUUID(id), at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrOTPInvalid
	}
	return nil
}

// CreateSession stores the server-side half of a session.
func (s *Store) CreateSession(ctx context.Context, sess auth.SessionRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (id, user_id, expires_at, created_at) VALUES ($1, $2, $3, $4)`,
		core.ToPgUUID(sess.ID), core.ToPgUUID(sess.UserID), sess.ExpiresAt, sess.CreatedAt)
	return err
}

// GetSession returns a stored session, or core.ErrSessionNotFound.
func (s *Store) GetSession(ctx context.Context, id string) (*auth.SessionRecord, error) {
	var sess auth.SessionRecord
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, expires_at, created_at FROM sessions WHERE id = $1`, core.ToPgUUID(id),
	).Scan(&sess.ID, &sess.UserID, &sess.ExpiresAt, &sess.CreatedAt)
	if err != nil {
		return nil, notFound(err, core.ErrSessionNotFound)
	}
	return &sess, nil
}

// DeleteSession revokes a session. Deleting a missing session is not an error.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, core.ToPgUUID(id))
	return err
}

// PurgeExpired removes expired sessions and codes older than retention.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	var total int64
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	total += tag.RowsAffected()

	tag, err = s.pool.Exec(ctx, `DELETE FROM otp_codes WHERE expires_at < $1`, now.Add(-retention))
	if err != nil {
		return total, fmt.Errorf("purge codes: %w", err)
	}
	return total + tag.RowsAffected(), nil
}
