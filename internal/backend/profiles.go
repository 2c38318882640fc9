package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/RegistryPortal/internal/core"
	"github.com/jackc/pgx/v5"
)

const profileColumns = `id, name, email, phone, cnic, cnic_normalized, role, status, created_at, updated_at`

func scanProfile(row pgx.Row) (*core.Profile, error) {
	var p core.Profile
	err := row.Scan(
		&p.ID, &p.Name, &p.Email, &p.Phone, &p.CNIC, &p.CNICNormalized,
		&p.Role, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProfile returns the profile with id, or core.ErrUserNotFound.
func (s *Store) GetProfile(ctx context.Context, id string) (*core.Profile, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, core.ToPgUUID(id))
	p, err := scanProfile(row)
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", id, notFound(err, core.ErrUserNotFound))
	}
	return p, nil
}

// UpsertProfile inserts or updates a profile keyed on id. cnic_normalized
// is attached whenever a CNIC is present.
func (s *Store) UpsertProfile(ctx context.Context, p core.Profile) error {
	if p.CNIC.Valid && p.CNIC.String != "" {
		p.CNICNormalized = core.ToPgText(core.NormalizeCNIC(p.CNIC.String))
	}
	if p.Email.Valid {
		p.Email.String = strings.ToLower(strings.TrimSpace(p.Email.String))
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO profiles (id, name, email, phone, cnic, cnic_normalized, role, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			cnic = EXCLUDED.cnic,
			cnic_normalized = EXCLUDED.cnic_normalized,
			role = EXCLUDED.role,
			status = EXCLUDED.status,
			updated_at = now()`,
		core.ToPgUUID(p.ID), p.Name, p.Email, p.Phone, p.CNIC, p.CNICNormalized, p.Role, p.Status,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("upsert profile %s: %w", p.ID, core.ErrIdentityExists)
		}
		return fmt.Errorf("upsert profile %s: %w", p.ID, err)
	}
	return nil
}

// FindProfileByCNIC returns the first profile whose normalized CNIC equals
// the normalized input. An input with no digits matches nothing.
func (s *Store) FindProfileByCNIC(ctx context.Context, cnic string) (*core.Profile, error) {
	normalized := core.NormalizeCNIC(cnic)
	if normalized == "" {
		return nil, core.ErrUserNotFound
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE cnic_normalized = $1 ORDER BY created_at LIMIT 1`,
		normalized)
	p, err := scanProfile(row)
	if err != nil {
		return nil, fmt.Errorf("find profile by cnic: %w", notFound(err, core.ErrUserNotFound))
	}
	return p, nil
}

// FindProfileByEmail returns the profile registered under email, compared
// case-insensitively.
func (s *Store) FindProfileByEmail(ctx context.Context, email string) (*core.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, core.ErrUserNotFound
	}
	row := s.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE lower(email) = $1`, email)
	p, err := scanProfile(row)
	if err != nil {
		return nil, fmt.Errorf("find profile by email: %w", notFound(err, core.ErrUserNotFound))
	}
	return p, nil
}

// ListProfiles returns profiles ordered by name, optionally filtered by a
// search term over name, email and CNIC.
func (s *Store) ListProfiles(ctx context.Context, search string) ([]core.Profile, error) {
	wb := NewWhereBuilder().AddSearch(search, "name", "email", "cnic")
	where, args := wb.Build()

	rows, err := s.pool.Query(ctx, `SELECT `+profileColumns+` FROM profiles`+where+` ORDER BY name NULLS LAST, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	profiles := make([]core.Profile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return profiles, nil
}

// DeleteProfile removes a profile and, by cascade, its identity and sessions.
func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, core.ToPgUUID(id))
	if err != nil {
		return fmt.Errorf("delete profile %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete profile %s: %w", id, core.ErrUserNotFound)
	}
	return nil
}
