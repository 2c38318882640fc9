package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/netip"

	"github.com/JonMunkholm/RegistryPortal/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// InsertAudit writes one audit entry.
func (s *Store) InsertAudit(ctx context.Context, e core.AuditEntry) error {
	var details []byte
	if e.Details != nil {
		var err error
		details, err = json.Marshal(e.Details)
		if err != nil {
			details = nil // Fall back to nil if marshaling fails
		}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_log (id, action, severity, target, user_id, user_email,
			ip_address, user_agent, rows_affected, details, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		core.ToPgUUID(e.ID), string(e.Action), string(e.Severity),
		core.ToPgText(e.Target), core.ToPgText(e.UserID), core.ToPgText(e.UserEmail),
		parseIP(e.IPAddress), core.ToPgText(e.UserAgent),
		pgtype.Int4{Int32: int32(e.RowsAffected), Valid: e.RowsAffected != 0},
		details, core.ToPgText(e.Reason), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

// parseIP strips any port and parses the address; unparseable input is NULL.
func parseIP(raw string) *netip.Addr {
	if raw == "" {
		return nil
	}
	host := raw
	if h, _, err := net.SplitHostPort(raw); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return nil
	}
	return &addr
}

// ListAudit returns entries newest first.
func (s *Store) ListAudit(ctx context.Context, f core.AuditLogFilter) ([]core.AuditEntry, error) {
	if f.Limit <= 0 {
		f.Limit = core.DefaultAuditLimit
	}

	wb := NewWhereBuilder().Add("action", string(f.Action)).AddSince("created_at", f.Since)
	where, args := wb.Build()

	query := `SELECT id, action, severity, target, user_id, user_email, ip_address,
		user_agent, rows_affected, details, reason, created_at
		FROM audit_log` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", wb.NextArgIndex(), wb.NextArgIndex()+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	entries := make([]core.AuditEntry, 0)
	for rows.Next() {
		e, err := scanAuditRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	return entries, nil
}

func scanAuditRow(rows pgx.Rows) (*core.AuditEntry, error) {
	var (
		id           pgtype.UUID
		action       string
		severity     string
		target       pgtype.Text
		userID       pgtype.Text
		userEmail    pgtype.Text
		ipAddress    *netip.Addr
		userAgent    pgtype.Text
		rowsAffected pgtype.Int4
		details      []byte
		reason       pgtype.Text
		createdAt    pgtype.Timestamptz
	)

	err := rows.Scan(&id, &action, &severity, &target, &userID, &userEmail, &ipAddress,
		&userAgent, &rowsAffected, &details, &reason, &createdAt)
	if err != nil {
		return nil, err
	}

	e := &core.AuditEntry{
		ID:        core.PgUUIDToString(id),
		Action:    core.AuditAction(action),
		Severity:  core.AuditSeverity(severity),
		Target:    target.String,
		UserID:    userID.String,
		UserEmail: userEmail.String,
		UserAgent: userAgent.String,
		Reason:    reason.String,
		CreatedAt: createdAt.Time,
	}
	if ipAddress != nil {
		e.IPAddress = ipAddress.String()
	}
	if rowsAffected.Valid {
		e.RowsAffected = int(rowsAffected.Int32)
	}
	if details != nil {
		_ = json.Unmarshal(details, &e.Details)
	}
	return e, nil
}
