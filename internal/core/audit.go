package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionBulkSync        AuditAction = "bulk_sync"
	ActionImport          AuditAction = "import"
	ActionReset           AuditAction = "reset"
	ActionUserUpdate      AuditAction = "user_update"
	ActionUserDelete      AuditAction = "user_delete"
	ActionNoticePublish   AuditAction = "notice_publish"
	ActionStatementUpload AuditAction = "statement_upload"
	ActionNotify          AuditAction = "notify"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow      AuditSeverity = "low"
	SeverityMedium   AuditSeverity = "medium"
	SeverityHigh     AuditSeverity = "high"
	SeverityCritical AuditSeverity = "critical"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID           string         `json:"id"`
	Action       AuditAction    `json:"action"`
	Severity     AuditSeverity  `json:"severity"`
	Target       string         `json:"target,omitempty"`
	UserID       string         `json:"userId,omitempty"`
	UserEmail    string         `json:"userEmail,omitempty"`
	IPAddress    string         `json:"ipAddress,omitempty"`
	UserAgent    string         `json:"userAgent,omitempty"`
	RowsAffected int            `json:"rowsAffected,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	Reason       string         `json:"reason,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// AuditLogParams contains parameters for creating an audit log entry.
// Actor fields left empty are filled from the context.
type AuditLogParams struct {
	Action       AuditAction
	Target       string
	RowsAffected int
	Details      map[string]any
	Reason       string
}

// AuditLogFilter contains filtering options for querying audit logs.
type AuditLogFilter struct {
	Action AuditAction
	Since  time.Time
	Limit  int
	Offset int
}

// DefaultAuditLimit is used when a filter has no limit.
const DefaultAuditLimit = 100

// AuditStore persists audit entries.
type AuditStore interface {
	InsertAudit(ctx context.Context, entry AuditEntry) error
	ListAudit(ctx context.Context, filter AuditLogFilter) ([]AuditEntry, error)
}

// AuditActor identifies who performed an action and from where.
type AuditActor struct {
	UserID    string
	UserEmail string
	IPAddress string
	UserAgent string
}

type auditActorKey struct{}

// WithAuditActor returns a context carrying actor.
func WithAuditActor(ctx context.Context, actor AuditActor) context.Context {
	return context.WithValue(ctx, auditActorKey{}, actor)
}

// AuditActorFromContext returns the actor stored in ctx, if any.
func AuditActorFromContext(ctx context.Context) AuditActor {
	actor, _ := ctx.Value(auditActorKey{}).(AuditActor)
	return actor
}

// determineSeverity returns the appropriate severity for an action.
func determineSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionReset, ActionUserDelete:
		return SeverityCritical
	case ActionBulkSync, ActionImport, ActionUserUpdate:
		return SeverityHigh
	case ActionNotify:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// NewAuditEntry builds an entry for params with a fresh ID, the action's
// severity and the actor found in ctx.
func NewAuditEntry(ctx context.Context, params AuditLogParams) AuditEntry {
	actor := AuditActorFromContext(ctx)
	return AuditEntry{
		ID:           uuid.NewString(),
		Action:       params.Action,
		Severity:     determineSeverity(params.Action),
		Target:       params.Target,
		UserID:       actor.UserID,
		UserEmail:    actor.UserEmail,
		IPAddress:    actor.IPAddress,
		UserAgent:    actor.UserAgent,
		RowsAffected: params.RowsAffected,
		Details:      params.Details,
		Reason:       params.Reason,
		CreatedAt:    time.Now().UTC(),
	}
}

// LogAudit builds and stores an audit entry.
func LogAudit(ctx context.Context, store AuditStore, params AuditLogParams) (*AuditEntry, error) {
	entry := NewAuditEntry(ctx, params)
	if err := store.InsertAudit(ctx, entry); err != nil {
		return nil, err
	}
	return &entry, nil
}
