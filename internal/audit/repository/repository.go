package repository

import (
	"context"

	"docshare/internal/audit/domain"
)

// Repository defines persistence operations for audit logs.
type Repository interface {
	// GetByID returns the audit log for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.AuditLog, error)
	// ListByUser returns the user's audit logs, newest first, paginated by limit and offset.
	ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*domain.AuditLog, error)
	// Create persists the audit log. The audit log must have ID set.
	Create(ctx context.Context, a *domain.AuditLog) error
}
