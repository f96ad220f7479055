package domain

import "time"

// AuditLog represents one recorded account or document event.
type AuditLog struct {
	ID        string
	UserID    string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
