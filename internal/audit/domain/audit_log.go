package domain

import "time"

// AuditLog is one recorded auth-lifecycle event (login, logout, register,
// handshake rejection).
type AuditLog struct {
	ID        string
	UserID    string // "" for events with no resolved account (e.g. login_failure)
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
