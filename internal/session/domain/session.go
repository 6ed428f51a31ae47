package domain

import "time"

// Snapshot is the identity captured at login and stored on the session row.
// It is returned verbatim on every validate, so changes to the user row do not
// affect already-issued sessions until re-login.
type Snapshot struct {
	ID       int    `json:"id"`     // internal user row id
	UserID   int    `json:"userId"` // public sequential id (7000+)
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
}

// Session binds an opaque bearer token to an identity snapshot and expiry.
// A token is valid iff a non-expired row exists for it.
type Session struct {
	Token     string
	UserID    int
	Snapshot  Snapshot
	ExpiresAt time.Time
	CreatedAt time.Time
}
