package realtime

import (
	"context"
	"errors"

	"complaintrack/server/internal/audit"
	"complaintrack/server/internal/security"
	sessiondomain "complaintrack/server/internal/session/domain"
)

// ErrUnauthenticated is returned for any handshake token failure: missing,
// malformed, wrongly signed, expired, or revoked.
var ErrUnauthenticated = errors.New("authentication error")

// SessionValidator is the session store surface the authenticator needs.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*sessiondomain.Snapshot, error)
}

// Authenticator verifies a claimed bearer token at channel-open time. A token
// is admitted only when its signature verifies AND a live session row exists,
// so a revoked token is rejected even while its claims still verify.
type Authenticator struct {
	tokens   *security.TokenProvider
	sessions SessionValidator
	audit    audit.AuditLogger
}

// NewAuthenticator returns an Authenticator checking tokens against both the
// signature and the session store. auditLogger may be nil.
func NewAuthenticator(tokens *security.TokenProvider, sessions SessionValidator, auditLogger audit.AuditLogger) *Authenticator {
	return &Authenticator{tokens: tokens, sessions: sessions, audit: auditLogger}
}

// Authenticate validates token and returns the identity snapshot to admit.
// Any token failure yields ErrUnauthenticated; a store failure is surfaced as
// is (the caller decides how to report it). No resources are allocated here.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*sessiondomain.Snapshot, error) {
	if token == "" {
		a.reject(ctx, 0, "missing token")
		return nil, ErrUnauthenticated
	}
	userID, _, err := a.tokens.Verify(token)
	if err != nil {
		a.reject(ctx, 0, "invalid signature")
		return nil, ErrUnauthenticated
	}
	snapshot, err := a.sessions.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		a.reject(ctx, userID, "no active session")
		return nil, ErrUnauthenticated
	}
	return snapshot, nil
}

func (a *Authenticator) reject(ctx context.Context, userID int, reason string) {
	if a.audit == nil {
		return
	}
	a.audit.LogEvent(ctx, userID, "handshake_rejected", "channel", reason)
}
