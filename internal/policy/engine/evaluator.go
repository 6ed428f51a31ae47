package engine

import (
	"context"

	sessiondomain "complaintrack/server/internal/session/domain"
)

// AccessResult holds the result of an access policy evaluation.
type AccessResult struct {
	Allow bool
}

// Evaluator decides whether an authenticated identity may perform an action
// on a resource. Implementations fail closed: on evaluation error the caller
// must deny.
type Evaluator interface {
	// EvaluateAccess evaluates access policy for the identity snapshot against
	// resource and action (e.g. resource "sessions", action "list").
	EvaluateAccess(ctx context.Context, identity *sessiondomain.Snapshot, resource, action string) (AccessResult, error)
}
