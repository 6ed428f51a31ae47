package repository

import (
	"context"

	"complaintrack/server/internal/session/domain"
)

// Repository defines persistence for sessions.
type Repository interface {
	// GetActiveByToken returns the unexpired session for token, or nil if no
	// such row exists. Errors only on database failure.
	GetActiveByToken(ctx context.Context, token string) (*domain.Session, error)
	// ListActive returns all unexpired sessions ordered by creation time
	// descending. Used by the admin session listing for incident response.
	ListActive(ctx context.Context) ([]*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	// Delete removes the row for token. Deleting a missing token is a no-op.
	Delete(ctx context.Context, token string) error
	// DeleteExpired removes all expired rows and returns how many were removed.
	DeleteExpired(ctx context.Context) (int64, error)
}
