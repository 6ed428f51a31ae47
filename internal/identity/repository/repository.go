package repository

import (
	"context"

	"complaintrack/server/internal/identity/domain"
)

// Repository defines persistence for user accounts.
type Repository interface {
	// GetByEmailOrPhone returns the user whose email or phone matches value,
	// or nil if none exists. Errors only on database failure.
	GetByEmailOrPhone(ctx context.Context, value string) (*domain.User, error)
	// Create persists the user and sets its internal row id.
	Create(ctx context.Context, u *domain.User) error
	// NextPublicUserID returns the next free public user id (7000+).
	NextPublicUserID(ctx context.Context) (int, error)
}
