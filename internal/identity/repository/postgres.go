package repository

import (
	"context"
	"database/sql"
	"errors"

	"complaintrack/server/internal/identity/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByEmailOrPhone returns the user matching value on email or phone, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByEmailOrPhone(ctx context.Context, value string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, full_name, email, phone, password, role, created_at
		 FROM users
		 WHERE email = $1 OR phone = $1`,
		value)

	var u domain.User
	var publicID sql.NullInt64
	err := row.Scan(&u.ID, &publicID, &u.FullName, &u.Email, &u.Phone, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if publicID.Valid {
		u.UserID = int(publicID.Int64)
	}
	return &u, nil
}

// Create persists the user and sets u.ID from the inserted row.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	return r.db.QueryRowContext(ctx,
		`INSERT INTO users (user_id, full_name, email, phone, password, role, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		u.UserID, u.FullName, u.Email, u.Phone, u.PasswordHash, u.Role, u.CreatedAt,
	).Scan(&u.ID)
}

// NextPublicUserID returns the next sequential public user id, starting at 7000.
func (r *PostgresRepository) NextPublicUserID(ctx context.Context) (int, error) {
	var next int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(user_id), $1) + 1 FROM users WHERE user_id IS NOT NULL`,
		domain.FirstPublicUserID-1,
	).Scan(&next)
	if err != nil {
		return 0, err
	}
	return next, nil
}
