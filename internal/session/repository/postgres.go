package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"complaintrack/server/internal/session/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetActiveByToken returns the unexpired session for token, or nil if not found.
// It returns an error only for database failures, not for missing or expired rows.
func (r *PostgresRepository) GetActiveByToken(ctx context.Context, token string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT session_id, user_id, user_data, expires_at, created_at
		 FROM user_sessions
		 WHERE session_id = $1 AND expires_at > NOW()`,
		token)

	var s domain.Session
	var snapshot []byte
	if err := row.Scan(&s.Token, &s.UserID, &snapshot, &s.ExpiresAt, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(snapshot, &s.Snapshot); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListActive returns all unexpired sessions, newest first.
func (r *PostgresRepository) ListActive(ctx context.Context) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT session_id, user_id, user_data, expires_at, created_at
		 FROM user_sessions
		 WHERE expires_at > NOW()
		 ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		var s domain.Session
		var snapshot []byte
		if err := rows.Scan(&s.Token, &s.UserID, &snapshot, &s.ExpiresAt, &s.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(snapshot, &s.Snapshot); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// Create persists the session to the database. The session must have Token set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	snapshot, err := json.Marshal(s.Snapshot)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO user_sessions (session_id, user_id, user_data, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		s.Token, s.UserID, snapshot, s.ExpiresAt, s.CreatedAt)
	return err
}

// Delete removes the session row for token. Deleting a missing token is a no-op.
func (r *PostgresRepository) Delete(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_sessions WHERE session_id = $1`, token)
	return err
}

// DeleteExpired removes all expired session rows and returns the count removed.
func (r *PostgresRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM user_sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}
