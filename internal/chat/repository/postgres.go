package repository

import (
	"context"
	"database/sql"

	"complaintrack/server/internal/chat/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a message repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the message and fills in its generated ID and Timestamp.
func (r *PostgresRepository) Create(ctx context.Context, m *domain.Message) error {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO messages (sender_id, recipient_id, message, room_id, sender_name)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, timestamp`,
		m.SenderID, m.RecipientID, m.Body, m.RoomID, m.SenderName)
	return row.Scan(&m.ID, &m.Timestamp)
}

// HistoryByRoom returns the room's messages oldest first.
func (r *PostgresRepository) HistoryByRoom(ctx context.Context, roomID string) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, sender_id, recipient_id, message, room_id, sender_name, timestamp
		 FROM messages
		 WHERE room_id = $1
		 ORDER BY timestamp ASC`,
		roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Body, &m.RoomID, &m.SenderName, &m.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
