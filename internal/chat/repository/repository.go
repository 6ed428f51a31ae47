package repository

import (
	"context"

	"complaintrack/server/internal/chat/domain"
)

// Repository defines persistence for chat messages.
type Repository interface {
	// Create inserts the message and fills in its generated ID and Timestamp.
	Create(ctx context.Context, m *domain.Message) error
	// HistoryByRoom returns the room's messages in chronological order.
	HistoryByRoom(ctx context.Context, roomID string) ([]*domain.Message, error)
}
