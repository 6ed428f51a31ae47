// Package domain holds the chat message model.
package domain

import "time"

// Message is one persisted chat message. RecipientID is the raw recipient the
// sender addressed ("support" for the shared staff room, or a user id string);
// RoomID is the resolved room the message landed in.
type Message struct {
	ID          int       `json:"id"`
	SenderID    int       `json:"senderId"`
	SenderName  string    `json:"senderName"`
	RecipientID string    `json:"recipientId"`
	RoomID      string    `json:"roomId"`
	Body        string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}
