package server

import (
	"context"
	"encoding/json"
	"log"

	"complaintrack/server/internal/chat"
	"complaintrack/server/internal/realtime"
)

// WireChat registers the chat event handlers and the room cleanup callback on
// the hub. Must run during wiring, before the handshake handler serves.
func WireChat(hub *realtime.Hub, chatSvc *chat.Service) {
	hub.Handle(realtime.EventJoinRoom, func(ctx context.Context, c *realtime.Client, data json.RawMessage) {
		if err := chatSvc.Join(ctx, c, decodeJoinRoom(data)); err != nil {
			log.Printf("server: join room for user %d: %v", c.IdentityID(), err)
			c.Send(realtime.EventError, map[string]string{"message": "failed to load message history"})
		}
	})

	hub.Handle(realtime.EventSendMessage, func(ctx context.Context, c *realtime.Client, data json.RawMessage) {
		var req chat.SendRequest
		if err := json.Unmarshal(data, &req); err != nil {
			c.Send(realtime.EventError, map[string]string{"message": "malformed message"})
			return
		}
		if _, err := chatSvc.Send(ctx, c, c.Identity().FullName, req.RecipientID, req.Message); err != nil {
			log.Printf("server: send message for user %d: %v", c.IdentityID(), err)
			c.Send(realtime.EventError, map[string]string{"message": "failed to send message"})
		}
	})

	hub.OnDisconnect(func(c *realtime.Client) {
		chatSvc.DropConn(c)
	})
}

// decodeJoinRoom accepts either {"recipientId": "..."} or a bare recipient
// string. Older clients send the bare form.
func decodeJoinRoom(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var req chat.JoinRequest
	if err := json.Unmarshal(data, &req); err == nil && req.RecipientID != "" {
		return req.RecipientID
	}
	var recipientID string
	if err := json.Unmarshal(data, &recipientID); err == nil {
		return recipientID
	}
	return ""
}
