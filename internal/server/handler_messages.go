package server

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"complaintrack/server/internal/chat"
)

// MessageHandler exposes the REST surface of the messaging subsystem: history
// reads and message posts for clients without a live channel.
type MessageHandler struct {
	chat *chat.Service
}

// NewMessageHandler returns the message endpoint handler.
func NewMessageHandler(chatSvc *chat.Service) *MessageHandler {
	return &MessageHandler{chat: chatSvc}
}

// History returns the room's messages oldest first.
func (h *MessageHandler) History(c *gin.Context) {
	msgs, err := h.chat.History(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		log.Printf("server: message history failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, msgs)
}

type postMessageRequest struct {
	RecipientID string `json:"recipientId"`
	Message     string `json:"message" binding:"required"`
}

// Post persists a message on behalf of the authenticated caller. Unlike the
// channel path this does not fan out to live room members.
func (h *MessageHandler) Post(c *gin.Context) {
	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "message is required"})
		return
	}
	identity := identityFrom(c)
	m, err := h.chat.Save(c.Request.Context(), identity.ID, identity.FullName, req.RecipientID, req.Message)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyMessage) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "message is required"})
			return
		}
		log.Printf("server: post message failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to save message"})
		return
	}
	c.JSON(http.StatusCreated, m)
}
