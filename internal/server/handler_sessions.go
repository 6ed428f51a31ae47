package server

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"complaintrack/server/internal/session"
)

// SessionHandler exposes the admin session listing for incident response.
type SessionHandler struct {
	sessions *session.Store
}

// NewSessionHandler returns the session endpoint handler.
func NewSessionHandler(store *session.Store) *SessionHandler {
	return &SessionHandler{sessions: store}
}

// sessionView is the admin-facing shape of one active session. Tokens are
// never exposed; an admin revokes by user, not by token.
type sessionView struct {
	UserID    int       `json:"userId"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// List returns all active sessions newest first.
func (h *SessionHandler) List(c *gin.Context) {
	active, err := h.sessions.ListActive(c.Request.Context())
	if err != nil {
		log.Printf("server: session listing failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to list sessions"})
		return
	}
	views := make([]sessionView, 0, len(active))
	for _, s := range active {
		views = append(views, sessionView{
			UserID:    s.Snapshot.UserID,
			FullName:  s.Snapshot.FullName,
			Email:     s.Snapshot.Email,
			Role:      s.Snapshot.Role,
			CreatedAt: s.CreatedAt,
			ExpiresAt: s.ExpiresAt,
		})
	}
	c.JSON(http.StatusOK, views)
}
