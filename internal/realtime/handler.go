package realtime

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

// Handler upgrades authenticated requests to channel connections.
type Handler struct {
	hub      *Hub
	auth     *Authenticator
	upgrader websocket.Upgrader
}

// NewHandler returns the channel handshake handler. allowedOrigin restricts
// browser origins; requests without an Origin header (non-browser clients)
// are always allowed.
func NewHandler(hub *Hub, auth *Authenticator, allowedOrigin string) *Handler {
	return &Handler{
		hub:  hub,
		auth: auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowedOrigin
			},
		},
	}
}

// ServeHTTP performs the handshake: the token is taken from the `token` query
// parameter, validated before the upgrade, and rejection happens with a plain
// HTTP status; no connection state is allocated on the rejected path.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	snapshot, err := h.auth.Authenticate(r.Context(), token)
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			writeJSONError(w, http.StatusUnauthorized, "authentication error")
			return
		}
		log.Printf("realtime: handshake session lookup failed: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "session lookup failed")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		log.Printf("realtime: upgrade failed for user %d: %v", snapshot.ID, err)
		return
	}

	client := newClient(h.hub, conn, *snapshot)
	h.hub.admit(client)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
