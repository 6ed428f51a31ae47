package realtime

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	sessiondomain "complaintrack/server/internal/session/domain"
)

const (
	// writeWait is the max time allowed to write one frame to the peer.
	writeWait = 10 * time.Second
	// pongWait is how long the peer gets to answer a ping.
	pongWait = 60 * time.Second
	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize bounds inbound frames; chat bodies are small.
	maxMessageSize = 8192
	// sendBuffer is the per-client outgoing queue. When it fills, frames are
	// dropped rather than blocking the sender (best-effort delivery).
	sendBuffer = 32
)

// Client is one live authenticated channel connection. It satisfies
// presence.Conn; delivery order into its send queue is the delivery order on
// the wire (FIFO per connection).
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	identity sessiondomain.Snapshot

	send      chan Envelope
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn, identity sessiondomain.Snapshot) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		identity: identity,
		send:     make(chan Envelope, sendBuffer),
		done:     make(chan struct{}),
	}
}

// IdentityID returns the internal user id captured at handshake time.
func (c *Client) IdentityID() int { return c.identity.ID }

// Role returns the role captured at handshake time.
func (c *Client) Role() string { return c.identity.Role }

// Identity returns the full snapshot captured at handshake time.
func (c *Client) Identity() sessiondomain.Snapshot { return c.identity }

// Send queues one event frame for this connection. Best-effort: if the client
// is slow and its buffer is full, the frame is dropped and logged. A send
// racing the connection's teardown is a silent drop; callers may hold this
// handle from a fan-out snapshot taken before the disconnect.
func (c *Client) Send(event string, data any) {
	env, err := NewEnvelope(event, data)
	if err != nil {
		log.Printf("realtime: marshal %s for user %d: %v", event, c.identity.ID, err)
		return
	}
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- env:
	default:
		log.Printf("realtime: dropped %s frame for slow client (user %d)", event, c.identity.ID)
	}
}

// close tears the connection down exactly once: presence unregister,
// disconnect callbacks, then the socket itself. The send channel is never
// closed; writePump exits on done, and late sends land in a buffer nobody
// reads.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.hub.drop(c)
		close(c.done)
		_ = c.conn.Close()
	})
}

// readPump reads inbound frames and dispatches them to the hub's handlers.
// It runs on the handshake goroutine and returns on transport disconnect.
func (c *Client) readPump() {
	defer c.close()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("realtime: read error (user %d): %v", c.identity.ID, err)
			}
			return
		}
		c.hub.dispatch(c, env)
	}
}

// writePump owns all writes to the socket: queued frames plus keepalive pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case env := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
