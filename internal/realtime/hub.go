package realtime

import (
	"context"
	"encoding/json"
	"log"

	"complaintrack/server/internal/presence"
)

// HandlerFunc handles one inbound client event. data is the raw envelope payload.
type HandlerFunc func(ctx context.Context, c *Client, data json.RawMessage)

// Hub owns connection lifecycle: it registers admitted clients with the
// presence registry, routes inbound envelopes to event handlers, and runs
// disconnect callbacks exactly once per connection.
type Hub struct {
	registry     presence.Registry
	handlers     map[string]HandlerFunc
	onDisconnect []func(*Client)
}

// NewHub returns a Hub registering connections in registry.
func NewHub(registry presence.Registry) *Hub {
	return &Hub{
		registry: registry,
		handlers: make(map[string]HandlerFunc),
	}
}

// Handle registers fn for inbound event frames. Must be called during wiring,
// before the hub serves connections.
func (h *Hub) Handle(event string, fn HandlerFunc) {
	h.handlers[event] = fn
}

// OnDisconnect registers fn to run when any connection closes (e.g. chat room
// unsubscription). Must be called during wiring.
func (h *Hub) OnDisconnect(fn func(*Client)) {
	h.onDisconnect = append(h.onDisconnect, fn)
}

// admit registers the client and starts its pumps. Blocks until the
// connection's read side ends.
func (h *Hub) admit(c *Client) {
	h.registry.Register(c.IdentityID(), c)
	log.Printf("realtime: user %d (%s) connected", c.IdentityID(), c.Role())
	go c.writePump()
	c.readPump()
}

// drop removes the client from presence and runs disconnect callbacks.
// Called exactly once per connection, from Client.close.
func (h *Hub) drop(c *Client) {
	h.registry.Unregister(c.IdentityID(), c)
	for _, fn := range h.onDisconnect {
		fn(c)
	}
	log.Printf("realtime: user %d disconnected", c.IdentityID())
}

// dispatch routes one inbound envelope to its handler. Unknown events are
// logged and ignored; a misbehaving client cannot tear the hub down.
func (h *Hub) dispatch(c *Client, env Envelope) {
	fn, ok := h.handlers[env.Event]
	if !ok {
		log.Printf("realtime: unknown event %q from user %d", env.Event, c.IdentityID())
		return
	}
	fn(context.Background(), c, env.Data)
}
