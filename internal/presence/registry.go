// Package presence maintains the live mapping from authenticated identity to
// its open channel connections. The registry is injected wherever dispatch
// needs it so a multi-instance deployment can later swap in a distributed
// implementation without touching dispatch logic.
package presence

import "sync"

// Conn is a live channel handle. The identity and role are captured at
// handshake time and never change for the life of the connection.
type Conn interface {
	IdentityID() int
	Role() string
	// Send queues one event frame for delivery. Best-effort: a slow or closed
	// peer drops the frame rather than blocking the caller.
	Send(event string, data any)
}

// Registry maps each authenticated identity to its currently live connections.
// Register/Unregister/Lookup are atomic with respect to each other.
type Registry interface {
	// Register adds conn for identityID. Idempotent; the same identity may
	// hold several connections at once (multiple tabs or devices).
	Register(identityID int, conn Conn)
	// Unregister removes conn for identityID. Removing an absent entry is a no-op.
	Unregister(identityID int, conn Conn)
	// Lookup returns all live connections for identityID.
	Lookup(identityID int) []Conn
	// LookupByRole returns all live connections whose handshake role matches role.
	LookupByRole(role string) []Conn
}

// MemoryRegistry is the single-node, mutex-guarded Registry implementation.
type MemoryRegistry struct {
	mu    sync.RWMutex
	conns map[int]map[Conn]struct{}
}

// NewMemoryRegistry returns an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{conns: make(map[int]map[Conn]struct{})}
}

// Register adds conn to the identity's connection set.
func (r *MemoryRegistry) Register(identityID int, conn Conn) {
	if conn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[identityID]
	if !ok {
		set = make(map[Conn]struct{})
		r.conns[identityID] = set
	}
	set[conn] = struct{}{}
}

// Unregister removes conn from the identity's connection set.
func (r *MemoryRegistry) Unregister(identityID int, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[identityID]
	if !ok {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(r.conns, identityID)
	}
}

// Lookup returns the identity's live connections, or nil if it has none.
func (r *MemoryRegistry) Lookup(identityID int) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.conns[identityID]
	if len(set) == 0 {
		return nil
	}
	out := make([]Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// LookupByRole returns every live connection tagged with role at handshake time.
func (r *MemoryRegistry) LookupByRole(role string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Conn
	for _, set := range r.conns {
		for c := range set {
			if c.Role() == role {
				out = append(out, c)
			}
		}
	}
	return out
}
