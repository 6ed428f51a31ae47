// Package notify keeps the per-client notification list: a bounded,
// newest-first buffer of received events with read tracking and change
// subscriptions for UI bindings.
package notify

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCapacity bounds the list when no explicit capacity is given.
const DefaultCapacity = 20

// Notification is one received event held for display.
type Notification struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Read      bool            `json:"read"`
	Timestamp time.Time       `json:"timestamp"`
}

// Listener receives the full notification list after every mutation. The
// slice is a snapshot; the listener may keep it. Listeners run outside the
// Center's lock, so a listener may call back into the Center.
type Listener func(notifications []Notification)

// Center is the client-side notification store. Newest notifications come
// first; when the list is full the oldest entry is evicted. Safe for
// concurrent use.
type Center struct {
	mu        sync.Mutex
	capacity  int
	items     []Notification
	listeners map[int]Listener
	nextSub   int
}

// NewCenter returns a Center holding at most capacity notifications.
// A capacity <= 0 falls back to DefaultCapacity.
func NewCenter(capacity int) *Center {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Center{
		capacity:  capacity,
		listeners: make(map[int]Listener),
	}
}

// Add prepends a new unread notification and returns its generated id. If the
// list is at capacity the oldest notification is evicted.
func (c *Center) Add(eventType string, data json.RawMessage) string {
	n := Notification{
		ID:        uuid.NewString(),
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
	c.mu.Lock()
	c.items = append([]Notification{n}, c.items...)
	if len(c.items) > c.capacity {
		c.items = c.items[:c.capacity]
	}
	snapshot, listeners := c.observersLocked()
	c.mu.Unlock()

	notify(snapshot, listeners)
	return n.ID
}

// MarkRead marks the notification with id as read. Unknown ids are ignored.
func (c *Center) MarkRead(id string) {
	var snapshot []Notification
	var listeners []Listener
	c.mu.Lock()
	for i := range c.items {
		if c.items[i].ID == id {
			if !c.items[i].Read {
				c.items[i].Read = true
				snapshot, listeners = c.observersLocked()
			}
			break
		}
	}
	c.mu.Unlock()

	notify(snapshot, listeners)
}

// MarkAllRead marks every notification as read.
func (c *Center) MarkAllRead() {
	var snapshot []Notification
	var listeners []Listener
	c.mu.Lock()
	changed := false
	for i := range c.items {
		if !c.items[i].Read {
			c.items[i].Read = true
			changed = true
		}
	}
	if changed {
		snapshot, listeners = c.observersLocked()
	}
	c.mu.Unlock()

	notify(snapshot, listeners)
}

// UnreadCount returns the number of unread notifications.
func (c *Center) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for i := range c.items {
		if !c.items[i].Read {
			n++
		}
	}
	return n
}

// List returns a newest-first snapshot of the notifications.
func (c *Center) List() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers listener and immediately calls it with the current
// list. The returned function removes the subscription.
func (c *Center) Subscribe(listener Listener) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.listeners[id] = listener
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	listener(snapshot)
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Center) snapshotLocked() []Notification {
	out := make([]Notification, len(c.items))
	copy(out, c.items)
	return out
}

// observersLocked snapshots the list and the current listener set so the
// caller can invoke listeners after releasing the lock.
func (c *Center) observersLocked() ([]Notification, []Listener) {
	listeners := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	return c.snapshotLocked(), listeners
}

func notify(snapshot []Notification, listeners []Listener) {
	for _, l := range listeners {
		l(snapshot)
	}
}
