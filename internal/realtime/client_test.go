package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"complaintrack/server/internal/presence"
	sessiondomain "complaintrack/server/internal/session/domain"
)

// startChannel serves one live connection through the hub and returns the
// peer side of the socket.
func startChannel(t *testing.T, hub *Hub, snapshot sessiondomain.Snapshot) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		hub.admit(newClient(hub, conn, snapshot))
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	peer, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = peer.Close() })
	return peer
}

func waitForConn(t *testing.T, registry presence.Registry, id int) presence.Conn {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if conns := registry.Lookup(id); len(conns) > 0 {
			return conns[0]
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("connection never registered")
	return nil
}

func TestSendAfterCloseIsSilentDrop(t *testing.T) {
	registry := presence.NewMemoryRegistry()
	hub := NewHub(registry)
	startChannel(t, hub, sessiondomain.Snapshot{ID: 7001, Role: "user"})

	target := waitForConn(t, registry, 7001).(*Client)

	// A fan-out may snapshot this handle, lose the race with the
	// disconnect, and still call Send. That must be a drop, not a panic.
	target.close()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("Send after close panicked: %v", r)
		}
	}()
	target.Send("statusUpdate", map[string]string{"status": "resolved"})
	target.Send("statusUpdate", map[string]string{"status": "closed"})

	if conns := registry.Lookup(7001); len(conns) != 0 {
		t.Fatalf("still registered after close: %d conns", len(conns))
	}
}

func TestCloseIsIdempotentOnLiveConnection(t *testing.T) {
	registry := presence.NewMemoryRegistry()
	hub := NewHub(registry)
	var drops int
	hub.OnDisconnect(func(*Client) { drops++ })
	startChannel(t, hub, sessiondomain.Snapshot{ID: 7002, Role: "user"})

	target := waitForConn(t, registry, 7002).(*Client)
	target.close()
	target.close()

	if drops != 1 {
		t.Fatalf("disconnect callbacks ran %d times, want 1", drops)
	}
}
