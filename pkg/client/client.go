// Package client is the Go client for the portal's realtime channel. It
// authenticates with a bearer token, feeds notification events into a
// notify.Center, and exposes the chat operations.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"complaintrack/server/internal/chat"
	chatdomain "complaintrack/server/internal/chat/domain"
	"complaintrack/server/internal/notify"
	"complaintrack/server/internal/realtime"
)

// Options configures a Client. All fields are optional.
type Options struct {
	// Center receives newComplaint and statusUpdate events as notifications.
	// When nil a fresh Center with the default capacity is used.
	Center *notify.Center
	// OnMessage is called for each live chat message.
	OnMessage func(msg chatdomain.Message)
	// OnHistory is called with the room history after a join.
	OnHistory func(history []chatdomain.Message)
}

// Client is one live channel connection.
type Client struct {
	conn   *websocket.Conn
	center *notify.Center
	opts   Options

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to the server's channel endpoint. baseURL is the HTTP base
// (e.g. http://localhost:5000); the scheme is rewritten for the websocket
// handshake. The token authenticates the handshake; a rejected token fails
// here, not later.
func Dial(ctx context.Context, baseURL, token string, opts Options) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("client: parse base URL: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("client: unsupported scheme %q", u.Scheme)
	}
	u.Path = "/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("client: handshake rejected with status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("client: dial: %w", err)
	}

	center := opts.Center
	if center == nil {
		center = notify.NewCenter(0)
	}
	c := &Client{
		conn:   conn,
		center: center,
		opts:   opts,
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Notifications returns the notification center fed by this connection.
func (c *Client) Notifications() *notify.Center {
	return c.center
}

// JoinRoom subscribes to the room addressed by recipientID; the server
// replies with the room's history. An empty recipientID joins the shared
// support room.
func (c *Client) JoinRoom(recipientID string) error {
	return c.write(realtime.EventJoinRoom, chat.JoinRequest{RecipientID: recipientID})
}

// SendMessage sends a chat message. An empty recipientID addresses the shared
// support room.
func (c *Client) SendMessage(recipientID, body string) error {
	return c.write(realtime.EventSendMessage, chat.SendRequest{RecipientID: recipientID, Message: body})
}

// Close tears the connection down. Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// Done is closed when the read loop ends (server close or Close).
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) write(event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(realtime.Envelope{Event: event, Data: raw})
}

func (c *Client) readLoop() {
	defer c.Close()
	for {
		var env realtime.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			return
		}
		c.handle(env)
	}
}

func (c *Client) handle(env realtime.Envelope) {
	switch env.Event {
	case realtime.EventNewComplaint, realtime.EventStatusUpdate:
		c.center.Add(env.Event, env.Data)
	case realtime.EventNewMessage:
		var m chatdomain.Message
		if err := json.Unmarshal(env.Data, &m); err != nil {
			log.Printf("client: malformed %s frame: %v", env.Event, err)
			return
		}
		if c.opts.OnMessage != nil {
			c.opts.OnMessage(m)
		}
	case realtime.EventMessageHistory:
		var history []chatdomain.Message
		if err := json.Unmarshal(env.Data, &history); err != nil {
			log.Printf("client: malformed %s frame: %v", env.Event, err)
			return
		}
		if c.opts.OnHistory != nil {
			c.opts.OnHistory(history)
		}
	case realtime.EventError:
		log.Printf("client: server error frame: %s", string(env.Data))
	default:
		// Unknown events are ignored so the server can add new ones.
	}
}
