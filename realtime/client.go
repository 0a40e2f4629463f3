package realtime

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

const sendBufferSize = 16

// Client wraps one live websocket connection. UserID stays zero until the
// connection authenticates.
type Client struct {
	UserID uint
	Role   string
	Conn   *websocket.Conn
	Send   chan []byte

	mu     sync.Mutex
	closed bool
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		Conn: conn,
		Send: make(chan []byte, sendBufferSize),
	}
}

// Authenticated reports whether the connection has a bound identity.
func (c *Client) Authenticated() bool {
	return c.UserID != 0
}

// Emit queues an event for delivery. Delivery is best effort: events for a
// closed connection or a full send buffer are dropped rather than stalling
// the gateway, and the receiver recovers the message from history on its
// next fetch.
func (c *Client) Emit(event string, data interface{}) {
	payload, err := json.Marshal(Envelope{Event: event, Data: mustRaw(data)})
	if err != nil {
		log.Printf("emit marshal error: %v", err)
		return
	}

	// The mutex orders Emit against Close: another connection may still hold
	// this client from a registry lookup taken just before it disconnected.
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- payload:
	default:
		log.Printf("dropping %s event for user %d: send buffer full", event, c.UserID)
	}
}

// Close shuts the send channel exactly once; WritePump drains and exits.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

// WritePump drains the send channel onto the wire. It exits when the channel
// is closed or the connection breaks.
func (c *Client) WritePump() {
	defer c.Conn.Close()

	for {
		message, ok := <-c.Send
		if !ok {
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

func mustRaw(data interface{}) json.RawMessage {
	raw, err := json.Marshal(data)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}
