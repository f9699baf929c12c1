package hub

import (
	"sync"
	"time"

	"github.com/boardsync/relay/src/types"
)

// Client wraps one WebSocket connection bound to a single room for its
// lifetime. The reading side is driven by the connection service; writes
// flow through the buffered Send channel drained by WritePump.
type Client struct {
	ID       string
	Identity types.Identity
	RoomID   string

	conn        types.Conn
	Send        chan []byte
	connectedAt time.Time

	mu     sync.Mutex
	done   chan struct{}
	closed bool
}

// NewClient creates a client wrapper for an authenticated connection.
func NewClient(id string, identity types.Identity, roomID string, conn types.Conn) *Client {
	return &Client{
		ID:          id,
		Identity:    identity,
		RoomID:      roomID,
		conn:        conn,
		Send:        make(chan []byte, 256),
		connectedAt: time.Now(),
		done:        make(chan struct{}),
	}
}

// ConnectedAt returns when the client joined.
func (c *Client) ConnectedAt() time.Time { return c.connectedAt }

// TrySend queues a frame without blocking. Returns false when the client
// is closed or the send buffer is full and the frame was dropped.
func (c *Client) TrySend(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- frame:
		return true
	default:
		return false
	}
}

// WritePump writes queued frames to the connection. Call in a goroutine;
// it returns when the client closes or a write fails.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for {
		select {
		case frame, ok := <-c.Send:
			if !ok {
				return
			}
			if err := c.conn.WriteMessage(frame); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// CloseWith sends a close frame with the given code and reason, then
// shuts the client down.
func (c *Client) CloseWith(code int, reason string) {
	c.conn.WriteClose(code, reason)
	c.Close()
}

// Close signals the client to stop its pumps. Safe to call repeatedly.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
		close(c.Send)
	}
}
