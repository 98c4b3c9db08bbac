// Package websocket wraps gorilla/websocket connections for one reader and
// many concurrent writers.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ErrConnectionClosed is returned once either side closed the connection.
var ErrConnectionClosed = errors.New("connection closed")

// MessageType represents the type of a WebSocket message.
type MessageType int

// Data message types.
const (
	TextMessage   = MessageType(websocket.TextMessage)
	BinaryMessage = MessageType(websocket.BinaryMessage)
)

// DefaultHandshakeTimeout bounds Dial when the context has no deadline.
const DefaultHandshakeTimeout = 5 * time.Second

// Connection is a WebSocket connection safe for concurrent writes. Reads
// must come from a single goroutine.
type Connection struct {
	conn      *websocket.Conn
	sendMutex sync.Mutex
	closed    atomic.Bool
}

// NewConnection wraps an established connection.
func NewConnection(conn *websocket.Conn) *Connection {
	return &Connection{conn: conn}
}

// Dial opens a client connection to url.
func Dial(ctx context.Context, url string, header http.Header) (*Connection, error) {
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: DefaultHandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}

	return NewConnection(conn), nil
}

// ReadMessage blocks until the next data message arrives.
func (c *Connection) ReadMessage() (MessageType, []byte, error) {
	if c.IsClosed() {
		return 0, nil, ErrConnectionClosed
	}

	messageType, message, err := c.conn.ReadMessage()
	if err != nil {
		return 0, nil, c.closedErr(err)
	}
	return MessageType(messageType), message, nil
}

// WriteJSONWithTimeout encodes v and writes it as one text message.
func (c *Connection) WriteJSONWithTimeout(v any, timeout time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.WriteWithTimeout(TextMessage, data, timeout)
}

// WriteWithTimeout writes one message, failing if it takes longer than timeout.
func (c *Connection) WriteWithTimeout(messageType MessageType, data []byte, timeout time.Duration) error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	if c.IsClosed() {
		return ErrConnectionClosed
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return c.closedErr(err)
	}
	defer c.conn.SetWriteDeadline(time.Time{})

	if err := c.conn.WriteMessage(int(messageType), data); err != nil {
		return c.closedErr(err)
	}
	return nil
}

// closedErr maps a clean close by the peer onto ErrConnectionClosed and
// marks the connection closed.
func (c *Connection) closedErr(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
		errors.Is(err, websocket.ErrCloseSent) {
		_ = c.Close()
		return ErrConnectionClosed
	}
	return err
}

// Close closes the connection. Closing twice is a no-op.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.conn.Close()
}

// IsClosed returns whether Close was called.
func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}

// SetReadLimit sets the maximum size of an inbound message.
func (c *Connection) SetReadLimit(limit int64) {
	c.conn.SetReadLimit(limit)
}
