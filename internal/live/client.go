package live

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"norelock.dev/osmcremote/internal/utils"
)

// Client is one connected remote page.
type Client struct {
	// ID is a unique identifier for the page.
	ID string

	// RemoteAddr is the page's address as seen by the server.
	RemoteAddr string

	server *Server
	conn   *websocket.Conn

	// send is a channel of outbound messages.
	send chan []byte

	// mutex protects closed.
	mutex sync.RWMutex

	// closed indicates whether send has been closed.
	closed bool

	connectedAt time.Time
	logger      *utils.Logger
}

func newClient(id, remoteAddr string, server *Server, conn *websocket.Conn) *Client {
	return &Client{
		ID:          id,
		RemoteAddr:  remoteAddr,
		server:      server,
		conn:        conn,
		send:        make(chan []byte, 64),
		connectedAt: time.Now(),
		logger:      server.logger.Named("client").With("clientID", id),
	}
}

// safelySendMessage queues a message unless the client is closed or its
// queue is full.
func (c *Client) safelySendMessage(message []byte) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- message:
		c.server.recorder.ObserveWSMessage(directionOut, "notification")
		return true
	default:
		c.logger.Warn("Client send channel is full, message dropped")
		return false
	}
}

// markAsClosed closes the send channel, which stops the write pump.
func (c *Client) markAsClosed() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump pumps messages from the page to the RPC server.
func (c *Client) readPump() {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = withClientID(ctx, c.ID)

	defer func() {
		cancel()
		c.server.hub.Unregister(c)
		c.server.ctrl.Leave(c.ID)
		c.conn.Close()
		c.server.recorder.DecWSConnectionsActive()
		c.server.recorder.ObserveWSConnection(time.Since(c.connectedAt))
		c.logger.Info("Remote page disconnected")
	}()

	cfg := c.server.cfg
	c.conn.SetReadLimit(cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				c.logger.Debug("Unexpected close", "error", err.Error())
			}
			return
		}

		c.handleMessage(ctx, bytes.TrimSpace(message))
	}
}

// writePump pumps queued messages to the page and keeps it alive with pings.
func (c *Client) writePump() {
	cfg := c.server.cfg
	ticker := time.NewTicker(cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("Failed to write message", "error", err.Error())
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("Failed to write ping", "error", err.Error())
				return
			}
		}
	}
}

// handleMessage runs one JSON-RPC frame and queues the response, if any.
func (c *Client) handleMessage(ctx context.Context, message []byte) {
	c.server.recorder.ObserveWSMessage(directionIn, "request")

	response := c.server.rpc.HandleMessage(ctx, message)
	if response == nil {
		return
	}

	data, err := json.Marshal(response)
	if err != nil {
		c.logger.Error("Failed to marshal response", err)
		return
	}
	c.safelySendMessage(data)
}

type clientIDKey struct{}

func withClientID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, clientIDKey{}, id)
}

// ClientID returns the id of the page a request came from.
func ClientID(ctx context.Context) string {
	id, _ := ctx.Value(clientIDKey{}).(string)
	return id
}
