package live

import (
	"context"
	"encoding/json"
	"sync"

	"norelock.dev/osmcremote/internal/remote"
	"norelock.dev/osmcremote/internal/utils"
	"norelock.dev/osmcremote/pkg/jsonrpc"
)

// Hub maintains the set of connected pages and delivers messages to them.
type Hub struct {
	// clients maps client ids to connected pages.
	clients map[string]*Client

	// broadcast is a channel of messages for every page.
	broadcast chan []byte

	// direct is a channel of messages for a single page.
	direct chan *directMessage

	// register is a channel for registering clients.
	register chan *Client

	// unregister is a channel for unregistering clients.
	unregister chan *Client

	// greeting builds the first message a page receives.
	greeting func() ([]byte, error)

	// done is closed when Run returns.
	done chan struct{}

	// mutex guards clients for readers outside the loop.
	mutex sync.RWMutex

	logger *utils.Logger
}

type directMessage struct {
	clientID string
	message  []byte
}

// NewHub creates a new hub. greeting may be nil.
func NewHub(greeting func() ([]byte, error), logger *utils.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan []byte),
		direct:     make(chan *directMessage),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		greeting:   greeting,
		done:       make(chan struct{}),
		logger:     logger.Named("hub"),
	}
}

// Run processes hub operations until ctx is done, then disconnects every
// page.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case dm := <-h.direct:
			h.sendTo(dm.clientID, dm.message)
		}
	}
}

// Register adds a client. It reports false when the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast sends a message to every page.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	case <-h.done:
	}
}

// SendTo sends a message to one page.
func (h *Hub) SendTo(clientID string, message []byte) {
	select {
	case h.direct <- &directMessage{clientID: clientID, message: message}:
	case <-h.done:
	}
}

// Count returns the number of connected pages.
func (h *Hub) Count() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Forward pushes controller updates to pages until ctx is done or the
// subscription ends.
func (h *Hub) Forward(ctx context.Context, updates <-chan remote.Update) {
	for {
		select {
		case <-ctx.Done():
			return

		case u, ok := <-updates:
			if !ok {
				return
			}
			h.forward(u)
		}
	}
}

func (h *Hub) forward(u remote.Update) {
	if u.View != nil {
		if message, err := notification(EventView, u.View); err == nil {
			h.Broadcast(message)
		} else {
			h.logger.Error("Failed to marshal view", err)
		}
	}

	if u.Action != nil {
		message, err := notification(EventAction, u.Action)
		if err != nil {
			h.logger.Error("Failed to marshal action", err)
			return
		}
		if u.Target == "" {
			h.Broadcast(message)
		} else {
			h.SendTo(u.Target, message)
		}
	}
}

// registerClient registers a client and greets it with the current view.
func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	h.clients[client.ID] = client
	h.mutex.Unlock()

	h.logger.Debug("Client registered", "id", client.ID, "remoteAddr", client.RemoteAddr)

	if h.greeting == nil {
		return
	}
	message, err := h.greeting()
	if err != nil {
		h.logger.Error("Failed to build greeting", err, "id", client.ID)
		return
	}
	if !client.safelySendMessage(message) {
		h.unregisterClient(client)
	}
}

// unregisterClient removes a client and closes its send channel.
func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if current, ok := h.clients[client.ID]; ok && current == client {
		delete(h.clients, client.ID)
		client.markAsClosed()
		h.logger.Debug("Client unregistered", "id", client.ID)
	}
}

// broadcastMessage sends a message to every client, dropping the ones
// that cannot keep up.
func (h *Hub) broadcastMessage(message []byte) {
	h.mutex.RLock()
	var slow []*Client
	for _, client := range h.clients {
		if !client.safelySendMessage(message) {
			slow = append(slow, client)
		}
	}
	h.mutex.RUnlock()

	for _, client := range slow {
		h.unregisterClient(client)
	}
}

func (h *Hub) sendTo(clientID string, message []byte) {
	h.mutex.RLock()
	client, ok := h.clients[clientID]
	h.mutex.RUnlock()

	if !ok {
		h.logger.Debug("Dropping message for unknown client", "id", clientID)
		return
	}
	if !client.safelySendMessage(message) {
		h.unregisterClient(client)
	}
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for id, client := range h.clients {
		client.markAsClosed()
		delete(h.clients, id)
	}
}

// notification encodes a JSON-RPC notification.
func notification(method string, params any) ([]byte, error) {
	req, err := jsonrpc.NewNotification(method, params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(req)
}
