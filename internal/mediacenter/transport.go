// Package mediacenter talks JSON-RPC 2.0 to a Kodi/OSMC media center over
// its WebSocket, falling back to HTTP POST.
package mediacenter

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Transport errors
var (
	ErrClosed         = errors.New("media center client closed")
	ErrConnectionLost = errors.New("connection to media center lost")
	ErrDialFailed     = errors.New("could not open media center socket")
)

// Transport names reported to metrics and logs.
const (
	NameWebSocket = "websocket"
	NameHTTP      = "http"
)

// Transport sends a single JSON-RPC call and waits for its outcome. An
// outcome is either a result or an error, never both.
type Transport interface {
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
	Close() error
}

// Notification is an unsolicited message pushed by the media center.
type Notification struct {
	Method string
	Sender string
	Data   json.RawMessage
}

// Handlers receive connection events. They are called from transport
// goroutines and must not block.
type Handlers struct {
	// OnNotification receives every inbound frame without an id.
	OnNotification func(Notification)
	// OnUp is called whenever the WebSocket (re)opens.
	OnUp func()
	// OnDown is called when an open WebSocket errors or closes.
	OnDown func(error)
}

func (h Handlers) notify(n Notification) {
	if h.OnNotification != nil {
		h.OnNotification(n)
	}
}

func (h Handlers) up() {
	if h.OnUp != nil {
		h.OnUp()
	}
}

func (h Handlers) down(err error) {
	if h.OnDown != nil {
		h.OnDown(err)
	}
}

// Recorder observes transport activity. *system.MetricsService satisfies it.
type Recorder interface {
	ObserveCall(transport, method string, err error, elapsed time.Duration)
	ObserveNotification(method string)
	ObserveConnection(transport string, up bool)
}

type nopRecorder struct{}

func (nopRecorder) ObserveCall(string, string, error, time.Duration) {}
func (nopRecorder) ObserveNotification(string)                       {}
func (nopRecorder) ObserveConnection(string, bool)                   {}
