package mediacenter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"norelock.dev/osmcremote/internal/utils"
	"norelock.dev/osmcremote/pkg/jsonrpc"
	"norelock.dev/osmcremote/pkg/websocket"
)

const (
	// Time allowed to write a frame to the media center.
	writeWait = 10 * time.Second

	// Largest frame accepted from the media center. Library listings can be big.
	maxFrameSize = 4 << 20
)

type callResult struct {
	result json.RawMessage
	err    error
}

// WebSocketTransport keeps one socket to the media center. Every inbound
// frame goes through a single dispatcher: frames carrying an id complete
// the pending call with that id, all others are notifications.
type WebSocketTransport struct {
	url         string
	dialTimeout time.Duration
	handlers    Handlers
	logger      *utils.Logger
	recorder    Recorder

	// dialMu serialises reconnects so concurrent calls share one dial.
	dialMu sync.Mutex

	mu      sync.Mutex
	conn    *websocket.Connection
	pending map[int64]chan callResult
	closed  bool

	nextID atomic.Int64
}

// NewWebSocketTransport creates a transport for url. Nothing is dialled
// until Connect or the first Call.
func NewWebSocketTransport(url string, dialTimeout time.Duration, handlers Handlers, logger *utils.Logger, recorder Recorder) *WebSocketTransport {
	if logger == nil {
		logger = utils.GetLogger()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if dialTimeout <= 0 {
		dialTimeout = websocket.DefaultHandshakeTimeout
	}
	return &WebSocketTransport{
		url:         url,
		dialTimeout: dialTimeout,
		handlers:    handlers,
		logger:      logger,
		recorder:    recorder,
		pending:     make(map[int64]chan callResult),
	}
}

// URL returns the socket address.
func (t *WebSocketTransport) URL() string {
	return t.url
}

// Connected reports whether the socket is open.
func (t *WebSocketTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// Connect opens the socket unless it is already open.
func (t *WebSocketTransport) Connect(ctx context.Context) error {
	_, _, err := t.ensureConn(ctx)
	return err
}

// Call sends a request and waits for the response with the same id. A
// dropped socket is re-established first. There is no timeout besides ctx.
func (t *WebSocketTransport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	conn, dialed, err := t.ensureConn(ctx)
	if err != nil {
		return nil, err
	}
	if dialed {
		t.handlers.up()
	}

	id := t.nextID.Add(1)
	req, err := jsonrpc.NewRequest(method, params, id)
	if err != nil {
		return nil, err
	}

	ch := make(chan callResult, 1)
	t.mu.Lock()
	if t.conn != conn {
		t.mu.Unlock()
		return nil, ErrConnectionLost
	}
	t.pending[id] = ch
	t.mu.Unlock()

	if err := conn.WriteJSONWithTimeout(req, writeWait); err != nil {
		t.forget(id)
		t.drop(conn, err)
		return nil, fmt.Errorf("%w: send %s: %v", ErrConnectionLost, method, err)
	}

	select {
	case res := <-ch:
		return res.result, res.err
	case <-ctx.Done():
		t.forget(id)
		return nil, ctx.Err()
	}
}

// Close closes the socket and fails pending calls. No OnDown is reported.
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn := t.conn
	t.mu.Unlock()

	if conn != nil {
		t.drop(conn, ErrClosed)
	}
	return nil
}

// ensureConn returns the open socket, dialling when there is none. dialed
// reports whether this call opened it.
func (t *WebSocketTransport) ensureConn(ctx context.Context) (conn *websocket.Connection, dialed bool, err error) {
	if conn, err := t.current(); conn != nil || err != nil {
		return conn, false, err
	}

	t.dialMu.Lock()
	defer t.dialMu.Unlock()

	// Someone else may have reconnected while we waited.
	if conn, err := t.current(); conn != nil || err != nil {
		return conn, false, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, t.dialTimeout)
	defer cancel()

	conn, err = websocket.Dial(dialCtx, t.url, nil)
	if err != nil {
		t.logger.Debug("Media center socket dial failed", "url", t.url, "error", err.Error())
		return nil, false, fmt.Errorf("%w: %v", ErrDialFailed, err)
	}
	conn.SetReadLimit(maxFrameSize)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = conn.Close()
		return nil, false, ErrClosed
	}
	t.conn = conn
	t.mu.Unlock()

	go t.readLoop(conn)

	t.recorder.ObserveConnection(NameWebSocket, true)
	t.logger.Info("Connected to media center", "url", t.url)
	return conn, true, nil
}

func (t *WebSocketTransport) current() (*websocket.Connection, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}
	return t.conn, nil
}

// readLoop is the only reader of conn.
func (t *WebSocketTransport) readLoop(conn *websocket.Connection) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.drop(conn, err)
			return
		}
		t.dispatch(data)
	}
}

func (t *WebSocketTransport) dispatch(data []byte) {
	msg, err := jsonrpc.ParseMessage(data)
	if err != nil {
		t.logger.Debug("Ignoring malformed frame", "error", err.Error())
		return
	}

	if msg.IsResponse() {
		id, ok := msg.IntID()
		if !ok {
			t.logger.Debug("Ignoring response with non-numeric id", "id", string(msg.ID))
			return
		}

		t.mu.Lock()
		ch, found := t.pending[id]
		delete(t.pending, id)
		t.mu.Unlock()

		if !found {
			t.logger.Debug("Ignoring response for unknown call", "id", id)
			return
		}

		if msg.Error != nil {
			ch <- callResult{err: msg.Error}
		} else {
			ch <- callResult{result: msg.Result}
		}
		return
	}

	n := Notification{Method: msg.Method}
	if params, err := msg.DecodeParams(); err == nil {
		n.Sender = params.Sender
		n.Data = params.Data
	}

	t.recorder.ObserveNotification(n.Method)
	t.handlers.notify(n)
}

// drop forgets conn if it is still current, fails its pending calls and
// reports the loss unless the transport is closing.
func (t *WebSocketTransport) drop(conn *websocket.Connection, cause error) {
	t.mu.Lock()
	if t.conn != conn {
		t.mu.Unlock()
		return
	}
	t.conn = nil
	pending := t.pending
	t.pending = make(map[int64]chan callResult)
	closing := t.closed
	t.mu.Unlock()

	_ = conn.Close()
	for _, ch := range pending {
		ch <- callResult{err: ErrConnectionLost}
	}

	if closing {
		return
	}

	t.recorder.ObserveConnection(NameWebSocket, false)
	t.logger.Warn("Media center socket closed", "url", t.url, "error", cause.Error())
	t.handlers.down(fmt.Errorf("%w: %v", ErrConnectionLost, cause))
}

func (t *WebSocketTransport) forget(id int64) {
	t.mu.Lock()
	delete(t.pending, id)
	t.mu.Unlock()
}
