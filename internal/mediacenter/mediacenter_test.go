package mediacenter

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"

	"norelock.dev/osmcremote/internal/config"
	"norelock.dev/osmcremote/internal/utils"
	"norelock.dev/osmcremote/pkg/jsonrpc"
)

// fakeMediaCenter answers JSON-RPC on /jsonrpc over both HTTP POST and
// WebSocket, like Kodi does on its two ports.
type fakeMediaCenter struct {
	rpc      *jsonrpc.Server
	srv      *httptest.Server
	upgrader gws.Upgrader
	rejectWS atomic.Bool

	mu    sync.Mutex
	conns []*gws.Conn
}

func newFakeMediaCenter(t *testing.T) *fakeMediaCenter {
	t.Helper()

	f := &fakeMediaCenter{rpc: jsonrpc.NewServer()}
	f.rpc.RegisterMethod(MethodGetActivePlayers, func(ctx context.Context, params json.RawMessage) (any, error) {
		return []map[string]any{{"playerid": 1, "type": "video"}}, nil
	})
	f.rpc.RegisterMethod(MethodSetVolume, func(ctx context.Context, params json.RawMessage) (any, error) {
		var p VolumeParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &jsonrpc.Error{Code: jsonrpc.ErrInvalidParams, Message: err.Error()}
		}
		return p.Volume, nil
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/jsonrpc", f.serve)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(func() {
		f.dropAll()
		f.srv.Close()
	})
	return f
}

func (f *fakeMediaCenter) serve(w http.ResponseWriter, r *http.Request) {
	if !gws.IsWebSocketUpgrade(r) {
		f.rpc.ServeHTTP(w, r)
		return
	}
	if f.rejectWS.Load() {
		http.Error(w, "no sockets today", http.StatusServiceUnavailable)
		return
	}

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	f.mu.Lock()
	f.conns = append(f.conns, conn)
	f.mu.Unlock()

	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			// Each request is answered on its own goroutine so responses
			// can overtake each other.
			go func() {
				if res := f.rpc.HandleMessage(context.Background(), data); res != nil {
					f.write(conn, res)
				}
			}()
		}
	}()
}

func (f *fakeMediaCenter) write(conn *gws.Conn, v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = conn.WriteJSON(v)
}

func (f *fakeMediaCenter) broadcast(v any) {
	f.mu.Lock()
	conns := append([]*gws.Conn(nil), f.conns...)
	f.mu.Unlock()
	for _, c := range conns {
		f.write(c, v)
	}
}

func (f *fakeMediaCenter) dropAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conns {
		_ = c.Close()
	}
	f.conns = nil
}

func (f *fakeMediaCenter) config(transport string) config.MediaCenter {
	addr := f.srv.Listener.Addr().(*net.TCPAddr)
	return config.MediaCenter{
		Host:             addr.IP.String(),
		HTTPPort:         addr.Port,
		WSPort:           addr.Port,
		Path:             "/jsonrpc",
		Transport:        transport,
		HTTPTimeout:      2 * time.Second,
		DialTimeout:      time.Second,
		FailureThreshold: 3,
	}
}

type recordedCall struct {
	transport string
	method    string
	err       error
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (r *fakeRecorder) ObserveCall(transport, method string, err error, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedCall{transport, method, err})
}

func (r *fakeRecorder) ObserveNotification(string)     {}
func (r *fakeRecorder) ObserveConnection(string, bool) {}

func (r *fakeRecorder) last() recordedCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[len(r.calls)-1]
}

func newTestClient(t *testing.T, cfg config.MediaCenter, h Handlers, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithLogger(utils.NewNopLogger())}, opts...)
	c := NewClient(cfg, h, opts...)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestWebSocketCall(t *testing.T) {
	f := newFakeMediaCenter(t)
	c := newTestClient(t, f.config(config.TransportWebSocket), Handlers{})

	ready := false
	if err := c.Connect(context.Background(), func() { ready = true }); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !ready {
		t.Fatal("onReady was not called")
	}
	if !c.Connected() {
		t.Fatal("expected an open socket")
	}

	result, err := c.Call(context.Background(), MethodGetActivePlayers, nil)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	players := DecodeActivePlayers(result)
	if len(players) != 1 || players[0].PlayerID == nil || *players[0].PlayerID != 1 {
		t.Fatalf("players = %+v", players)
	}
}

func TestOverlappingCallsCorrelateByID(t *testing.T) {
	f := newFakeMediaCenter(t)
	f.rpc.RegisterMethod("Test.Delay", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			Ms  int    `json:"ms"`
			Tag string `json:"tag"`
		}
		_ = json.Unmarshal(params, &p)
		time.Sleep(time.Duration(p.Ms) * time.Millisecond)
		return p.Tag, nil
	})
	c := newTestClient(t, f.config(config.TransportWebSocket), Handlers{})

	var wg sync.WaitGroup
	results := make([]string, 2)
	errs := make([]error, 2)
	for i, p := range []map[string]any{
		{"ms": 200, "tag": "slow"},
		{"ms": 0, "tag": "fast"},
	} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			raw, err := c.Call(context.Background(), "Test.Delay", p)
			errs[i] = err
			_ = json.Unmarshal(raw, &results[i])
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if results[0] != "slow" || results[1] != "fast" {
		t.Fatalf("responses were misrouted: %v", results)
	}
}

func TestNotificationBetweenRequestAndResponse(t *testing.T) {
	f := newFakeMediaCenter(t)
	f.rpc.RegisterMethod("Test.Interleave", func(ctx context.Context, params json.RawMessage) (any, error) {
		f.broadcast(map[string]any{
			"jsonrpc": "2.0",
			"method":  OnVolumeChanged,
			"params":  map[string]any{"sender": "xbmc", "data": map[string]any{"volume": 42, "muted": false}},
		})
		return "OK", nil
	})

	notes := make(chan Notification, 4)
	c := newTestClient(t, f.config(config.TransportWebSocket), Handlers{
		OnNotification: func(n Notification) { notes <- n },
	})

	raw, err := c.Call(context.Background(), "Test.Interleave", nil)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if string(raw) != `"OK"` {
		t.Fatalf("result = %s", raw)
	}

	select {
	case n := <-notes:
		if n.Method != OnVolumeChanged || n.Sender != "xbmc" {
			t.Fatalf("notification = %+v", n)
		}
		ev := DecodeVolumeEvent(n.Data)
		if ev.Volume == nil || RoundVolume(*ev.Volume) != 42 {
			t.Fatalf("volume event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notification was swallowed")
	}
}

func TestLazyReconnect(t *testing.T) {
	f := newFakeMediaCenter(t)

	downs := make(chan error, 1)
	ups := make(chan struct{}, 1)
	c := newTestClient(t, f.config(config.TransportWebSocket), Handlers{
		OnDown: func(err error) { downs <- err },
		OnUp:   func() { ups <- struct{}{} },
	})

	if err := c.Connect(context.Background(), func() {}); err != nil {
		t.Fatalf("connect: %v", err)
	}

	f.dropAll()
	select {
	case err := <-downs:
		if !errors.Is(err, ErrConnectionLost) {
			t.Fatalf("down error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("socket loss was not reported")
	}
	if c.Connected() {
		t.Fatal("expected the socket to be marked closed")
	}

	if _, err := c.Call(context.Background(), MethodSetVolume, VolumeParams{Volume: 30}); err != nil {
		t.Fatalf("call after drop: %v", err)
	}
	select {
	case <-ups:
	default:
		t.Fatal("reconnect was not reported")
	}
}

func TestAutoFallsBackToHTTP(t *testing.T) {
	f := newFakeMediaCenter(t)
	f.rejectWS.Store(true)

	rec := &fakeRecorder{}
	c := newTestClient(t, f.config(config.TransportAuto), Handlers{}, WithRecorder(rec))

	ready := false
	err := c.Connect(context.Background(), func() { ready = true })
	if !errors.Is(err, ErrDialFailed) {
		t.Fatalf("expected dial failure, got %v", err)
	}
	if !ready {
		t.Fatal("auto mode must still become ready over HTTP")
	}

	raw, err := c.Call(context.Background(), MethodSetVolume, VolumeParams{Volume: 70})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if string(raw) != "70" {
		t.Fatalf("result = %s", raw)
	}
	if got := rec.last(); got.transport != NameHTTP || got.method != MethodSetVolume {
		t.Fatalf("recorded %+v", got)
	}

	// Once sockets are back, calls move to the WebSocket again.
	f.rejectWS.Store(false)
	if _, err := c.Call(context.Background(), MethodGetActivePlayers, nil); err != nil {
		t.Fatalf("call: %v", err)
	}
	if got := rec.last(); got.transport != NameWebSocket {
		t.Fatalf("recorded %+v", got)
	}
}

func TestWebSocketModeDoesNotFallBack(t *testing.T) {
	f := newFakeMediaCenter(t)
	f.rejectWS.Store(true)

	c := newTestClient(t, f.config(config.TransportWebSocket), Handlers{})

	ready := false
	if err := c.Connect(context.Background(), func() { ready = true }); !errors.Is(err, ErrDialFailed) {
		t.Fatalf("expected dial failure, got %v", err)
	}
	if ready {
		t.Fatal("onReady must not run without a socket")
	}
	if _, err := c.Call(context.Background(), MethodGetActivePlayers, nil); !errors.Is(err, ErrDialFailed) {
		t.Fatalf("expected dial failure, got %v", err)
	}
}

func TestHTTPTimeout(t *testing.T) {
	f := newFakeMediaCenter(t)
	f.rpc.RegisterMethod("Test.Hang", func(ctx context.Context, params json.RawMessage) (any, error) {
		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
		}
		return nil, nil
	})

	cfg := f.config(config.TransportHTTP)
	cfg.HTTPTimeout = 50 * time.Millisecond
	c := newTestClient(t, cfg, Handlers{})

	ready := false
	if err := c.Connect(context.Background(), func() { ready = true }); err != nil || !ready {
		t.Fatalf("http mode connect: ready=%v err=%v", ready, err)
	}

	_, err := c.Call(context.Background(), "Test.Hang", nil)
	if !errors.Is(err, jsonrpc.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestRPCErrorOverWebSocket(t *testing.T) {
	f := newFakeMediaCenter(t)
	c := newTestClient(t, f.config(config.TransportWebSocket), Handlers{})

	_, err := c.Call(context.Background(), "Nope.Missing", nil)
	var rpcErr *jsonrpc.Error
	if !errors.As(err, &rpcErr) || rpcErr.Code != jsonrpc.ErrMethodNotFound {
		t.Fatalf("expected method not found, got %v", err)
	}
}

func TestCloseFailsPendingCalls(t *testing.T) {
	f := newFakeMediaCenter(t)
	received := make(chan struct{})
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	f.rpc.RegisterMethod("Test.Block", func(ctx context.Context, params json.RawMessage) (any, error) {
		close(received)
		<-release
		return nil, nil
	})

	downs := make(chan error, 1)
	c := newTestClient(t, f.config(config.TransportWebSocket), Handlers{
		OnDown: func(err error) { downs <- err },
	})

	done := make(chan error, 1)
	go func() {
		_, err := c.Call(context.Background(), "Test.Block", nil)
		done <- err
	}()

	<-received
	_ = c.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrConnectionLost) {
			t.Fatalf("expected ErrConnectionLost, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending call was not failed")
	}

	select {
	case err := <-downs:
		t.Fatalf("close must not report a drop, got %v", err)
	default:
	}

	if _, err := c.Call(context.Background(), MethodGetActivePlayers, nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestDecoders(t *testing.T) {
	if players := DecodeActivePlayers(json.RawMessage(`[]`)); len(players) != 0 {
		t.Errorf("empty array gave %v", players)
	}
	if players := DecodeActivePlayers(json.RawMessage(`{"oops":true}`)); players != nil {
		t.Errorf("object gave %v", players)
	}

	ev := DecodePlayerEvent(json.RawMessage(`{"item":{"title":"Big Buck Bunny","type":"movie"},"player":{"playerid":1,"speed":1}}`))
	if ev.Item.DisplayTitle() != "Big Buck Bunny" || *ev.Player.PlayerID != 1 {
		t.Errorf("event = %+v", ev)
	}

	ev = DecodePlayerEvent(json.RawMessage(`{"item":{"label":"Radio One","type":"song"}}`))
	if ev.Item.DisplayTitle() != "Radio One" {
		t.Errorf("label fallback = %q", ev.Item.DisplayTitle())
	}

	ev = DecodePlayerEvent(json.RawMessage(`{}`))
	if ev.Item != nil || ev.Item.DisplayTitle() != "" {
		t.Errorf("empty event = %+v", ev)
	}

	props := DecodeProperties(json.RawMessage(`{"volume":63,"muted":false}`))
	if props.Volume == nil || RoundVolume(*props.Volume) != 63 || props.Muted == nil {
		t.Errorf("props = %+v", props)
	}
	if props := DecodeProperties(nil); props.Volume != nil {
		t.Errorf("nil props = %+v", props)
	}

	if item := DecodeItem(json.RawMessage(`{"item":{"title":"Sintel"}}`)); item.DisplayTitle() != "Sintel" {
		t.Errorf("item = %+v", item)
	}
}
