package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// echoServer echoes text messages and closes normally on "bye".
func echoServer(t *testing.T) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(data) == `"bye"` {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestConnectionRoundTrip(t *testing.T) {
	conn, err := Dial(context.Background(), echoServer(t), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSONWithTimeout(map[string]int{"id": 1}, time.Second); err != nil {
		t.Fatalf("write: %v", err)
	}

	mt, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if mt != TextMessage || string(data) != `{"id":1}` {
		t.Errorf("got %d %s", mt, data)
	}
}

func TestConnectionPeerClose(t *testing.T) {
	conn, err := Dial(context.Background(), echoServer(t), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	if err := conn.WriteJSONWithTimeout("bye", time.Second); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := conn.ReadMessage(); !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("read error = %v, want ErrConnectionClosed", err)
	}
	if !conn.IsClosed() {
		t.Error("connection not marked closed")
	}
	if err := conn.WriteJSONWithTimeout("again", time.Second); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("write after close = %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

func TestDialFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := Dial(ctx, "ws://127.0.0.1:1/jsonrpc", nil); err == nil {
		t.Fatal("expected a dial error")
	}
}
