package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name         string
		data         string
		response     bool
		notification bool
		id           int64
		wantErr      error
	}{
		{
			name:     "response without version",
			data:     `{"id":1,"result":[{"playerid":1}]}`,
			response: true,
			id:       1,
		},
		{
			name:     "response with string id",
			data:     `{"jsonrpc":"2.0","id":"7","result":"OK"}`,
			response: true,
			id:       7,
		},
		{
			name:         "notification",
			data:         `{"jsonrpc":"2.0","method":"Player.OnStop","params":{"data":{}}}`,
			notification: true,
		},
		{
			name:         "null id is a notification",
			data:         `{"id":null,"method":"Player.OnPlay","params":{}}`,
			notification: true,
		},
		{
			name:    "wrong version",
			data:    `{"jsonrpc":"1.0","id":1,"result":0}`,
			wantErr: ErrInvalidVersion,
		},
		{
			name:    "neither",
			data:    `{"jsonrpc":"2.0"}`,
			wantErr: ErrUnknownMessage,
		},
		{
			name:    "garbage",
			data:    `{`,
			wantErr: ErrInvalidJSON,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseMessage([]byte(tt.data))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if msg.IsResponse() != tt.response {
				t.Errorf("IsResponse = %v, want %v", msg.IsResponse(), tt.response)
			}
			if msg.IsNotification() != tt.notification {
				t.Errorf("IsNotification = %v, want %v", msg.IsNotification(), tt.notification)
			}
			if tt.response {
				id, ok := msg.IntID()
				if !ok || id != tt.id {
					t.Errorf("IntID = %d/%v, want %d", id, ok, tt.id)
				}
			}
		})
	}
}

func TestDecodeParams(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"method":"Application.OnVolumeChanged","params":{"sender":"xbmc","data":{"volume":42,"muted":false}}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	params, err := msg.DecodeParams()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if params.Sender != "xbmc" {
		t.Errorf("sender = %q", params.Sender)
	}
	var data struct {
		Volume int `json:"volume"`
	}
	if err := json.Unmarshal(params.Data, &data); err != nil {
		t.Fatalf("data: %v", err)
	}
	if data.Volume != 42 {
		t.Errorf("volume = %d, want 42", data.Volume)
	}
}

func TestUnmarshalParams(t *testing.T) {
	var v struct {
		Kind string `json:"kind"`
	}
	if err := UnmarshalParams(json.RawMessage(`{"kind":"sync"}`), &v); err != nil || v.Kind != "sync" {
		t.Fatalf("UnmarshalParams = %v, kind %q", err, v.Kind)
	}
	if err := UnmarshalParams(nil, &v); err != nil {
		t.Errorf("missing params: %v", err)
	}

	err := UnmarshalParams(json.RawMessage(`[1,2]`), &v)
	var rpcErr *Error
	if !errors.As(err, &rpcErr) || rpcErr.Code != ErrInvalidParams {
		t.Fatalf("expected invalid params error, got %v", err)
	}
}

func newTestServer() *Server {
	s := NewServer()
	s.RegisterMethod("Application.GetProperties", func(ctx context.Context, params json.RawMessage) (any, error) {
		return map[string]any{"volume": 55}, nil
	})
	s.RegisterMethod("Player.Broken", func(ctx context.Context, params json.RawMessage) (any, error) {
		return nil, &Error{Code: ErrInvalidParams, Message: "bad player"}
	})
	s.RegisterMethod("Player.Slow", func(ctx context.Context, params json.RawMessage) (any, error) {
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
		}
		return "late", nil
	})
	return s
}

func TestClientCall(t *testing.T) {
	var gotContentType string
	rpc := newTestServer()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		rpc.ServeHTTP(w, r)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	var result struct {
		Volume int `json:"volume"`
	}
	err := client.Call(context.Background(), "Application.GetProperties", map[string]any{"properties": []string{"volume"}}, &result)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if result.Volume != 55 {
		t.Errorf("volume = %d, want 55", result.Volume)
	}
	if gotContentType != ContentType {
		t.Errorf("content type = %q, want %q", gotContentType, ContentType)
	}
}

func TestClientCallErrors(t *testing.T) {
	srv := httptest.NewServer(newTestServer())
	defer srv.Close()

	client := NewClient(srv.URL)

	_, err := client.CallRaw(context.Background(), "Player.Broken", nil)
	var rpcErr *Error
	if !errors.As(err, &rpcErr) || rpcErr.Code != ErrInvalidParams {
		t.Fatalf("expected invalid params error, got %v", err)
	}

	_, err = client.CallRaw(context.Background(), "Nope.Nothing", nil)
	if !errors.As(err, &rpcErr) || rpcErr.Code != ErrMethodNotFound {
		t.Fatalf("expected method not found, got %v", err)
	}
}

func TestClientTimeout(t *testing.T) {
	srv := httptest.NewServer(newTestServer())
	defer srv.Close()

	client := NewClient(srv.URL, WithTimeout(50*time.Millisecond))
	_, err := client.CallRaw(context.Background(), "Player.Slow", nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestClientBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "osmc" || pass != "osmc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		newTestServer().ServeHTTP(w, r)
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL).CallRaw(context.Background(), "Application.GetProperties", nil); err == nil {
		t.Fatal("expected unauthorized error without credentials")
	}
	if _, err := NewClient(srv.URL, WithBasicAuth("osmc", "osmc")).CallRaw(context.Background(), "Application.GetProperties", nil); err != nil {
		t.Fatalf("call with credentials: %v", err)
	}
}

func TestClientEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).CallRaw(context.Background(), "Input.Up", nil)
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestClientClosed(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	_ = client.Close()
	if _, err := client.CallRaw(context.Background(), "Input.Up", nil); !errors.Is(err, ErrClientClosed) {
		t.Fatalf("expected ErrClientClosed, got %v", err)
	}
}

func TestServerHandleMessage(t *testing.T) {
	s := newTestServer()

	if res := s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"Application.GetProperties"}`)); res != nil {
		t.Fatalf("notification produced a response: %+v", res)
	}

	res := s.HandleMessage(context.Background(), []byte(`not json`))
	if res == nil || res.Error == nil || res.Error.Code != ErrParseError {
		t.Fatalf("expected parse error, got %+v", res)
	}

	res = s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":3}`))
	if res == nil || res.Error == nil || res.Error.Code != ErrInvalidRequest {
		t.Fatalf("expected invalid request, got %+v", res)
	}
}
