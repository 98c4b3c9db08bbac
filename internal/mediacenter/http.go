package mediacenter

import (
	"context"
	"encoding/json"
	"time"

	"norelock.dev/osmcremote/pkg/jsonrpc"
)

// HTTPTransport posts each call to the media center web server. Calls are
// bounded by the client timeout and never retried.
type HTTPTransport struct {
	client *jsonrpc.Client
}

// NewHTTPTransport creates a transport posting to endpoint. Basic auth is
// used when username is set.
func NewHTTPTransport(endpoint string, timeout time.Duration, username, password string) *HTTPTransport {
	opts := []jsonrpc.ClientOption{jsonrpc.WithTimeout(timeout)}
	if username != "" {
		opts = append(opts, jsonrpc.WithBasicAuth(username, password))
	}
	return &HTTPTransport{client: jsonrpc.NewClient(endpoint, opts...)}
}

// URL returns the endpoint.
func (t *HTTPTransport) URL() string {
	return t.client.Endpoint()
}

// Call implements Transport.
func (t *HTTPTransport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return t.client.CallRaw(ctx, method, params)
}

// Close implements Transport.
func (t *HTTPTransport) Close() error {
	return t.client.Close()
}
