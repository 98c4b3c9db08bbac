// Package jsonrpc provides JSON-RPC 2.0 functionality.
package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"
)

// Client errors
var (
	ErrClientClosed = errors.New("client closed")
	ErrTimeout      = errors.New("request timeout")
	ErrCanceled     = errors.New("request canceled")

	// ErrEmptyResponse means the server accepted a request but sent no
	// body back.
	ErrEmptyResponse = errors.New("empty response")
)

// ContentType is sent with every request body.
const ContentType = "application/json; charset=UTF-8"

// Client is a JSON-RPC 2.0 client over HTTP POST.
type Client struct {
	// endpoint is the URL of the JSON-RPC server.
	endpoint string

	// httpClient is the HTTP client used to make requests.
	httpClient *http.Client

	// headers are set on every request.
	headers map[string]string

	// username and password enable HTTP basic auth when username is set.
	username string
	password string

	// nextID is the next request ID.
	nextID int64

	// closed indicates whether the client is closed.
	closed atomic.Bool
}

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithTimeout bounds every request, including reading the response body.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: timeout}
	}
}

// WithBasicAuth authenticates requests with HTTP basic auth.
func WithBasicAuth(username, password string) ClientOption {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// NewClient creates a new JSON-RPC 2.0 client.
func NewClient(endpoint string, options ...ClientOption) *Client {
	client := &Client{
		endpoint:   endpoint,
		httpClient: http.DefaultClient,
		headers:    make(map[string]string),
		nextID:     0,
	}

	// Set default headers
	client.headers["Content-Type"] = ContentType
	client.headers["Accept"] = "application/json"

	for _, option := range options {
		option(client)
	}

	return client
}

// Endpoint returns the URL requests are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Call makes a JSON-RPC 2.0 request and unmarshals the result into result.
func (c *Client) Call(ctx context.Context, method string, params any, result any) error {
	raw, err := c.CallRaw(ctx, method, params)
	if err != nil {
		return err
	}

	if result != nil && raw != nil {
		if err := json.Unmarshal(raw, result); err != nil {
			return err
		}
	}

	return nil
}

// CallRaw makes a JSON-RPC 2.0 request and returns the raw result.
func (c *Client) CallRaw(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	id := atomic.AddInt64(&c.nextID, 1)
	req, err := NewRequest(method, params, id)
	if err != nil {
		return nil, err
	}

	res, err := c.sendRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	if res.Error != nil {
		return nil, res.Error
	}

	return res.Result, nil
}

// Close closes the client.
func (c *Client) Close() error {
	c.closed.Store(true)
	return nil
}

// sendRequest sends a JSON-RPC 2.0 request and returns the response.
func (c *Client) sendRequest(ctx context.Context, req *Request) (*Response, error) {
	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqData))
	if err != nil {
		return nil, err
	}

	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}

	if c.username != "" {
		httpReq.SetBasicAuth(c.username, c.password)
	}

	httpRes, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classify(err)
	}
	defer httpRes.Body.Close()

	resData, err := io.ReadAll(httpRes.Body)
	if err != nil {
		return nil, classify(err)
	}

	if httpRes.StatusCode != http.StatusOK && httpRes.StatusCode != http.StatusNoContent {
		return nil, fmt.Errorf("HTTP error: %d %s", httpRes.StatusCode, http.StatusText(httpRes.StatusCode))
	}

	if len(bytes.TrimSpace(resData)) == 0 {
		return nil, ErrEmptyResponse
	}

	return ParseResponse(resData)
}

// classify maps transport errors onto the client's sentinel errors.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ErrCanceled
	}
	return err
}
