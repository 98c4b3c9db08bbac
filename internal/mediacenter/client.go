package mediacenter

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"norelock.dev/osmcremote/internal/config"
	"norelock.dev/osmcremote/internal/utils"
)

// Client picks the transport for each call according to the configured
// mode. In auto mode the WebSocket is preferred and a call goes over HTTP
// only when the socket cannot be (re)opened.
type Client struct {
	mode     string
	ws       *WebSocketTransport
	http     *HTTPTransport
	logger   *utils.Logger
	recorder Recorder
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *utils.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRecorder sets the recorder that observes calls and connections.
func WithRecorder(recorder Recorder) Option {
	return func(c *Client) {
		c.recorder = recorder
	}
}

// NewClient creates a client for the media center described by cfg.
func NewClient(cfg config.MediaCenter, handlers Handlers, opts ...Option) *Client {
	c := &Client{
		mode:     cfg.Transport,
		logger:   utils.GetLogger(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("mediacenter")

	if c.mode == "" {
		c.mode = config.TransportAuto
	}
	if c.mode != config.TransportHTTP {
		c.ws = NewWebSocketTransport(cfg.WebSocketURL(), cfg.DialTimeout, handlers, c.logger, c.recorder)
	}
	if c.mode != config.TransportWebSocket {
		c.http = NewHTTPTransport(cfg.HTTPURL(), cfg.HTTPTimeout, cfg.Username, cfg.Password)
	}

	return c
}

// Mode returns the transport mode.
func (c *Client) Mode() string {
	return c.mode
}

// Connected reports whether the WebSocket is open. Always false in HTTP mode.
func (c *Client) Connected() bool {
	return c.ws != nil && c.ws.Connected()
}

// Endpoints returns the addresses the client talks to, keyed by transport.
func (c *Client) Endpoints() map[string]string {
	endpoints := make(map[string]string, 2)
	if c.ws != nil {
		endpoints[NameWebSocket] = c.ws.URL()
	}
	if c.http != nil {
		endpoints[NameHTTP] = c.http.URL()
	}
	return endpoints
}

// Connect opens the WebSocket and calls onReady once calls can be made.
// In HTTP mode onReady runs immediately. In auto mode onReady also runs
// when the socket could not be opened, since HTTP can still serve calls;
// the dial error is returned either way.
func (c *Client) Connect(ctx context.Context, onReady func()) error {
	if c.ws == nil {
		onReady()
		return nil
	}

	err := c.ws.Connect(ctx)
	if err != nil {
		c.recorder.ObserveConnection(NameWebSocket, false)
		if c.http != nil {
			c.logger.Warn("WebSocket unavailable, using HTTP", "error", err.Error())
			onReady()
		}
		return err
	}

	onReady()
	return nil
}

// Call sends one JSON-RPC call and returns its result or its error.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	start := time.Now()
	transport, result, err := c.call(ctx, method, params)
	c.recorder.ObserveCall(transport, method, err, time.Since(start))

	if err != nil {
		c.logger.Debug("Call failed", "method", method, "transport", transport, "error", err.Error())
	}
	return result, err
}

func (c *Client) call(ctx context.Context, method string, params any) (string, json.RawMessage, error) {
	if c.ws == nil {
		result, err := c.http.Call(ctx, method, params)
		return NameHTTP, result, err
	}

	result, err := c.ws.Call(ctx, method, params)
	if err == nil || c.http == nil || !errors.Is(err, ErrDialFailed) {
		return NameWebSocket, result, err
	}

	result, err = c.http.Call(ctx, method, params)
	return NameHTTP, result, err
}

// Close closes every transport.
func (c *Client) Close() error {
	var errs []error
	if c.ws != nil {
		errs = append(errs, c.ws.Close())
	}
	if c.http != nil {
		errs = append(errs, c.http.Close())
	}
	return errors.Join(errs...)
}
