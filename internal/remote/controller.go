// Package remote holds the remote control state and the event loop that
// turns page gestures into media center calls and media center reports
// into views.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"norelock.dev/osmcremote/internal/config"
	"norelock.dev/osmcremote/internal/mediacenter"
	"norelock.dev/osmcremote/internal/utils"
	"norelock.dev/osmcremote/pkg/jsonrpc"
)

const (
	eventBuffer      = 256
	subscriberBuffer = 16
)

// ErrStopped is returned by Submit once the loop has exited.
var ErrStopped = errors.New("remote controller stopped")

// MediaCenter is the link the controller drives.
type MediaCenter interface {
	Connect(ctx context.Context, onReady func()) error
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// Metrics observes the controller.
type Metrics interface {
	IncGestures(kind string)
	IncTransportFailures()
	IncViewUpdates()
}

type nopMetrics struct{}

func (nopMetrics) IncGestures(string)    {}
func (nopMetrics) IncTransportFailures() {}
func (nopMetrics) IncViewUpdates()       {}

// Update is pushed to subscribers when the view changes or a page has a
// browser action to run.
type Update struct {
	View   *View   `json:"view,omitempty"`
	Action *Action `json:"action,omitempty"`

	// Target is the page an action is for. Empty means every page.
	Target string `json:"-"`
}

// Snapshot is the state and view after the last processed event.
type Snapshot struct {
	State State `json:"state"`
	View  View  `json:"view"`
}

type (
	gestureEvent      struct{ gesture Gesture }
	notificationEvent struct{ notification mediacenter.Notification }
	leaveEvent        struct{ origin string }
	readyEvent        struct{}
	upEvent           struct{}
	downEvent         struct{ err error }
	resultEvent       struct {
		cmd    Command
		result json.RawMessage
		err    error
	}
)

// Controller owns the remote state. Every change happens on the Run
// goroutine, one event at a time; calls run elsewhere and come back as
// events.
type Controller struct {
	cfg       config.Remote
	threshold int
	reflect   reflector
	logger    *utils.Logger
	metrics   Metrics

	mc     MediaCenter
	events chan any
	done   chan struct{}

	// Owned by the loop.
	state State
	view  View

	// fullscreen holds one machine per page, keyed by origin.
	fullscreen map[string]*Fullscreen

	snapshot atomic.Pointer[Snapshot]

	mutex       sync.RWMutex
	subscribers map[chan Update]struct{}
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(logger *utils.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(metrics Metrics) Option {
	return func(c *Controller) {
		c.metrics = metrics
	}
}

// NewController creates a controller. Call Run to start it.
func NewController(cfg *config.Config, opts ...Option) *Controller {
	c := &Controller{
		cfg:       cfg.Remote,
		threshold: max(cfg.MediaCenter.FailureThreshold, 1),
		reflect: reflector{
			titleMax:     cfg.Remote.TitleMaxLength,
			defaultTitle: cfg.Remote.DefaultTitle,
			minVolume:    cfg.Remote.VolumeMin,
			maxVolume:    cfg.Remote.VolumeMax,
		},
		logger:      utils.GetLogger(),
		metrics:     nopMetrics{},
		events:      make(chan any, eventBuffer),
		done:        make(chan struct{}),
		state:       NewState(cfg.Remote.DefaultTitle),
		fullscreen:  make(map[string]*Fullscreen),
		subscribers: make(map[chan Update]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("remote")

	c.view = Render(c.state)
	c.snapshot.Store(&Snapshot{State: c.state, View: c.view})
	return c
}

// Handlers returns the media center callbacks that feed the loop.
func (c *Controller) Handlers() mediacenter.Handlers {
	return mediacenter.Handlers{
		OnNotification: func(n mediacenter.Notification) { c.post(notificationEvent{notification: n}) },
		OnUp:           func() { c.post(upEvent{}) },
		OnDown:         func(err error) { c.post(downEvent{err: err}) },
	}
}

// Run connects to the media center and processes events until ctx is
// done. It must be called once.
func (c *Controller) Run(ctx context.Context, mc MediaCenter) error {
	c.mc = mc
	defer close(c.done)

	c.logger.Info("Remote controller started")
	go c.connect(ctx)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Remote controller stopped")
			return nil

		case ev := <-c.events:
			c.handle(ctx, ev)
			c.render()
		}
	}
}

// Submit validates a gesture and queues it. It does not wait for the
// media center.
func (c *Controller) Submit(ctx context.Context, g Gesture) error {
	if err := g.Validate(); err != nil {
		return err
	}

	select {
	case c.events <- gestureEvent{gesture: g}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	}
}

// Leave forgets what the controller keeps for a page that went away.
func (c *Controller) Leave(origin string) {
	c.post(leaveEvent{origin: origin})
}

// Snapshot returns the state and view after the last processed event.
func (c *Controller) Snapshot() Snapshot {
	return *c.snapshot.Load()
}

// View returns the current view.
func (c *Controller) View() View {
	return c.snapshot.Load().View
}

// Subscribe returns a channel of updates and a function that cancels the
// subscription and closes the channel. A subscriber that falls behind
// loses its oldest updates.
func (c *Controller) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, subscriberBuffer)

	c.mutex.Lock()
	c.subscribers[ch] = struct{}{}
	c.mutex.Unlock()

	return ch, func() {
		c.mutex.Lock()
		defer c.mutex.Unlock()
		if _, ok := c.subscribers[ch]; ok {
			delete(c.subscribers, ch)
			close(ch)
		}
	}
}

func (c *Controller) post(ev any) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Controller) connect(ctx context.Context) {
	err := c.mc.Connect(ctx, func() { c.post(readyEvent{}) })
	if err != nil && ctx.Err() == nil {
		c.post(downEvent{err: err})
	}
}

func (c *Controller) handle(ctx context.Context, ev any) {
	switch ev := ev.(type) {
	case gestureEvent:
		c.handleGesture(ctx, ev.gesture)

	case resultEvent:
		c.handleResult(ctx, ev)

	case notificationEvent:
		c.dispatch(ctx, c.reflect.Notification(&c.state, ev.notification)...)

	case leaveEvent:
		delete(c.fullscreen, ev.origin)

	case readyEvent, upEvent:
		c.reachable()
		if c.cfg.SyncOnConnect {
			c.dispatch(ctx, syncCommands()...)
		}

	case downEvent:
		c.unreachable(ev.err)
	}
}

func (c *Controller) handleGesture(ctx context.Context, g Gesture) {
	c.metrics.IncGestures(string(g.Kind))

	switch g.Kind {
	case KindFullscreenProbe:
		driver := Probe(g.Vendors)
		c.fullscreen[g.Origin] = NewFullscreen(driver, c.cfg.ExitFullscreenOnBlur)
		if driver == nil {
			c.logger.Debug("Page has no fullscreen API", "origin", g.Origin)
		}
	case KindFullscreenToggle:
		c.act(g.Origin)(c.page(g.Origin).Toggle())
	case KindFullscreenExit:
		c.act(g.Origin)(c.page(g.Origin).Exit())
	case KindWindowBlur:
		c.act(g.Origin)(c.page(g.Origin).Blur())
	case KindFullscreenChange:
		c.page(g.Origin).Changed(*g.Active)
	case KindErrorDismiss:
		c.state.Overlay.Dismiss()
	}

	if g.Local() {
		return
	}

	cmds := g.Commands(c.state, c.cfg.VolumeStep, c.cfg.VolumeMin, c.cfg.VolumeMax)
	for _, cmd := range cmds {
		if p, ok := cmd.Params.(mediacenter.VolumeParams); ok {
			c.state.Volume = p.Volume
		}
	}
	c.dispatch(ctx, cmds...)
}

// page returns the fullscreen machine of origin. An unknown page gets a
// machine without a driver, which produces no actions.
func (c *Controller) page(origin string) *Fullscreen {
	if f, ok := c.fullscreen[origin]; ok {
		return f
	}
	return NewFullscreen(nil, c.cfg.ExitFullscreenOnBlur)
}

// act returns a function that sends a browser action to the page that
// asked for it.
func (c *Controller) act(target string) func(Action, bool) {
	return func(action Action, ok bool) {
		if ok {
			c.publish(Update{Action: &action, Target: target})
		}
	}
}

func (c *Controller) handleResult(ctx context.Context, ev resultEvent) {
	var rpcErr *jsonrpc.Error

	switch {
	case ev.err == nil:
		c.reachable()
		c.dispatch(ctx, c.reflect.Response(&c.state, ev.cmd, ev.result)...)
		if ev.cmd.SyncAfter {
			c.dispatch(ctx, syncCommands()...)
		}

	case errors.As(ev.err, &rpcErr):
		// The media center answered, so it is reachable.
		c.logger.Warn("Call rejected", "method", ev.cmd.Method, "code", rpcErr.Code, "message", rpcErr.Message)
		c.reachable()

	case errors.Is(ev.err, jsonrpc.ErrEmptyResponse):
		c.logger.Warn("Call answered without a body", "method", ev.cmd.Method)
		c.reachable()

	case errors.Is(ev.err, mediacenter.ErrConnectionLost):
		// Counted once through the down event.
		c.logger.Debug("Call lost with the connection", "method", ev.cmd.Method)

	case errors.Is(ev.err, mediacenter.ErrClosed), errors.Is(ev.err, jsonrpc.ErrCanceled), ctx.Err() != nil:
		// Shutting down.

	default:
		c.unreachable(ev.err)
	}
}

func (c *Controller) reachable() {
	c.state.Connected = true
	c.state.FailureCount = 0
	c.state.Overlay.Dismiss()
}

func (c *Controller) unreachable(err error) {
	c.state.Connected = false
	c.state.FailureCount++
	c.metrics.IncTransportFailures()

	c.logger.Warn("Media center unreachable", "failures", c.state.FailureCount, "error", err.Error())
	if c.state.FailureCount >= c.threshold {
		c.state.Overlay.Show(c.cfg.ErrorMessage)
	}
}

// dispatch makes each call on its own goroutine and posts the outcome
// back to the loop.
func (c *Controller) dispatch(ctx context.Context, cmds ...Command) {
	for _, cmd := range cmds {
		go func() {
			result, err := c.mc.Call(ctx, cmd.Method, cmd.Params)
			c.post(resultEvent{cmd: cmd, result: result, err: err})
		}()
	}
}

func (c *Controller) render() {
	view := Render(c.state)
	c.snapshot.Store(&Snapshot{State: c.state, View: view})
	if view == c.view {
		return
	}

	c.view = view
	c.metrics.IncViewUpdates()
	c.publish(Update{View: &view})
}

func (c *Controller) publish(u Update) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	for ch := range c.subscribers {
		select {
		case ch <- u:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- u:
			default:
			}
		}
	}
}
