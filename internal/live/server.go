package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"norelock.dev/osmcremote/internal/config"
	"norelock.dev/osmcremote/internal/remote"
	"norelock.dev/osmcremote/internal/utils"
	"norelock.dev/osmcremote/pkg/jsonrpc"
)

// Controller is the part of the remote controller pages talk to.
type Controller interface {
	Submit(ctx context.Context, g remote.Gesture) error
	Snapshot() remote.Snapshot
	View() remote.View
	Subscribe() (<-chan remote.Update, func())
	Leave(origin string)
}

// Recorder observes page sockets.
type Recorder interface {
	IncWSConnectionsActive()
	DecWSConnectionsActive()
	ObserveWSConnection(duration time.Duration)
	ObserveWSMessage(direction, msgType string)
}

type nopRecorder struct{}

func (nopRecorder) IncWSConnectionsActive()                 {}
func (nopRecorder) DecWSConnectionsActive()                 {}
func (nopRecorder) ObserveWSConnection(time.Duration)       {}
func (nopRecorder) ObserveWSMessage(direction, kind string) {}

// Server upgrades page connections and serves their JSON-RPC calls.
type Server struct {
	hub      *Hub
	rpc      *jsonrpc.Server
	ctrl     Controller
	cfg      config.WebSocket
	upgrader websocket.Upgrader
	recorder Recorder
	logger   *utils.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithRecorder sets the socket metrics recorder.
func WithRecorder(recorder Recorder) Option {
	return func(s *Server) {
		s.recorder = recorder
	}
}

// WithLogger sets the logger.
func WithLogger(logger *utils.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a page socket server for ctrl. Call Run to start it.
func NewServer(ctrl Controller, cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		rpc:      jsonrpc.NewServer(),
		ctrl:     ctrl,
		cfg:      cfg.WebSocket,
		recorder: nopRecorder{},
		logger:   utils.GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("live")

	origins := cfg.Server.AllowedOrigins
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || lo.Contains(origins, "*") || lo.Contains(origins, origin)
		},
	}

	s.hub = NewHub(func() ([]byte, error) {
		return notification(EventView, s.ctrl.View())
	}, s.logger)

	s.rpc.Use(recoveryMiddleware(s.logger))
	s.rpc.RegisterMethod(MethodGesture, s.handleGesture)
	s.rpc.RegisterMethod(MethodState, s.handleState)

	return s
}

// Run delivers controller updates to pages until ctx is done.
func (s *Server) Run(ctx context.Context) {
	updates, cancel := s.ctrl.Subscribe()
	defer cancel()

	go s.hub.Forward(ctx, updates)
	s.hub.Run(ctx)
	s.logger.Info("Page socket server stopped")
}

// ClientCount returns the number of connected pages.
func (s *Server) ClientCount() int {
	return s.hub.Count()
}

// HandleWebSocket upgrades a page connection.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if limit := s.cfg.MaxConnections; limit > 0 && s.hub.Count() >= limit {
		s.logger.Warn("Rejecting remote page, too many connections", "limit", limit)
		utils.RespondWithAppError(w, utils.UnavailableError("Too many remote pages connected", utils.ErrUnavailable))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Failed to upgrade connection", "error", err.Error())
		return
	}

	client := newClient(uuid.NewString(), utils.GetRequestIP(r), s, conn)
	if !s.hub.Register(client) {
		conn.Close()
		return
	}
	s.recorder.IncWSConnectionsActive()

	go client.writePump()
	go client.readPump()

	s.logger.Info("Remote page connected", "clientID", client.ID, "remoteAddr", client.RemoteAddr)
}

func (s *Server) handleGesture(ctx context.Context, params json.RawMessage) (any, error) {
	var g remote.Gesture
	if err := jsonrpc.UnmarshalParams(params, &g); err != nil {
		return nil, err
	}
	g.Origin = ClientID(ctx)

	if err := s.ctrl.Submit(ctx, g); err != nil {
		return nil, gestureError(err)
	}
	return "OK", nil
}

func (s *Server) handleState(ctx context.Context, _ json.RawMessage) (any, error) {
	return s.ctrl.Snapshot(), nil
}

// gestureError maps a Submit error onto a JSON-RPC error.
func gestureError(err error) error {
	if errors.Is(err, remote.ErrStopped) {
		return &jsonrpc.Error{Code: jsonrpc.ErrServerError, Message: err.Error()}
	}

	message, details := utils.ErrorDetails(err)
	rpcErr := &jsonrpc.Error{Code: jsonrpc.ErrInvalidParams, Message: message}
	if len(details) > 0 {
		if data, mErr := json.Marshal(details); mErr == nil {
			rpcErr.Data = data
		}
	}
	return rpcErr
}

func recoveryMiddleware(logger *utils.Logger) jsonrpc.MiddlewareFunc {
	return func(next jsonrpc.Handler) jsonrpc.Handler {
		return func(ctx context.Context, params json.RawMessage) (result any, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("Panic recovered", fmt.Errorf("panic: %v", r), "clientID", ClientID(ctx))
					err = &jsonrpc.Error{Code: jsonrpc.ErrInternalError, Message: "Internal error"}
				}
			}()
			return next(ctx, params)
		}
	}
}
