// Package jsonrpc provides JSON-RPC 2.0 functionality.
package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Handler is a function that handles a JSON-RPC request.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// Server is a JSON-RPC 2.0 server. The remote uses it to stand in for a
// media center in tests and for local tooling.
type Server struct {
	// handlers is a map of method names to handlers.
	handlers map[string]Handler

	// middleware is a list of middleware functions to apply to handlers.
	middleware []MiddlewareFunc

	// mutex is used to synchronize access to the handlers map.
	mutex sync.RWMutex
}

// MiddlewareFunc is a function that wraps a Handler.
type MiddlewareFunc func(Handler) Handler

// NewServer creates a new JSON-RPC 2.0 server.
func NewServer() *Server {
	return &Server{
		handlers: make(map[string]Handler),
	}
}

// RegisterMethod registers a method handler.
func (s *Server) RegisterMethod(method string, handler Handler) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.handlers[method] = handler
}

// Use adds middleware to the server.
func (s *Server) Use(middleware ...MiddlewareFunc) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.middleware = append(s.middleware, middleware...)
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Error reading request body", http.StatusBadRequest)
		return
	}

	res := s.HandleMessage(r.Context(), body)
	if res == nil {
		// No response for notifications
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeResponse(w, res)
}

// HandleMessage decodes one request frame and returns the response to
// send back, or nil for notifications.
func (s *Server) HandleMessage(ctx context.Context, data []byte) *Response {
	req, err := ParseRequest(data)
	if err != nil {
		code := ErrInvalidRequest
		if errors.Is(err, ErrInvalidJSON) {
			code = ErrParseError
		}
		return &Response{
			JSONRPC: Version,
			Error: &Error{
				Code:    code,
				Message: err.Error(),
			},
		}
	}

	return s.handleRequest(ctx, req)
}

// handleRequest handles a single request.
func (s *Server) handleRequest(ctx context.Context, req *Request) *Response {
	s.mutex.RLock()
	handler, ok := s.handlers[req.Method]
	middleware := s.middleware
	s.mutex.RUnlock()

	if req.IsNotification() {
		if ok {
			_, _ = wrap(handler, middleware)(ctx, req.Params)
		}
		return nil
	}

	if !ok {
		return &Response{
			JSONRPC: Version,
			ID:      req.ID,
			Error: &Error{
				Code:    ErrMethodNotFound,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}

	result, err := wrap(handler, middleware)(ctx, req.Params)
	if err != nil {
		var rpcErr *Error
		if errors.As(err, &rpcErr) {
			return &Response{
				JSONRPC: Version,
				ID:      req.ID,
				Error:   rpcErr,
			}
		}

		return &Response{
			JSONRPC: Version,
			ID:      req.ID,
			Error: &Error{
				Code:    ErrInternalError,
				Message: err.Error(),
			},
		}
	}

	var resultJSON json.RawMessage
	if result != nil {
		resultJSON, err = json.Marshal(result)
		if err != nil {
			return &Response{
				JSONRPC: Version,
				ID:      req.ID,
				Error: &Error{
					Code:    ErrInternalError,
					Message: fmt.Sprintf("Error marshaling result: %v", err),
				},
			}
		}
	}

	return &Response{
		JSONRPC: Version,
		ID:      req.ID,
		Result:  resultJSON,
	}
}

func wrap(handler Handler, middleware []MiddlewareFunc) Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		handler = middleware[i](handler)
	}
	return handler
}

// writeResponse writes a response.
func writeResponse(w http.ResponseWriter, res *Response) {
	data, err := json.Marshal(res)
	if err != nil {
		http.Error(w, "Error encoding response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
