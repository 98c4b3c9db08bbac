// Package jsonrpc provides JSON-RPC 2.0 functionality.
package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Version is the only protocol version spoken.
const Version = "2.0"

// JSON-RPC 2.0 error codes
const (
	// Parse error: Invalid JSON was received by the server.
	ErrParseError = -32700

	// Invalid Request: The JSON sent is not a valid Request object.
	ErrInvalidRequest = -32600

	// Method not found: The method does not exist / is not available.
	ErrMethodNotFound = -32601

	// Invalid params: Invalid method parameter(s).
	ErrInvalidParams = -32602

	// Internal error: Internal JSON-RPC error.
	ErrInternalError = -32603

	// Server error: Reserved for implementation-defined server-errors.
	ErrServerError = -32000
)

// Protocol errors
var (
	ErrInvalidJSON     = errors.New("invalid JSON")
	ErrInvalidVersion  = errors.New("invalid JSON-RPC version")
	ErrMissingMethod   = errors.New("missing method")
	ErrMissingID       = errors.New("missing ID")
	ErrInvalidResponse = errors.New("invalid response")
	ErrUnknownMessage  = errors.New("message is neither a response nor a notification")
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	// JSONRPC is the version of the JSON-RPC protocol. Must be "2.0".
	JSONRPC string `json:"jsonrpc"`

	// Method is the name of the method to be invoked.
	Method string `json:"method"`

	// Params is the parameter values to be used during the invocation of the method.
	Params json.RawMessage `json:"params,omitempty"`

	// ID is the identifier established by the client. If omitted, the request is a notification.
	ID any `json:"id,omitempty"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	// JSONRPC is the version of the JSON-RPC protocol. Must be "2.0".
	JSONRPC string `json:"jsonrpc"`

	// Result is the result of the method invocation. Must be null if there was an error.
	Result json.RawMessage `json:"result,omitempty"`

	// Error is the error object if there was an error invoking the method. Must be null if there was no error.
	Error *Error `json:"error,omitempty"`

	// ID is the identifier established by the client.
	ID any `json:"id"`
}

// Error represents a JSON-RPC 2.0 error object.
type Error struct {
	// Code is the error code.
	Code int `json:"code"`

	// Message is a short description of the error.
	Message string `json:"message"`

	// Data is additional information about the error.
	Data json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("JSON-RPC error %d: %s", e.Code, e.Message)
}

// Message is any inbound frame on a bidirectional transport. A frame that
// carries an id is a response; a frame with a method and no id is a
// notification.
type Message struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// IsResponse reports whether the message answers a request.
func (m *Message) IsResponse() bool {
	return len(m.ID) > 0 && !bytes.Equal(m.ID, []byte("null"))
}

// IsNotification reports whether the message is an unsolicited notification.
func (m *Message) IsNotification() bool {
	return !m.IsResponse() && m.Method != ""
}

// IntID returns the numeric id of a response.
func (m *Message) IntID() (int64, bool) {
	if !m.IsResponse() {
		return 0, false
	}
	raw := bytes.Trim(m.ID, `"`)
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// NotificationParams is the params object media centers attach to
// notifications.
type NotificationParams struct {
	Sender string          `json:"sender,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// DecodeParams unmarshals the message params as notification params.
func (m *Message) DecodeParams() (*NotificationParams, error) {
	var p NotificationParams
	if len(m.Params) == 0 {
		return &p, nil
	}
	if err := json.Unmarshal(m.Params, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return &p, nil
}

// ParseMessage parses an inbound frame. The version field is optional on
// inbound frames but must be "2.0" when present.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	if msg.JSONRPC != "" && msg.JSONRPC != Version {
		return nil, ErrInvalidVersion
	}

	if !msg.IsResponse() && !msg.IsNotification() {
		return nil, ErrUnknownMessage
	}

	return &msg, nil
}

// NewRequest creates a new JSON-RPC 2.0 request.
func NewRequest(method string, params any, id any) (*Request, error) {
	var paramsJSON json.RawMessage
	if params != nil {
		var err error
		paramsJSON, err = json.Marshal(params)
		if err != nil {
			return nil, err
		}
	}

	return &Request{
		JSONRPC: Version,
		Method:  method,
		Params:  paramsJSON,
		ID:      id,
	}, nil
}

// NewNotification creates a new JSON-RPC 2.0 notification (a request without an ID).
func NewNotification(method string, params any) (*Request, error) {
	return NewRequest(method, params, nil)
}

// ParseRequest parses a JSON-RPC 2.0 request from a JSON string.
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	if req.JSONRPC != Version {
		return nil, ErrInvalidVersion
	}

	if req.Method == "" {
		return nil, ErrMissingMethod
	}

	return &req, nil
}

// ParseResponse parses a JSON-RPC 2.0 response from a JSON string.
func ParseResponse(data []byte) (*Response, error) {
	var res Response
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	if res.JSONRPC != "" && res.JSONRPC != Version {
		return nil, ErrInvalidVersion
	}

	if res.Error != nil && res.Result != nil {
		return nil, ErrInvalidResponse
	}

	return &res, nil
}

// IsNotification returns true if the request is a notification (no ID).
func (r *Request) IsNotification() bool {
	return r.ID == nil
}

// UnmarshalParams unmarshals method parameters into v. Missing params
// leave v untouched; malformed ones give an invalid params error.
func UnmarshalParams(params json.RawMessage, v any) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return &Error{Code: ErrInvalidParams, Message: "Invalid parameters"}
	}
	return nil
}
