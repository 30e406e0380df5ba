// Package wire implements the length-prefixed JSON-RPC 2.0 framing used to
// talk to worker processes that predate the in-process call path: a 4-byte
// big-endian length header followed by a JSON payload.
package wire

import (
	"encoding/json"

	"github.com/google/uuid"
)

// ErrorCode is the JSON-RPC 2.0 error-code taxonomy, extended with the
// server-defined range (-32000..-32099) for resilience-layer failures.
type ErrorCode int

const (
	ParseError     ErrorCode = -32700
	InvalidRequest ErrorCode = -32600
	MethodNotFound ErrorCode = -32601
	InvalidParams  ErrorCode = -32602
	InternalError  ErrorCode = -32603

	ServiceUnavailable ErrorCode = -32000
	Timeout            ErrorCode = -32001
	CircuitOpen        ErrorCode = -32002
)

// Request is one JSON-RPC 2.0 request.
type Request struct {
	Params  map[string]interface{} `json:"params"`
	Method  string                 `json:"method"`
	ID      string                 `json:"id"`
	JSONRPC string                 `json:"jsonrpc"`
}

// NewRequest builds a request with a fresh id and jsonrpc "2.0".
func NewRequest(method string, params map[string]interface{}) *Request {
	if params == nil {
		params = map[string]interface{}{}
	}
	return &Request{
		Method:  method,
		Params:  params,
		ID:      uuid.NewString(),
		JSONRPC: "2.0",
	}
}

func (r *Request) MarshalBytes() ([]byte, error) { return json.Marshal(r) }

func UnmarshalRequest(data []byte) (*Request, error) {
	var r Request
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	if r.JSONRPC == "" {
		r.JSONRPC = "2.0"
	}
	if r.Params == nil {
		r.Params = map[string]interface{}{}
	}
	return &r, nil
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
	Code    ErrorCode   `json:"code"`
}

// Response is one JSON-RPC 2.0 response: exactly one of Result/Error is set.
type Response struct {
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      string      `json:"id"`
	JSONRPC string      `json:"jsonrpc"`
}

func SuccessResponse(id string, result interface{}) *Response {
	return &Response{ID: id, Result: result, JSONRPC: "2.0"}
}

func ErrorResponse(id string, code ErrorCode, message string, data interface{}) *Response {
	return &Response{ID: id, JSONRPC: "2.0", Error: &Error{Code: code, Message: message, Data: data}}
}

func (r *Response) MarshalBytes() ([]byte, error) { return json.Marshal(r) }

func UnmarshalResponse(data []byte) (*Response, error) {
	var r Response
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	if r.JSONRPC == "" {
		r.JSONRPC = "2.0"
	}
	return &r, nil
}
