// Package mcpjsonrpc defines the JSON payloads the server puts inside MCP tool
// results and the JSON-RPC style error codes attached to failures.
package mcpjsonrpc

// Based on JSON-RPC 2.0 Specification: https://www.jsonrpc.org/specification

// Error codes. -32602 and -32603 are the standard JSON-RPC codes; the rest
// sit in the implementation-defined server error range.
const (
	CodeParseError        = -32700
	CodeInvalidRequest    = -32600
	CodeMethodNotFound    = -32601
	CodeInvalidParams     = -32602
	CodeInternalError     = -32603
	CodeNotFound          = -32004
	CodeTimeout           = -32008
	CodeConflict          = -32009
	CodeEngineUnavailable = -32010
)

// Error kinds as they appear on the wire.
const (
	KindInvalidArgument   = "InvalidArgument"
	KindNotFound          = "NotFound"
	KindConflict          = "Conflict"
	KindEngineUnavailable = "EngineUnavailable"
	KindTimeout           = "Timeout"
	KindInternal          = "Internal"
)

// CodeFor returns the protocol code for an error kind. Unknown kinds are internal errors.
func CodeFor(kind string) int {
	switch kind {
	case KindInvalidArgument:
		return CodeInvalidParams
	case KindNotFound:
		return CodeNotFound
	case KindConflict:
		return CodeConflict
	case KindEngineUnavailable:
		return CodeEngineUnavailable
	case KindTimeout:
		return CodeTimeout
	default:
		return CodeInternalError
	}
}

// Error represents a JSON-RPC error object, extended with the failure kind.
type Error struct {
	Kind    string `json:"kind"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewError builds the error object for kind.
func NewError(kind, message string) *Error {
	return &Error{Kind: kind, Code: CodeFor(kind), Message: message}
}

// Envelope is the JSON document carried by every tool result.
// Exactly one of Result and Error is set.
type Envelope struct {
	OK            bool   `json:"ok"`
	Tool          string `json:"tool"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Result        any    `json:"result,omitempty"`
	Error         *Error `json:"error,omitempty"`
}

// Success wraps an operation payload.
func Success(tool, correlationID string, result any) Envelope {
	return Envelope{OK: true, Tool: tool, CorrelationID: correlationID, Result: result}
}

// Failure wraps a classified failure.
func Failure(tool, correlationID, kind, message string) Envelope {
	return Envelope{Tool: tool, CorrelationID: correlationID, Error: NewError(kind, message)}
}
