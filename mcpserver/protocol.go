// Package mcpserver implements the MCP server side of spec §4.7: named
// singleton servers exposing tools/resources/prompts over JSON-RPC 2.0,
// wrapped in an HTTP endpoint pipeline (body-size limit, CORS, basic
// auth, API-key callback, fixed security headers) with running
// statistics. Grounded on the teradata-labs-loom pack repo's
// pkg/mcp/protocol (JSON-RPC Request/Response/RequestID/Error shape,
// standard error codes) and pkg/mcp/server (MCPServer's method-handler
// registry, Option-functional-option provider wiring), generalized from
// that package's zap-logged stdio/SSE transport server onto spec §4.7's
// HTTP-only transport and its specific security/CORS/auth middleware
// chain, built with github.com/go-chi/chi/v5 in the style of the
// Howard-nolan-llmrouter pack repo's internal/server/server.go router
// setup.
package mcpserver

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the MCP wire version this server speaks.
const ProtocolVersion = "2024-11-05"

// JSONRPCVersion is the required version string for every request/response.
const JSONRPCVersion = "2.0"

// Standard JSON-RPC 2.0 error codes, mirrored from protocol/jsonrpc.go.
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
	ServerErrorMin = -32099
)

// RequestID is a JSON-RPC request identifier: string, number, or absent
// (notifications carry none).
type RequestID struct {
	Str *string
	Num *int64
}

func (r *RequestID) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	if r.Str != nil {
		return json.Marshal(*r.Str)
	}
	if r.Num != nil {
		return json.Marshal(*r.Num)
	}
	return []byte("null"), nil
}

func (r *RequestID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		r.Str = &s
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		r.Num = &n
		return nil
	}
	if string(data) == "null" {
		return nil
	}
	return fmt.Errorf("mcpserver: invalid request id: %s", data)
}

// Request is a JSON-RPC 2.0 request or notification (ID nil).
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *RequestID      `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string { return fmt.Sprintf("mcp error %d: %s", e.Code, e.Message) }

// NewRPCError builds an RPCError, JSON-encoding data when present.
func NewRPCError(code int, message string, data any) *RPCError {
	e := &RPCError{Code: code, Message: message}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			e.Data = raw
		}
	}
	return e
}

// Response is a JSON-RPC 2.0 response: Result and Error are mutually
// exclusive (spec §6: "errors follow {jsonrpc, id, error:{code, message,
// data?}}").
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *RequestID      `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

func marshalResult(id *RequestID, result any, rpcErr *RPCError) ([]byte, error) {
	resp := Response{JSONRPC: JSONRPCVersion, ID: id, Error: rpcErr}
	if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			return nil, err
		}
		resp.Result = raw
	}
	return json.Marshal(resp)
}

// Implementation identifies a client or server (spec §4.7's
// serverInfo:{name, version}).
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Capabilities advertises which of tools/resources/prompts this server
// exposes (spec §4.7: "Capabilities: tools, resources, prompts").
type Capabilities struct {
	Tools     *struct{} `json:"tools,omitempty"`
	Resources *struct{} `json:"resources,omitempty"`
	Prompts   *struct{} `json:"prompts,omitempty"`
}

// InitializeResult is the result of the "initialize" method (spec §4.7's
// table).
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    Capabilities   `json:"capabilities"`
	ServerInfo      Implementation `json:"serverInfo"`
}

// ToolDescriptor is one entry of the tools/list result.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ContentBlock is one element of a tools/call text result.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallToolResult is the result of tools/call (spec §4.7's table).
type CallToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// ResourceDescriptor is one entry of the resources/list result.
type ResourceDescriptor struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourceContents is one element of a resources/read result.
type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text"`
}

// ReadResourceResult is the result of resources/read.
type ReadResourceResult struct {
	Contents []ResourceContents `json:"contents"`
}

// PromptArgument describes one prompts/get parameter.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// PromptDescriptor is one entry of the prompts/list result.
type PromptDescriptor struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

// PromptMessage is one message of a prompts/get result.
type PromptMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GetPromptResult is the result of prompts/get.
type GetPromptResult struct {
	Messages []PromptMessage `json:"messages"`
}
