// Package mcpclient implements the consuming half of spec §4.7's MCP
// surface: a builder-configured JSON-RPC 2.0 over HTTP client that never
// throws on transport failure, surfacing every outcome — success, server
// error, or network failure alike — as a Response value. Grounded on the
// Easonliuliang-APEXION pack repo's internal/mcp.Manager/serverConn
// (header-injecting RoundTripper, transport errors reported as results),
// adapted from that package's stateful multi-server session manager onto
// spec §4.7's single-endpoint request/response builder. Requests are sent
// once, without retry, using this package's own JSON-RPC envelope types.
package mcpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const jsonrpcVersion = "2.0"

// rpcRequest is the JSON-RPC 2.0 envelope sent to an MCP server.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// rpcError mirrors the server's error object shape.
type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// headerRoundTripper injects fixed headers into every outgoing request,
// generalized from the teacher pack's headerRoundTripper for use with any
// configured header set (bearer token, basic auth, custom headers) rather
// than just MCP server config headers.
type headerRoundTripper struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		r.Header.Set(k, v)
	}
	return t.base.RoundTrip(r)
}

// Client is a builder-configured MCP HTTP client (spec §4.7: "builder with
// withTimeout, withHeaders, withBearerToken, withAuth(user,pass),
// onSuccess/onError callbacks").
type Client struct {
	baseURL string
	http    *http.Client
	headers map[string]string

	onSuccess func(Response)
	onError   func(error)
}

// New creates a client targeting baseURL with a 30 second default timeout,
// matching spec §5's request timeout default.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		headers: make(map[string]string),
	}
}

// WithTimeout overrides the per-request timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.http.Timeout = d
	return c
}

// WithHeaders merges extra headers sent on every request.
func (c *Client) WithHeaders(headers map[string]string) *Client {
	for k, v := range headers {
		c.headers[k] = v
	}
	return c
}

// WithBearerToken sets the Authorization header to "Bearer <token>".
func (c *Client) WithBearerToken(token string) *Client {
	c.headers["Authorization"] = "Bearer " + token
	return c
}

// WithAuth sets HTTP Basic auth credentials.
func (c *Client) WithAuth(user, pass string) *Client {
	req, _ := http.NewRequest(http.MethodGet, "http://placeholder", nil)
	req.SetBasicAuth(user, pass)
	c.headers["Authorization"] = req.Header.Get("Authorization")
	return c
}

// OnSuccess registers a callback invoked after every successful Response
// (statusCode < 400 and no transport error).
func (c *Client) OnSuccess(fn func(Response)) *Client {
	c.onSuccess = fn
	return c
}

// OnError registers a callback invoked after every failed Response.
func (c *Client) OnError(fn func(error)) *Client {
	c.onError = fn
	return c
}

func (c *Client) transport() http.RoundTripper {
	base := c.http.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	if len(c.headers) == 0 {
		return base
	}
	return &headerRoundTripper{base: base, headers: c.headers}
}

// Send issues one JSON-RPC call for method with params and returns a
// Response that is never an error return value — transport failures,
// non-2xx statuses, and JSON-RPC error objects all surface as
// Response{Success: false, Error: ...} (spec §4.7: "Network failures
// surface as success=false with a populated error; never throws on
// transport errors").
func (c *Client) Send(ctx context.Context, method string, params any) Response {
	reqBody := rpcRequest{JSONRPC: jsonrpcVersion, ID: uuid.NewString(), Method: method, Params: params}
	raw, err := json.Marshal(reqBody)
	if err != nil {
		return c.fail(fmt.Errorf("mcpclient: marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(raw))
	if err != nil {
		return c.fail(fmt.Errorf("mcpclient: build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: c.http.Timeout, Transport: c.transport()}
	httpResp, err := client.Do(httpReq)
	if err != nil {
		return c.fail(fmt.Errorf("mcpclient: request failed: %w", err))
	}
	defer httpResp.Body.Close()

	var body rpcResponse
	decodeErr := json.NewDecoder(httpResp.Body).Decode(&body)

	resp := Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header.Clone(),
	}

	if decodeErr != nil {
		resp.Success = false
		resp.Error = fmt.Sprintf("mcpclient: decode response: %v", decodeErr)
		c.notify(resp, nil)
		return resp
	}
	if body.Error != nil {
		resp.Success = false
		resp.Error = body.Error.Message
		resp.Data = body.Result
		c.notify(resp, nil)
		return resp
	}

	resp.Success = httpResp.StatusCode < 400
	resp.Data = body.Result
	if !resp.Success && resp.Error == "" {
		resp.Error = fmt.Sprintf("mcpclient: server returned status %d", httpResp.StatusCode)
	}
	c.notify(resp, nil)
	return resp
}

func (c *Client) fail(err error) Response {
	resp := Response{Success: false, Error: err.Error()}
	c.notify(resp, err)
	return resp
}

func (c *Client) notify(resp Response, err error) {
	if resp.Success && c.onSuccess != nil {
		c.onSuccess(resp)
	}
	if !resp.Success && c.onError != nil {
		if err == nil {
			err = fmt.Errorf("mcpclient: %s", resp.Error)
		}
		c.onError(err)
	}
}

// ListTools calls the tools/list method.
func (c *Client) ListTools(ctx context.Context) Response {
	return c.Send(ctx, "tools/list", nil)
}

// ListResources calls the resources/list method.
func (c *Client) ListResources(ctx context.Context) Response {
	return c.Send(ctx, "resources/list", nil)
}

// ListPrompts calls the prompts/list method.
func (c *Client) ListPrompts(ctx context.Context) Response {
	return c.Send(ctx, "prompts/list", nil)
}

// GetCapabilities calls the initialize method, whose result includes the
// server's advertised capabilities.
func (c *Client) GetCapabilities(ctx context.Context) Response {
	return c.Send(ctx, "initialize", nil)
}

// ReadResource calls resources/read for uri.
func (c *Client) ReadResource(ctx context.Context, uri string) Response {
	return c.Send(ctx, "resources/read", map[string]string{"uri": uri})
}

// GetPrompt calls prompts/get for name with substitution arguments.
func (c *Client) GetPrompt(ctx context.Context, name string, args map[string]string) Response {
	return c.Send(ctx, "prompts/get", map[string]any{"name": name, "arguments": args})
}

// CallTool calls tools/call for name with arguments.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) Response {
	return c.Send(ctx, "tools/call", map[string]any{"name": name, "arguments": arguments})
}

// Ping calls the ping method.
func (c *Client) Ping(ctx context.Context) Response {
	return c.Send(ctx, "ping", nil)
}
