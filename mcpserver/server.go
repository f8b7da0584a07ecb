package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/airuntime/core/tool"
)

// MethodHandler processes one JSON-RPC method call, mirroring the
// teradata-labs-loom pack repo's server.MethodHandler shape.
type MethodHandler func(ctx context.Context, params json.RawMessage) (any, error)

// Resource is a static or dynamically-read piece of content the server
// exposes (spec §4.7's resources/list+resources/read pair).
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
	Read        func(ctx context.Context) (string, error)
}

// Prompt is a named, argument-templated message sequence (spec §4.7's
// prompts/list+prompts/get pair).
type Prompt struct {
	Name        string
	Description string
	Arguments   []PromptArgument
	Render      func(args map[string]string) []PromptMessage
}

// Server is the JSON-RPC 2.0 MCP endpoint spec §4.7 describes, generalized
// from the teradata-labs-loom pack repo's MCPServer (method-handler
// registry keyed by JSON-RPC method name, capability struct built as
// providers are registered) onto this module's tool.Registry for tools
// and a plain map for resources/prompts, since spec §4.7 names no
// provider-plugin abstraction beyond "tools, resources, prompts".
type Server struct {
	Name    string
	Version string

	mu        sync.RWMutex
	tools     *tool.Registry
	resources map[string]Resource
	prompts   map[string]Prompt
	handlers  map[string]MethodHandler

	Stats *Statistics

	// StatsEnabled toggles the statistics counters spec §4.7 names
	// ("enabled by default, toggleable").
	StatsEnabled bool
}

// newServer builds an unregistered Server; used by both the process-wide
// singleton registry (GetInstance) and tests that want an isolated
// instance.
func newServer(name, version string) *Server {
	s := &Server{
		Name:         name,
		Version:      version,
		tools:        tool.NewRegistry(0, nil),
		resources:    make(map[string]Resource),
		prompts:      make(map[string]Prompt),
		handlers:     make(map[string]MethodHandler),
		Stats:        NewStatistics(),
		StatsEnabled: true,
	}
	s.handlers["initialize"] = s.handleInitialize
	s.handlers["ping"] = s.handlePing
	s.handlers["tools/list"] = s.handleToolsList
	s.handlers["tools/call"] = s.handleToolsCall
	s.handlers["resources/list"] = s.handleResourcesList
	s.handlers["resources/read"] = s.handleResourcesRead
	s.handlers["prompts/list"] = s.handlePromptsList
	s.handlers["prompts/get"] = s.handlePromptsGet
	return s
}

var (
	registryMu sync.Mutex
	registry   = map[string]*Server{}
)

// GetInstance returns the named singleton server, creating it on first
// use (spec §4.7: "named singletons (default name 'default'); getInstance
// (name) returns the same instance for equal names, different instances
// for different names"). force, when true, discards any existing instance
// and rebuilds a fresh one under the same name (spec §6's
// McpServer(name, cors, statsEnabled, force) factory).
func GetInstance(name string, force bool) *Server {
	if name == "" {
		name = "default"
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if s, ok := registry[name]; ok && !force {
		return s
	}
	s := newServer(name, "0.1.0")
	registry[name] = s
	return s
}

// RegisterTool exposes t via tools/list and tools/call.
func (s *Server) RegisterTool(t *tool.Tool) {
	s.tools.Register(t)
}

// RegisterResource exposes r via resources/list and resources/read.
func (s *Server) RegisterResource(r Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[r.URI] = r
}

// RegisterPrompt exposes p via prompts/list and prompts/get.
func (s *Server) RegisterPrompt(p Prompt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts[p.Name] = p
}

func (s *Server) capabilities() Capabilities {
	var c Capabilities
	// tools/resources/prompts are always dispatchable (handlers are
	// registered unconditionally); the capability markers simply report
	// whether anything is registered, matching the teacher package's
	// "register a provider, gain a capability" WithToolProvider pattern
	// generalized onto plain Register calls instead of functional options.
	s.mu.RLock()
	defer s.mu.RUnlock()
	empty := struct{}{}
	if s.tools != nil && len(s.tools.Specs()) > 0 {
		c.Tools = &empty
	}
	if len(s.resources) > 0 {
		c.Resources = &empty
	}
	if len(s.prompts) > 0 {
		c.Prompts = &empty
	}
	return c
}

// HandleRequest dispatches one decoded JSON-RPC request and returns the
// result or a non-nil *RPCError. Notifications (req.ID == nil) are run for
// effect; the caller is expected to not write a response for those.
func (s *Server) HandleRequest(ctx context.Context, req *Request) (any, *RPCError) {
	s.mu.RLock()
	handler, ok := s.handlers[req.Method]
	s.mu.RUnlock()

	if s.StatsEnabled {
		s.Stats.recordRequest()
	}

	if !ok {
		if s.StatsEnabled {
			s.Stats.recordError()
		}
		return nil, NewRPCError(MethodNotFound, fmt.Sprintf("method not found: %s", req.Method), nil)
	}

	result, err := handler(ctx, req.Params)
	if err != nil {
		if s.StatsEnabled {
			s.Stats.recordError()
		}
		if rpcErr, ok := err.(*RPCError); ok {
			return nil, rpcErr
		}
		return nil, NewRPCError(InternalError, err.Error(), nil)
	}
	return result, nil
}

func (s *Server) handleInitialize(ctx context.Context, params json.RawMessage) (any, error) {
	return InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    s.capabilities(),
		ServerInfo:      Implementation{Name: s.Name, Version: s.Version},
	}, nil
}

func (s *Server) handlePing(ctx context.Context, params json.RawMessage) (any, error) {
	return struct{}{}, nil
}

func (s *Server) handleToolsList(ctx context.Context, params json.RawMessage) (any, error) {
	specs := s.tools.Specs()
	out := make([]ToolDescriptor, 0, len(specs))
	for _, sp := range specs {
		out = append(out, ToolDescriptor{Name: sp.Name, Description: sp.Description, InputSchema: sp.Parameters})
	}
	return struct {
		Tools []ToolDescriptor `json:"tools"`
	}{Tools: out}, nil
}

type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (s *Server) handleToolsCall(ctx context.Context, params json.RawMessage) (any, error) {
	var p callToolParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, NewRPCError(InvalidParams, "invalid tools/call params: "+err.Error(), nil)
		}
	}
	args, err := json.Marshal(p.Arguments)
	if err != nil {
		return nil, NewRPCError(InvalidParams, "invalid tools/call arguments: "+err.Error(), nil)
	}

	if s.StatsEnabled {
		s.Stats.recordToolInvocation()
	}

	result, execErr := s.tools.ExecuteOne(ctx, toolCallFrom(p.Name, args))
	if execErr != nil {
		return CallToolResult{
			Content: []ContentBlock{{Type: "text", Text: execErr.Error()}},
			IsError: true,
		}, nil
	}
	return CallToolResult{Content: []ContentBlock{{Type: "text", Text: result}}}, nil
}

func (s *Server) handleResourcesList(ctx context.Context, params json.RawMessage) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ResourceDescriptor, 0, len(s.resources))
	for _, r := range s.resources {
		out = append(out, ResourceDescriptor{URI: r.URI, Name: r.Name, Description: r.Description, MimeType: r.MimeType})
	}
	return struct {
		Resources []ResourceDescriptor `json:"resources"`
	}{Resources: out}, nil
}

type readResourceParams struct {
	URI string `json:"uri"`
}

func (s *Server) handleResourcesRead(ctx context.Context, params json.RawMessage) (any, error) {
	var p readResourceParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, NewRPCError(InvalidParams, "invalid resources/read params: "+err.Error(), nil)
		}
	}
	s.mu.RLock()
	r, ok := s.resources[p.URI]
	s.mu.RUnlock()
	if !ok {
		return nil, NewRPCError(InvalidParams, fmt.Sprintf("unknown resource: %s", p.URI), nil)
	}

	if s.StatsEnabled {
		s.Stats.recordResourceRead()
	}

	text, err := r.Read(ctx)
	if err != nil {
		return nil, NewRPCError(InternalError, err.Error(), nil)
	}
	return ReadResourceResult{Contents: []ResourceContents{{URI: r.URI, MimeType: r.MimeType, Text: text}}}, nil
}

func (s *Server) handlePromptsList(ctx context.Context, params json.RawMessage) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PromptDescriptor, 0, len(s.prompts))
	for _, p := range s.prompts {
		out = append(out, PromptDescriptor{Name: p.Name, Description: p.Description, Arguments: p.Arguments})
	}
	return struct {
		Prompts []PromptDescriptor `json:"prompts"`
	}{Prompts: out}, nil
}

type getPromptParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments"`
}

func (s *Server) handlePromptsGet(ctx context.Context, params json.RawMessage) (any, error) {
	var p getPromptParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, NewRPCError(InvalidParams, "invalid prompts/get params: "+err.Error(), nil)
		}
	}
	s.mu.RLock()
	prompt, ok := s.prompts[p.Name]
	s.mu.RUnlock()
	if !ok {
		return nil, NewRPCError(InvalidParams, fmt.Sprintf("unknown prompt: %s", p.Name), nil)
	}

	if s.StatsEnabled {
		s.Stats.recordPromptGeneration()
	}
	return GetPromptResult{Messages: prompt.Render(p.Arguments)}, nil
}
