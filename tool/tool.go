// Package tool formalizes the function-calling surface spec §4.5
// describes: named tools with a JSON-schema parameter contract, a handler,
// and a Registry that dispatches model-issued chat.ToolCall values back to
// Go functions. Grounded on the teacher's tool.go (Tool/NewTool/
// AddParameter/toOpenAI) and tool_parallel.go's worker-pool tool dispatch,
// generalized off the OpenAI-specific Tool type onto chat.ToolSpec so every
// providers.Service implementation shares the same registry.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/airuntime/core/chat"
	"github.com/airuntime/core/errs"
	"github.com/airuntime/core/events"
)

// Handler executes a tool call. args is the raw JSON arguments the model
// supplied; the return value is serialized back to the model as the tool
// result content.
type Handler func(ctx context.Context, args json.RawMessage) (string, error)

// Tool is a named function the model may call, grounded on the teacher's
// Tool struct but carrying a JSON-schema Parameters map directly rather
// than an OpenAI-specific conversion method.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Handler     Handler
}

// New creates a tool with an empty object schema, mirroring the teacher's
// NewTool.
func New(name, description string) *Tool {
	return &Tool{
		Name:        name,
		Description: description,
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
			"required":   []string{},
		},
	}
}

// AddParameter adds a property to the tool's JSON schema, optionally
// marking it required.
func (t *Tool) AddParameter(name, paramType, description string, required bool) *Tool {
	props := t.Parameters["properties"].(map[string]any)
	props[name] = map[string]any{"type": paramType, "description": description}
	if required {
		reqs := t.Parameters["required"].([]string)
		t.Parameters["required"] = append(reqs, name)
	}
	return t
}

// WithHandler attaches the Go function the registry invokes on a matching
// tool call.
func (t *Tool) WithHandler(h Handler) *Tool {
	t.Handler = h
	return t
}

// Describe sets or overwrites the description of an already-declared
// parameter, the equivalent of spec §4.6's describe<ArgName>(text)
// dynamic-method convention adapted to Go's lack of named-parameter
// reflection: callers declare parameters via AddParameter and refine their
// description afterward with Describe.
func (t *Tool) Describe(name, description string) *Tool {
	props, ok := t.Parameters["properties"].(map[string]any)
	if !ok {
		return t
	}
	prop, ok := props[name].(map[string]any)
	if !ok {
		return t
	}
	prop["description"] = description
	return t
}

// SetSchema replaces the tool's generated parameter schema outright,
// bypassing AddParameter-based generation entirely (spec §4.6).
func (t *Tool) SetSchema(schema map[string]any) *Tool {
	t.Parameters = schema
	return t
}

// Spec converts the tool to the provider-agnostic chat.ToolSpec consumed
// by providers.Service implementations.
func (t *Tool) Spec() chat.ToolSpec {
	return chat.ToolSpec{Name: t.Name, Description: t.Description, Parameters: t.Parameters}
}

// Registry holds named tools and dispatches chat.ToolCall values to their
// handlers, generalizing the teacher's Builder.tools slice plus
// executeToolsParallel/executeToolsSequential into a standalone type any
// agent loop can share.
type Registry struct {
	mu         sync.RWMutex
	tools      map[string]*Tool
	maxWorkers int
	bus        *events.Bus
}

// NewRegistry creates an empty registry. maxWorkers caps concurrent tool
// dispatch in ExecuteParallel (teacher's default of 10 if zero).
func NewRegistry(maxWorkers int, bus *events.Bus) *Registry {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}
	if bus == nil {
		bus = events.Default
	}
	return &Registry{tools: make(map[string]*Tool), maxWorkers: maxWorkers, bus: bus}
}

// Register adds or replaces a tool.
func (r *Registry) Register(t *Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name] = t
}

// Specs returns every registered tool's chat.ToolSpec, in no particular
// order, for threading onto a chat.Request's Params.Tools.
func (r *Registry) Specs() []chat.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]chat.ToolSpec, 0, len(r.tools))
	for _, t := range r.tools {
		specs = append(specs, t.Spec())
	}
	return specs
}

func (r *Registry) lookup(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// ExecuteOne runs a single tool call, recovering from a handler panic and
// converting it to a ToolExecutionError the way the teacher's
// recoverPanic/PanicError pair does.
func (r *Registry) ExecuteOne(ctx context.Context, call chat.ToolCall) (result string, err error) {
	t, ok := r.lookup(call.Name)
	if !ok {
		return "", errs.New(errs.ToolNotFound, "no tool registered with name %q", call.Name)
	}

	defer func() {
		if rec := recover(); rec != nil {
			stack := string(debug.Stack())
			err = &errs.Error{
				Kind:    errs.ToolExecutionError,
				Message: fmt.Sprintf("tool %q panicked: %v\n%s", call.Name, rec, stack),
			}
		}
	}()

	r.bus.Emit(events.BeforeAIToolExecute, events.Payload{"tool": call.Name})
	start := time.Now()
	result, err = t.Handler(ctx, json.RawMessage(call.Arguments))
	r.bus.Emit(events.AfterAIToolExecute, events.Payload{
		"tool":     call.Name,
		"duration": time.Since(start),
		"error":    err,
	})
	if err != nil {
		return "", errs.Wrap(errs.ToolExecutionError, call.Name, err)
	}
	return result, nil
}

// ExecutionResult pairs a tool call with its outcome, preserving call
// identity for reassembly into tool-result messages.
type ExecutionResult struct {
	Call   chat.ToolCall
	Result string
	Err    error
}

// ExecuteSequential runs every call in order; a failing call's error is
// recorded in its result and the remaining calls still run.
func (r *Registry) ExecuteSequential(ctx context.Context, calls []chat.ToolCall) []ExecutionResult {
	out := make([]ExecutionResult, 0, len(calls))
	for _, c := range calls {
		res, err := r.ExecuteOne(ctx, c)
		out = append(out, ExecutionResult{Call: c, Result: res, Err: err})
	}
	return out
}

// ExecuteParallel runs every call concurrently through a bounded worker
// pool, generalizing the teacher's tool_parallel.go semaphore-gated
// goroutine fan-out. Falls back to ExecuteSequential for 0 or 1 calls.
func (r *Registry) ExecuteParallel(ctx context.Context, calls []chat.ToolCall) []ExecutionResult {
	if len(calls) <= 1 {
		return r.ExecuteSequential(ctx, calls)
	}

	workers := r.maxWorkers
	if len(calls) < workers {
		workers = len(calls)
	}
	sem := make(chan struct{}, workers)
	results := make([]ExecutionResult, len(calls))

	var wg sync.WaitGroup
	for i, c := range calls {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, call chat.ToolCall) {
			defer wg.Done()
			defer func() { <-sem }()
			res, err := r.ExecuteOne(ctx, call)
			results[idx] = ExecutionResult{Call: call, Result: res, Err: err}
		}(i, c)
	}
	wg.Wait()
	return results
}

// ToMessages converts execution results into tool-result chat messages,
// in call order, ready to append to a ChatMessage conversation.
func ToMessages(results []ExecutionResult) []chat.Message {
	out := make([]chat.Message, 0, len(results))
	for _, r := range results {
		content := r.Result
		if r.Err != nil {
			content = fmt.Sprintf("error: %s", r.Err.Error())
		}
		out = append(out, chat.Message{Role: chat.RoleTool, Text: content, ToolCallID: r.Call.ID})
	}
	return out
}
