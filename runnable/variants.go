package runnable

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Knetic/govaluate"

	"github.com/airuntime/core/chat"
	"github.com/airuntime/core/errs"
	"github.com/airuntime/core/providers"
)

// ---- Message: a static or templated ChatMessage node ----

// Message wraps a *chat.ChatMessage, rendering ${binding} placeholders
// from runtime params on Run (spec §4.2/§4.3).
type Message struct {
	shell
	cm *chat.ChatMessage
}

// NewMessage wraps an existing ChatMessage builder as a pipeline node.
func NewMessage(cm *chat.ChatMessage) *Message {
	return &Message{cm: cm}
}

func (m *Message) clone() *Message {
	cp := *m
	return &cp
}

// Run renders the wrapped ChatMessage with runtime params as bindings and
// returns its message slice.
func (m *Message) Run(ctx context.Context, input any, params Params, opts Options) (any, error) {
	bindings := make(map[string]string, len(params))
	for k, v := range params {
		bindings[k] = fmt.Sprintf("%v", v)
	}
	rendered := m.cm.Format(bindings)
	return rendered.Messages(), nil
}

// Stream materializes and delivers the result in one chunk; Message has no
// incremental output of its own.
func (m *Message) Stream(ctx context.Context, onChunk func(StreamChunk), input any, params Params, opts Options) error {
	out, err := m.Run(ctx, input, params, opts)
	onChunk(StreamChunk{Done: true, Err: err, Raw: out})
	return err
}

func (m *Message) To(next Runnable) Runnable { return NewSequence(m, next) }
func (m *Message) GetName() string           { return m.name }
func (m *Message) WithName(name string) Runnable {
	c := m.clone()
	c.name = name
	return c
}
func (m *Message) WithParams(p Params) Runnable {
	c := m.clone()
	c.params = c.params.merge(p)
	return c
}
func (m *Message) WithOptions(o Options) Runnable {
	c := m.clone()
	c.opts = c.opts.merge(o)
	return c
}

// ---- Model: wraps a providers.Service, invoking chat completion ----

// Model wraps a providers.Service, turning its upstream input (a
// []chat.Message or *chat.Request) into a chat.Response (spec §4.2's
// "Model (service wrapper)").
type Model struct {
	shell
	service      providers.Service
	modelName    string
	toolRegistry interface {
		Specs() []chat.ToolSpec
	}
}

// NewModel wraps a service under the given model name (empty uses the
// service's own default).
func NewModel(service providers.Service, modelName string) *Model {
	return &Model{service: service, modelName: modelName}
}

// WithTools attaches a tool registry whose Specs() are merged onto every
// request this node builds.
func (m *Model) WithTools(reg interface{ Specs() []chat.ToolSpec }) *Model {
	c := m.clone()
	c.toolRegistry = reg
	return c
}

func (m *Model) clone() *Model {
	cp := *m
	return &cp
}

func (m *Model) buildRequest(input any, params Params, opts Options) (*chat.Request, error) {
	var msgs []chat.Message
	switch v := input.(type) {
	case *chat.Request:
		req := *v
		return &req, nil
	case []chat.Message:
		msgs = v
	case *chat.ChatMessage:
		msgs = v.Messages()
	case string:
		msgs = []chat.Message{{Role: chat.RoleUser, Text: v}}
	default:
		return nil, errs.New(errs.InvalidArgument, "runnable.Model: unsupported input type %T", input)
	}

	req := &chat.Request{Model: m.modelName, Messages: msgs}
	if mt, ok := params["maxTokens"].(int); ok {
		req.Params.MaxTokens = mt
	}
	if t, ok := params["temperature"].(float64); ok {
		req.Params.Temperature = t
	}
	if m.toolRegistry != nil {
		req.Params.Tools = m.toolRegistry.Specs()
	}
	if opts.ReturnFormat != "" {
		req.Options.ReturnFormat = opts.ReturnFormat
	}
	return req, nil
}

// Run dispatches a synchronous Invoke against the wrapped service.
func (m *Model) Run(ctx context.Context, input any, params Params, opts Options) (any, error) {
	req, err := m.buildRequest(input, params, opts)
	if err != nil {
		return nil, err
	}
	return m.service.Invoke(ctx, req)
}

// Stream dispatches InvokeStream, translating provider-native chunks into
// runnable.StreamChunk.
func (m *Model) Stream(ctx context.Context, onChunk func(StreamChunk), input any, params Params, opts Options) error {
	req, err := m.buildRequest(input, params, opts)
	if err != nil {
		onChunk(StreamChunk{Done: true, Err: err})
		return err
	}
	return m.service.InvokeStream(ctx, req, func(c chat.StreamChunk) {
		onChunk(StreamChunk{Text: c.Delta, ToolCalls: c.ToolCalls, Done: c.Done, Err: c.Error, Raw: c})
	})
}

func (m *Model) To(next Runnable) Runnable { return NewSequence(m, next) }
func (m *Model) GetName() string           { return m.name }
func (m *Model) WithName(name string) Runnable {
	c := m.clone()
	c.name = name
	return c
}
func (m *Model) WithParams(p Params) Runnable {
	c := m.clone()
	c.params = c.params.merge(p)
	return c
}
func (m *Model) WithOptions(o Options) Runnable {
	c := m.clone()
	c.opts = c.opts.merge(o)
	return c
}

// StructuredOutput is sugar for .structuredOutput(schema) (spec §4.2): it
// sets options.Extra["returnFormat"] to schema on a copy of the node.
func (m *Model) StructuredOutput(schema any) Runnable {
	c := m.clone()
	c.opts = c.opts.merge(Options{Extra: map[string]any{"returnFormat": schema}})
	return c
}

// AsJSON, AsXML, SingleMessage, AllMessages, RawResponse are the
// return-format sugar helpers of spec §4.2.
func (m *Model) AsJSON() Runnable        { return m.withReturnFormat(chat.ReturnJSON) }
func (m *Model) AsXML() Runnable         { return m.withReturnFormat(chat.ReturnXML) }
func (m *Model) SingleMessage() Runnable { return m.withReturnFormat(chat.ReturnSingle) }
func (m *Model) AllMessages() Runnable   { return m.withReturnFormat(chat.ReturnAll) }
func (m *Model) RawResponse() Runnable   { return m.withReturnFormat(chat.ReturnRaw) }

func (m *Model) withReturnFormat(f chat.ReturnFormat) Runnable {
	c := m.clone()
	c.opts = c.opts.merge(Options{ReturnFormat: f})
	return c
}

// ---- Transform: a pure function over the previous step's output ----

// TransformFunc is a pure function applied to the upstream output.
// Transform nodes accept options but ignore them, propagating them
// unchanged downstream per spec §4.2.
type TransformFunc func(ctx context.Context, input any) (any, error)

// Transform wraps a TransformFunc as a pipeline node.
type Transform struct {
	shell
	fn TransformFunc
}

// NewTransform wraps fn as a Runnable.
func NewTransform(fn TransformFunc) *Transform {
	return &Transform{fn: fn}
}

func (t *Transform) clone() *Transform {
	cp := *t
	return &cp
}

// Run applies the wrapped function, ignoring params/opts (spec §4.2).
func (t *Transform) Run(ctx context.Context, input any, params Params, opts Options) (any, error) {
	return t.fn(ctx, input)
}

// Stream materializes the transform result in a single chunk.
func (t *Transform) Stream(ctx context.Context, onChunk func(StreamChunk), input any, params Params, opts Options) error {
	out, err := t.fn(ctx, input)
	onChunk(StreamChunk{Done: true, Err: err, Raw: out})
	return err
}

func (t *Transform) To(next Runnable) Runnable { return NewSequence(t, next) }
func (t *Transform) GetName() string           { return t.name }
func (t *Transform) WithName(name string) Runnable {
	c := t.clone()
	c.name = name
	return c
}
func (t *Transform) WithParams(p Params) Runnable {
	c := t.clone()
	c.params = c.params.merge(p)
	return c
}
func (t *Transform) WithOptions(o Options) Runnable {
	c := t.clone()
	c.opts = c.opts.merge(o)
	return c
}

// NewExpressionTransform compiles expr once with govaluate and evaluates it
// on every Run against the upstream output's fields (a map[string]any is
// passed through as parameters directly; any other value is exposed under
// the name "input"). Useful for lightweight scoring/filtering steps between
// pipeline stages without hand-writing a TransformFunc.
func NewExpressionTransform(expr string) (*Transform, error) {
	compiled, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, "runnable.NewExpressionTransform", err)
	}
	return NewTransform(func(ctx context.Context, input any) (any, error) {
		params, ok := input.(map[string]any)
		if !ok {
			params = map[string]any{"input": input}
		}
		result, err := compiled.Evaluate(params)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidArgument, expr, err)
		}
		return result, nil
	}), nil
}

// coerceString implements the invocation-return coercion of spec §4.6:
// struct/array values are JSON-serialized, strings pass through.
func coerceString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
