package audit

import (
	"context"

	"github.com/airuntime/core/chat"
	"github.com/airuntime/core/events"
)

// spanTypeForEvent maps a before* event to the span type it opens, per
// spec §4.8: "Interceptor-based mode automatically wraps beforeAI*/
// afterAI* events into spans (model, tool, agent, embed)."
var spanTypeForEvent = map[events.Name]SpanType{
	events.BeforeAIChat:        SpanModel,
	events.BeforeAIEmbed:       SpanEmbed,
	events.BeforeAIAgentRun:    SpanAgent,
	events.BeforeAIToolExecute: SpanTool,
}

var afterForBefore = map[events.Name]events.Name{
	events.BeforeAIChat:        events.AfterAIChat,
	events.BeforeAIEmbed:       events.AfterAIEmbed,
	events.BeforeAIAgentRun:    events.AfterAIAgentRun,
	events.BeforeAIToolExecute: events.AfterAIToolExecute,
}

// Interceptor wires a Context into an events.Bus so every beforeAI*/
// afterAI* pair the rest of the module already emits (agent.go, the
// providers package, tool.Registry) automatically opens and closes a
// span, without those packages importing audit directly — spec §4.8
// describes this as the default ("Interceptor-based mode"), with
// "Explicit mode" (manual Context.StartSpan/EndSpan calls) reserved for
// workflow spans around arbitrary caller code.
//
// Because events.Handler carries no request-scoped context.Context (the
// bus is a process-wide singleton, spec §4.8), the interceptor keys
// open spans by the payload's "traceId" value (falling back to its "agent"
// or "tool" value, and then to a single shared "default" key, when absent)
// rather than by context propagation.
type Interceptor struct {
	ctx     *Context
	pending map[string]*Span
}

// NewInterceptor attaches to bus, recording completed spans into actx.
func NewInterceptor(bus *events.Bus, actx *Context) *Interceptor {
	ic := &Interceptor{ctx: actx, pending: make(map[string]*Span)}
	for before, typ := range spanTypeForEvent {
		typ := typ
		before := before
		after := afterForBefore[before]
		bus.On(before, ic.onBefore(typ, before))
		bus.On(after, ic.onAfter(before))
	}
	return ic
}

func payloadKey(p events.Payload) string {
	if v, ok := p["traceId"].(string); ok && v != "" {
		return v
	}
	if v, ok := p["agent"].(string); ok && v != "" {
		return "agent:" + v
	}
	if v, ok := p["tool"].(string); ok && v != "" {
		return "tool:" + v
	}
	return "default"
}

func (ic *Interceptor) onBefore(typ SpanType, name events.Name) events.Handler {
	return func(p events.Payload) {
		_, span := ic.ctx.StartSpan(context.Background(), typ, string(name))
		span.Input = map[string]any(p)
		ic.pending[payloadKey(p)] = span
	}
}

func (ic *Interceptor) onAfter(beforeName events.Name) events.Handler {
	return func(p events.Payload) {
		key := payloadKey(p)
		span, ok := ic.pending[key]
		if !ok {
			return
		}
		delete(ic.pending, key)

		var err error
		if e, ok := p["error"].(error); ok {
			err = e
		}
		ic.ctx.EndSpan(span, map[string]any(p), tokensFromPayload(p), err)
	}
}

// tokensFromPayload extracts token usage when a handler attached one under
// "tokens" (providers.Service implementations that wire an Interceptor can
// do so); other emitters simply omit it, leaving a zero TokenUsage.
func tokensFromPayload(p events.Payload) chat.TokenUsage {
	if t, ok := p["tokens"].(chat.TokenUsage); ok {
		return t
	}
	return chat.TokenUsage{}
}
