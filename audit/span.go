// Package audit implements spec §4.8's audit context: a tree of timed
// spans covering every AI operation, sanitized before persistence and
// queryable per trace. Grounded on the teradata-labs-loom pack repo's
// pkg/observability package (Span/Tracer/StartSpan/EndSpan shape,
// WithAttribute-style SpanOption functional options), generalized from
// that package's generic "span.kind" attribute onto spec §3's fixed
// AuditEntry shape ({spanId, parentSpanId, traceId, spanType, operation,
// startTime, endTime, input, output, tokens, metadata, error}) and spec
// §4.8's explicit span-type enum (agent, model, tool, workflow, embed).
package audit

import (
	"context"
	"time"

	"github.com/airuntime/core/chat"
	"github.com/google/uuid"
)

// SpanType identifies the kind of operation a span covers (spec §3).
type SpanType string

const (
	SpanAgent    SpanType = "agent"
	SpanModel    SpanType = "model"
	SpanTool     SpanType = "tool"
	SpanWorkflow SpanType = "workflow"
	SpanEmbed    SpanType = "embed"
)

// Span is spec §3's AuditEntry: a timed, nested unit in a trace.
// Grounded on observability.Span, renamed to the spec's own field names
// (SpanID/ParentSpanID/TraceID rather than SpanID/ParentID/TraceID-only,
// Tokens rather than a free-form metric sink) and narrowed from a generic
// Attributes bag to the spec's explicit Input/Output/Tokens/Metadata/Error
// fields.
type Span struct {
	SpanID       string
	ParentSpanID string
	TraceID      string
	Type         SpanType
	Operation    string
	StartTime    time.Time
	EndTime      time.Time
	Input        any
	Output       any
	Tokens       chat.TokenUsage
	Metadata     map[string]any
	Error        string
}

// Duration returns EndTime.Sub(StartTime), zero while the span is open.
func (s *Span) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// SetMetadata attaches a key-value pair to the span, mirroring
// observability.Span.SetAttribute.
func (s *Span) SetMetadata(key string, value any) {
	if s.Metadata == nil {
		s.Metadata = make(map[string]any)
	}
	s.Metadata[key] = value
}

type spanContextKey struct{}

// spanFromContext retrieves the currently-open span, if any, mirroring
// observability.SpanFromContext.
func spanFromContext(ctx context.Context) *Span {
	if s, ok := ctx.Value(spanContextKey{}).(*Span); ok {
		return s
	}
	return nil
}

func contextWithSpan(ctx context.Context, s *Span) context.Context {
	return context.WithValue(ctx, spanContextKey{}, s)
}

// Trace is a holder of spans sharing one TraceID, recorded as they close
// (spec §4.8: "a trace holds a tree of spans").
type Trace struct {
	ID    string
	Spans []*Span
}

// Context drives the StartSpan/EndSpan push/pop pair spec §4.8 describes
// ("startSpan(type, operation) pushes a child of the current span;
// endSpan(output, tokens?) pops and records it"). One Context is created
// per top-level operation (one request, one agent.Run call, ...).
type Context struct {
	store Store
	trace *Trace
}

// NewContext starts a fresh trace, recording completed spans to store.
// store may be nil, in which case ended spans are not persisted anywhere
// and are kept only on the Context's own trace (see Spans) (useful when
// audit is disabled per spec §4.8's dynamic toggle).
func NewContext(store Store) *Context {
	return &Context{store: store, trace: &Trace{ID: uuid.NewString()}}
}

// StartSpan pushes a new span, child of whatever span is open in ctx (or a
// trace root if none), and returns a context carrying it plus the span
// itself so the caller can End it.
func (c *Context) StartSpan(ctx context.Context, typ SpanType, operation string) (context.Context, *Span) {
	parent := spanFromContext(ctx)
	s := &Span{
		SpanID:    uuid.NewString(),
		TraceID:   c.trace.ID,
		Type:      typ,
		Operation: operation,
		StartTime: time.Now().UTC(),
	}
	if parent != nil {
		s.ParentSpanID = parent.SpanID
	}
	return contextWithSpan(ctx, s), s
}

// EndSpan pops span, recording output/tokens and persisting it to the
// Context's Store (sanitized per spec §4.8). err, if non-nil, is recorded
// as the span's Error field without aborting the caller.
func (c *Context) EndSpan(span *Span, output any, tokens chat.TokenUsage, err error) {
	span.EndTime = time.Now().UTC()
	span.Output = output
	span.Tokens = tokens
	if err != nil {
		span.Error = err.Error()
	}
	sanitized := Sanitize(span, DefaultSanitizeConfig())
	c.trace.Spans = append(c.trace.Spans, sanitized)
	if c.store != nil {
		// Audit store write failures are never propagated to the caller
		// (spec §7's AuditError policy: "Never propagated to caller; logged").
		_ = c.store.Write(context.Background(), sanitized)
	}
}

// Spans returns every span recorded on this trace so far, in completion
// order.
func (c *Context) Spans() []*Span {
	out := make([]*Span, len(c.trace.Spans))
	copy(out, c.trace.Spans)
	return out
}

// TraceID returns the trace's identifier.
func (c *Context) TraceID() string { return c.trace.ID }
