// Package runnable implements the pipeline engine of spec §4.2: immutable,
// composable nodes (Message, Model, Transform, Agent, Sequence) that fold
// left-to-right over an input, with runtime params/options layered over
// per-step bindings. No teacher file implements composition of this shape
// (the teacher invokes a single Builder/Agent directly), so this package is
// grounded on the Runnable/Chain interface described in the retrieved
// other_examples/ goagent interfaces file (Invoke/Stream over an Input,
// chaining via composition), adapted onto this module's chat.Request/
// chat.Response/providers.Service types and spec §4.2's immutable to()
// semantics.
package runnable

import (
	"context"

	"github.com/airuntime/core/chat"
)

// Params and Options mirror spec §4.2's withParams/withOptions layering:
// runtime values passed to Run/Stream win over a node's stored values.
type Params map[string]any

// Options carries pipeline-wide execution knobs, including the
// structured-output sugar methods (spec §4.2).
type Options struct {
	ReturnFormat chat.ReturnFormat
	Extra        map[string]any
}

// merge layers override on top of base, override's keys winning.
func (p Params) merge(override Params) Params {
	if len(p) == 0 && len(override) == 0 {
		return nil
	}
	out := make(Params, len(p)+len(override))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

func (o Options) merge(override Options) Options {
	out := o
	if override.ReturnFormat != "" {
		out.ReturnFormat = override.ReturnFormat
	}
	if len(override.Extra) > 0 {
		merged := make(map[string]any, len(o.Extra)+len(override.Extra))
		for k, v := range o.Extra {
			merged[k] = v
		}
		for k, v := range override.Extra {
			merged[k] = v
		}
		out.Extra = merged
	}
	return out
}

// StreamChunk is the unit delivered to a Stream callback. Shape is loose on
// purpose (spec §4.2 doesn't unify it further): Text for incremental text,
// ToolCalls for agent intermediate turns, Raw for the underlying
// chat.StreamChunk/chat.Response.
type StreamChunk struct {
	Text      string
	ToolCalls []chat.ToolCall
	Done      bool
	Err       error
	Raw       any
}

// Runnable is the contract every pipeline node implements (spec §4.2).
type Runnable interface {
	// Run executes the node synchronously, folding runtime params/options
	// over the node's stored configuration.
	Run(ctx context.Context, input any, params Params, opts Options) (any, error)

	// Stream executes the node with incremental output. Nodes with no
	// natural streaming form (Transform, intermediate Sequence steps)
	// invoke onChunk once with the materialized result and Done=true.
	Stream(ctx context.Context, onChunk func(StreamChunk), input any, params Params, opts Options) error

	// To returns a new Sequence containing this node followed by next;
	// neither operand is mutated.
	To(next Runnable) Runnable

	// GetName returns the node's configured name, or "" if unset.
	GetName() string

	// WithName returns a copy of the node carrying name.
	WithName(name string) Runnable

	// WithParams returns a copy of the node with stored params merged with p.
	WithParams(p Params) Runnable

	// WithOptions returns a copy of the node with stored options merged
	// with o.
	WithOptions(o Options) Runnable
}

// shell holds the configurable state every variant embeds: name, stored
// params, and stored options, implementing the withX methods generically
// so each variant only needs to implement Run/Stream/clone.
type shell struct {
	name   string
	params Params
	opts   Options
}

func (s shell) resolve(runtimeParams Params, runtimeOpts Options) (Params, Options) {
	return s.params.merge(runtimeParams), s.opts.merge(runtimeOpts)
}
