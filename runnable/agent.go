package runnable

import "context"

// AgentRunner is the subset of the agent package's Agent type a pipeline
// node needs: run the agent loop synchronously or streamed. Declared here
// (rather than importing the agent package) so runnable has no dependency
// on agent, while agent.Agent can still satisfy this interface and be
// wrapped as a pipeline step (spec §4.2's "Agent" variant).
type AgentRunner interface {
	Run(ctx context.Context, input string) (string, error)
	Stream(ctx context.Context, onChunk func(StreamChunk), input string) error
}

// Agent adapts an AgentRunner (the agent loop of spec §4.4) into a
// Runnable pipeline node.
type Agent struct {
	shell
	runner AgentRunner
}

// NewAgent wraps an agent loop as a pipeline node.
func NewAgent(runner AgentRunner) *Agent {
	return &Agent{runner: runner}
}

func (a *Agent) clone() *Agent {
	cp := *a
	return &cp
}

func inputToString(input any) string {
	switch v := input.(type) {
	case string:
		return v
	default:
		return coerceString(v)
	}
}

// Run delegates to the wrapped agent's Run.
func (a *Agent) Run(ctx context.Context, input any, params Params, opts Options) (any, error) {
	return a.runner.Run(ctx, inputToString(input))
}

// Stream delegates to the wrapped agent's Stream.
func (a *Agent) Stream(ctx context.Context, onChunk func(StreamChunk), input any, params Params, opts Options) error {
	return a.runner.Stream(ctx, onChunk, inputToString(input))
}

func (a *Agent) To(next Runnable) Runnable { return NewSequence(a, next) }
func (a *Agent) GetName() string           { return a.name }
func (a *Agent) WithName(name string) Runnable {
	c := a.clone()
	c.name = name
	return c
}
func (a *Agent) WithParams(p Params) Runnable {
	c := a.clone()
	c.params = c.params.merge(p)
	return c
}
func (a *Agent) WithOptions(o Options) Runnable {
	c := a.clone()
	c.opts = c.opts.merge(o)
	return c
}
