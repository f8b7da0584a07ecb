// Package agent implements the autonomous Agent loop: a state machine
// (Init → Prepare → Invoke → Inspect → ToolDispatch → Update → Finalize)
// that iterates model invocations and tool executions until the model
// stops requesting tools. Grounded on the teacher's Agent/Builder pair (the
// thin OpenAI wrapper and its fluent tool-calling execution loop),
// generalized off the OpenAI SDK onto this module's provider-agnostic
// providers.Service, memory.Memory, and tool.Registry so the same loop
// runs any configured provider.
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/airuntime/core/chat"
	"github.com/airuntime/core/errs"
	"github.com/airuntime/core/events"
	"github.com/airuntime/core/memory"
	"github.com/airuntime/core/providers"
	"github.com/airuntime/core/runnable"
	"github.com/airuntime/core/tool"
)

// DefaultMaxIterations bounds the Invoke/ToolDispatch cycle (spec §4.4).
const DefaultMaxIterations = 5

// Agent is the autonomous loop spec §4.4 describes: a named, instructed
// wrapper around a provider.Service, a tool registry, and zero or more
// attached memories, plus sub-agents exposed as ordinary tools.
type Agent struct {
	Name         string
	Description  string
	Instructions string
	Model        string
	Provider     providers.Service

	Memories      []memory.Memory
	Tools         *tool.Registry
	MaxIterations int
	Bus           *events.Bus

	Params  chat.Params
	Options chat.Options
}

// New creates an Agent, mirroring spec §6's
// Agent(name, description, instructions, model, memory, tools, subAgents, params, options)
// factory. provider is the attached model; it may be nil when the Agent's
// Options.Provider names a registered provider, but the loop's Invoke
// state requires one to be resolvable by the time it runs.
func New(name, description, instructions, model string, provider providers.Service) *Agent {
	return &Agent{
		Name:          name,
		Description:   description,
		Instructions:  instructions,
		Model:         model,
		Provider:      provider,
		Tools:         tool.NewRegistry(0, nil),
		MaxIterations: DefaultMaxIterations,
		Bus:           events.Default,
	}
}

// WithMemory attaches a memory the agent reads during Prepare and writes
// during Init/Update/Finalize.
func (a *Agent) WithMemory(m memory.Memory) *Agent {
	a.Memories = append(a.Memories, m)
	return a
}

// WithTool registers a callable tool in the agent's own registry.
func (a *Agent) WithTool(t *tool.Tool) *Agent {
	a.Tools.Register(t)
	return a
}

// WithSubAgent exposes another agent as a tool, per spec §4.4's "an agent
// may expose other agents as tools whose callable is subAgent.run(args)".
// argsKey names the single string argument the wrapping tool schema
// exposes, the text handed to the sub-agent's Run.
func (a *Agent) WithSubAgent(sub *Agent, argsKey string) *Agent {
	if argsKey == "" {
		argsKey = "input"
	}
	t := tool.New(sub.Name, sub.Description).
		AddParameter(argsKey, "string", sub.Description, true).
		WithHandler(func(ctx context.Context, args json.RawMessage) (string, error) {
			var parsed map[string]any
			if err := json.Unmarshal(args, &parsed); err != nil {
				return "", errs.Wrap(errs.InvalidArgument, sub.Name, err)
			}
			input, _ := parsed[argsKey].(string)
			return sub.Run(ctx, input)
		})
	a.Tools.Register(t)
	return a
}

// WithMaxIterations overrides DefaultMaxIterations.
func (a *Agent) WithMaxIterations(n int) *Agent {
	if n > 0 {
		a.MaxIterations = n
	}
	return a
}

// tenant builds the memory.Tenant scoping every Memory operation this run
// performs, from Options' per-call tenancy fields.
func (a *Agent) tenant() memory.Tenant {
	return memory.Tenant{UserID: a.Options.UserID, ConversationID: a.Options.ConversationID}
}

func (a *Agent) addToMemories(ctx context.Context, msg chat.Message) {
	t := a.tenant()
	for _, m := range a.Memories {
		// Memory write failures never abort the loop; the spec's only
		// atomicity invariant is per-memory (§4.5 invariant 1), not
		// agent-loop-wide.
		_ = m.Add(ctx, t, msg)
	}
}

// retrieveContext implements Prepare's memory.retrieve(input): for each
// attached Retriever-capable memory (vector/hybrid: semantic search;
// windowed: N most recent), fetch messages keyed on the input text and
// concatenate in attachment order.
func (a *Agent) retrieveContext(ctx context.Context, input string) []chat.Message {
	t := a.tenant()
	var out []chat.Message
	for _, m := range a.Memories {
		if r, ok := m.(memory.Retriever); ok {
			msgs, err := r.Retrieve(ctx, t, input)
			if err != nil {
				continue
			}
			out = append(out, msgs...)
			continue
		}
		entries, err := m.GetAll(ctx, t)
		if err != nil {
			continue
		}
		for _, e := range entries {
			out = append(out, e.Message)
		}
	}
	return out
}

// prepare assembles the initial message list for Prepare: system
// (instructions) ++ memory.retrieve(input) ++ input. Retrieval runs
// against memory as it stood before this turn was appended (Init appends
// input to every memory first), so the recalled history never includes
// the very turn being prepared.
func (a *Agent) prepare(ctx context.Context, retrieved []chat.Message, input chat.Message) []chat.Message {
	var messages []chat.Message
	if a.Instructions != "" {
		messages = append(messages, chat.Message{Role: chat.RoleSystem, Text: a.Instructions})
	}
	messages = append(messages, retrieved...)
	messages = append(messages, input)
	return messages
}

// provider resolves the model to Invoke. Per spec §4.4's Invoke state
// ("dispatch to the attached model; if missing, use the default
// provider"): without an attached Provider, Options.Provider is resolved
// through the providers registry; resolution fails when neither is set.
func (a *Agent) provider() (providers.Service, error) {
	if a.Provider != nil {
		return a.Provider, nil
	}
	if a.Options.Provider != "" {
		return providers.Get(a.Options.Provider, providers.ServiceConfig{
			APIKey:       a.Options.APIKey,
			Credential:   a.Options.Credential,
			DefaultModel: a.Model,
		})
	}
	return nil, errs.New(errs.ConfigMissing, "agent %q has no attached provider", a.Name)
}

// Run executes the agent loop synchronously to completion and returns the
// final assistant message's text content.
func (a *Agent) Run(ctx context.Context, input string) (string, error) {
	msg, _, err := a.run(ctx, input, nil)
	if err != nil {
		return "", err
	}
	return msg.Content(), nil
}

// Stream executes the agent loop, reporting each assistant turn through
// onChunk. Intermediate turns that request tools are signaled as
// structured chunks carrying ToolCalls; their text (if any) is also
// emitted. Every turn, the final one included, is obtained with a
// non-streaming Invoke call, so the final (non-tool-requesting) turn's
// text arrives as a single chunk with Done set; the provider's
// InvokeStream is not used.
func (a *Agent) Stream(ctx context.Context, onChunk func(runnable.StreamChunk), input string) error {
	_, _, err := a.run(ctx, input, onChunk)
	return err
}

// run is the shared implementation of the state machine backing Run and
// Stream. onChunk, when non-nil, receives one chunk per turn
// (intermediate turns carry ToolCalls; the final turn carries its full
// text with Done set).
func (a *Agent) run(ctx context.Context, input string, onChunk func(runnable.StreamChunk)) (chat.Message, int, error) {
	svc, err := a.provider()
	if err != nil {
		return chat.Message{}, 0, err
	}

	// Prepare: retrieve against memory as it stood before this turn.
	retrieved := a.retrieveContext(ctx, input)

	// Init
	inputMsg := chat.Message{Role: chat.RoleUser, Text: input}
	a.addToMemories(ctx, inputMsg)
	a.Bus.Emit(events.BeforeAIAgentRun, events.Payload{"agent": a.Name, "input": input})

	messages := a.prepare(ctx, retrieved, inputMsg)

	params := a.Params
	params.Tools = a.Tools.Specs()

	var final, lastAssistant chat.Message
	iterations := 0

	for {
		iterations++
		if iterations > a.MaxIterations {
			a.Bus.Emit(events.OnAIError, events.Payload{
				"agent":   a.Name,
				"warning": fmt.Sprintf("agent %q exceeded max_iterations (%d)", a.Name, a.MaxIterations),
			})
			final = lastAssistant
			break
		}

		req := &chat.Request{Messages: messages, Model: a.Model, Params: params, Options: a.Options}

		// Invoke
		resp, err := svc.Invoke(ctx, req)
		if err != nil {
			return chat.Message{}, iterations, errs.Wrap(errs.ProviderError, svc.Name(), err)
		}
		if len(resp.Choices) == 0 {
			return chat.Message{}, iterations, errs.New(errs.ProtocolError, "agent %q: provider %q returned no choices", a.Name, svc.Name())
		}
		assistantMsg := resp.Choices[0].Message
		lastAssistant = assistantMsg

		// Inspect
		if !resp.HasToolCalls() {
			final = assistantMsg
			if onChunk != nil {
				onChunk(runnable.StreamChunk{Text: assistantMsg.Content(), Done: true})
			}
			messages = append(messages, assistantMsg)
			break
		}

		if onChunk != nil {
			onChunk(runnable.StreamChunk{Text: assistantMsg.Content(), ToolCalls: assistantMsg.ToolCalls})
		}

		// ToolDispatch
		results := a.Tools.ExecuteParallel(ctx, assistantMsg.ToolCalls)
		toolMsgs := tool.ToMessages(results)

		// Update
		messages = append(messages, assistantMsg)
		messages = append(messages, toolMsgs...)
		a.addToMemories(ctx, assistantMsg)
		for _, tm := range toolMsgs {
			a.addToMemories(ctx, tm)
		}
	}

	// Finalize
	a.addToMemories(ctx, final)
	a.Bus.Emit(events.AfterAIAgentRun, events.Payload{"agent": a.Name, "output": final.Content()})
	return final, iterations, nil
}

// ChatOptions is reserved for future single-shot call options; the loop
// itself needs nothing beyond Agent.Params/Agent.Options, since tools and
// memories are attached once to the Agent rather than threaded per call.
type ChatOptions struct{}

// ChatResult is one Run call's outcome in request/response shape.
type ChatResult struct {
	Content string
}

// Chat adapts Run to a request/response shape for callers that prefer it
// over the bare string return, each call an independent Run rather than a
// turn in a shared conversation.
func (a *Agent) Chat(ctx context.Context, message string, opts *ChatOptions) (*ChatResult, error) {
	content, err := a.Run(ctx, message)
	if err != nil {
		return nil, err
	}
	return &ChatResult{Content: content}, nil
}
