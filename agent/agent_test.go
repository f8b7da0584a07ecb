package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/airuntime/core/chat"
	"github.com/airuntime/core/memory"
	"github.com/airuntime/core/providers"
	"github.com/airuntime/core/tool"
)

// scriptedProvider replays a fixed sequence of responses, one per Invoke
// call, recording every request it was asked to serve.
type scriptedProvider struct {
	responses []*chat.Response
	calls     int
	requests  []*chat.Request
}

func (s *scriptedProvider) Name() string { return "scripted" }

func (s *scriptedProvider) Invoke(ctx context.Context, req *chat.Request) (*chat.Response, error) {
	s.requests = append(s.requests, req)
	if s.calls >= len(s.responses) {
		s.calls++
		return s.responses[len(s.responses)-1], nil
	}
	resp := s.responses[s.calls]
	s.calls++
	return resp, nil
}

func (s *scriptedProvider) InvokeStream(ctx context.Context, req *chat.Request, onChunk func(chat.StreamChunk)) error {
	return nil
}

func (s *scriptedProvider) Embed(ctx context.Context, req *chat.EmbeddingRequest) (*chat.EmbeddingResponse, error) {
	return nil, nil
}

func (s *scriptedProvider) Configure(opts providers.ServiceConfig) {}

func TestAgent_Run_NoToolCalls_FinalizesOnFirstTurn(t *testing.T) {
	svc := &scriptedProvider{responses: []*chat.Response{
		{Choices: []chat.Choice{{Message: chat.Message{Role: chat.RoleAssistant, Text: "hello there"}}}},
	}}
	a := New("greeter", "", "be friendly", "test-model", svc)

	out, err := a.Run(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "hello there" {
		t.Fatalf("got %q, want %q", out, "hello there")
	}
	if svc.calls != 1 {
		t.Fatalf("expected exactly one Invoke call, got %d", svc.calls)
	}
}

func TestAgent_Run_DispatchesToolCallThenFinalizes(t *testing.T) {
	svc := &scriptedProvider{responses: []*chat.Response{
		{Choices: []chat.Choice{{Message: chat.Message{
			Role:      chat.RoleAssistant,
			ToolCalls: []chat.ToolCall{{ID: "call1", Name: "add", Arguments: `{"a":2,"b":3}`}},
		}}}},
		{Choices: []chat.Choice{{Message: chat.Message{Role: chat.RoleAssistant, Text: "the sum is 5"}}}},
	}}

	a := New("mathy", "", "", "test-model", svc)
	var gotArgs string
	a.WithTool(tool.New("add", "adds two numbers").WithHandler(
		func(ctx context.Context, args json.RawMessage) (string, error) {
			gotArgs = string(args)
			return "5", nil
		}))

	out, err := a.Run(context.Background(), "what is 2+3")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "the sum is 5" {
		t.Fatalf("got %q, want %q", out, "the sum is 5")
	}
	if gotArgs != `{"a":2,"b":3}` {
		t.Fatalf("tool handler received %q", gotArgs)
	}
	if svc.calls != 2 {
		t.Fatalf("expected two Invoke calls (tool round + finalize), got %d", svc.calls)
	}

	secondReq := svc.requests[1]
	foundToolMsg := false
	for _, m := range secondReq.Messages {
		if m.Role == chat.RoleTool && m.Content() == "5" && m.ToolCallID == "call1" {
			foundToolMsg = true
		}
	}
	if !foundToolMsg {
		t.Fatalf("expected the tool result message to be threaded into the follow-up request, got %+v", secondReq.Messages)
	}
}

func TestAgent_Run_UnknownToolDoesNotAbortLoop(t *testing.T) {
	svc := &scriptedProvider{responses: []*chat.Response{
		{Choices: []chat.Choice{{Message: chat.Message{
			Role:      chat.RoleAssistant,
			ToolCalls: []chat.ToolCall{{ID: "call1", Name: "nonexistent", Arguments: `{}`}},
		}}}},
		{Choices: []chat.Choice{{Message: chat.Message{Role: chat.RoleAssistant, Text: "done anyway"}}}},
	}}
	a := New("agent", "", "", "test-model", svc)

	out, err := a.Run(context.Background(), "go")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "done anyway" {
		t.Fatalf("got %q, want %q", out, "done anyway")
	}
}

func TestAgent_Run_ExceedsMaxIterations(t *testing.T) {
	resp := &chat.Response{Choices: []chat.Choice{{Message: chat.Message{
		Role:      chat.RoleAssistant,
		ToolCalls: []chat.ToolCall{{ID: "call1", Name: "loop", Arguments: `{}`}},
	}}}}
	svc := &scriptedProvider{responses: []*chat.Response{resp}}
	a := New("looper", "", "", "test-model", svc).WithMaxIterations(2)
	a.WithTool(tool.New("loop", "loops forever").WithHandler(
		func(ctx context.Context, args json.RawMessage) (string, error) { return "ok", nil }))

	out, err := a.Run(context.Background(), "go")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "" {
		t.Fatalf("expected the last (toolcall-only, textless) assistant turn as final content, got %q", out)
	}
	if svc.calls != 2 {
		t.Fatalf("expected exactly MaxIterations Invoke calls, got %d", svc.calls)
	}
}

func TestAgent_Run_ExceedsMaxIterations_KeepsLastAssistantText(t *testing.T) {
	resp := &chat.Response{Choices: []chat.Choice{{Message: chat.Message{
		Role:      chat.RoleAssistant,
		Text:      "still working on it",
		ToolCalls: []chat.ToolCall{{ID: "call1", Name: "loop", Arguments: `{}`}},
	}}}}
	svc := &scriptedProvider{responses: []*chat.Response{resp}}
	a := New("looper", "", "", "test-model", svc).WithMaxIterations(1)
	a.WithTool(tool.New("loop", "loops forever").WithHandler(
		func(ctx context.Context, args json.RawMessage) (string, error) { return "ok", nil }))

	out, err := a.Run(context.Background(), "go")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "still working on it" {
		t.Fatalf("got %q, want the last assistant turn's text even though the loop never reached a terminal turn", out)
	}
}

func TestAgent_Run_PrependsInstructionsAndMemory(t *testing.T) {
	svc := &scriptedProvider{responses: []*chat.Response{
		{Choices: []chat.Choice{{Message: chat.Message{Role: chat.RoleAssistant, Text: "ack"}}}},
	}}
	a := New("historian", "", "remember everything", "test-model", svc)
	recent := memory.NewWindowed(10)
	a.WithMemory(recent)
	a.Options.UserID, a.Options.ConversationID = "u1", "c1"

	ctx := context.Background()
	_, err := a.Run(ctx, "first turn")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	req := svc.requests[0]
	if req.Messages[0].Role != chat.RoleSystem || req.Messages[0].Content() != "remember everything" {
		t.Fatalf("expected a leading system message, got %+v", req.Messages[0])
	}

	entries, err := recent.GetAll(ctx, memory.Tenant{UserID: "u1", ConversationID: "c1"})
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected the user turn and the final assistant turn both persisted, got %d entries", len(entries))
	}
}

func TestAgent_WithSubAgent_ExposesRunAsTool(t *testing.T) {
	subSvc := &scriptedProvider{responses: []*chat.Response{
		{Choices: []chat.Choice{{Message: chat.Message{Role: chat.RoleAssistant, Text: "sub-agent answer"}}}},
	}}
	sub := New("researcher", "looks things up", "", "test-model", subSvc)

	mainSvc := &scriptedProvider{responses: []*chat.Response{
		{Choices: []chat.Choice{{Message: chat.Message{
			Role:      chat.RoleAssistant,
			ToolCalls: []chat.ToolCall{{ID: "call1", Name: "researcher", Arguments: `{"input":"what is Go"}`}},
		}}}},
		{Choices: []chat.Choice{{Message: chat.Message{Role: chat.RoleAssistant, Text: "final answer"}}}},
	}}
	main := New("lead", "", "", "test-model", mainSvc).WithSubAgent(sub, "input")

	out, err := main.Run(context.Background(), "research Go")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "final answer" {
		t.Fatalf("got %q, want %q", out, "final answer")
	}
	if subSvc.calls != 1 {
		t.Fatalf("expected the sub-agent to run exactly once, got %d", subSvc.calls)
	}
}
