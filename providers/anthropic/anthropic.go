// Package anthropic implements providers.Service against the Anthropic
// Messages API. Grounded on
// Easonliuliang-APEXION/aictl/internal/provider/anthropic.go
// (AnthropicProvider.Chat/buildMessages/buildTools/processStream), the only
// pack repo carrying a native Anthropic integration — the teacher itself
// has no Claude adapter.
package anthropic

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"

	"github.com/airuntime/core/chat"
	"github.com/airuntime/core/errs"
	"github.com/airuntime/core/providers"
)

const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 8192
)

func init() {
	providers.Register("claude", New)
	providers.Register("anthropic", New)
}

// Service implements providers.Service against anthropic.Client.
type Service struct {
	client anthropic.Client
	cfg    providers.ServiceConfig
}

// New constructs the Anthropic service.
func New(cfg providers.ServiceConfig) (providers.Service, error) {
	key := providers.ResolveAPIKey("claude", cfg.APIKey, "", "")
	if key == "" {
		return nil, errs.New(errs.ConfigMissing, "no Anthropic API key resolvable (option, config, CLAUDE_API_KEY env)")
	}
	opts := []anthropicoption.RequestOption{anthropicoption.WithAPIKey(key)}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropicoption.WithBaseURL(cfg.BaseURL))
	}
	return &Service{client: anthropic.NewClient(opts...), cfg: cfg}, nil
}

func (s *Service) Name() string { return "claude" }

func (s *Service) Configure(opts providers.ServiceConfig) {
	s.cfg.Params = providers.MergeParams(s.cfg.Params, opts.Params)
	if opts.DefaultModel != "" {
		s.cfg.DefaultModel = opts.DefaultModel
	}
}

func (s *Service) model(req *chat.Request) string {
	if req.Model != "" {
		return req.Model
	}
	if s.cfg.DefaultModel != "" {
		return s.cfg.DefaultModel
	}
	return defaultModel
}

// BuildMessages converts unified chat messages to Anthropic's content-block
// message params. Exported for reuse by providers/bedrock, which talks to
// the same Messages API through a different transport.
func BuildMessages(msgs []chat.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for _, m := range msgs {
		switch m.Role {
		case chat.RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content())))
		case chat.RoleAssistant:
			if len(m.ToolCalls) > 0 {
				blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.ToolCalls)+1)
				if m.Text != "" {
					blocks = append(blocks, anthropic.NewTextBlock(m.Text))
				}
				for _, tc := range m.ToolCalls {
					var input any
					if tc.Arguments != "" {
						_ = json.Unmarshal([]byte(tc.Arguments), &input)
					}
					if input == nil {
						input = map[string]any{}
					}
					blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
				}
				out = append(out, anthropic.NewAssistantMessage(blocks...))
				continue
			}
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content())))
		case chat.RoleTool:
			out = append(out, anthropic.NewUserMessage(anthropic.NewToolResultBlock(m.ToolCallID, m.Content(), false)))
		}
	}
	return out
}

// BuildTools converts unified tool specs to Anthropic tool params. Exported
// for reuse by providers/bedrock.
func BuildTools(tools []chat.ToolSpec) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{Properties: t.Parameters},
			},
		})
	}
	return out
}

func (s *Service) buildParams(req *chat.Request) anthropic.MessageNewParams {
	params := providers.MergeParams(s.cfg.Params, req.Params)

	maxTokens := int64(params.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	p := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model(req)),
		Messages:  BuildMessages(req.Messages),
		MaxTokens: maxTokens,
	}
	for _, m := range req.Messages {
		if m.Role == chat.RoleSystem {
			p.System = []anthropic.TextBlockParam{{Text: m.Content()}}
			break
		}
	}
	if params.Temperature != 0 {
		p.Temperature = anthropic.Float(params.Temperature)
	}
	if params.TopP != 0 {
		p.TopP = anthropic.Float(params.TopP)
	}
	if len(params.Stop) > 0 {
		p.StopSequences = params.Stop
	}
	if tools := BuildTools(params.Tools); len(tools) > 0 {
		p.Tools = tools
	}
	return p
}

// Invoke performs a synchronous Messages.New call.
func (s *Service) Invoke(ctx context.Context, req *chat.Request) (*chat.Response, error) {
	msg, err := s.client.Messages.New(ctx, s.buildParams(req))
	if err != nil {
		return nil, errs.Wrap(errs.ProviderError, "claude", err)
	}
	return FromMessage(msg), nil
}

// FromMessage normalizes an Anthropic Message into a unified chat.Response.
// Exported for reuse by providers/bedrock.
func FromMessage(msg *anthropic.Message) *chat.Response {
	out := &chat.Response{
		ID:    msg.ID,
		Model: string(msg.Model),
		Usage: chat.TokenUsage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
		Raw: msg,
	}
	chatMsg := chat.Message{Role: chat.RoleAssistant}
	var text strings.Builder
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(b.Text)
		case anthropic.ToolUseBlock:
			args, _ := json.Marshal(b.Input)
			chatMsg.ToolCalls = append(chatMsg.ToolCalls, chat.ToolCall{
				ID:        b.ID,
				Type:      "function",
				Name:      b.Name,
				Arguments: string(args),
			})
		}
	}
	chatMsg.Text = text.String()
	out.Choices = []chat.Choice{{Message: chatMsg, FinishReason: string(msg.StopReason), Index: 0}}
	return out
}

// InvokeStream consumes the Anthropic SSE stream, tracking pending tool_use
// blocks by content-block index the way processStream does, and delivering
// text deltas plus a final Done chunk with completed tool calls.
func (s *Service) InvokeStream(ctx context.Context, req *chat.Request, onChunk func(chat.StreamChunk)) error {
	stream := s.client.Messages.NewStreaming(ctx, s.buildParams(req))
	defer stream.Close()

	type pendingCall struct {
		id   string
		name string
		buf  strings.Builder
	}
	pending := make(map[int64]*pendingCall)
	var toolCalls []chat.ToolCall

	for stream.Next() {
		event := stream.Current()
		switch v := event.AsAny().(type) {
		case anthropic.ContentBlockStartEvent:
			if v.ContentBlock.Type == "tool_use" {
				tu := v.ContentBlock.AsToolUse()
				pending[v.Index] = &pendingCall{id: tu.ID, name: tu.Name}
			}
		case anthropic.ContentBlockDeltaEvent:
			switch d := v.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				onChunk(chat.StreamChunk{Delta: d.Text, Raw: v})
			case anthropic.InputJSONDelta:
				if pc, ok := pending[v.Index]; ok {
					pc.buf.WriteString(d.PartialJSON)
				}
			}
		case anthropic.ContentBlockStopEvent:
			if pc, ok := pending[v.Index]; ok {
				args := pc.buf.String()
				if args == "" {
					args = "{}"
				}
				toolCalls = append(toolCalls, chat.ToolCall{ID: pc.id, Type: "function", Name: pc.name, Arguments: args})
				delete(pending, v.Index)
			}
		}
	}
	if err := stream.Err(); err != nil {
		onChunk(chat.StreamChunk{Error: err, Done: true})
		return errs.Wrap(errs.ProviderError, "claude", err)
	}
	onChunk(chat.StreamChunk{ToolCalls: toolCalls, Done: true})
	return nil
}

// Embed is unsupported: Anthropic does not expose an embeddings endpoint.
func (s *Service) Embed(ctx context.Context, req *chat.EmbeddingRequest) (*chat.EmbeddingResponse, error) {
	return nil, errs.New(errs.UnsupportedOperation, "claude does not support embeddings")
}
