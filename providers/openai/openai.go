// Package openai implements providers.Service against the OpenAI chat
// completions and embeddings APIs, grounded on the teacher's agent.go
// (Agent.Chat/chatStream) and embedding_openai.go (OpenAIEmbedding),
// consolidated onto a single openai-go/v3 client for both concerns.
package openai

import (
	"context"
	"encoding/json"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/airuntime/core/chat"
	"github.com/airuntime/core/errs"
	"github.com/airuntime/core/providers"
)

const defaultModel = "gpt-4o-mini"

func init() {
	providers.Register("openai", New)
}

// Service implements providers.Service against OpenAI's chat/completions
// and embeddings endpoints.
type Service struct {
	client openai.Client
	cfg    providers.ServiceConfig
}

// New constructs the OpenAI service, resolving the API key per spec §4.1's
// precedence order.
func New(cfg providers.ServiceConfig) (providers.Service, error) {
	key := providers.ResolveAPIKey("openai", cfg.APIKey, "", "")
	if key == "" {
		return nil, errs.New(errs.ConfigMissing, "no OpenAI API key resolvable (option, config, OPENAI_API_KEY env)")
	}
	opts := []option.RequestOption{option.WithAPIKey(key)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	s := &Service{client: openai.NewClient(opts...), cfg: cfg}
	return s, nil
}

func (s *Service) Name() string { return "openai" }

// Configure merges opts into the service's base config (spec §4.1).
func (s *Service) Configure(opts providers.ServiceConfig) {
	s.cfg.Params = providers.MergeParams(s.cfg.Params, opts.Params)
	s.cfg.Headers = providers.MergeHeaders(s.cfg.Headers, opts.Headers)
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

// ToMessages converts unified chat messages to OpenAI message params.
// Exported for reuse by providers/ollama, which talks to an
// OpenAI-compatible endpoint.
func ToMessages(msgs []chat.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case chat.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content()))
		case chat.RoleDeveloper:
			out = append(out, openai.DeveloperMessage(m.Content()))
		case chat.RoleUser:
			out = append(out, openai.UserMessage(m.Content()))
		case chat.RoleAssistant:
			if len(m.ToolCalls) > 0 {
				calls := make([]openai.ChatCompletionMessageToolCallUnionParam, len(m.ToolCalls))
				for i, tc := range m.ToolCalls {
					calls[i] = openai.ChatCompletionMessageToolCallUnionParam{
						OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
							ID: tc.ID,
							Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
								Name:      tc.Name,
								Arguments: tc.Arguments,
							},
						},
					}
				}
				out = append(out, openai.ChatCompletionMessageParamUnion{
					OfAssistant: &openai.ChatCompletionAssistantMessageParam{ToolCalls: calls},
				})
				continue
			}
			out = append(out, openai.AssistantMessage(m.Content()))
		case chat.RoleTool:
			out = append(out, openai.ToolMessage(m.Content(), m.ToolCallID))
		default:
			out = append(out, openai.UserMessage(m.Content()))
		}
	}
	return out
}

// ToTools converts unified tool specs to OpenAI tool params. Exported for
// reuse by providers/ollama.
func ToTools(tools []chat.ToolSpec) []openai.ChatCompletionToolUnionParam {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.ChatCompletionToolUnionParam, len(tools))
	for i, t := range tools {
		var fp openai.FunctionParameters
		if raw, err := json.Marshal(t.Parameters); err == nil {
			_ = json.Unmarshal(raw, &fp)
		}
		out[i] = openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
			Parameters:  fp,
		})
	}
	return out
}

func (s *Service) buildParams(req *chat.Request) openai.ChatCompletionNewParams {
	return BuildParams(s.model(req), providers.MergeParams(s.cfg.Params, req.Params), req.Messages)
}

// BuildParams assembles a ChatCompletionNewParams from a resolved model,
// merged Params, and message history. Exported for reuse by
// providers/ollama, whose chat endpoint is OpenAI-shaped.
func BuildParams(model string, params chat.Params, messages []chat.Message) openai.ChatCompletionNewParams {
	p := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: ToMessages(messages),
	}
	if params.Temperature != 0 {
		p.Temperature = openai.Float(params.Temperature)
	}
	if params.TopP != 0 {
		p.TopP = openai.Float(params.TopP)
	}
	if params.MaxTokens != 0 {
		p.MaxTokens = openai.Int(int64(params.MaxTokens))
	}
	if params.Seed != 0 {
		p.Seed = openai.Int(params.Seed)
	}
	if params.N != 0 {
		p.N = openai.Int(int64(params.N))
	}
	if len(params.Stop) > 0 {
		p.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: params.Stop}
	}
	if tools := ToTools(params.Tools); tools != nil {
		p.Tools = tools
	}
	return p
}

// FromCompletion normalizes an OpenAI ChatCompletion into a unified
// chat.Response. Exported for reuse by providers/ollama.
func FromCompletion(completion *openai.ChatCompletion) *chat.Response {
	resp := &chat.Response{
		ID:      completion.ID,
		Model:   completion.Model,
		Created: completion.Created,
		Usage: chat.TokenUsage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
		Raw: completion,
	}
	for i, c := range completion.Choices {
		msg := chat.Message{Role: chat.RoleAssistant, Text: c.Message.Content}
		for _, tc := range c.Message.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, chat.ToolCall{
				ID:        tc.ID,
				Type:      "function",
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		resp.Choices = append(resp.Choices, chat.Choice{
			Message:      msg,
			FinishReason: string(c.FinishReason),
			Index:        i,
		})
	}
	return resp
}

// Invoke performs a synchronous chat completion.
func (s *Service) Invoke(ctx context.Context, req *chat.Request) (*chat.Response, error) {
	completion, err := s.client.Chat.Completions.New(ctx, s.buildParams(req))
	if err != nil {
		return nil, errs.Wrap(errs.ProviderError, "openai", err)
	}
	return FromCompletion(completion), nil
}

// InvokeStream performs a streaming chat completion, accumulating deltas
// with openai.ChatCompletionAccumulator the way the teacher's chatStream
// helper does, but surfacing every delta through onChunk instead of a
// single collect-then-callback pass.
func (s *Service) InvokeStream(ctx context.Context, req *chat.Request, onChunk func(chat.StreamChunk)) error {
	stream := s.client.Chat.Completions.NewStreaming(ctx, s.buildParams(req))
	acc := openai.ChatCompletionAccumulator{}

	for stream.Next() {
		fragment := stream.Current()
		acc.AddChunk(fragment)

		if len(fragment.Choices) > 0 && fragment.Choices[0].Delta.Content != "" {
			onChunk(chat.StreamChunk{Delta: fragment.Choices[0].Delta.Content, Raw: fragment})
		}
	}
	if err := stream.Err(); err != nil {
		onChunk(chat.StreamChunk{Error: err, Done: true})
		return errs.Wrap(errs.ProviderError, "openai", err)
	}
	onChunk(chat.StreamChunk{Done: true, Raw: acc})
	return nil
}

// Embed generates embeddings via the same client's Embeddings endpoint.
func (s *Service) Embed(ctx context.Context, req *chat.EmbeddingRequest) (*chat.EmbeddingResponse, error) {
	if len(req.Input) == 0 {
		return nil, errs.New(errs.InvalidArgument, "embedding request requires at least one input")
	}
	model := req.Model
	if model == "" {
		model = "text-embedding-3-small"
	}
	result, err := s.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: req.Input},
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, errs.Wrap(errs.ProviderError, "openai", err)
	}

	out := &chat.EmbeddingResponse{Model: model, Raw: result}
	for _, d := range result.Data {
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out.Embeddings = append(out.Embeddings, chat.Embedding{Index: int(d.Index), Vector: vec})
	}
	out.Usage = chat.TokenUsage{
		PromptTokens: int(result.Usage.PromptTokens),
		TotalTokens:  int(result.Usage.TotalTokens),
	}
	return out, nil
}
