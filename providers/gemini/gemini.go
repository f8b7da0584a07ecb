// Package gemini implements providers.Service against Google's Generative
// AI API, grounded on the teacher's adapters/gemini_adapter.go GeminiAdapter
// (GenerativeModel configuration, parts-based content, iterator streaming).
package gemini

import (
	"context"
	"encoding/json"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/airuntime/core/chat"
	"github.com/airuntime/core/errs"
	"github.com/airuntime/core/providers"
)

const defaultModel = "gemini-1.5-flash"

func init() {
	providers.Register("gemini", New)
}

// Service implements providers.Service against genai.Client.
type Service struct {
	client *genai.Client
	cfg    providers.ServiceConfig
}

// New constructs the Gemini service.
func New(cfg providers.ServiceConfig) (providers.Service, error) {
	key := providers.ResolveAPIKey("gemini", cfg.APIKey, "", "")
	if key == "" {
		return nil, errs.New(errs.ConfigMissing, "no Gemini API key resolvable (option, config, GEMINI_API_KEY env)")
	}
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(key))
	if err != nil {
		return nil, errs.Wrap(errs.ProviderError, "gemini", err)
	}
	return &Service{client: client, cfg: cfg}, nil
}

func (s *Service) Name() string { return "gemini" }

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

// configureModel applies Params onto a GenerativeModel, temperature clamped
// to Gemini's 0-1 range the way the teacher's configureModel does.
func (s *Service) configureModel(model *genai.GenerativeModel, req *chat.Request) {
	params := providers.MergeParams(s.cfg.Params, req.Params)

	for _, m := range req.Messages {
		if m.Role == chat.RoleSystem {
			model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(m.Content())}}
			break
		}
	}
	if params.Temperature > 0 {
		temp := float32(params.Temperature)
		if temp > 1.0 {
			temp = 1.0
		}
		model.SetTemperature(temp)
	}
	if params.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(params.MaxTokens))
	}
	if params.TopP > 0 {
		model.SetTopP(float32(params.TopP))
	}
	if len(params.Stop) > 0 {
		model.StopSequences = params.Stop
	}
	if len(params.Tools) > 0 {
		model.Tools = convertTools(params.Tools)
	}
}

// convertMessagesToParts drops system messages (handled via
// SystemInstruction) and flattens the remaining turns to genai.Text parts,
// same simplification the teacher's adapter makes.
func convertMessagesToParts(messages []chat.Message) []genai.Part {
	parts := make([]genai.Part, 0, len(messages))
	for _, m := range messages {
		if m.Role == chat.RoleUser || m.Role == chat.RoleAssistant {
			parts = append(parts, genai.Text(m.Content()))
		}
	}
	return parts
}

// convertTools builds genai.FunctionDeclaration schemas from the JSON-schema
// parameter maps, a fuller conversion than the teacher's placeholder
// (which always emitted an empty TypeObject schema).
func convertTools(tools []chat.ToolSpec) []*genai.Tool {
	out := make([]*genai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, &genai.Tool{
			FunctionDeclarations: []*genai.FunctionDeclaration{{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  jsonSchemaToGenai(t.Parameters),
			}},
		})
	}
	return out
}

func jsonSchemaToGenai(m map[string]any) *genai.Schema {
	if m == nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	schema := &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{}}
	props, _ := m["properties"].(map[string]any)
	for name, raw := range props {
		prop, _ := raw.(map[string]any)
		schema.Properties[name] = &genai.Schema{
			Type:        jsonTypeToGenai(prop["type"]),
			Description: stringOr(prop["description"]),
		}
	}
	if req, ok := m["required"].([]string); ok {
		schema.Required = req
	} else if reqAny, ok := m["required"].([]any); ok {
		for _, r := range reqAny {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	return schema
}

func jsonTypeToGenai(v any) genai.Type {
	switch stringOr(v) {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}

func stringOr(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// Invoke performs a synchronous generation call.
func (s *Service) Invoke(ctx context.Context, req *chat.Request) (*chat.Response, error) {
	model := s.client.GenerativeModel(s.model(req))
	s.configureModel(model, req)

	resp, err := model.GenerateContent(ctx, convertMessagesToParts(req.Messages)...)
	if err != nil {
		return nil, errs.Wrap(errs.ProviderError, "gemini", err)
	}
	return convertResponse(resp), nil
}

// InvokeStream performs a streaming generation call using genai's iterator,
// same shape as the teacher's Stream method but delivering every fragment
// through onChunk instead of only a final callback.
func (s *Service) InvokeStream(ctx context.Context, req *chat.Request, onChunk func(chat.StreamChunk)) error {
	model := s.client.GenerativeModel(s.model(req))
	s.configureModel(model, req)

	iter := model.GenerateContentStream(ctx, convertMessagesToParts(req.Messages)...)
	for {
		fragment, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			onChunk(chat.StreamChunk{Error: err, Done: true})
			return errs.Wrap(errs.ProviderError, "gemini", err)
		}
		for _, c := range fragment.Candidates {
			for _, part := range c.Content.Parts {
				if txt, ok := part.(genai.Text); ok {
					onChunk(chat.StreamChunk{Delta: string(txt), Raw: fragment})
				}
			}
		}
	}
	onChunk(chat.StreamChunk{Done: true})
	return nil
}

func convertResponse(resp *genai.GenerateContentResponse) *chat.Response {
	out := &chat.Response{Raw: resp}
	if resp.UsageMetadata != nil {
		out.Usage = chat.TokenUsage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	for i, candidate := range resp.Candidates {
		msg := chat.Message{Role: chat.RoleAssistant}
		var text string
		for _, part := range candidate.Content.Parts {
			switch p := part.(type) {
			case genai.Text:
				text += string(p)
			case genai.FunctionCall:
				args, _ := json.Marshal(p.Args)
				msg.ToolCalls = append(msg.ToolCalls, chat.ToolCall{
					Type:      "function",
					Name:      p.Name,
					Arguments: string(args),
				})
			}
		}
		msg.Text = text
		finish := ""
		if candidate.FinishReason != genai.FinishReasonUnspecified {
			finish = candidate.FinishReason.String()
		}
		out.Choices = append(out.Choices, chat.Choice{Message: msg, FinishReason: finish, Index: i})
	}
	return out
}

// Embed generates embeddings via genai's embedding model.
func (s *Service) Embed(ctx context.Context, req *chat.EmbeddingRequest) (*chat.EmbeddingResponse, error) {
	model := req.Model
	if model == "" {
		model = "text-embedding-004"
	}
	em := s.client.EmbeddingModel(model)
	out := &chat.EmbeddingResponse{Model: model}
	if len(req.Input) == 1 {
		res, err := em.EmbedContent(ctx, genai.Text(req.Input[0]))
		if err != nil {
			return nil, errs.Wrap(errs.ProviderError, "gemini", err)
		}
		out.Embeddings = append(out.Embeddings, chat.Embedding{Index: 0, Vector: res.Embedding.Values})
		return out, nil
	}

	batch := em.NewBatch()
	for _, in := range req.Input {
		batch.AddContent(genai.Text(in))
	}
	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, errs.Wrap(errs.ProviderError, "gemini", err)
	}
	for i, e := range res.Embeddings {
		out.Embeddings = append(out.Embeddings, chat.Embedding{Index: i, Vector: e.Values})
	}
	return out, nil
}
