// Package cohere implements providers.Service against Cohere's v2 Chat and
// Embed REST APIs. No pack repo or the teacher carries a Cohere Go client,
// so this is built directly on net/http/encoding/json, following the
// request-building and error-wrapping idiom of the teacher's
// embedding_ollama.go (another REST-only provider in the same package).
package cohere

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/airuntime/core/chat"
	"github.com/airuntime/core/errs"
	"github.com/airuntime/core/providers"
)

const (
	defaultBaseURL    = "https://api.cohere.com"
	defaultChatModel  = "command-r-plus"
	defaultEmbedModel = "embed-english-v3.0"
)

func init() {
	providers.Register("cohere", New)
}

// Service implements providers.Service against Cohere's REST API.
type Service struct {
	apiKey  string
	baseURL string
	cfg     providers.ServiceConfig
	http    *http.Client
}

// New constructs the Cohere service.
func New(cfg providers.ServiceConfig) (providers.Service, error) {
	key := providers.ResolveAPIKey("cohere", cfg.APIKey, "", "")
	if key == "" {
		return nil, errs.New(errs.ConfigMissing, "no Cohere API key resolvable (option, config, COHERE_API_KEY env)")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Service{apiKey: key, baseURL: baseURL, cfg: cfg, http: &http.Client{Timeout: 60 * time.Second}}, nil
}

func (s *Service) Name() string { return "cohere" }

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
	return defaultChatModel
}

type cohereMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type cohereChatRequest struct {
	Model         string          `json:"model"`
	Messages      []cohereMessage `json:"messages"`
	Temperature   float64         `json:"temperature,omitempty"`
	MaxTokens     int             `json:"max_tokens,omitempty"`
	P             float64         `json:"p,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Stream        bool            `json:"stream"`
}

type cohereChatResponse struct {
	ID      string `json:"id"`
	Message struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
	Usage        struct {
		BilledUnits struct {
			InputTokens  float64 `json:"input_tokens"`
			OutputTokens float64 `json:"output_tokens"`
		} `json:"billed_units"`
	} `json:"usage"`
}

func toCohereMessages(msgs []chat.Message) []cohereMessage {
	out := make([]cohereMessage, 0, len(msgs))
	for _, m := range msgs {
		role := "user"
		switch m.Role {
		case chat.RoleSystem:
			role = "system"
		case chat.RoleAssistant:
			role = "assistant"
		case chat.RoleTool:
			role = "tool"
		}
		out = append(out, cohereMessage{Role: role, Content: m.Content()})
	}
	return out
}

func (s *Service) doJSON(ctx context.Context, path string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return errs.Wrap(errs.InvalidArgument, "cohere", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return errs.Wrap(errs.ProviderError, "cohere", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.http.Do(req)
	if err != nil {
		return errs.Wrap(errs.ProviderError, "cohere", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Wrap(errs.ProviderError, "cohere", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return errs.New(errs.RateLimited, "cohere rate limit exceeded")
	}
	if resp.StatusCode >= 300 {
		return errs.New(errs.ProviderError, "cohere returned status %d: %s", resp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errs.Wrap(errs.ProtocolError, "cohere", err)
	}
	return nil
}

// Invoke performs a synchronous chat call against /v2/chat.
func (s *Service) Invoke(ctx context.Context, req *chat.Request) (*chat.Response, error) {
	params := providers.MergeParams(s.cfg.Params, req.Params)
	body := cohereChatRequest{
		Model:         s.model(req),
		Messages:      toCohereMessages(req.Messages),
		Temperature:   params.Temperature,
		MaxTokens:     params.MaxTokens,
		P:             params.TopP,
		StopSequences: params.Stop,
	}
	var parsed cohereChatResponse
	if err := s.doJSON(ctx, "/v2/chat", body, &parsed); err != nil {
		return nil, err
	}

	var text string
	for _, c := range parsed.Message.Content {
		if c.Type == "text" {
			text += c.Text
		}
	}
	return &chat.Response{
		ID:    parsed.ID,
		Model: body.Model,
		Usage: chat.TokenUsage{
			PromptTokens:     int(parsed.Usage.BilledUnits.InputTokens),
			CompletionTokens: int(parsed.Usage.BilledUnits.OutputTokens),
			TotalTokens:      int(parsed.Usage.BilledUnits.InputTokens + parsed.Usage.BilledUnits.OutputTokens),
		},
		Choices: []chat.Choice{{
			Message:      chat.Message{Role: chat.RoleAssistant, Text: text},
			FinishReason: parsed.FinishReason,
		}},
		Raw: parsed,
	}, nil
}

// InvokeStream is not implemented against Cohere's SSE stream; Cohere
// streaming uses a distinct event-typed protocol (chunked
// "event: content-delta" frames) this module does not wire up, so streaming
// callers get an explicit unsupported error instead of a silent non-stream
// fallback.
func (s *Service) InvokeStream(ctx context.Context, req *chat.Request, onChunk func(chat.StreamChunk)) error {
	return errs.New(errs.UnsupportedOperation, "cohere streaming is not implemented")
}

type cohereEmbedRequest struct {
	Model          string   `json:"model"`
	Texts          []string `json:"texts"`
	InputType      string   `json:"input_type"`
	EmbeddingTypes []string `json:"embedding_types"`
}

type cohereEmbedResponse struct {
	ID         string `json:"id"`
	Embeddings struct {
		Float [][]float32 `json:"float"`
	} `json:"embeddings"`
}

// Embed generates embeddings via /v2/embed.
func (s *Service) Embed(ctx context.Context, req *chat.EmbeddingRequest) (*chat.EmbeddingResponse, error) {
	if len(req.Input) == 0 {
		return nil, errs.New(errs.InvalidArgument, "embedding request requires at least one input")
	}
	model := req.Model
	if model == "" {
		model = defaultEmbedModel
	}
	inputType := req.Params.InputType
	if inputType == "" {
		inputType = "search_document"
	}

	body := cohereEmbedRequest{
		Model:          model,
		Texts:          req.Input,
		InputType:      inputType,
		EmbeddingTypes: []string{"float"},
	}
	var parsed cohereEmbedResponse
	if err := s.doJSON(ctx, "/v2/embed", body, &parsed); err != nil {
		return nil, err
	}

	out := &chat.EmbeddingResponse{Model: model, Raw: parsed}
	for i, vec := range parsed.Embeddings.Float {
		out.Embeddings = append(out.Embeddings, chat.Embedding{Index: i, Vector: vec})
	}
	return out, nil
}
