// Package ollama implements providers.Service for local Ollama models.
// Chat completion is grounded on the teacher's builder.go ProviderOllama
// branch, which points an openai-go client at Ollama's OpenAI-compatible
// endpoint (http://localhost:11434/v1) with a placeholder API key. Embed is
// grounded on the teacher's embedding_ollama.go OllamaEmbedding, which
// hand-rolls the request against Ollama's native (non-OpenAI-compatible)
// /api/embeddings endpoint with net/http since no embeddings exist on the
// OpenAI-compatible surface for every model.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/airuntime/core/chat"
	"github.com/airuntime/core/errs"
	"github.com/airuntime/core/providers"
	aiopenai "github.com/airuntime/core/providers/openai"
)

const (
	defaultBaseURL    = "http://localhost:11434"
	defaultChatModel  = "llama3.1"
	defaultEmbedModel = "nomic-embed-text"
	placeholderAPIKey = "ollama" // Ollama does not require a real key
)

func init() {
	providers.Register("ollama", New)
}

// Service implements providers.Service for Ollama: chat delegates to an
// openai.Client pointed at Ollama's compatible endpoint (reusing
// providers/openai's request/response conversion), embeddings talk to
// Ollama's native HTTP API directly.
type Service struct {
	client  openai.Client
	baseURL string
	cfg     providers.ServiceConfig
	http    *http.Client
}

// New constructs the Ollama service.
func New(cfg providers.ServiceConfig) (providers.Service, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client := openai.NewClient(
		option.WithBaseURL(baseURL+"/v1"),
		option.WithAPIKey(placeholderAPIKey),
	)
	return &Service{
		client:  client,
		baseURL: baseURL,
		cfg:     cfg,
		http:    &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (s *Service) Name() string { return "ollama" }

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

// Invoke delegates request/response conversion to providers/openai's
// exported helpers since Ollama's chat endpoint is OpenAI-shaped.
func (s *Service) Invoke(ctx context.Context, req *chat.Request) (*chat.Response, error) {
	params := aiopenai.BuildParams(s.model(req), providers.MergeParams(s.cfg.Params, req.Params), req.Messages)
	completion, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, errs.Wrap(errs.ProviderError, "ollama", err)
	}
	return aiopenai.FromCompletion(completion), nil
}

// InvokeStream streams chat completions the same way providers/openai does.
func (s *Service) InvokeStream(ctx context.Context, req *chat.Request, onChunk func(chat.StreamChunk)) error {
	params := aiopenai.BuildParams(s.model(req), providers.MergeParams(s.cfg.Params, req.Params), req.Messages)
	stream := s.client.Chat.Completions.NewStreaming(ctx, params)
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
		return errs.Wrap(errs.ProviderError, "ollama", err)
	}
	onChunk(chat.StreamChunk{Done: true})
	return nil
}

type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed generates an embedding per input using Ollama's native
// /api/embeddings endpoint, one call per input since that endpoint takes a
// single prompt (same limitation the teacher's OllamaEmbedding.EmbedBatch
// works around by looping).
func (s *Service) Embed(ctx context.Context, req *chat.EmbeddingRequest) (*chat.EmbeddingResponse, error) {
	model := req.Model
	if model == "" {
		model = defaultEmbedModel
	}
	out := &chat.EmbeddingResponse{Model: model}
	for i, text := range req.Input {
		vec, err := s.embedOne(ctx, model, text)
		if err != nil {
			return nil, err
		}
		out.Embeddings = append(out.Embeddings, chat.Embedding{Index: i, Vector: vec})
	}
	return out, nil
}

func (s *Service) embedOne(ctx context.Context, model, text string) ([]float32, error) {
	reqBody, err := json.Marshal(ollamaEmbeddingRequest{Model: model, Prompt: text})
	if err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, "ollama", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/embeddings", bytes.NewReader(reqBody))
	if err != nil {
		return nil, errs.Wrap(errs.ProviderError, "ollama", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(httpReq)
	if err != nil {
		return nil, errs.Wrap(errs.ProviderError, "ollama", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.ProviderError, "ollama", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errs.New(errs.ProviderError, "ollama embeddings returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed ollamaEmbeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errs.Wrap(errs.ProtocolError, "ollama", err)
	}

	vec := make([]float32, len(parsed.Embedding))
	for i, v := range parsed.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}
