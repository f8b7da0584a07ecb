// Package voyage implements providers.Service against Voyage AI's Embed
// REST API. Voyage has no chat endpoint and no Go SDK in the pack, so
// Invoke/InvokeStream return UnsupportedOperation and Embed is built
// directly on net/http/encoding/json, following the same REST-provider
// shape as providers/cohere and the teacher's embedding_ollama.go.
package voyage

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
	defaultBaseURL = "https://api.voyageai.com"
	defaultModel   = "voyage-3"
)

func init() {
	providers.Register("voyage", New)
}

// Service implements providers.Service against Voyage AI's embeddings API.
type Service struct {
	apiKey  string
	baseURL string
	cfg     providers.ServiceConfig
	http    *http.Client
}

// New constructs the Voyage service.
func New(cfg providers.ServiceConfig) (providers.Service, error) {
	key := providers.ResolveAPIKey("voyage", cfg.APIKey, "", "")
	if key == "" {
		return nil, errs.New(errs.ConfigMissing, "no Voyage API key resolvable (option, config, VOYAGE_API_KEY env)")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Service{apiKey: key, baseURL: baseURL, cfg: cfg, http: &http.Client{Timeout: 60 * time.Second}}, nil
}

func (s *Service) Name() string { return "voyage" }

func (s *Service) Configure(opts providers.ServiceConfig) {
	s.cfg.Params = providers.MergeParams(s.cfg.Params, opts.Params)
	if opts.DefaultModel != "" {
		s.cfg.DefaultModel = opts.DefaultModel
	}
}

// Invoke is unsupported: Voyage AI only exposes embedding/rerank endpoints.
func (s *Service) Invoke(ctx context.Context, req *chat.Request) (*chat.Response, error) {
	return nil, errs.New(errs.UnsupportedOperation, "voyage does not support chat completion")
}

// InvokeStream is unsupported for the same reason as Invoke.
func (s *Service) InvokeStream(ctx context.Context, req *chat.Request, onChunk func(chat.StreamChunk)) error {
	return errs.New(errs.UnsupportedOperation, "voyage does not support chat completion")
}

type voyageEmbedRequest struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type,omitempty"`
}

type voyageEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Embed generates embeddings via /v1/embeddings.
func (s *Service) Embed(ctx context.Context, req *chat.EmbeddingRequest) (*chat.EmbeddingResponse, error) {
	if len(req.Input) == 0 {
		return nil, errs.New(errs.InvalidArgument, "embedding request requires at least one input")
	}
	model := req.Model
	if model == "" {
		model = defaultModel
		if s.cfg.DefaultModel != "" {
			model = s.cfg.DefaultModel
		}
	}

	body := voyageEmbedRequest{Input: req.Input, Model: model, InputType: req.Params.InputType}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, "voyage", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/embeddings", bytes.NewReader(raw))
	if err != nil {
		return nil, errs.Wrap(errs.ProviderError, "voyage", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.http.Do(httpReq)
	if err != nil {
		return nil, errs.Wrap(errs.ProviderError, "voyage", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.ProviderError, "voyage", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errs.New(errs.RateLimited, "voyage rate limit exceeded")
	}
	if resp.StatusCode >= 300 {
		return nil, errs.New(errs.ProviderError, "voyage returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed voyageEmbedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, errs.Wrap(errs.ProtocolError, "voyage", err)
	}

	out := &chat.EmbeddingResponse{Model: parsed.Model, Raw: parsed, Usage: chat.TokenUsage{TotalTokens: parsed.Usage.TotalTokens}}
	for _, d := range parsed.Data {
		out.Embeddings = append(out.Embeddings, chat.Embedding{Index: d.Index, Vector: d.Embedding})
	}
	return out, nil
}
