// Package providers defines the provider-agnostic Service contract (spec
// §4.1) and hosts the process-wide registry, rate limiter, and multi-provider
// router built on top of it. It generalizes the teacher package's
// adapter.go LLMAdapter interface (Complete/Stream over a CompletionRequest)
// into the richer Service contract spec §4.1 requires: named providers,
// embeddings, streaming callbacks over provider-native JSON chunks, and
// config merge/API-key-resolution semantics.
package providers

import (
	"context"

	"github.com/airuntime/core/chat"
)

// Service adapts the unified chat.Request/chat.EmbeddingRequest to one
// provider's wire format and normalizes the response. Every provider
// subpackage (openai, anthropic, gemini, bedrock, cohere, ollama, voyage)
// implements this.
type Service interface {
	// Name returns the provider's registry key, e.g. "openai".
	Name() string

	// Invoke performs a synchronous chat completion.
	Invoke(ctx context.Context, req *chat.Request) (*chat.Response, error)

	// InvokeStream performs a streaming chat completion. onChunk is called
	// once per decoded SSE/event-stream fragment; chunk shape is
	// provider-native (spec §4.1).
	InvokeStream(ctx context.Context, req *chat.Request, onChunk func(chat.StreamChunk)) error

	// Embed generates embeddings. Providers that don't support embeddings
	// (anthropic, bedrock) return an *errs.Error with Kind
	// errs.UnsupportedOperation.
	Embed(ctx context.Context, req *chat.EmbeddingRequest) (*chat.EmbeddingResponse, error)

	// Configure merges opts' Params and DefaultModel into the service's
	// defaults (the openai service also merges Headers). API keys are
	// resolved by each provider's constructor, not by Configure.
	Configure(opts ServiceConfig)
}

// ServiceConfig is the provider-wide configuration merged into every
// request the service handles (spec §4.1's configure/mergeServiceParams).
type ServiceConfig struct {
	APIKey       string
	Credential   any
	BaseURL      string
	DefaultModel string
	Params       chat.Params
	Headers      map[string]string
}

// MergeParams layers override on top of base, with override's non-zero
// fields winning — the generalized form of spec §4.1's
// mergeServiceParams.
func MergeParams(base, override chat.Params) chat.Params {
	out := base
	if override.Temperature != 0 {
		out.Temperature = override.Temperature
	}
	if override.MaxTokens != 0 {
		out.MaxTokens = override.MaxTokens
	}
	if override.TopP != 0 {
		out.TopP = override.TopP
	}
	if len(override.Stop) > 0 {
		out.Stop = override.Stop
	}
	if override.Seed != 0 {
		out.Seed = override.Seed
	}
	if override.PresencePenalty != 0 {
		out.PresencePenalty = override.PresencePenalty
	}
	if override.FrequencyPenalty != 0 {
		out.FrequencyPenalty = override.FrequencyPenalty
	}
	if len(override.Tools) > 0 {
		out.Tools = override.Tools
	}
	if override.ToolChoice != nil {
		out.ToolChoice = override.ToolChoice
	}
	if override.N != 0 {
		out.N = override.N
	}
	if out.Extra == nil {
		out.Extra = map[string]any{}
	}
	for k, v := range override.Extra {
		out.Extra[k] = v
	}
	return out
}

// MergeHeaders layers override on top of base, override winning per key —
// spec §4.1's mergeServiceHeaders.
func MergeHeaders(base, override map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
