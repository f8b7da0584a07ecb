package chat

import "time"

// ReturnFormat selects how a provider response is transformed before it is
// handed back to the caller (spec §4.1). A non-sentinel value (any other
// string, or a registered schema name) is treated as a structured-output
// schema selector by the caller/pipeline layer.
type ReturnFormat string

const (
	ReturnSingle ReturnFormat = "single"
	ReturnAll    ReturnFormat = "all"
	ReturnRaw    ReturnFormat = "raw"
	ReturnJSON   ReturnFormat = "json"
	ReturnXML    ReturnFormat = "xml"
)

// Options carries the per-call configuration layered onto a request:
// provider selection, credentials, return-format, tenancy, and logging
// flags (spec §3/§6).
type Options struct {
	Provider       string
	APIKey         string
	Credential     any // e.g. Bedrock's {AccessKeyID, SecretAccessKey, SessionToken, Region}
	ReturnFormat   any // ReturnFormat constant, or a structured-output schema value
	Timeout        time.Duration
	LogRequest     bool
	LogResponse    bool
	TenantID       string
	UsageMetadata  map[string]any
	ProviderOpts   map[string]any
	UserID         string
	ConversationID string
}

// DefaultTimeout is applied when Options.Timeout is zero, per spec §5.
const DefaultTimeout = 30 * time.Second

func (o Options) timeoutOrDefault() time.Duration {
	if o.Timeout <= 0 {
		return DefaultTimeout
	}
	return o.Timeout
}

// Timeout returns the effective timeout for this request.
func (r *Request) Timeout() time.Duration { return r.Options.timeoutOrDefault() }

// ToolSpec is the provider-agnostic function-calling declaration threaded
// through Params.Tools.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON schema, OpenAI function-calling shape
}

// Params bundles the per-call model parameters (spec §3's "params").
type Params struct {
	Temperature      float64
	MaxTokens        int
	TopP             float64
	Stop             []string
	Seed             int64
	Tools            []ToolSpec
	ToolChoice       any
	PresencePenalty  float64
	FrequencyPenalty float64
	N                int
	Extra            map[string]any
}

// Request is the unified ChatRequest of spec §3. It is created per-call,
// mutated only during its own assembly, and never shared past response
// emission.
type Request struct {
	Messages []Message
	Model    string
	Params   Params
	Options  Options
	Headers  map[string]string

	// Original is the ChatMessage builder that produced Messages, kept for
	// traceability (spec §3's "original ChatMessage").
	Original *ChatMessage
}

// NewRequest builds a Request from a ChatMessage.
func NewRequest(model string, cm *ChatMessage) *Request {
	return &Request{
		Model:    model,
		Messages: cm.Messages(),
		Original: cm,
	}
}

// EmbeddingOptions mirrors Options but scoped to the embed operation's
// narrower return-format set (spec §3).
type EmbeddingOptions struct {
	Provider     string
	APIKey       string
	Credential   any
	ReturnFormat string // "raw" | "embeddings" | "first"
	Timeout      time.Duration
}

// EmbeddingParams carries embed-specific model parameters.
type EmbeddingParams struct {
	InputType  string // e.g. "search_document", "search_query" (Cohere/Voyage)
	Dimensions int
}

// EmbeddingRequest is the unified embedding request of spec §3. Input is
// either a single string or a batch.
type EmbeddingRequest struct {
	Input   []string
	Model   string
	Params  EmbeddingParams
	Options EmbeddingOptions
}

// NewEmbeddingRequest builds a request for one or more inputs.
func NewEmbeddingRequest(model string, input ...string) *EmbeddingRequest {
	return &EmbeddingRequest{Model: model, Input: input}
}
