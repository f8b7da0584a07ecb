package chat

// TokenUsage mirrors the teacher adapter.go TokenUsage shape, reused by
// every provider and by audit spans (spec §3's AuditEntry.tokens).
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Choice is one assistant completion candidate.
type Choice struct {
	Message      Message
	FinishReason string
	Index        int
}

// Response is the normalized provider response before return-format
// transformation is applied (spec §4.1's "raw" format is this struct,
// JSON-serialized).
type Response struct {
	ID      string
	Model   string
	Created int64
	Choices []Choice
	Usage   TokenUsage
	Refusal string
	Raw     any // provider-native payload, kept for debugging/logging
}

// FirstContent returns the content of the first choice, or "".
func (r *Response) FirstContent() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content()
}

// HasToolCalls reports whether any choice requests tool execution.
func (r *Response) HasToolCalls() bool {
	for _, c := range r.Choices {
		if len(c.Message.ToolCalls) > 0 {
			return true
		}
	}
	return false
}

// Embedding is one vector result, preserving its position in a batch input.
type Embedding struct {
	Index  int
	Vector []float32
}

// EmbeddingResponse is the normalized embed result.
type EmbeddingResponse struct {
	Model      string
	Embeddings []Embedding
	Usage      TokenUsage
	Raw        any
}

// StreamChunk is one fragment delivered to an InvokeStream callback. Shape
// is intentionally loose (spec §4.1: "the spec deliberately does not unify
// delta shapes") — Delta/ToolCalls are populated on a best-effort basis for
// providers that expose an OpenAI-compatible shape; Raw always carries the
// provider-native decoded JSON fragment.
type StreamChunk struct {
	Delta     string
	ToolCalls []ToolCall
	Done      bool
	Error     error
	Raw       any
}
