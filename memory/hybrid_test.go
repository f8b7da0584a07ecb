package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airuntime/core/chat"
	"github.com/airuntime/core/memory/vector"
	"github.com/airuntime/core/providers"
)

// fakeEmbedProvider is a minimal providers.Service stub that turns each
// input's byte length into a 1-dimensional vector, just enough for
// SearchByVector's cosine ranking to be exercised deterministically.
type fakeEmbedProvider struct{}

func (fakeEmbedProvider) Name() string { return "fake" }

func (fakeEmbedProvider) Invoke(ctx context.Context, req *chat.Request) (*chat.Response, error) {
	return &chat.Response{}, nil
}

func (fakeEmbedProvider) InvokeStream(ctx context.Context, req *chat.Request, onChunk func(chat.StreamChunk)) error {
	return nil
}

func (fakeEmbedProvider) Embed(ctx context.Context, req *chat.EmbeddingRequest) (*chat.EmbeddingResponse, error) {
	embeddings := make([]chat.Embedding, len(req.Input))
	for i, text := range req.Input {
		embeddings[i] = chat.Embedding{Index: i, Vector: []float32{float32(len(text))}}
	}
	return &chat.EmbeddingResponse{Embeddings: embeddings}, nil
}

func (fakeEmbedProvider) Configure(opts providers.ServiceConfig) {}

func newTestHybrid(recentLimit, semanticLimit int) *Hybrid {
	recent := NewWindowed(10)
	store := vector.NewBoxVector().WithEmbedder(vector.Embedder{Service: fakeEmbedProvider{}})
	return NewHybrid(recent, store, "conversations", recentLimit, semanticLimit)
}

func TestHybrid_RetrieveConcatenatesRecentAndSemantic(t *testing.T) {
	ctx := context.Background()
	tenant := Tenant{UserID: "u1", ConversationID: "c1"}
	h := newTestHybrid(5, 5)

	require.NoError(t, h.Add(ctx, tenant, chat.Message{Role: chat.RoleUser, Text: "first message"}))
	require.NoError(t, h.Add(ctx, tenant, chat.Message{Role: chat.RoleAssistant, Text: "second message"}))

	msgs, err := h.Retrieve(ctx, tenant, "second message")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Equal(t, "first message", msgs[0].Text)
	assert.Equal(t, "second message", msgs[1].Text)
}

func TestHybrid_Retrieve_DeduplicatesRecentFromSemantic(t *testing.T) {
	ctx := context.Background()
	tenant := Tenant{UserID: "u1", ConversationID: "c1"}
	h := newTestHybrid(5, 5)

	require.NoError(t, h.Add(ctx, tenant, chat.Message{Role: chat.RoleUser, Text: "only message"}))

	msgs, err := h.Retrieve(ctx, tenant, "only message")
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestHybrid_TenantIsolationOnClear(t *testing.T) {
	ctx := context.Background()
	a := Tenant{UserID: "alice", ConversationID: "c1"}
	b := Tenant{UserID: "bob", ConversationID: "c1"}
	h := newTestHybrid(5, 5)

	require.NoError(t, h.Add(ctx, a, chat.Message{Role: chat.RoleUser, Text: "alice"}))
	require.NoError(t, h.Add(ctx, b, chat.Message{Role: chat.RoleUser, Text: "bob"}))

	require.NoError(t, h.Clear(ctx, a))

	aEntries, err := h.GetAll(ctx, a)
	require.NoError(t, err)
	assert.Empty(t, aEntries)

	bEntries, err := h.GetAll(ctx, b)
	require.NoError(t, err)
	assert.Len(t, bEntries, 1)
}
