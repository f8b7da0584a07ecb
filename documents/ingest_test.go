package documents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airuntime/core/chat"
	"github.com/airuntime/core/memory/vector"
	"github.com/airuntime/core/providers"
)

// fakeEmbedService is a minimal providers.Service stub that returns a
// one-dimensional embedding derived from each input's length, enough to
// exercise the ingest pipeline without a live provider.
type fakeEmbedService struct {
	calls int
}

func (f *fakeEmbedService) Name() string { return "fake" }
func (f *fakeEmbedService) Invoke(ctx context.Context, req *chat.Request) (*chat.Response, error) {
	return nil, nil
}
func (f *fakeEmbedService) InvokeStream(ctx context.Context, req *chat.Request, onChunk func(chat.StreamChunk)) error {
	return nil
}
func (f *fakeEmbedService) Configure(opts providers.ServiceConfig) {}

func (f *fakeEmbedService) Embed(ctx context.Context, req *chat.EmbeddingRequest) (*chat.EmbeddingResponse, error) {
	f.calls++
	embeddings := make([]chat.Embedding, len(req.Input))
	for i, in := range req.Input {
		embeddings[i] = chat.Embedding{Index: i, Vector: []float32{float32(len(in))}}
	}
	return &chat.EmbeddingResponse{Model: req.Model, Embeddings: embeddings}, nil
}

func TestChunk_RespectsChunkSizeAndOverlap(t *testing.T) {
	text := "one two three four five six seven eight nine ten"
	chunks := Chunk(text, 4, 2)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "one two three four", chunks[0])
	assert.Equal(t, "three four five six", chunks[1])
}

func TestChunk_EmptyText(t *testing.T) {
	assert.Nil(t, Chunk("   ", 10, 2))
}

func TestPipeline_ToMemory_StoresEmbeddedChunks(t *testing.T) {
	loader := NewTextLoader("unit-test", "the quick brown fox jumps over the lazy dog")
	store := vector.NewBoxVector()
	svc := &fakeEmbedService{}

	p := NewPipeline(loader, svc, store)
	report, err := p.ToMemory(context.Background(), IngestOptions{
		Collection: "docs",
		ChunkSize:  4,
		Overlap:    1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.DocumentsIn)
	assert.Greater(t, report.ChunksOut, 0)
	assert.Equal(t, report.ChunksOut, report.Stored)
	assert.Equal(t, 0, report.Skipped)
	assert.Greater(t, svc.calls, 0)
}

func TestPipeline_ToMemory_DedupesIdenticalChunks(t *testing.T) {
	loader := NewTextLoader("dup-test", "repeat repeat repeat repeat", "repeat repeat repeat repeat")
	store := vector.NewBoxVector()
	svc := &fakeEmbedService{}

	p := NewPipeline(loader, svc, store)
	report, err := p.ToMemory(context.Background(), IngestOptions{
		Collection: "docs",
		ChunkSize:  4,
		Dedupe:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Stored)
	assert.Equal(t, 1, report.Deduped)
}
