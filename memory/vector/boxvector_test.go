package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoxVector_CreateCollection(t *testing.T) {
	b := NewBoxVector()
	ctx := context.Background()

	err := b.CreateCollection(ctx, "docs", 3, SpaceCosine)
	require.NoError(t, err)

	exists, err := b.CollectionExists(ctx, "docs")
	require.NoError(t, err)
	assert.True(t, exists)

	err = b.CreateCollection(ctx, "docs", 3, SpaceCosine)
	assert.Error(t, err)
}

func TestBoxVector_StoreAndGetByID(t *testing.T) {
	b := NewBoxVector()
	ctx := context.Background()
	require.NoError(t, b.CreateCollection(ctx, "docs", 2, SpaceCosine))

	err := b.Store(ctx, "docs", Document{ID: "a", Text: "hello", Embedding: []float32{1, 0}})
	require.NoError(t, err)

	doc, err := b.GetByID(ctx, "docs", "a")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "hello", doc.Text)
}

func TestBoxVector_Upsert_ReplacesExisting(t *testing.T) {
	b := NewBoxVector()
	ctx := context.Background()
	require.NoError(t, b.CreateCollection(ctx, "docs", 2, SpaceCosine))
	require.NoError(t, b.Store(ctx, "docs", Document{ID: "a", Text: "v1", Embedding: []float32{1, 0}}))
	require.NoError(t, b.Upsert(ctx, "docs", Document{ID: "a", Text: "v2", Embedding: []float32{0, 1}}))

	doc, err := b.GetByID(ctx, "docs", "a")
	require.NoError(t, err)
	assert.Equal(t, "v2", doc.Text)
}

func TestBoxVector_SearchByVector_RanksBySimilarity(t *testing.T) {
	b := NewBoxVector()
	ctx := context.Background()
	require.NoError(t, b.CreateCollection(ctx, "docs", 2, SpaceCosine))
	require.NoError(t, b.Store(ctx, "docs", Document{ID: "close", Embedding: []float32{1, 0}}))
	require.NoError(t, b.Store(ctx, "docs", Document{ID: "far", Embedding: []float32{0, 1}}))

	results, err := b.SearchByVector(ctx, "docs", []float32{1, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "close", results[0].Document.ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestBoxVector_SearchByVector_AppliesFilter(t *testing.T) {
	b := NewBoxVector()
	ctx := context.Background()
	require.NoError(t, b.CreateCollection(ctx, "docs", 2, SpaceCosine))
	require.NoError(t, b.Store(ctx, "docs", Document{ID: "a", Embedding: []float32{1, 0}, Metadata: map[string]any{"lang": "en"}}))
	require.NoError(t, b.Store(ctx, "docs", Document{ID: "b", Embedding: []float32{1, 0}, Metadata: map[string]any{"lang": "fr"}}))

	results, err := b.SearchByVector(ctx, "docs", []float32{1, 0}, 10, Filter{"lang": "fr"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].Document.ID)
}

func TestBoxVector_DeleteAndDeleteByFilter(t *testing.T) {
	b := NewBoxVector()
	ctx := context.Background()
	require.NoError(t, b.CreateCollection(ctx, "docs", 2, SpaceCosine))
	require.NoError(t, b.Store(ctx, "docs", Document{ID: "a", Embedding: []float32{1, 0}, Metadata: map[string]any{"keep": false}}))
	require.NoError(t, b.Store(ctx, "docs", Document{ID: "b", Embedding: []float32{1, 0}, Metadata: map[string]any{"keep": true}}))

	require.NoError(t, b.DeleteByFilter(ctx, "docs", Filter{"keep": false}))
	doc, err := b.GetByID(ctx, "docs", "a")
	require.NoError(t, err)
	assert.Nil(t, doc)

	require.NoError(t, b.Delete(ctx, "docs", "b"))
	doc, err = b.GetByID(ctx, "docs", "b")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestBoxVector_Search_RequiresEmbedder(t *testing.T) {
	b := NewBoxVector()
	ctx := context.Background()
	require.NoError(t, b.CreateCollection(ctx, "docs", 2, SpaceCosine))

	_, err := b.Search(ctx, "docs", "query text", 5, nil, 0)
	assert.Error(t, err)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
}
