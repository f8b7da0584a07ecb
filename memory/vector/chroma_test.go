package vector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChroma_DefaultAndCustomURL(t *testing.T) {
	c := NewChroma("")
	assert.Equal(t, DefaultChromaURL, c.baseURL)

	c = NewChroma("http://custom:8000")
	assert.Equal(t, "http://custom:8000", c.baseURL)
}

func TestChroma_CreateCollection_SetsDistanceMetadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/collections", r.URL.Path)

		var req chromaCollection
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "docs", req.Name)
		assert.Equal(t, "l2", req.Metadata["hnsw:space"])

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewChroma(server.URL)
	err := c.CreateCollection(context.Background(), "docs", 768, SpaceL2)
	require.NoError(t, err)
}

func TestChroma_Search_ConvertsDistanceToSimilarity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := chromaQueryResponse{
			IDs:       [][]string{{"doc1"}},
			Documents: [][]string{{"hello world"}},
			Distances: [][]float32{{0.25}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	c := NewChroma(server.URL)
	results, err := c.SearchByVector(context.Background(), "docs", []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc1", results[0].Document.ID)
	assert.Equal(t, "hello world", results[0].Document.Text)
	assert.InDelta(t, 0.75, results[0].Score, 1e-9)
}

func TestChroma_CollectionExists_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := NewChroma(server.URL)
	exists, err := c.CollectionExists(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, exists)
}
