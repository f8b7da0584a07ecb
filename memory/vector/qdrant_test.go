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

func TestNewQdrant_DefaultAndCustomURL(t *testing.T) {
	q := NewQdrant("")
	assert.Equal(t, DefaultQdrantURL, q.baseURL)

	q = NewQdrant("http://custom:6333")
	assert.Equal(t, "http://custom:6333", q.baseURL)
}

func TestQdrant_CreateCollection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/collections/docs", r.URL.Path)

		var req qdrantCreateCollection
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 768, req.Vectors.Size)
		assert.Equal(t, "Cosine", req.Vectors.Distance)

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	q := NewQdrant(server.URL)
	err := q.CreateCollection(context.Background(), "docs", 768, SpaceCosine)
	require.NoError(t, err)
}

func TestQdrant_CreateCollection_RequiresDimension(t *testing.T) {
	q := NewQdrant("http://localhost:6333")
	err := q.CreateCollection(context.Background(), "docs", 0, SpaceCosine)
	assert.Error(t, err)
}

func TestQdrant_CollectionExists_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	q := NewQdrant(server.URL)
	exists, err := q.CollectionExists(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestQdrant_StoreAndSearchByVector(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/collections/docs/points", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/collections/docs/points/search", func(w http.ResponseWriter, r *http.Request) {
		var req qdrantSearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 5, req.Limit)

		resp := qdrantSearchResponse{Result: []struct {
			ID      any            `json:"id"`
			Score   float32        `json:"score"`
			Payload map[string]any `json:"payload,omitempty"`
			Vector  []float32      `json:"vector,omitempty"`
		}{
			{ID: "doc1", Score: 0.9, Payload: map[string]any{"content": "hello"}},
		}}
		json.NewEncoder(w).Encode(resp)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	q := NewQdrant(server.URL)
	require.NoError(t, q.Store(context.Background(), "docs", Document{ID: "doc1", Text: "hello", Embedding: []float32{1, 0}}))

	results, err := q.SearchByVector(context.Background(), "docs", []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc1", results[0].Document.ID)
	assert.Equal(t, "hello", results[0].Document.Text)
	assert.Equal(t, float64(float32(0.9)), results[0].Score)
}
