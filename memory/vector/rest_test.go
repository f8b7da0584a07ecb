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

func TestREST_Pinecone_StoreAndSearch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/vectors/upsert", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("Api-Key"))
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"matches": []map[string]any{
				{"id": "doc1", "score": 0.8, "metadata": map[string]any{"content": "hi"}},
			},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	r := NewREST(DialectPinecone, server.URL, "test-key")
	require.NoError(t, r.Store(context.Background(), "docs", Document{ID: "doc1", Text: "hi", Embedding: []float32{1, 0}}))

	results, err := r.SearchByVector(context.Background(), "docs", []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc1", results[0].Document.ID)
	assert.Equal(t, "hi", results[0].Document.Text)
	assert.Equal(t, 0.8, results[0].Score)
}

func TestREST_DeleteByFilter_UnsupportedAcrossDialects(t *testing.T) {
	r := NewREST(DialectOpenSearch, "http://localhost:9200", "")
	err := r.DeleteByFilter(context.Background(), "docs", Filter{"lang": "en"})
	assert.Error(t, err)
}

func TestREST_TypeSense_AuthHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ts-key", r.Header.Get("X-TYPESENSE-API-KEY"))
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	r := NewREST(DialectTypeSense, server.URL, "ts-key")
	exists, err := r.CollectionExists(context.Background(), "docs")
	require.NoError(t, err)
	assert.False(t, exists)
}
