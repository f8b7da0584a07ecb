// Package vector implements spec §4.5's vector memory contract across ten
// backends (ChromaDB, pgvector, Pinecone, Qdrant, Weaviate, Milvus,
// OpenSearch, MySQL, TypeSense, and an in-process BoxVector), all
// implementing a common Store interface so memory.Memory vector variants
// are interchangeable. Grounded on the teacher's vector_store.go
// (VectorStore interface, VectorDocument/CollectionConfig/DistanceMetric
// shapes) and its concrete qdrant.go/chroma.go REST clients, generalized
// onto the richer operation set spec §4.5 names (store/upsert/delete/
// deleteByFilter/search/searchByVector/getById/createCollection/
// collectionExists/deleteCollection).
package vector

import (
	"context"
	"sort"

	"github.com/airuntime/core/chat"
	"github.com/airuntime/core/errs"
	"github.com/airuntime/core/providers"
)

// SpaceType selects the distance metric, defaulting to cosine per spec
// §4.5; backends that support others accept l2/innerproduct.
type SpaceType string

const (
	SpaceCosine       SpaceType = "cosine"
	SpaceL2           SpaceType = "l2"
	SpaceInnerProduct SpaceType = "innerproduct"
)

// Document is one vector-indexed record (spec §3's Document plus an
// embedding), generalizing the teacher's VectorDocument.
type Document struct {
	ID        string
	Text      string
	Metadata  map[string]any
	Embedding []float32
}

// SearchResult pairs a Document with its similarity score.
type SearchResult struct {
	Document Document
	Score    float64
}

// Filter is a simple equality filter over metadata keys, the common
// subset every backend below supports; no backend accepts a richer filter
// form.
type Filter map[string]any

func (f Filter) matches(meta map[string]any) bool {
	for k, v := range f {
		if meta[k] != v {
			return false
		}
	}
	return true
}

// Store is the vector memory contract of spec §4.5.
type Store interface {
	CreateCollection(ctx context.Context, name string, dimension int, space SpaceType) error
	CollectionExists(ctx context.Context, name string) (bool, error)
	DeleteCollection(ctx context.Context, name string) error

	Store(ctx context.Context, collection string, doc Document) error
	Upsert(ctx context.Context, collection string, doc Document) error
	Delete(ctx context.Context, collection string, id string) error
	DeleteByFilter(ctx context.Context, collection string, filter Filter) error
	GetByID(ctx context.Context, collection string, id string) (*Document, error)

	Search(ctx context.Context, collection, query string, topK int, filter Filter, minScore float64) ([]SearchResult, error)
	SearchByVector(ctx context.Context, collection string, embedding []float32, topK int, filter Filter) ([]SearchResult, error)
}

// Embedder generates the embedding for a Store.Search text query when the
// caller didn't supply one — normally a providers.Service's Embed method
// (spec §4.5: "Embeddings are auto-generated via the Embed operation when
// not supplied").
type Embedder struct {
	Service providers.Service
	Model   string
}

// Embed runs a single-text embedding request and returns its vector.
func (e Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.Service == nil {
		return nil, errs.New(errs.ConfigMissing, "vector: no embedding provider configured for text query search")
	}
	resp, err := e.Service.Embed(ctx, &chat.EmbeddingRequest{Model: e.Model, Input: []string{text}})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, errs.New(errs.ProviderError, "vector: embedding provider returned no vectors")
	}
	return resp.Embeddings[0].Vector, nil
}

// CosineSimilarity computes cosine similarity between two equal-length
// vectors, the default distance metric per spec §4.5, shared by backends
// (BoxVector) that compute it locally rather than delegating to a remote
// index.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (sqrt(na) * sqrt(nb))
}

// sortByScoreDesc orders results highest-score-first, the common ranking
// every backend's SearchByVector applies before truncating to topK.
func sortByScoreDesc(results []SearchResult) {
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
}

func sqrt(x float64) float64 {
	if x == 0 {
		return 0
	}
	z := x
	for i := 0; i < 20; i++ {
		z -= (z*z - x) / (2 * z)
	}
	return z
}
