package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/airuntime/core/errs"
)

// DefaultChromaURL is the default local ChromaDB REST endpoint.
const DefaultChromaURL = "http://localhost:8000"

// Chroma implements Store against a ChromaDB server's REST API, adapted
// directly from the teacher's chroma.go (add/query/get wire shapes,
// distance-to-similarity conversion, hnsw:space metadata convention).
type Chroma struct {
	baseURL  string
	client   *http.Client
	embedder *Embedder
}

// NewChroma creates a ChromaDB-backed Store against baseURL
// (DefaultChromaURL if empty).
func NewChroma(baseURL string) *Chroma {
	if baseURL == "" {
		baseURL = DefaultChromaURL
	}
	return &Chroma{baseURL: baseURL, client: &http.Client{Timeout: 30 * time.Second}}
}

// WithEmbedder configures automatic embedding generation.
func (c *Chroma) WithEmbedder(e Embedder) *Chroma {
	c.embedder = &e
	return c
}

// WithHTTPClient overrides the transport.
func (c *Chroma) WithHTTPClient(client *http.Client) *Chroma {
	c.client = client
	return c
}

type chromaCollection struct {
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type chromaAddRequest struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings,omitempty"`
	Documents  []string         `json:"documents,omitempty"`
	Metadatas  []map[string]any `json:"metadatas,omitempty"`
}

type chromaQueryRequest struct {
	QueryEmbeddings [][]float32    `json:"query_embeddings"`
	NResults        int            `json:"n_results"`
	Where           map[string]any `json:"where,omitempty"`
	Include         []string       `json:"include,omitempty"`
}

type chromaQueryResponse struct {
	IDs        [][]string         `json:"ids"`
	Embeddings [][][]float32      `json:"embeddings,omitempty"`
	Documents  [][]string         `json:"documents,omitempty"`
	Metadatas  [][]map[string]any `json:"metadatas,omitempty"`
	Distances  [][]float32        `json:"distances,omitempty"`
}

func chromaSpace(space SpaceType) string {
	switch space {
	case SpaceL2:
		return "l2"
	case SpaceInnerProduct:
		return "ip"
	default:
		return "cosine"
	}
}

func (c *Chroma) CreateCollection(ctx context.Context, name string, dimension int, space SpaceType) error {
	metadata := map[string]any{"hnsw:space": chromaSpace(space)}
	if dimension > 0 {
		metadata["dimension"] = dimension
	}
	_, err := c.doRequest(ctx, "POST", "/api/v1/collections", chromaCollection{Name: name, Metadata: metadata})
	if err != nil {
		return errs.Wrap(errs.ProviderError, "vector-chroma", err)
	}
	return nil
}

func (c *Chroma) CollectionExists(ctx context.Context, name string) (bool, error) {
	_, err := c.doRequest(ctx, "GET", "/api/v1/collections/"+name, nil)
	if err != nil {
		if he, ok := err.(*httpError); ok && he.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, errs.Wrap(errs.ProviderError, "vector-chroma", err)
	}
	return true, nil
}

func (c *Chroma) DeleteCollection(ctx context.Context, name string) error {
	_, err := c.doRequest(ctx, "DELETE", "/api/v1/collections/"+name, nil)
	if err != nil {
		return errs.Wrap(errs.ProviderError, "vector-chroma", err)
	}
	return nil
}

func (c *Chroma) upsertOne(ctx context.Context, collection string, doc Document) error {
	if doc.Embedding == nil {
		emb, err := c.embed(ctx, doc.Text)
		if err != nil {
			return err
		}
		doc.Embedding = emb
	}
	meta := map[string]any{}
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	req := chromaAddRequest{
		IDs:        []string{doc.ID},
		Embeddings: [][]float32{doc.Embedding},
		Documents:  []string{doc.Text},
		Metadatas:  []map[string]any{meta},
	}
	_, err := c.doRequest(ctx, "POST", "/api/v1/collections/"+collection+"/add", req)
	if err != nil {
		return errs.Wrap(errs.ProviderError, "vector-chroma", err)
	}
	return nil
}

func (c *Chroma) Store(ctx context.Context, collection string, doc Document) error {
	return c.upsertOne(ctx, collection, doc)
}

func (c *Chroma) Upsert(ctx context.Context, collection string, doc Document) error {
	_, err := c.doRequest(ctx, "POST", "/api/v1/collections/"+collection+"/upsert", chromaAddRequest{
		IDs: []string{doc.ID}, Embeddings: [][]float32{doc.Embedding}, Documents: []string{doc.Text}, Metadatas: []map[string]any{doc.Metadata},
	})
	if err != nil {
		return errs.Wrap(errs.ProviderError, "vector-chroma", err)
	}
	return nil
}

func (c *Chroma) Delete(ctx context.Context, collection string, id string) error {
	_, err := c.doRequest(ctx, "POST", "/api/v1/collections/"+collection+"/delete", map[string]any{"ids": []string{id}})
	if err != nil {
		return errs.Wrap(errs.ProviderError, "vector-chroma", err)
	}
	return nil
}

func (c *Chroma) DeleteByFilter(ctx context.Context, collection string, filter Filter) error {
	_, err := c.doRequest(ctx, "POST", "/api/v1/collections/"+collection+"/delete", map[string]any{"where": map[string]any(filter)})
	if err != nil {
		return errs.Wrap(errs.ProviderError, "vector-chroma", err)
	}
	return nil
}

func (c *Chroma) GetByID(ctx context.Context, collection string, id string) (*Document, error) {
	resp, err := c.doRequest(ctx, "POST", "/api/v1/collections/"+collection+"/get", map[string]any{
		"ids": []string{id}, "include": []string{"embeddings", "documents", "metadatas"},
	})
	if err != nil {
		return nil, errs.Wrap(errs.ProviderError, "vector-chroma", err)
	}
	var result struct {
		IDs        []string         `json:"ids"`
		Embeddings [][]float32      `json:"embeddings"`
		Documents  []string         `json:"documents"`
		Metadatas  []map[string]any `json:"metadatas"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, errs.Wrap(errs.ProtocolError, "vector-chroma", err)
	}
	if len(result.IDs) == 0 {
		return nil, nil
	}
	doc := &Document{ID: result.IDs[0], Metadata: map[string]any{}}
	if len(result.Documents) > 0 {
		doc.Text = result.Documents[0]
	}
	if len(result.Embeddings) > 0 {
		doc.Embedding = result.Embeddings[0]
	}
	if len(result.Metadatas) > 0 {
		doc.Metadata = result.Metadatas[0]
	}
	return doc, nil
}

func (c *Chroma) Search(ctx context.Context, collection, query string, topK int, filter Filter, minScore float64) ([]SearchResult, error) {
	emb, err := c.embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return c.searchByVector(ctx, collection, emb, topK, filter, minScore)
}

func (c *Chroma) SearchByVector(ctx context.Context, collection string, embedding []float32, topK int, filter Filter) ([]SearchResult, error) {
	return c.searchByVector(ctx, collection, embedding, topK, filter, 0)
}

func (c *Chroma) searchByVector(ctx context.Context, collection string, embedding []float32, topK int, filter Filter, minScore float64) ([]SearchResult, error) {
	req := chromaQueryRequest{
		QueryEmbeddings: [][]float32{embedding},
		NResults:        topK,
		Include:         []string{"distances", "documents", "metadatas", "embeddings"},
	}
	if len(filter) > 0 {
		req.Where = map[string]any(filter)
	}
	resp, err := c.doRequest(ctx, "POST", "/api/v1/collections/"+collection+"/query", req)
	if err != nil {
		return nil, errs.Wrap(errs.ProviderError, "vector-chroma", err)
	}
	var qr chromaQueryResponse
	if err := json.Unmarshal(resp, &qr); err != nil {
		return nil, errs.Wrap(errs.ProtocolError, "vector-chroma", err)
	}
	var results []SearchResult
	if len(qr.IDs) == 0 || len(qr.IDs[0]) == 0 {
		return results, nil
	}
	for i, id := range qr.IDs[0] {
		var distance float32
		if len(qr.Distances) > 0 && i < len(qr.Distances[0]) {
			distance = qr.Distances[0][i]
		}
		score := 1.0 - float64(distance)
		if score < minScore {
			continue
		}
		doc := Document{ID: id, Metadata: map[string]any{}}
		if len(qr.Documents) > 0 && i < len(qr.Documents[0]) {
			doc.Text = qr.Documents[0][i]
		}
		if len(qr.Metadatas) > 0 && i < len(qr.Metadatas[0]) {
			doc.Metadata = qr.Metadatas[0][i]
		}
		if len(qr.Embeddings) > 0 && i < len(qr.Embeddings[0]) {
			doc.Embedding = qr.Embeddings[0][i]
		}
		results = append(results, SearchResult{Document: doc, Score: score})
	}
	return results, nil
}

func (c *Chroma) embed(ctx context.Context, text string) ([]float32, error) {
	if c.embedder == nil {
		return nil, errs.New(errs.ConfigMissing, "vector-chroma: no embedding provider configured")
	}
	return c.embedder.Embed(ctx, text)
}

func (c *Chroma) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewBuffer(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &httpError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	return respBody, nil
}
