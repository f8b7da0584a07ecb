package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/airuntime/core/errs"
)

// DefaultQdrantURL is the default local Qdrant REST endpoint.
const DefaultQdrantURL = "http://localhost:6333"

// Qdrant implements Store against a Qdrant server's REST API, adapted
// directly from the teacher's qdrant.go (doRequest transport, point/
// payload wire shapes, filter conversion) onto the Store interface's
// richer operation set.
type Qdrant struct {
	baseURL  string
	apiKey   string
	client   *http.Client
	embedder *Embedder
}

// NewQdrant creates a Qdrant-backed Store against baseURL (DefaultQdrantURL
// if empty).
func NewQdrant(baseURL string) *Qdrant {
	if baseURL == "" {
		baseURL = DefaultQdrantURL
	}
	return &Qdrant{baseURL: baseURL, client: &http.Client{Timeout: 30 * time.Second}}
}

// WithAPIKey sets the api-key header Qdrant Cloud requires.
func (q *Qdrant) WithAPIKey(apiKey string) *Qdrant {
	q.apiKey = apiKey
	return q
}

// WithEmbedder configures automatic embedding generation for Search and
// documents added without a precomputed vector.
func (q *Qdrant) WithEmbedder(e Embedder) *Qdrant {
	q.embedder = &e
	return q
}

// WithHTTPClient overrides the transport, e.g. for custom timeouts/proxies.
func (q *Qdrant) WithHTTPClient(client *http.Client) *Qdrant {
	q.client = client
	return q
}

type qdrantPoint struct {
	ID      any            `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload,omitempty"`
}

type qdrantUpsertRequest struct {
	Points []qdrantPoint `json:"points"`
}

type qdrantSearchRequest struct {
	Vector         []float32      `json:"vector"`
	Limit          int            `json:"limit"`
	WithPayload    bool           `json:"with_payload"`
	WithVector     bool           `json:"with_vector"`
	Filter         map[string]any `json:"filter,omitempty"`
	ScoreThreshold *float32       `json:"score_threshold,omitempty"`
}

type qdrantSearchResponse struct {
	Result []struct {
		ID      any            `json:"id"`
		Score   float32        `json:"score"`
		Payload map[string]any `json:"payload,omitempty"`
		Vector  []float32      `json:"vector,omitempty"`
	} `json:"result"`
}

type qdrantCreateCollection struct {
	Vectors struct {
		Size     int    `json:"size"`
		Distance string `json:"distance"`
	} `json:"vectors"`
}

func qdrantDistance(space SpaceType) string {
	switch space {
	case SpaceL2:
		return "Euclid"
	case SpaceInnerProduct:
		return "Dot"
	default:
		return "Cosine"
	}
}

func (q *Qdrant) CreateCollection(ctx context.Context, name string, dimension int, space SpaceType) error {
	if dimension <= 0 {
		return errs.New(errs.InvalidArgument, "vector-qdrant: dimension is required to create collection %q", name)
	}
	body := qdrantCreateCollection{}
	body.Vectors.Size = dimension
	body.Vectors.Distance = qdrantDistance(space)
	_, err := q.doRequest(ctx, "PUT", "/collections/"+name, body)
	if err != nil {
		return errs.Wrap(errs.ProviderError, "vector-qdrant", err)
	}
	return nil
}

func (q *Qdrant) CollectionExists(ctx context.Context, name string) (bool, error) {
	_, err := q.doRequest(ctx, "GET", "/collections/"+name, nil)
	if err != nil {
		if he, ok := err.(*httpError); ok && he.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, errs.Wrap(errs.ProviderError, "vector-qdrant", err)
	}
	return true, nil
}

func (q *Qdrant) DeleteCollection(ctx context.Context, name string) error {
	_, err := q.doRequest(ctx, "DELETE", "/collections/"+name, nil)
	if err != nil {
		return errs.Wrap(errs.ProviderError, "vector-qdrant", err)
	}
	return nil
}

func (q *Qdrant) upsertOne(ctx context.Context, collection string, doc Document) error {
	if doc.Embedding == nil {
		emb, err := q.embed(ctx, doc.Text)
		if err != nil {
			return err
		}
		doc.Embedding = emb
	}
	payload := map[string]any{}
	if doc.Text != "" {
		payload["content"] = doc.Text
	}
	for k, v := range doc.Metadata {
		payload[k] = v
	}
	req := qdrantUpsertRequest{Points: []qdrantPoint{{ID: doc.ID, Vector: doc.Embedding, Payload: payload}}}
	_, err := q.doRequest(ctx, "PUT", "/collections/"+collection+"/points", req)
	if err != nil {
		return errs.Wrap(errs.ProviderError, "vector-qdrant", err)
	}
	return nil
}

func (q *Qdrant) Store(ctx context.Context, collection string, doc Document) error {
	return q.upsertOne(ctx, collection, doc)
}

func (q *Qdrant) Upsert(ctx context.Context, collection string, doc Document) error {
	return q.upsertOne(ctx, collection, doc)
}

func (q *Qdrant) Delete(ctx context.Context, collection string, id string) error {
	_, err := q.doRequest(ctx, "POST", "/collections/"+collection+"/points/delete", map[string]any{"points": []string{id}})
	if err != nil {
		return errs.Wrap(errs.ProviderError, "vector-qdrant", err)
	}
	return nil
}

// DeleteByFilter deletes every point whose payload matches filter, using
// Qdrant's filter-based delete (the same "must" shape convertFilterToQdrant
// builds for search).
func (q *Qdrant) DeleteByFilter(ctx context.Context, collection string, filter Filter) error {
	_, err := q.doRequest(ctx, "POST", "/collections/"+collection+"/points/delete", map[string]any{
		"filter": convertFilterToQdrant(filter),
	})
	if err != nil {
		return errs.Wrap(errs.ProviderError, "vector-qdrant", err)
	}
	return nil
}

func (q *Qdrant) GetByID(ctx context.Context, collection string, id string) (*Document, error) {
	resp, err := q.doRequest(ctx, "POST", "/collections/"+collection+"/points", map[string]any{
		"ids": []string{id}, "with_payload": true, "with_vector": true,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ProviderError, "vector-qdrant", err)
	}
	var result struct {
		Result []struct {
			ID      any            `json:"id"`
			Payload map[string]any `json:"payload"`
			Vector  []float32      `json:"vector"`
		} `json:"result"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, errs.Wrap(errs.ProtocolError, "vector-qdrant", err)
	}
	if len(result.Result) == 0 {
		return nil, nil
	}
	return qdrantToDocument(result.Result[0].ID, result.Result[0].Payload, result.Result[0].Vector), nil
}

func (q *Qdrant) Search(ctx context.Context, collection, query string, topK int, filter Filter, minScore float64) ([]SearchResult, error) {
	emb, err := q.embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return q.SearchByVector(ctx, collection, emb, topK, filter)
}

func (q *Qdrant) SearchByVector(ctx context.Context, collection string, embedding []float32, topK int, filter Filter) ([]SearchResult, error) {
	req := qdrantSearchRequest{Vector: embedding, Limit: topK, WithPayload: true, WithVector: true}
	if len(filter) > 0 {
		req.Filter = convertFilterToQdrant(filter)
	}
	resp, err := q.doRequest(ctx, "POST", "/collections/"+collection+"/points/search", req)
	if err != nil {
		return nil, errs.Wrap(errs.ProviderError, "vector-qdrant", err)
	}
	var searchResp qdrantSearchResponse
	if err := json.Unmarshal(resp, &searchResp); err != nil {
		return nil, errs.Wrap(errs.ProtocolError, "vector-qdrant", err)
	}
	results := make([]SearchResult, 0, len(searchResp.Result))
	for _, point := range searchResp.Result {
		doc := qdrantToDocument(point.ID, point.Payload, point.Vector)
		results = append(results, SearchResult{Document: *doc, Score: float64(point.Score)})
	}
	return results, nil
}

func qdrantToDocument(rawID any, payload map[string]any, vector []float32) *Document {
	doc := &Document{Embedding: vector, Metadata: map[string]any{}}
	switch v := rawID.(type) {
	case string:
		doc.ID = v
	case float64:
		doc.ID = fmt.Sprintf("%.0f", v)
	default:
		doc.ID = fmt.Sprintf("%v", v)
	}
	for k, v := range payload {
		if k == "content" {
			if s, ok := v.(string); ok {
				doc.Text = s
			}
			continue
		}
		doc.Metadata[k] = v
	}
	return doc
}

func convertFilterToQdrant(filter Filter) map[string]any {
	must := make([]map[string]any, 0, len(filter))
	for key, value := range filter {
		must = append(must, map[string]any{"key": key, "match": map[string]any{"value": value}})
	}
	return map[string]any{"must": must}
}

func (q *Qdrant) embed(ctx context.Context, text string) ([]float32, error) {
	if q.embedder == nil {
		return nil, errs.New(errs.ConfigMissing, "vector-qdrant: no embedding provider configured")
	}
	return q.embedder.Embed(ctx, text)
}

type httpError struct {
	StatusCode int
	Message    string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

func (q *Qdrant) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewBuffer(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
	resp, err := q.client.Do(req)
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
