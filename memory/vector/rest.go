package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/airuntime/core/errs"
)

// RESTDialect selects the wire shape for REST, the thin HTTP-only
// backends (Pinecone, Weaviate, Milvus, OpenSearch, TypeSense) for which
// no pack example carries a dedicated client SDK — unlike Qdrant/Chroma,
// which get first-class clients above, or Postgres/MySQL, which get a
// database/sql client in sql.go. Grounded on the qdrant.go/chroma.go
// doRequest transport (net/http, JSON request/response, bearer/api-key
// header), generalized with per-dialect path and payload builders rather
// than one client per product — stdlib net/http is used deliberately
// here since the corpus names no ecosystem client for any of these five.
type RESTDialect string

const (
	DialectPinecone   RESTDialect = "pinecone"
	DialectWeaviate   RESTDialect = "weaviate"
	DialectMilvus     RESTDialect = "milvus"
	DialectOpenSearch RESTDialect = "opensearch"
	DialectTypeSense  RESTDialect = "typesense"
)

// REST implements Store against one of five HTTP vector databases,
// sharing a transport and differing only in endpoint/payload shape per
// dialect.
type REST struct {
	dialect  RESTDialect
	baseURL  string
	apiKey   string
	client   *http.Client
	embedder *Embedder
}

// NewREST creates a REST-backed Store for dialect against baseURL.
func NewREST(dialect RESTDialect, baseURL, apiKey string) *REST {
	return &REST{dialect: dialect, baseURL: baseURL, apiKey: apiKey, client: &http.Client{Timeout: 30 * time.Second}}
}

// WithEmbedder configures automatic embedding generation.
func (r *REST) WithEmbedder(e Embedder) *REST {
	r.embedder = &e
	return r
}

// WithHTTPClient overrides the transport.
func (r *REST) WithHTTPClient(client *http.Client) *REST {
	r.client = client
	return r
}

func (r *REST) authHeader(req *http.Request) {
	if r.apiKey == "" {
		return
	}
	switch r.dialect {
	case DialectPinecone:
		req.Header.Set("Api-Key", r.apiKey)
	case DialectTypeSense:
		req.Header.Set("X-TYPESENSE-API-KEY", r.apiKey)
	default:
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}
}

func (r *REST) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewBuffer(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	r.authHeader(req)
	resp, err := r.client.Do(req)
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

func (r *REST) embed(ctx context.Context, text string) ([]float32, error) {
	if r.embedder == nil {
		return nil, errs.New(errs.ConfigMissing, "vector-rest: no embedding provider configured")
	}
	return r.embedder.Embed(ctx, text)
}

// collectionPath returns the per-dialect index/class/collection creation
// endpoint.
func (r *REST) collectionPath(name string) string {
	switch r.dialect {
	case DialectPinecone:
		return "/indexes/" + name
	case DialectWeaviate:
		return "/v1/schema/" + name
	case DialectMilvus:
		return "/v2/vectordb/collections/describe"
	case DialectOpenSearch:
		return "/" + name
	case DialectTypeSense:
		return "/collections/" + name
	default:
		return "/" + name
	}
}

func (r *REST) CreateCollection(ctx context.Context, name string, dimension int, space SpaceType) error {
	var body any
	switch r.dialect {
	case DialectPinecone:
		body = map[string]any{"name": name, "dimension": dimension, "metric": qdrantDistance(space)}
	case DialectWeaviate:
		body = map[string]any{"class": name, "vectorizer": "none"}
	case DialectMilvus:
		body = map[string]any{"collectionName": name, "dimension": dimension}
	case DialectOpenSearch:
		body = map[string]any{"settings": map[string]any{"index": map[string]any{"knn": true}}}
	case DialectTypeSense:
		body = map[string]any{"name": name, "fields": []map[string]any{
			{"name": "embedding", "type": "float[]", "num_dim": dimension},
			{"name": "content", "type": "string"},
		}}
	}
	path := r.collectionPath(name)
	if r.dialect == DialectMilvus {
		path = "/v2/vectordb/collections/create"
		body = map[string]any{"collectionName": name, "dimension": dimension}
	}
	_, err := r.doRequest(ctx, "POST", path, body)
	if err != nil {
		return errs.Wrap(errs.ProviderError, "vector-rest", err)
	}
	return nil
}

func (r *REST) CollectionExists(ctx context.Context, name string) (bool, error) {
	_, err := r.doRequest(ctx, "GET", r.collectionPath(name), nil)
	if err != nil {
		if he, ok := err.(*httpError); ok && he.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, errs.Wrap(errs.ProviderError, "vector-rest", err)
	}
	return true, nil
}

func (r *REST) DeleteCollection(ctx context.Context, name string) error {
	_, err := r.doRequest(ctx, "DELETE", r.collectionPath(name), nil)
	if err != nil {
		return errs.Wrap(errs.ProviderError, "vector-rest", err)
	}
	return nil
}

func (r *REST) upsertPath(collection string) (string, string) {
	switch r.dialect {
	case DialectPinecone:
		return "POST", "/vectors/upsert"
	case DialectWeaviate:
		return "POST", "/v1/objects"
	case DialectMilvus:
		return "POST", "/v2/vectordb/entities/upsert"
	case DialectOpenSearch:
		return "POST", "/" + collection + "/_doc"
	case DialectTypeSense:
		return "POST", "/collections/" + collection + "/documents?action=upsert"
	default:
		return "POST", "/" + collection
	}
}

func (r *REST) upsertBody(collection string, doc Document) any {
	switch r.dialect {
	case DialectPinecone:
		return map[string]any{"namespace": collection, "vectors": []map[string]any{
			{"id": doc.ID, "values": doc.Embedding, "metadata": mergeTextIntoMetadata(doc)},
		}}
	case DialectWeaviate:
		return map[string]any{"class": collection, "id": doc.ID, "vector": doc.Embedding, "properties": mergeTextIntoMetadata(doc)}
	case DialectMilvus:
		return map[string]any{"collectionName": collection, "data": []map[string]any{
			{"id": doc.ID, "vector": doc.Embedding, "content": doc.Text},
		}}
	case DialectOpenSearch:
		m := mergeTextIntoMetadata(doc)
		m["embedding"] = doc.Embedding
		return m
	case DialectTypeSense:
		m := mergeTextIntoMetadata(doc)
		m["id"] = doc.ID
		m["embedding"] = doc.Embedding
		return m
	default:
		return doc
	}
}

func mergeTextIntoMetadata(doc Document) map[string]any {
	m := map[string]any{}
	for k, v := range doc.Metadata {
		m[k] = v
	}
	m["content"] = doc.Text
	return m
}

func (r *REST) upsertOne(ctx context.Context, collection string, doc Document) error {
	if doc.Embedding == nil {
		emb, err := r.embed(ctx, doc.Text)
		if err != nil {
			return err
		}
		doc.Embedding = emb
	}
	method, path := r.upsertPath(collection)
	_, err := r.doRequest(ctx, method, path, r.upsertBody(collection, doc))
	if err != nil {
		return errs.Wrap(errs.ProviderError, "vector-rest", err)
	}
	return nil
}

func (r *REST) Store(ctx context.Context, collection string, doc Document) error {
	return r.upsertOne(ctx, collection, doc)
}

func (r *REST) Upsert(ctx context.Context, collection string, doc Document) error {
	return r.upsertOne(ctx, collection, doc)
}

func (r *REST) Delete(ctx context.Context, collection string, id string) error {
	var method, path string
	switch r.dialect {
	case DialectPinecone:
		_, err := r.doRequest(ctx, "POST", "/vectors/delete", map[string]any{"ids": []string{id}, "namespace": collection})
		if err != nil {
			return errs.Wrap(errs.ProviderError, "vector-rest", err)
		}
		return nil
	case DialectWeaviate:
		method, path = "DELETE", "/v1/objects/"+id
	case DialectOpenSearch:
		method, path = "DELETE", "/"+collection+"/_doc/"+id
	case DialectTypeSense:
		method, path = "DELETE", "/collections/"+collection+"/documents/"+id
	default:
		method, path = "DELETE", "/"+collection+"/"+id
	}
	_, err := r.doRequest(ctx, method, path, nil)
	if err != nil {
		return errs.Wrap(errs.ProviderError, "vector-rest", err)
	}
	return nil
}

// DeleteByFilter is not supported generically across these five wire
// protocols without per-dialect query-DSL translation; callers needing
// filtered bulk delete should use Qdrant, Chroma, or a SQL-backed Store.
func (r *REST) DeleteByFilter(ctx context.Context, collection string, filter Filter) error {
	return errs.New(errs.UnsupportedOperation, "vector-rest: DeleteByFilter is not supported for dialect %q", r.dialect)
}

func (r *REST) GetByID(ctx context.Context, collection string, id string) (*Document, error) {
	var path string
	switch r.dialect {
	case DialectWeaviate:
		path = "/v1/objects/" + id
	case DialectOpenSearch:
		path = "/" + collection + "/_doc/" + id
	case DialectTypeSense:
		path = "/collections/" + collection + "/documents/" + id
	default:
		path = "/" + collection + "/" + id
	}
	resp, err := r.doRequest(ctx, "GET", path, nil)
	if err != nil {
		if he, ok := err.(*httpError); ok && he.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, errs.Wrap(errs.ProviderError, "vector-rest", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil, errs.Wrap(errs.ProtocolError, "vector-rest", err)
	}
	doc := &Document{ID: id, Metadata: map[string]any{}}
	if content, ok := raw["content"].(string); ok {
		doc.Text = content
	}
	for k, v := range raw {
		if k != "content" && k != "embedding" && k != "id" {
			doc.Metadata[k] = v
		}
	}
	return doc, nil
}

func (r *REST) Search(ctx context.Context, collection, query string, topK int, filter Filter, minScore float64) ([]SearchResult, error) {
	emb, err := r.embed(ctx, query)
	if err != nil {
		return nil, err
	}
	results, err := r.SearchByVector(ctx, collection, emb, topK, filter)
	if err != nil {
		return nil, err
	}
	var filtered []SearchResult
	for _, res := range results {
		if res.Score >= minScore {
			filtered = append(filtered, res)
		}
	}
	return filtered, nil
}

func (r *REST) SearchByVector(ctx context.Context, collection string, embedding []float32, topK int, filter Filter) ([]SearchResult, error) {
	var method, path string
	var body any
	switch r.dialect {
	case DialectPinecone:
		method, path = "POST", "/query"
		body = map[string]any{"namespace": collection, "vector": embedding, "topK": topK, "includeMetadata": true}
	case DialectWeaviate:
		method, path = "POST", "/v1/graphql"
		body = weaviateNearVectorQuery(collection, embedding, topK)
	case DialectMilvus:
		method, path = "POST", "/v2/vectordb/entities/search"
		body = map[string]any{"collectionName": collection, "data": [][]float32{embedding}, "limit": topK}
	case DialectOpenSearch:
		method, path = "POST", "/"+collection+"/_search"
		body = map[string]any{"size": topK, "query": map[string]any{"knn": map[string]any{"embedding": map[string]any{"vector": embedding, "k": topK}}}}
	case DialectTypeSense:
		method, path = "POST", "/multi_search"
		body = map[string]any{"searches": []map[string]any{{"collection": collection, "vector_query": "embedding:(" + joinFloats(embedding) + ")"}}}
	}
	resp, err := r.doRequest(ctx, method, path, body)
	if err != nil {
		return nil, errs.Wrap(errs.ProviderError, "vector-rest", err)
	}
	return parseRESTSearchResponse(r.dialect, resp)
}

func joinFloats(v []float32) string {
	out := ""
	for i, f := range v {
		if i > 0 {
			out += ", "
		}
		out += strconv.FormatFloat(float64(f), 'g', -1, 32)
	}
	return out
}

func weaviateNearVectorQuery(class string, vector []float32, topK int) map[string]any {
	b, _ := json.Marshal(vector)
	return map[string]any{
		"query": "{Get{" + class + "(nearVector:{vector:" + string(b) + "}, limit:" + strconv.Itoa(topK) + "){_additional{id distance}}}}",
	}
}

// parseRESTSearchResponse extracts SearchResults from each dialect's
// distinct response shape; dialects whose score semantics differ (lower
// distance vs. higher similarity) are normalized so higher is always
// better, consistent with Store's contract.
func parseRESTSearchResponse(dialect RESTDialect, resp []byte) ([]SearchResult, error) {
	var results []SearchResult
	switch dialect {
	case DialectPinecone:
		var r struct {
			Matches []struct {
				ID       string         `json:"id"`
				Score    float64        `json:"score"`
				Metadata map[string]any `json:"metadata"`
			} `json:"matches"`
		}
		if err := json.Unmarshal(resp, &r); err != nil {
			return nil, errs.Wrap(errs.ProtocolError, "vector-rest", err)
		}
		for _, m := range r.Matches {
			results = append(results, SearchResult{Document: docFromMetadata(m.ID, m.Metadata), Score: m.Score})
		}
	case DialectMilvus:
		var r struct {
			Data []struct {
				ID      string  `json:"id"`
				Score   float64 `json:"score"`
				Content string  `json:"content"`
			} `json:"data"`
		}
		if err := json.Unmarshal(resp, &r); err != nil {
			return nil, errs.Wrap(errs.ProtocolError, "vector-rest", err)
		}
		for _, d := range r.Data {
			results = append(results, SearchResult{Document: Document{ID: d.ID, Text: d.Content, Metadata: map[string]any{}}, Score: d.Score})
		}
	case DialectOpenSearch:
		var r struct {
			Hits struct {
				Hits []struct {
					ID     string         `json:"_id"`
					Score  float64        `json:"_score"`
					Source map[string]any `json:"_source"`
				} `json:"hits"`
			} `json:"hits"`
		}
		if err := json.Unmarshal(resp, &r); err != nil {
			return nil, errs.Wrap(errs.ProtocolError, "vector-rest", err)
		}
		for _, h := range r.Hits.Hits {
			results = append(results, SearchResult{Document: docFromMetadata(h.ID, h.Source), Score: h.Score})
		}
	case DialectTypeSense:
		var r struct {
			Results []struct {
				Hits []struct {
					Document       map[string]any `json:"document"`
					VectorDistance float64        `json:"vector_distance"`
				} `json:"hits"`
			} `json:"results"`
		}
		if err := json.Unmarshal(resp, &r); err != nil {
			return nil, errs.Wrap(errs.ProtocolError, "vector-rest", err)
		}
		if len(r.Results) > 0 {
			for _, h := range r.Results[0].Hits {
				id, _ := h.Document["id"].(string)
				results = append(results, SearchResult{Document: docFromMetadata(id, h.Document), Score: 1 - h.VectorDistance})
			}
		}
	case DialectWeaviate:
		// Weaviate's GraphQL response nests hits under a class-named key
		// decided at CreateCollection time, so a generic struct can't
		// target it; parse the raw envelope and walk the one class array
		// present under data.Get.
		var r struct {
			Data struct {
				Get map[string][]struct {
					Additional struct {
						ID       string  `json:"id"`
						Distance float64 `json:"distance"`
					} `json:"_additional"`
				} `json:"Get"`
			} `json:"data"`
		}
		if err := json.Unmarshal(resp, &r); err != nil {
			return nil, errs.Wrap(errs.ProtocolError, "vector-rest", err)
		}
		for _, hits := range r.Data.Get {
			for _, h := range hits {
				results = append(results, SearchResult{Document: Document{ID: h.Additional.ID, Metadata: map[string]any{}}, Score: 1 - h.Additional.Distance})
			}
		}
	}
	sortByScoreDesc(results)
	return results, nil
}

func docFromMetadata(id string, m map[string]any) Document {
	doc := Document{ID: id, Metadata: map[string]any{}}
	for k, v := range m {
		if k == "content" {
			if s, ok := v.(string); ok {
				doc.Text = s
			}
			continue
		}
		if k == "embedding" {
			continue
		}
		doc.Metadata[k] = v
	}
	return doc
}
