package vector

import (
	"context"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/airuntime/core/errs"
)

// BoxVector is an in-process Store backed by a plain slice per collection,
// the zero-dependency default for development and tests (spec §4.5: "an
// in-memory box is always available without external services"). The
// teacher carries no in-process vector index of its own; this is built in
// its idiom (mutex-guarded maps, the same shape as Windowed/store in the
// memory package) and grounded on gonum's stat/floats package, which the
// pack's math tool already depends on for numeric work.
type BoxVector struct {
	mu          sync.RWMutex
	collections map[string][]Document
	dims        map[string]int
	spaces      map[string]SpaceType
	embedder    *Embedder
}

// NewBoxVector creates an empty in-process vector store.
func NewBoxVector() *BoxVector {
	return &BoxVector{
		collections: map[string][]Document{},
		dims:        map[string]int{},
		spaces:      map[string]SpaceType{},
	}
}

// WithEmbedder configures automatic embedding generation for text Search
// and for documents stored without a precomputed vector.
func (b *BoxVector) WithEmbedder(e Embedder) *BoxVector {
	b.embedder = &e
	return b
}

func (b *BoxVector) CreateCollection(ctx context.Context, name string, dimension int, space SpaceType) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.collections[name]; ok {
		return errs.New(errs.InvalidArgument, "vector-boxvector: collection %q already exists", name)
	}
	b.collections[name] = nil
	b.dims[name] = dimension
	if space == "" {
		space = SpaceCosine
	}
	b.spaces[name] = space
	return nil
}

func (b *BoxVector) CollectionExists(ctx context.Context, name string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.collections[name]
	return ok, nil
}

func (b *BoxVector) DeleteCollection(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.collections, name)
	delete(b.dims, name)
	delete(b.spaces, name)
	return nil
}

func (b *BoxVector) embed(ctx context.Context, text string) ([]float32, error) {
	if b.embedder == nil {
		return nil, errs.New(errs.ConfigMissing, "vector-boxvector: no embedding provider configured")
	}
	return b.embedder.Embed(ctx, text)
}

func (b *BoxVector) upsertOne(ctx context.Context, collection string, doc Document) error {
	if doc.Embedding == nil {
		emb, err := b.embed(ctx, doc.Text)
		if err != nil {
			return err
		}
		doc.Embedding = emb
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.collections[collection]; !ok {
		b.collections[collection] = nil
		b.dims[collection] = len(doc.Embedding)
		b.spaces[collection] = SpaceCosine
	}
	docs := b.collections[collection]
	for i, d := range docs {
		if d.ID == doc.ID {
			docs[i] = doc
			b.collections[collection] = docs
			return nil
		}
	}
	b.collections[collection] = append(docs, doc)
	return nil
}

func (b *BoxVector) Store(ctx context.Context, collection string, doc Document) error {
	return b.upsertOne(ctx, collection, doc)
}

func (b *BoxVector) Upsert(ctx context.Context, collection string, doc Document) error {
	return b.upsertOne(ctx, collection, doc)
}

func (b *BoxVector) Delete(ctx context.Context, collection string, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	docs := b.collections[collection]
	for i, d := range docs {
		if d.ID == id {
			b.collections[collection] = append(docs[:i], docs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (b *BoxVector) DeleteByFilter(ctx context.Context, collection string, filter Filter) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	docs := b.collections[collection]
	kept := docs[:0]
	for _, d := range docs {
		if !filter.matches(d.Metadata) {
			kept = append(kept, d)
		}
	}
	b.collections[collection] = kept
	return nil
}

func (b *BoxVector) GetByID(ctx context.Context, collection string, id string) (*Document, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, d := range b.collections[collection] {
		if d.ID == id {
			doc := d
			return &doc, nil
		}
	}
	return nil, nil
}

func (b *BoxVector) Search(ctx context.Context, collection, query string, topK int, filter Filter, minScore float64) ([]SearchResult, error) {
	emb, err := b.embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return b.SearchByVector(ctx, collection, emb, topK, filter)
}

func (b *BoxVector) SearchByVector(ctx context.Context, collection string, embedding []float32, topK int, filter Filter) ([]SearchResult, error) {
	b.mu.RLock()
	docs := append([]Document(nil), b.collections[collection]...)
	space := b.spaces[collection]
	b.mu.RUnlock()

	var results []SearchResult
	for _, d := range docs {
		if len(filter) > 0 && !filter.matches(d.Metadata) {
			continue
		}
		score := distanceScore(embedding, d.Embedding, space)
		results = append(results, SearchResult{Document: d, Score: score})
	}
	sortByScoreDesc(results)
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// distanceScore returns a similarity score where higher is always better,
// regardless of space: cosine similarity directly, and negated distance
// for l2 so descending sort still ranks nearest first.
func distanceScore(a, b []float32, space SpaceType) float64 {
	switch space {
	case SpaceL2:
		return -l2Distance(a, b)
	case SpaceInnerProduct:
		return dotProduct(a, b)
	default:
		return CosineSimilarity(a, b)
	}
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func l2Distance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	fa, fb := toFloat64(a), toFloat64(b)
	diff := make([]float64, len(fa))
	floats.SubTo(diff, fa, fb)
	return floats.Norm(diff, 2)
}

func dotProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	return floats.Dot(toFloat64(a), toFloat64(b))
}
