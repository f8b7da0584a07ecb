package documents

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/airuntime/core/chat"
	"github.com/airuntime/core/errs"
	"github.com/airuntime/core/memory/vector"
	"github.com/airuntime/core/providers"
)

// IngestOptions configures one Pipeline.ToMemory run (spec §4.10:
// "aiDocuments(source, config).toMemory(memory, {chunkSize, overlap})").
type IngestOptions struct {
	// Collection is the vector store collection documents are upserted
	// into.
	Collection string

	// ChunkSize and Overlap are passed to Chunk, in tokens.
	ChunkSize int
	Overlap   int

	// EmbedBatchSize caps how many chunks are embedded per Embed call
	// (spec §4.10: "embed (batch calls to embed)").
	EmbedBatchSize int

	// EmbedModel selects the embedding model passed to Service.Embed.
	EmbedModel string

	// CostPerThousandTokens estimates IngestReport.EstimatedCost; zero
	// leaves the estimate at 0.
	CostPerThousandTokens float64

	// Dedupe, when true, skips chunks whose content hash was already
	// stored earlier in the same run.
	Dedupe bool
}

func (o IngestOptions) withDefaults() IngestOptions {
	if o.ChunkSize <= 0 {
		o.ChunkSize = 500
	}
	if o.EmbedBatchSize <= 0 {
		o.EmbedBatchSize = 16
	}
	return o
}

// Pipeline runs the load -> chunk -> embed -> upsert flow of spec §4.10
// over one Loader, one embedding-capable providers.Service, and one
// vector.Store.
type Pipeline struct {
	Loader  Loader
	Service providers.Service
	Store   vector.Store
}

// NewPipeline builds a Pipeline from its three collaborators.
func NewPipeline(loader Loader, service providers.Service, store vector.Store) *Pipeline {
	return &Pipeline{Loader: loader, Service: service, Store: store}
}

// ToMemory executes the full ingestion pipeline, returning an
// IngestReport describing the outcome even when some chunks failed —
// errors are accumulated in IngestReport.Errors rather than aborting the
// run, matching the teacher's RAG retrieval preference for partial
// results over all-or-nothing failure.
func (p *Pipeline) ToMemory(ctx context.Context, opts IngestOptions) (IngestReport, error) {
	opts = opts.withDefaults()
	start := time.Now()
	report := IngestReport{}

	docs, err := p.Loader.Load(ctx)
	if err != nil {
		return report, errs.Wrap(errs.ProviderError, "documents: load failed", err)
	}
	report.DocumentsIn = len(docs)

	type pendingChunk struct {
		text string
		meta map[string]any
		hash string
	}
	var pending []pendingChunk
	seen := make(map[string]bool)

	for _, doc := range docs {
		chunks := Chunk(doc.Content, opts.ChunkSize, opts.Overlap)
		for _, c := range chunks {
			report.ChunksOut++
			report.TokenCount += EstimateTokens(c)

			hash := contentHash(c)
			if opts.Dedupe && seen[hash] {
				report.Deduped++
				continue
			}
			seen[hash] = true
			pending = append(pending, pendingChunk{text: c, meta: doc.Metadata, hash: hash})
		}
	}

	for i := 0; i < len(pending); i += opts.EmbedBatchSize {
		end := i + opts.EmbedBatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[i:end]

		inputs := make([]string, len(batch))
		for j, c := range batch {
			inputs[j] = c.text
		}

		resp, err := p.Service.Embed(ctx, &chat.EmbeddingRequest{Input: inputs, Model: opts.EmbedModel})
		report.EmbeddingCalls++
		if err != nil {
			report.Errors = append(report.Errors, err)
			report.Skipped += len(batch)
			continue
		}
		report.EstimatedCost += estimateCost(inputs, opts.CostPerThousandTokens)

		byIndex := make(map[int][]float32, len(resp.Embeddings))
		for _, e := range resp.Embeddings {
			byIndex[e.Index] = e.Vector
		}

		for j, c := range batch {
			vec, ok := byIndex[j]
			if !ok {
				report.Skipped++
				continue
			}
			vdoc := vector.Document{
				ID:        uuid.NewString(),
				Text:      c.text,
				Metadata:  c.meta,
				Embedding: vec,
			}
			if err := p.Store.Upsert(ctx, opts.Collection, vdoc); err != nil {
				report.Errors = append(report.Errors, err)
				report.Skipped++
				continue
			}
			report.Stored++
		}
	}

	report.Duration = time.Since(start)
	return report, nil
}

func contentHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func estimateCost(inputs []string, costPerThousand float64) float64 {
	if costPerThousand == 0 {
		return 0
	}
	total := 0
	for _, in := range inputs {
		total += EstimateTokens(in)
	}
	return float64(total) / 1000.0 * costPerThousand
}
