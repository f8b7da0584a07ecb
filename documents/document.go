// Package documents implements spec §4.10's document ingestion pipeline:
// a thin Loader interface, token-aware chunking with overlap, batched
// embedding, and upsert into a vector memory, reporting the whole run as
// an IngestReport. Grounded on the teacher's agent/rag.go (Document shape,
// ChunkDocument's sentence-boundary splitting, RAGConfig's
// chunkSize/overlap naming) generalized from that file's in-process
// TF-IDF fallback onto spec §4.10's load→chunk→embed→upsert pipeline over
// the vector.Store/providers.Service contracts.
package documents

import (
	"time"
)

// Document is one loaded unit of content before chunking, generalizing
// the teacher's agent.Document (Content/Metadata) with metadata widened
// to map[string]any to carry structured source information (page number,
// row index, MIME type) the way loaders in the wider pack attach it.
type Document struct {
	Content  string
	Metadata map[string]any
}

// IngestReport is the outcome of one Pipeline.ToMemory run (spec §4.10:
// "{documentsIn, chunksOut, stored, skipped, deduped, tokenCount,
// embeddingCalls, estimatedCost, errors, duration}").
type IngestReport struct {
	DocumentsIn    int
	ChunksOut      int
	Stored         int
	Skipped        int
	Deduped        int
	TokenCount     int
	EmbeddingCalls int
	EstimatedCost  float64
	Errors         []error
	Duration       time.Duration
}
