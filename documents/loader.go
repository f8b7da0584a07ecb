package documents

import "context"

// Loader is the thin interface every document source implements: Type and
// Load. It has no loadTo method; ingesting a Loader's documents into a
// vector store is done by Pipeline.ToMemory. Individual parsers (PDF, CSV,
// HTML, …) are external collaborators that only need to produce Document
// values; this package covers everything from there onward.
type Loader interface {
	// Type identifies the loader, e.g. "pdf", "csv", "text".
	Type() string

	// Load reads the source and returns its documents.
	Load(ctx context.Context) ([]Document, error)
}

// TextLoader is a minimal Loader wrapping already-in-memory text, useful
// for tests and for callers that have already extracted content from a
// richer source.
type TextLoader struct {
	Contents []string
	Source   string
}

// NewTextLoader builds a Loader over raw strings, tagging each with
// Source and its index for traceability.
func NewTextLoader(source string, contents ...string) *TextLoader {
	return &TextLoader{Contents: contents, Source: source}
}

func (l *TextLoader) Type() string { return "text" }

func (l *TextLoader) Load(ctx context.Context) ([]Document, error) {
	docs := make([]Document, len(l.Contents))
	for i, c := range l.Contents {
		docs[i] = Document{
			Content:  c,
			Metadata: map[string]any{"source": l.Source, "index": i},
		}
	}
	return docs, nil
}
