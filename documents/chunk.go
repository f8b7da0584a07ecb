package documents

import "strings"

// Chunk splits text into pieces of at most chunkSize tokens, each
// successive chunk overlapping the previous by overlap tokens (spec
// §4.10: "chunk (respect chunkSize in tokens with overlap)"). Tokens are
// approximated as whitespace-delimited words, the same coarse unit the
// teacher's tokenize helper in agent/rag.go uses for its TF-IDF scoring —
// no tokenizer library ships in the dependency pack this module draws
// from, so word count stands in for a model-specific token count.
func Chunk(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 2
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(words) {
		end := start + chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end >= len(words) {
			break
		}
		start = end - overlap
	}
	return chunks
}

// EstimateTokens approximates a token count for cost accounting the same
// way Chunk approximates chunk boundaries: one token per whitespace word.
func EstimateTokens(text string) int {
	return len(strings.Fields(text))
}
