package ingest

import "strings"

// Chunking defaults, sized for the embedding model's context window.
const (
	DefaultChunkWords   = 400
	DefaultChunkOverlap = 50
)

// ChunkWords splits text into word windows of at most maxWords with overlap
// words shared between consecutive chunks. Text within the limit is returned
// as a single chunk.
func ChunkWords(text string, maxWords, overlap int) []string {
	if maxWords <= 0 {
		maxWords = DefaultChunkWords
	}
	if overlap < 0 || overlap >= maxWords {
		overlap = DefaultChunkOverlap
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if len(words) <= maxWords {
		return []string{strings.Join(words, " ")}
	}

	step := maxWords - overlap
	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + maxWords
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}
