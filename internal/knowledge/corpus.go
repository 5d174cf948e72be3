package knowledge

import (
	"context"
	"fmt"
	"math"
)

// Corpus holds structured records, their rendered chunk text and the chunk
// embeddings, index-aligned. Immutable after construction.
type Corpus struct {
	Records    []ServiceRecord
	Chunks     []string
	Embeddings [][]float64
}

// BuildCorpus renders each record to chunk text and embeds the chunks.
func BuildCorpus(ctx context.Context, embedder Embedder, records []ServiceRecord) (*Corpus, error) {
	chunks := make([]string, len(records))
	for i, r := range records {
		chunks[i] = r.RenderChunk()
	}
	embeddings, err := embedder.EmbedStrings(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed corpus: %w", err)
	}
	return &Corpus{Records: records, Chunks: chunks, Embeddings: embeddings}, nil
}

// BuildCorpusFromChunks ingests pre-rendered chunk text, recovering the
// structured fields via ParseChunk.
func BuildCorpusFromChunks(ctx context.Context, embedder Embedder, chunks []string) (*Corpus, error) {
	records := make([]ServiceRecord, len(chunks))
	for i, c := range chunks {
		records[i] = ParseChunk(c)
	}
	embeddings, err := embedder.EmbedStrings(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	return &Corpus{Records: records, Chunks: chunks, Embeddings: embeddings}, nil
}

// Len returns the number of entries in the corpus.
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Records)
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Returns 0 for mismatched or zero-magnitude inputs.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
