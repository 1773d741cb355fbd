package model

import (
	"context"
	"fmt"
	"log"

	"vidsearch/types"
)

// Embedder turns text into vectors. All segments of one collection
// must go through the same model; the dimensionality is fixed per
// model.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// NewEmbedder picks the backend: OpenAI when an API key is
// configured, the local Ollama endpoint otherwise.
func NewEmbedder(cfg types.Config) Embedder {
	if cfg.OpenAIKey != "" {
		log.Printf("[EMBEDDER] using OpenAI embeddings")
		return NewOpenAIEmbedder(cfg.OpenAIKey)
	}
	log.Printf("[EMBEDDER] using local Ollama embeddings (%s)", cfg.OllamaModel)
	return NewOllamaEmbedder(cfg.OllamaURL, cfg.OllamaModel)
}

// EmbedSegments attaches an embedding to every segment, computing in
// consecutive non-overlapping batches so peak memory stays bounded
// and the backend can batch efficiently. Output order equals input
// order and output length equals input length.
func EmbedSegments(ctx context.Context, e Embedder, segments []types.Segment, batchSize int) ([]types.Segment, error) {
	if batchSize < 1 {
		batchSize = 64
	}

	for i := 0; i < len(segments); i += batchSize {
		end := i + batchSize
		if end > len(segments) {
			end = len(segments)
		}

		texts := make([]string, end-i)
		for j := i; j < end; j++ {
			texts[j-i] = segments[j].Text
		}

		vectors, err := e.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d-%d: %w", i, end, err)
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("embedding batch %d-%d: got %d vectors for %d texts", i, end, len(vectors), len(texts))
		}

		for j := range vectors {
			segments[i+j].Embedding = vectors[j]
		}
		log.Printf("[EMBEDDER] embedded batch %d-%d of %d", i, end, len(segments))
	}

	return segments, nil
}
