package embedding

import "context"

// Embedder converts text into a fixed-dimension dense vector. The same
// implementation must be used at indexing time and query time: vectors from
// different models are not comparable and mixing them silently corrupts
// similarity rankings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch embeds texts in order; result[i] corresponds to texts[i].
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}
