package rerank

import "context"

// Candidate is a retrieved chunk handed to the reranker.
type Candidate struct {
	ChunkID string
	Text    string
}

// Ranked points back into the candidate slice. Score is the cross-encoder
// relevance score normalized to [0,1]; it is a different score kind from the
// cosine similarity that produced the candidate set and must not be compared
// or merged with it.
type Ranked struct {
	Index   int
	ChunkID string
	Score   float64
}

// Reranker rescores (query, candidate) pairs jointly with a cross-encoder and
// returns candidates reordered by descending score, truncated to topK.
// Implementations only ever reorder: every returned entry references an input
// candidate. On error, callers fall back to the original similarity order.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []Candidate, topK int) ([]Ranked, error)
}
