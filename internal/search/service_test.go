package search

import (
	"context"
	"errors"
	"testing"

	"github.com/soleralabs/legalrag/internal/config"
	"github.com/soleralabs/legalrag/internal/database"
	"github.com/soleralabs/legalrag/internal/rerank"
	"github.com/soleralabs/legalrag/internal/synthesis"
)

type stubEmbedder struct {
	err error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{1, 0, 0}, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		vec, err := s.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (s *stubEmbedder) Dimension() int { return 3 }

// memoryStore keeps per-collection chunks in insertion order and returns them
// sorted by the distance recorded on each chunk, mirroring the SQL contract.
type memoryStore struct {
	collections map[string][]database.ScoredChunk
	lastLimit   int
	err         error
}

func (m *memoryStore) SemanticSearch(ctx context.Context, collection string, queryEmbedding []float32, limit int) ([]database.ScoredChunk, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.lastLimit = limit

	chunks := m.collections[collection]
	// Chunks are pre-sorted by distance in the fixtures; enforce the limit.
	if len(chunks) > limit {
		chunks = chunks[:limit]
	}
	return chunks, nil
}

type stubReranker struct {
	ranked []rerank.Ranked
	err    error
	calls  int
}

func (s *stubReranker) Rerank(ctx context.Context, query string, candidates []rerank.Candidate, topK int) ([]rerank.Ranked, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	ranked := s.ranked
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked, nil
}

type stubSynthesizer struct {
	answer string
	err    error
	calls  int
}

func (s *stubSynthesizer) Synthesize(ctx context.Context, query string, passages []synthesis.Passage) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

func fixtureChunks() []database.ScoredChunk {
	return []database.ScoredChunk{
		{ChunkID: "d1_chunk_0", DocumentID: "d1", Content: "termination clause", Filename: "lease.pdf", Page: 4, Distance: 0.2},
		{ChunkID: "d1_chunk_1", DocumentID: "d1", Content: "notice period", Filename: "lease.pdf", Page: 5, Distance: 0.3},
		{ChunkID: "d2_chunk_0", DocumentID: "d2", Content: "payment schedule", Filename: "contract.pdf", Page: 1, Distance: 0.5},
		{ChunkID: "d2_chunk_1", DocumentID: "d2", Content: "late fees", Filename: "contract.pdf", Page: 2, Distance: 0.6},
		{ChunkID: "d2_chunk_2", DocumentID: "d2", Content: "governing law", Filename: "contract.pdf", Page: 9, Distance: 0.7},
		{ChunkID: "d3_chunk_0", DocumentID: "d3", Content: "unrelated recipe", Filename: "misc.pdf", Page: 1, Distance: 0.95},
	}
}

func retrievalConfig() config.RetrievalConfig {
	return config.RetrievalConfig{TopK: 2, OversampleFactor: 3, RelevanceThreshold: 0.30}
}

func boolPtr(b bool) *bool { return &b }

func TestSearch_EmptyCollection(t *testing.T) {
	store := &memoryStore{collections: map[string][]database.ScoredChunk{}}
	service := NewService(store, &stubEmbedder{}, retrievalConfig())

	resp, err := service.Search(context.Background(), "tenant-a", SearchRequest{
		Query:            "anything",
		SynthesizeAnswer: true,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if resp.TotalResults != 0 {
		t.Errorf("Expected 0 results, got %d", resp.TotalResults)
	}
	if resp.Results == nil || len(resp.Results) != 0 {
		t.Errorf("Expected empty (non-nil) results slice, got %#v", resp.Results)
	}
	if resp.SynthesizedAnswer != nil {
		t.Errorf("Expected nil answer for empty collection")
	}
	if resp.AnswerStatus != AnswerStatusNoRelevantPassages {
		t.Errorf("Expected %q, got %q", AnswerStatusNoRelevantPassages, resp.AnswerStatus)
	}
}

func TestSearch_SimilarityOrderWithoutReranking(t *testing.T) {
	store := &memoryStore{collections: map[string][]database.ScoredChunk{
		"tenant-a": fixtureChunks(),
	}}
	service := NewService(store, &stubEmbedder{}, retrievalConfig())

	resp, err := service.Search(context.Background(), "tenant-a", SearchRequest{Query: "termination", TopK: 3})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if store.lastLimit != 3 {
		t.Errorf("Without reranking retrieval must not oversample, limit=%d", store.lastLimit)
	}
	if resp.TotalResults != 3 {
		t.Fatalf("Expected 3 results, got %d", resp.TotalResults)
	}

	// Non-increasing similarity.
	for i := 1; i < len(resp.Results); i++ {
		if resp.Results[i].SimilarityScore > resp.Results[i-1].SimilarityScore {
			t.Errorf("Results not ordered by similarity at %d", i)
		}
	}
	if resp.Results[0].Metadata.ChunkID != "d1_chunk_0" {
		t.Errorf("Expected closest chunk first, got %s", resp.Results[0].Metadata.ChunkID)
	}
	if resp.Results[0].RerankScore != nil {
		t.Error("Rerank score must be absent when reranking did not run")
	}
}

func TestSearch_RerankingOversamplesAndReorders(t *testing.T) {
	store := &memoryStore{collections: map[string][]database.ScoredChunk{
		"tenant-a": fixtureChunks(),
	}}
	reranker := &stubReranker{ranked: []rerank.Ranked{
		{Index: 2, ChunkID: "d2_chunk_0", Score: 1.0},
		{Index: 0, ChunkID: "d1_chunk_0", Score: 0.4},
	}}
	service := NewService(store, &stubEmbedder{}, retrievalConfig()).WithReranker(reranker)

	resp, err := service.Search(context.Background(), "tenant-a", SearchRequest{Query: "payment"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if store.lastLimit != 6 {
		t.Errorf("Expected oversampled retrieval of top_k*3=6, got %d", store.lastLimit)
	}
	if resp.TotalResults != 2 {
		t.Fatalf("Expected 2 results, got %d", resp.TotalResults)
	}
	if resp.Results[0].Metadata.ChunkID != "d2_chunk_0" {
		t.Errorf("Reranked order not honored, got %s first", resp.Results[0].Metadata.ChunkID)
	}
	if resp.Results[0].RerankScore == nil || *resp.Results[0].RerankScore != 1.0 {
		t.Error("Rerank score missing on reranked result")
	}
	// The original cosine score stays untouched on the result.
	if resp.Results[0].SimilarityScore != database.DistanceToScore(0.5) {
		t.Errorf("Similarity score must not be overwritten by rerank score")
	}
}

func TestSearch_RerankedTopResultComesFromCandidateSet(t *testing.T) {
	chunks := fixtureChunks()
	store := &memoryStore{collections: map[string][]database.ScoredChunk{"tenant-a": chunks}}
	reranker := &stubReranker{ranked: []rerank.Ranked{
		{Index: 4, ChunkID: "d2_chunk_2", Score: 0.9},
		{Index: 1, ChunkID: "d1_chunk_1", Score: 0.2},
	}}
	service := NewService(store, &stubEmbedder{}, retrievalConfig()).WithReranker(reranker)

	resp, err := service.Search(context.Background(), "tenant-a", SearchRequest{Query: "law"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	known := map[string]bool{}
	for _, chunk := range chunks {
		known[chunk.ChunkID] = true
	}
	for _, result := range resp.Results {
		if !known[result.Metadata.ChunkID] {
			t.Errorf("Result %s was not in the retrieved candidate set", result.Metadata.ChunkID)
		}
	}
}

func TestSearch_RerankerFailureFallsBackToSimilarityOrder(t *testing.T) {
	store := &memoryStore{collections: map[string][]database.ScoredChunk{
		"tenant-a": fixtureChunks(),
	}}
	reranker := &stubReranker{err: errors.New("model not loaded")}
	service := NewService(store, &stubEmbedder{}, retrievalConfig()).WithReranker(reranker)

	resp, err := service.Search(context.Background(), "tenant-a", SearchRequest{Query: "termination"})
	if err != nil {
		t.Fatalf("Reranker failure must not fail the search: %v", err)
	}

	if resp.TotalResults != 2 {
		t.Fatalf("Expected top_k=2 results after fallback, got %d", resp.TotalResults)
	}
	if resp.Results[0].Metadata.ChunkID != "d1_chunk_0" || resp.Results[1].Metadata.ChunkID != "d1_chunk_1" {
		t.Errorf("Fallback must keep similarity order, got %s, %s",
			resp.Results[0].Metadata.ChunkID, resp.Results[1].Metadata.ChunkID)
	}
	for _, result := range resp.Results {
		if result.RerankScore != nil {
			t.Error("Fallback results must not carry rerank scores")
		}
	}
}

func TestSearch_UseRerankingFalseDisablesOversampling(t *testing.T) {
	store := &memoryStore{collections: map[string][]database.ScoredChunk{
		"tenant-a": fixtureChunks(),
	}}
	reranker := &stubReranker{}
	service := NewService(store, &stubEmbedder{}, retrievalConfig()).WithReranker(reranker)

	_, err := service.Search(context.Background(), "tenant-a", SearchRequest{
		Query:        "termination",
		UseReranking: boolPtr(false),
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if store.lastLimit != 2 {
		t.Errorf("Expected plain top_k retrieval, got limit %d", store.lastLimit)
	}
	if reranker.calls != 0 {
		t.Errorf("Reranker must not be called when disabled, got %d calls", reranker.calls)
	}
}

func TestSearch_CollectionIsolation(t *testing.T) {
	store := &memoryStore{collections: map[string][]database.ScoredChunk{
		"tenant-a": fixtureChunks(),
		"tenant-b": {{ChunkID: "x_chunk_0", DocumentID: "x", Content: "tenant b secret", Filename: "b.pdf", Page: 1, Distance: 0.1}},
	}}
	service := NewService(store, &stubEmbedder{}, retrievalConfig())

	resp, err := service.Search(context.Background(), "tenant-b", SearchRequest{Query: "secret"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	for _, result := range resp.Results {
		if result.Metadata.DocumentID != "x" {
			t.Errorf("Query scoped to tenant-b returned foreign chunk %s", result.Metadata.ChunkID)
		}
	}
}

func TestSearch_LowRelevanceGatingSkipsSynthesis(t *testing.T) {
	// Max similarity 0.10, all below the 0.30 threshold.
	store := &memoryStore{collections: map[string][]database.ScoredChunk{
		"tenant-a": {
			{ChunkID: "d1_chunk_0", DocumentID: "d1", Content: "noise", Filename: "a.pdf", Page: 1, Distance: 0.90},
			{ChunkID: "d1_chunk_1", DocumentID: "d1", Content: "more noise", Filename: "a.pdf", Page: 2, Distance: 0.95},
		},
	}}
	counting := &stubSynthesizer{answer: "must not appear"}
	gate := &gatingSynthesizer{inner: counting, threshold: 0.30}
	service := NewService(store, &stubEmbedder{}, retrievalConfig()).WithSynthesizer(gate)

	resp, err := service.Search(context.Background(), "tenant-a", SearchRequest{
		Query:            "what is the notice period",
		SynthesizeAnswer: true,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if resp.SynthesizedAnswer != nil {
		t.Errorf("Expected nil answer below threshold, got %q", *resp.SynthesizedAnswer)
	}
	if resp.AnswerStatus != AnswerStatusNoRelevantPassages {
		t.Errorf("Expected %q, got %q", AnswerStatusNoRelevantPassages, resp.AnswerStatus)
	}
	if counting.calls != 0 {
		t.Errorf("Model must not be invoked, got %d calls", counting.calls)
	}
	for _, result := range resp.Results {
		if !result.LowRelevance {
			t.Errorf("Result %s should be flagged low relevance", result.Metadata.ChunkID)
		}
	}
}

// gatingSynthesizer applies the relevance gate the way the real synthesizer
// does, delegating above-threshold calls to the counting stub.
type gatingSynthesizer struct {
	inner     *stubSynthesizer
	threshold float64
}

func (g *gatingSynthesizer) Synthesize(ctx context.Context, query string, passages []synthesis.Passage) (string, error) {
	relevant := 0
	for _, p := range passages {
		if p.Similarity >= g.threshold {
			relevant++
		}
	}
	if relevant == 0 {
		return "", synthesis.ErrNoRelevantPassages
	}
	return g.inner.Synthesize(ctx, query, passages)
}

func TestSearch_SynthesisSuccess(t *testing.T) {
	store := &memoryStore{collections: map[string][]database.ScoredChunk{
		"tenant-a": fixtureChunks(),
	}}
	synthesizer := &stubSynthesizer{answer: "The lease terminates with 30 days notice [Source 1]."}
	service := NewService(store, &stubEmbedder{}, retrievalConfig()).WithSynthesizer(synthesizer)

	resp, err := service.Search(context.Background(), "tenant-a", SearchRequest{
		Query:            "notice period",
		SynthesizeAnswer: true,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if resp.SynthesizedAnswer == nil || *resp.SynthesizedAnswer == "" {
		t.Fatal("Expected a synthesized answer")
	}
	if resp.AnswerStatus != AnswerStatusOK {
		t.Errorf("Expected status ok, got %q", resp.AnswerStatus)
	}
}

func TestSearch_SynthesisFailureKeepsResults(t *testing.T) {
	store := &memoryStore{collections: map[string][]database.ScoredChunk{
		"tenant-a": fixtureChunks(),
	}}
	synthesizer := &stubSynthesizer{err: errors.New("rate limited")}
	service := NewService(store, &stubEmbedder{}, retrievalConfig()).WithSynthesizer(synthesizer)

	resp, err := service.Search(context.Background(), "tenant-a", SearchRequest{
		Query:            "notice period",
		SynthesizeAnswer: true,
	})
	if err != nil {
		t.Fatalf("Synthesis failure must not fail the search: %v", err)
	}

	if resp.TotalResults == 0 {
		t.Error("Retrieval results must survive synthesis failure")
	}
	if resp.SynthesizedAnswer != nil {
		t.Error("Expected nil answer after synthesis failure")
	}
	if resp.AnswerStatus != AnswerStatusFailed {
		t.Errorf("Expected %q, got %q", AnswerStatusFailed, resp.AnswerStatus)
	}
}

func TestSearch_SynthesisUnavailableWhenNotConfigured(t *testing.T) {
	store := &memoryStore{collections: map[string][]database.ScoredChunk{
		"tenant-a": fixtureChunks(),
	}}
	service := NewService(store, &stubEmbedder{}, retrievalConfig())

	resp, err := service.Search(context.Background(), "tenant-a", SearchRequest{
		Query:            "notice period",
		SynthesizeAnswer: true,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if resp.AnswerStatus != AnswerStatusUnavailable {
		t.Errorf("Expected %q, got %q", AnswerStatusUnavailable, resp.AnswerStatus)
	}
	if resp.TotalResults == 0 {
		t.Error("Results must be returned even without a synthesizer")
	}
}

type fakeResponseCache struct {
	entries map[string][]byte
	sets    int
}

func (f *fakeResponseCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, ok := f.entries[key]
	return data, ok
}

func (f *fakeResponseCache) Set(ctx context.Context, key string, value []byte) {
	if f.entries == nil {
		f.entries = make(map[string][]byte)
	}
	f.entries[key] = value
	f.sets++
}

func TestSearch_FailedSynthesisIsNotCached(t *testing.T) {
	store := &memoryStore{collections: map[string][]database.ScoredChunk{
		"tenant-a": fixtureChunks(),
	}}
	synthesizer := &stubSynthesizer{err: errors.New("rate limited")}
	responseCache := &fakeResponseCache{}
	service := NewService(store, &stubEmbedder{}, retrievalConfig()).
		WithSynthesizer(synthesizer).
		WithCache(responseCache)

	resp, err := service.Search(context.Background(), "tenant-a", SearchRequest{
		Query:            "notice period",
		SynthesizeAnswer: true,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if resp.AnswerStatus != AnswerStatusFailed {
		t.Fatalf("Expected %q, got %q", AnswerStatusFailed, resp.AnswerStatus)
	}
	if responseCache.sets != 0 {
		t.Errorf("A transient synthesis failure must not be cached, got %d writes", responseCache.sets)
	}
}

func TestSearch_SuccessfulResponseIsCached(t *testing.T) {
	store := &memoryStore{collections: map[string][]database.ScoredChunk{
		"tenant-a": fixtureChunks(),
	}}
	synthesizer := &stubSynthesizer{answer: "30 days notice [Source 1]."}
	responseCache := &fakeResponseCache{}
	service := NewService(store, &stubEmbedder{}, retrievalConfig()).
		WithSynthesizer(synthesizer).
		WithCache(responseCache)

	request := SearchRequest{Query: "notice period", SynthesizeAnswer: true}
	if _, err := service.Search(context.Background(), "tenant-a", request); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if responseCache.sets != 1 {
		t.Fatalf("Expected 1 cache write, got %d", responseCache.sets)
	}

	// Second call is served from the cache without invoking the model again.
	if _, err := service.Search(context.Background(), "tenant-a", request); err != nil {
		t.Fatalf("Cached search failed: %v", err)
	}
	if synthesizer.calls != 1 {
		t.Errorf("Expected cache hit to skip the model, got %d calls", synthesizer.calls)
	}
}

func TestSearch_RetrievalErrorSurfaces(t *testing.T) {
	store := &memoryStore{err: errors.New("connection refused")}
	service := NewService(store, &stubEmbedder{}, retrievalConfig())

	if _, err := service.Search(context.Background(), "tenant-a", SearchRequest{Query: "q"}); err == nil {
		t.Fatal("Expected retrieval error to surface")
	}
}

func TestSearch_EmbeddingErrorSurfaces(t *testing.T) {
	store := &memoryStore{collections: map[string][]database.ScoredChunk{}}
	service := NewService(store, &stubEmbedder{err: errors.New("model down")}, retrievalConfig())

	if _, err := service.Search(context.Background(), "tenant-a", SearchRequest{Query: "q"}); err == nil {
		t.Fatal("Expected embedding error to surface")
	}
}

func TestSearch_CancelledContextSkipsRerankAndSynthesis(t *testing.T) {
	store := &memoryStore{collections: map[string][]database.ScoredChunk{
		"tenant-a": fixtureChunks(),
	}}
	reranker := &stubReranker{}
	synthesizer := &stubSynthesizer{answer: "late"}
	service := NewService(store, &stubEmbedder{}, retrievalConfig()).
		WithReranker(reranker).
		WithSynthesizer(synthesizer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := service.Search(ctx, "tenant-a", SearchRequest{
		Query:            "termination",
		SynthesizeAnswer: true,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if reranker.calls != 0 {
		t.Errorf("Reranker must be skipped on cancelled context, got %d calls", reranker.calls)
	}
	if synthesizer.calls != 0 {
		t.Errorf("Synthesizer must be skipped on cancelled context, got %d calls", synthesizer.calls)
	}
	if resp.TotalResults == 0 {
		t.Error("Already-retrieved results should still be returned")
	}
}

func TestSearch_ValidatesInput(t *testing.T) {
	service := NewService(&memoryStore{}, &stubEmbedder{}, retrievalConfig())

	if _, err := service.Search(context.Background(), "", SearchRequest{Query: "q"}); err == nil {
		t.Error("Expected error for empty collection")
	}
	if _, err := service.Search(context.Background(), "tenant-a", SearchRequest{}); err == nil {
		t.Error("Expected error for empty query")
	}
}
