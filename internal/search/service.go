package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/soleralabs/legalrag/internal/cache"
	"github.com/soleralabs/legalrag/internal/config"
	"github.com/soleralabs/legalrag/internal/database"
	"github.com/soleralabs/legalrag/internal/embedding"
	"github.com/soleralabs/legalrag/internal/rerank"
	"github.com/soleralabs/legalrag/internal/synthesis"
)

// ChunkStore is the slice of the database layer the service reads from.
type ChunkStore interface {
	SemanticSearch(ctx context.Context, collection string, queryEmbedding []float32, limit int) ([]database.ScoredChunk, error)
}

// AnswerSynthesizer produces a grounded answer or a typed refusal.
type AnswerSynthesizer interface {
	Synthesize(ctx context.Context, query string, passages []synthesis.Passage) (string, error)
}

// QueryRewriter reformulates a query; implementations fall back to the
// original on failure.
type QueryRewriter interface {
	RewriteQuery(ctx context.Context, query string) (string, error)
}

// ResponseCache stores serialized search responses. cache.SearchCache
// implements it; tests substitute a fake.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

// Service runs the two-stage retrieval pipeline: broad cosine retrieval,
// cross-encoder rerank, then optional answer synthesis. The reranker,
// synthesizer, rewriter and cache are all optional; a nil dependency
// disables that stage without changing the response shape.
type Service struct {
	store       ChunkStore
	embedder    embedding.Embedder
	reranker    rerank.Reranker
	synthesizer AnswerSynthesizer
	rewriter    QueryRewriter
	cache       ResponseCache

	defaultTopK int
	oversample  int
	threshold   float64
}

func NewService(store ChunkStore, embedder embedding.Embedder, retrieval config.RetrievalConfig) *Service {
	return &Service{
		store:       store,
		embedder:    embedder,
		defaultTopK: retrieval.TopK,
		oversample:  retrieval.OversampleFactor,
		threshold:   retrieval.RelevanceThreshold,
	}
}

// WithReranker enables cross-encoder reranking.
func (s *Service) WithReranker(reranker rerank.Reranker) *Service {
	s.reranker = reranker
	return s
}

// WithSynthesizer enables answer synthesis.
func (s *Service) WithSynthesizer(synthesizer AnswerSynthesizer) *Service {
	s.synthesizer = synthesizer
	return s
}

// WithRewriter enables optional LLM query rewriting.
func (s *Service) WithRewriter(rewriter QueryRewriter) *Service {
	s.rewriter = rewriter
	return s
}

// WithCache enables the Redis response cache.
func (s *Service) WithCache(searchCache ResponseCache) *Service {
	s.cache = searchCache
	return s
}

// Search executes one query against a collection. Retrieval failures are
// errors; reranking and synthesis failures degrade and are reported in the
// response instead.
func (s *Service) Search(ctx context.Context, collection string, req SearchRequest) (*SearchResponse, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection must not be empty")
	}
	if req.Query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}

	topK := req.TopK
	if topK <= 0 {
		topK = s.defaultTopK
	}

	useReranking := s.reranker != nil
	if req.UseReranking != nil {
		useReranking = *req.UseReranking && s.reranker != nil
	}

	// Rewritten queries are not cached: the rewrite is itself model output.
	cacheable := s.cache != nil && !req.RewriteQuery
	var cacheKey string
	if cacheable {
		cacheKey = cache.Key(collection, req.Query, topK, useReranking, req.SynthesizeAnswer)
		if data, ok := s.cache.Get(ctx, cacheKey); ok {
			var cached SearchResponse
			if err := json.Unmarshal(data, &cached); err == nil {
				log.Debug().Str("collection", collection).Msg("Search cache hit")
				return &cached, nil
			}
		}
	}

	query := req.Query
	if req.RewriteQuery && s.rewriter != nil {
		rewritten, err := s.rewriter.RewriteQuery(ctx, req.Query)
		if err == nil && rewritten != "" {
			query = rewritten
		}
	}

	queryEmbedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("unable to embed query: %w", err)
	}

	// Oversample so the reranker has a wider pool to narrow from.
	retrievalK := topK
	if useReranking {
		retrievalK = topK * s.oversample
	}

	chunks, err := s.store.SemanticSearch(ctx, collection, queryEmbedding, retrievalK)
	if err != nil {
		return nil, fmt.Errorf("unable to run semantic search: %w", err)
	}

	results := make([]SearchResult, 0, len(chunks))
	for _, chunk := range chunks {
		results = append(results, SearchResult{
			Text:            chunk.Content,
			SimilarityScore: database.DistanceToScore(chunk.Distance),
			Metadata: ResultMetadata{
				DocumentID: chunk.DocumentID,
				Filename:   chunk.Filename,
				Page:       chunk.Page,
				ChunkID:    chunk.ChunkID,
			},
		})
	}

	if useReranking && len(results) > 0 {
		results = s.rerankResults(ctx, query, results, topK)
	} else if len(results) > topK {
		results = results[:topK]
	}

	for i := range results {
		if results[i].SimilarityScore < s.threshold {
			results[i].LowRelevance = true
		}
	}

	response := &SearchResponse{
		Query:        req.Query,
		Results:      results,
		TotalResults: len(results),
	}

	if req.SynthesizeAnswer {
		s.synthesizeAnswer(ctx, req.Query, response)
	}

	// A failed synthesis is transient; caching it would replay the failure
	// for the full TTL.
	if cacheable && response.AnswerStatus != AnswerStatusFailed {
		if data, err := json.Marshal(response); err == nil {
			s.cache.Set(ctx, cacheKey, data)
		}
	}

	return response, nil
}

// rerankResults reorders results with the cross-encoder, falling back to the
// similarity order when the reranker fails. The fallback changes ordering
// only, never the response shape, and is always logged.
func (s *Service) rerankResults(ctx context.Context, query string, results []SearchResult, topK int) []SearchResult {
	if ctx.Err() != nil {
		// Client is gone; skip the expensive stage.
		if len(results) > topK {
			return results[:topK]
		}
		return results
	}

	candidates := make([]rerank.Candidate, len(results))
	for i, result := range results {
		candidates[i] = rerank.Candidate{
			ChunkID: result.Metadata.ChunkID,
			Text:    result.Text,
		}
	}

	ranked, err := s.reranker.Rerank(ctx, query, candidates, topK)
	if err != nil {
		log.Warn().Err(err).Msg("Reranking failed, falling back to similarity order")
		if len(results) > topK {
			return results[:topK]
		}
		return results
	}

	reranked := make([]SearchResult, 0, len(ranked))
	for _, entry := range ranked {
		result := results[entry.Index]
		score := entry.Score
		result.RerankScore = &score
		reranked = append(reranked, result)
	}

	return reranked
}

// synthesizeAnswer fills in the answer fields. Synthesis never fails the
// search: every failure mode maps to a distinguishable status while the
// retrieval results stand.
func (s *Service) synthesizeAnswer(ctx context.Context, query string, response *SearchResponse) {
	if s.synthesizer == nil {
		response.AnswerStatus = AnswerStatusUnavailable
		return
	}

	if len(response.Results) == 0 {
		response.AnswerStatus = AnswerStatusNoRelevantPassages
		return
	}

	if ctx.Err() != nil {
		response.AnswerStatus = AnswerStatusFailed
		return
	}

	passages := make([]synthesis.Passage, len(response.Results))
	for i, result := range response.Results {
		passages[i] = synthesis.Passage{
			Text:       result.Text,
			Filename:   result.Metadata.Filename,
			Page:       result.Metadata.Page,
			Similarity: result.SimilarityScore,
		}
	}

	answer, err := s.synthesizer.Synthesize(ctx, query, passages)
	switch {
	case err == nil:
		response.SynthesizedAnswer = &answer
		response.AnswerStatus = AnswerStatusOK
	case errors.Is(err, synthesis.ErrNoRelevantPassages):
		response.AnswerStatus = AnswerStatusNoRelevantPassages
	case errors.Is(err, synthesis.ErrUnavailable):
		response.AnswerStatus = AnswerStatusUnavailable
	default:
		log.Error().Err(err).Msg("Answer synthesis failed")
		response.AnswerStatus = AnswerStatusFailed
	}
}
