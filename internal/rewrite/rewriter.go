package rewrite

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/soleralabs/legalrag/internal/llm"
)

// Rewriter reformulates user questions into queries that embed better.
// Rewriting is best effort: any failure falls back to the original query.
type Rewriter struct {
	client llm.LLMClient
}

func NewRewriter(client llm.LLMClient) *Rewriter {
	return &Rewriter{
		client: client,
	}
}

func (r *Rewriter) RewriteQuery(ctx context.Context, originalQuery string) (string, error) {
	prompt := fmt.Sprintf(`You are a query optimization assistant for a legal document search system.

Original query: "%s"

Rewrite this query to be:
1. More specific and clear
2. Better for semantic search over legal documents
3. Free of typos and grammatical errors
4. Phrased in the terminology used in contracts, briefs and court filings

Return ONLY the rewritten query, nothing else.`, originalQuery)

	response, err := r.client.InvokeModel(ctx, llm.LLMRequest{
		Prompt:      prompt,
		MaxTokens:   200,
		Temperature: 0.2, // Low temperature for consistent rewrite
	})

	if err != nil {
		log.Error().Err(err).Msg("Failed to rewrite query")
		// Fallback to original query
		return originalQuery, nil
	}

	rewritten := strings.TrimSpace(response.Content)
	if rewritten == "" {
		return originalQuery, nil
	}

	log.Info().
		Str("original", originalQuery).
		Str("rewritten", rewritten).
		Msg("Query rewrite")

	return rewritten, nil
}
