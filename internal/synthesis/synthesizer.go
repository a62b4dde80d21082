package synthesis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/soleralabs/legalrag/internal/llm"
)

// ErrNoRelevantPassages means every passage fell below the relevance
// threshold, so the model was never invoked.
var ErrNoRelevantPassages = errors.New("no relevant passages to synthesize from")

// ErrUnavailable means synthesis is not configured (no model id / credentials).
var ErrUnavailable = errors.New("synthesis unavailable")

// Passage is one reranked chunk with attribution, as shown to the model.
type Passage struct {
	Text     string
	Filename string
	Page     int
	// Similarity is the cosine retrieval score, used only for the
	// relevance gate. It is not the rerank score.
	Similarity float64
}

// Synthesizer produces an answer grounded strictly in the supplied passages.
// Answers are best effort: every failure here leaves the retrieval results
// intact and is reported through a typed error.
type Synthesizer struct {
	client      llm.LLMClient
	maxTokens   int
	temperature float64
	timeout     time.Duration
	threshold   float64
	maxPassages int
}

func NewSynthesizer(client llm.LLMClient, maxTokens int, temperature float64, timeout time.Duration, threshold float64) *Synthesizer {
	if maxTokens <= 0 {
		maxTokens = 500
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Synthesizer{
		client:      client,
		maxTokens:   maxTokens,
		temperature: temperature,
		timeout:     timeout,
		threshold:   threshold,
		maxPassages: 5,
	}
}

// Synthesize answers the query from the given passages. Passages below the
// relevance threshold are dropped first; if none survive the model is not
// called at all and ErrNoRelevantPassages is returned.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, passages []Passage) (string, error) {
	if s.client == nil {
		return "", ErrUnavailable
	}

	relevant := make([]Passage, 0, len(passages))
	for _, passage := range passages {
		if passage.Similarity >= s.threshold {
			relevant = append(relevant, passage)
		}
	}

	if len(relevant) == 0 {
		log.Info().
			Int("passages", len(passages)).
			Float64("threshold", s.threshold).
			Msg("Skipping synthesis, no passage above relevance threshold")
		return "", ErrNoRelevantPassages
	}

	if len(relevant) > s.maxPassages {
		relevant = relevant[:s.maxPassages]
	}

	prompt := buildPrompt(query, relevant)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	response, err := s.client.InvokeModelWithRetry(ctx, llm.LLMRequest{
		Prompt:      prompt,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to synthesize answer: %w", err)
	}

	log.Info().
		Int("passages", len(relevant)).
		Str("stop_reason", response.StopReason).
		Msg("Answer synthesized")

	return strings.TrimSpace(response.Content), nil
}

// buildPrompt cites each passage as [Source N: filename, Page P] and
// instructs the model to answer only from the supplied context. The grounding
// instruction is a correctness requirement: an answer drawing on anything
// outside the passages is a wrong answer.
func buildPrompt(query string, passages []Passage) string {
	var contextBlock strings.Builder
	for i, passage := range passages {
		contextBlock.WriteString(fmt.Sprintf("[Source %d: %s, Page %d]\n%s\n\n", i+1, passage.Filename, passage.Page, passage.Text))
	}

	return fmt.Sprintf(`You are a legal document assistant. Based on the following excerpts from legal documents, provide a clear and concise answer to the user's question.

Context from legal documents:
%s
User's question: %s

Instructions:
- Provide a direct answer to the question based ONLY on the information in the context
- Cite sources using [Source X] notation when referencing specific information
- If the context doesn't contain enough information to fully answer, acknowledge this
- Keep your answer concise but complete
- Use professional legal language where appropriate

Answer:`, contextBlock.String(), query)
}
