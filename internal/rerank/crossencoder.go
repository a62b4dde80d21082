package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// CrossEncoderClient scores query/passage pairs against a cross-encoder model
// served over HTTP (a text-embeddings-inference style /rerank endpoint).
// Cross-encoder inference runs out of process; this client is the only thing
// loaded per Go process and is shared read-only across requests.
type CrossEncoderClient struct {
	endpoint   string
	httpClient *http.Client
}

type rerankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
}

type rerankResponseEntry struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

func NewCrossEncoderClient(endpoint string, timeout time.Duration) *CrossEncoderClient {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &CrossEncoderClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Rerank posts the query and candidate texts to the scoring service,
// normalizes the raw cross-encoder scores to [0,1] with min-max scaling and
// returns candidates sorted by descending score, truncated to topK.
func (c *CrossEncoderClient) Rerank(ctx context.Context, query string, candidates []Candidate, topK int) ([]Ranked, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	texts := make([]string, len(candidates))
	for i, candidate := range candidates {
		texts[i] = candidate.Text
	}

	body, err := json.Marshal(rerankRequest{Query: query, Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("unable to serialize rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("unable to build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rerank service returned %d: %s", resp.StatusCode, payload)
	}

	var entries []rerankResponseEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}

	if len(entries) != len(candidates) {
		return nil, fmt.Errorf("rerank service scored %d of %d candidates", len(entries), len(candidates))
	}

	// Raw cross-encoder logits typically range -10..+10.
	scores := make([]float64, len(candidates))
	for _, entry := range entries {
		if entry.Index < 0 || entry.Index >= len(candidates) {
			return nil, fmt.Errorf("rerank service returned out-of-range index %d", entry.Index)
		}
		scores[entry.Index] = entry.Score
	}

	normalized := normalizeScores(scores)

	ranked := make([]Ranked, len(candidates))
	for i := range candidates {
		ranked[i] = Ranked{
			Index:   i,
			ChunkID: candidates[i].ChunkID,
			Score:   normalized[i],
		}
	}

	// Stable sort keeps the retrieval order for equal scores.
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].Score > ranked[b].Score
	})

	if topK > 0 && len(ranked) > topK {
		ranked = ranked[:topK]
	}

	log.Debug().
		Int("candidates", len(candidates)).
		Int("returned", len(ranked)).
		Msg("Reranked candidates")

	return ranked, nil
}

// normalizeScores min-max scales raw scores into [0,1]. When every score is
// identical there is no ordering signal, so all candidates get 0.5.
func normalizeScores(scores []float64) []float64 {
	min, max := scores[0], scores[0]
	for _, score := range scores[1:] {
		if score < min {
			min = score
		}
		if score > max {
			max = score
		}
	}

	normalized := make([]float64, len(scores))
	if max == min {
		for i := range normalized {
			normalized[i] = 0.5
		}
		return normalized
	}

	for i, score := range scores {
		normalized[i] = (score - min) / (max - min)
	}
	return normalized
}
