package embedding

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/rs/zerolog/log"
)

const DefaultTitanModelID = "amazon.titan-embed-text-v2:0"

// modelInvoker is the slice of the bedrockruntime client the embedder needs.
// Tests substitute a fake; production passes *bedrockruntime.Client.
type modelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// TitanEmbedder generates embeddings with the Amazon Titan text embedding
// model. The instance is created once at wiring time and shared read-only
// across requests.
type TitanEmbedder struct {
	client    modelInvoker
	modelID   string
	dimension int
}

type titanEmbeddingRequest struct {
	InputText  string `json:"inputText"`
	Dimensions int    `json:"dimensions,omitempty"`
	Normalize  bool   `json:"normalize"`
}

type titanEmbeddingResponse struct {
	Embedding           []float32 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

func NewTitanEmbedder(client modelInvoker, modelID string, dimension int) *TitanEmbedder {
	if modelID == "" {
		modelID = DefaultTitanModelID
	}
	if dimension <= 0 {
		dimension = 1024
	}
	return &TitanEmbedder{
		client:    client,
		modelID:   modelID,
		dimension: dimension,
	}
}

func (e *TitanEmbedder) Dimension() int {
	return e.dimension
}

func (e *TitanEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	// Titan rejects empty input. Empty chunks must not break ingestion, so
	// they map to the zero vector instead of an error.
	if text == "" {
		return make([]float32, e.dimension), nil
	}

	payload := titanEmbeddingRequest{
		InputText:  text,
		Dimensions: e.dimension,
		Normalize:  true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("unable to serialize titan request: %w", err)
	}

	output, err := e.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &e.modelID,
		Body:        body,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to invoke titan model: %w", err)
	}

	var response titanEmbeddingResponse
	if err := json.Unmarshal(output.Body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal titan response: %w", err)
	}

	if len(response.Embedding) != e.dimension {
		return nil, fmt.Errorf("titan returned %d dimensions, expected %d", len(response.Embedding), e.dimension)
	}

	return response.Embedding, nil
}

func (e *TitanEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	// Titan has no batch endpoint; invoke per text, preserving order.
	embeddings := make([][]float32, 0, len(texts))

	for i, text := range texts {
		embedding, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d of %d: %w", i+1, len(texts), err)
		}
		embeddings = append(embeddings, embedding)
	}

	log.Debug().Int("count", len(embeddings)).Msg("Batch embeddings generated")

	return embeddings, nil
}
