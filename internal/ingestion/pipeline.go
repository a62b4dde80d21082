package ingestion

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/soleralabs/legalrag/internal/database"
	"github.com/soleralabs/legalrag/internal/embedding"
)

// ChunkStore is the slice of the database layer the pipeline writes to.
type ChunkStore interface {
	UpsertChunks(ctx context.Context, collection string, chunks []database.ChunkRecord, embeddings [][]float32) error
}

// IngestInput carries extracted document text and its provenance. Text
// extraction (PDF parsing, OCR) happens upstream; the pipeline only sees its
// output.
type IngestInput struct {
	DocumentID     string
	Filename       string
	Text           string
	PageBoundaries []int
	TotalPages     int
	OCRUsed        bool
	OCRPages       int
}

// IngestResult reports what was indexed.
type IngestResult struct {
	DocumentID  string
	TotalChunks int
}

// Pipeline turns extracted text into embedded chunks and stores them. The
// store write is transactional, so a failing document leaves nothing behind.
type Pipeline struct {
	chunker  *Chunker
	embedder embedding.Embedder
	store    ChunkStore
}

func NewPipeline(chunker *Chunker, embedder embedding.Embedder, store ChunkStore) *Pipeline {
	return &Pipeline{
		chunker:  chunker,
		embedder: embedder,
		store:    store,
	}
}

// IngestDocument chunks, embeds and stores one document in a collection.
// A missing document id gets a generated one; the id used is returned.
func (p *Pipeline) IngestDocument(ctx context.Context, collection string, input IngestInput) (*IngestResult, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection must not be empty")
	}

	documentID := input.DocumentID
	if documentID == "" {
		documentID = uuid.New().String()
	}

	log.Info().
		Str("collection", collection).
		Str("doc_id", documentID).
		Str("filename", input.Filename).
		Msg("Starting ingestion")

	chunks := p.chunker.Chunk(documentID, input.Text, input.PageBoundaries)
	if len(chunks) == 0 {
		log.Warn().Str("doc_id", documentID).Msg("Document produced no chunks")
		return &IngestResult{DocumentID: documentID, TotalChunks: 0}, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	embeddings, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings for document %s: %w", documentID, err)
	}

	records := make([]database.ChunkRecord, len(chunks))
	for i, chunk := range chunks {
		records[i] = database.ChunkRecord{
			ChunkID:    chunk.ChunkID,
			DocumentID: documentID,
			ChunkIndex: chunk.Index,
			Page:       chunk.Page,
			Content:    chunk.Text,
			Filename:   input.Filename,
			TotalPages: input.TotalPages,
			OCRUsed:    input.OCRUsed,
			OCRPages:   input.OCRPages,
		}
	}

	if err := p.store.UpsertChunks(ctx, collection, records, embeddings); err != nil {
		return nil, fmt.Errorf("failed to store document %s: %w", documentID, err)
	}

	log.Info().
		Str("collection", collection).
		Str("doc_id", documentID).
		Int("chunks", len(chunks)).
		Msg("Ingestion complete")

	return &IngestResult{
		DocumentID:  documentID,
		TotalChunks: len(chunks),
	}, nil
}
