package database

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
)

// UpsertChunks writes every chunk of a document in one transaction, so a
// document never becomes searchable with only part of its chunks indexed.
// Existing chunks of the same document are deleted inside the transaction
// first: re-ingesting a document with fewer chunks must not leave stale
// trailing chunks from the previous version searchable.
func (db *DB) UpsertChunks(ctx context.Context, collection string, chunks []ChunkRecord, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunk/embedding count mismatch: %d vs %d", len(chunks), len(embeddings))
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // Rollback if we don't commit

	seen := make(map[string]bool)
	for _, chunk := range chunks {
		if seen[chunk.DocumentID] {
			continue
		}
		seen[chunk.DocumentID] = true

		_, err := tx.Exec(ctx,
			`DELETE FROM document_chunks WHERE collection_id = $1 AND document_id = $2`,
			collection, chunk.DocumentID,
		)
		if err != nil {
			return fmt.Errorf("failed to clear previous chunks of %s: %w", chunk.DocumentID, err)
		}
	}

	query := `
        INSERT INTO document_chunks
            (collection_id, chunk_id, document_id, chunk_index, page, content,
             filename, total_pages, ocr_used, ocr_pages, embedding, uploaded_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
        ON CONFLICT (collection_id, chunk_id) DO UPDATE SET
            document_id = EXCLUDED.document_id,
            chunk_index = EXCLUDED.chunk_index,
            page        = EXCLUDED.page,
            content     = EXCLUDED.content,
            filename    = EXCLUDED.filename,
            total_pages = EXCLUDED.total_pages,
            ocr_used    = EXCLUDED.ocr_used,
            ocr_pages   = EXCLUDED.ocr_pages,
            embedding   = EXCLUDED.embedding
    `

	for i, chunk := range chunks {
		vector := pgvector.NewVector(embeddings[i])

		_, err := tx.Exec(ctx, query,
			collection,
			chunk.ChunkID,
			chunk.DocumentID,
			chunk.ChunkIndex,
			chunk.Page,
			chunk.Content,
			chunk.Filename,
			chunk.TotalPages,
			chunk.OCRUsed,
			chunk.OCRPages,
			vector,
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().
		Str("collection", collection).
		Int("chunks", len(chunks)).
		Msg("Chunks upserted")

	return nil
}

// SemanticSearch returns the limit nearest chunks in the collection, ordered
// by ascending cosine distance. The seq tiebreak keeps equal-distance results
// in stable insertion order instead of leaving the ordering to the planner.
func (db *DB) SemanticSearch(ctx context.Context, collection string, queryEmbedding []float32, limit int) ([]ScoredChunk, error) {
	pgvectorEmbedding := pgvector.NewVector(queryEmbedding)

	query := `
	SELECT
	  chunk_id,
	  document_id,
	  content,
	  filename,
	  page,
	  embedding <=> $2 AS distance
	FROM document_chunks
	WHERE collection_id = $1
	ORDER BY distance ASC, seq ASC
	LIMIT $3`

	rows, err := db.Pool.Query(ctx, query, collection, pgvectorEmbedding, limit)
	if err != nil {
		return nil, fmt.Errorf("unable to query the database: %w", err)
	}

	defer rows.Close()

	var chunks []ScoredChunk
	for rows.Next() {
		var chunk ScoredChunk

		if err := rows.Scan(&chunk.ChunkID, &chunk.DocumentID, &chunk.Content, &chunk.Filename, &chunk.Page, &chunk.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}

		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return chunks, nil
}

// DeleteDocument removes every chunk of the document in the collection and
// returns how many were removed. A single DELETE keeps the operation atomic:
// concurrent queries see all chunks or none.
func (db *DB) DeleteDocument(ctx context.Context, collection string, documentID string) (int64, error) {
	query := `DELETE FROM document_chunks WHERE collection_id = $1 AND document_id = $2`

	result, err := db.Pool.Exec(ctx, query, collection, documentID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete document %s: %w", documentID, err)
	}

	rowsAffected := result.RowsAffected()
	if rowsAffected == 0 {
		log.Warn().Str("collection", collection).Str("doc_id", documentID).Msg("Document not found")
	} else {
		log.Info().Str("collection", collection).Str("doc_id", documentID).Int64("chunks", rowsAffected).Msg("Document deleted")
	}

	return rowsAffected, nil
}

// ListDocuments aggregates per-document metadata from chunk rows.
func (db *DB) ListDocuments(ctx context.Context, collection string) ([]DocumentSummary, error) {
	query := `
	SELECT
	  document_id,
	  MIN(filename)     AS filename,
	  COUNT(*)          AS total_chunks,
	  MAX(total_pages)  AS total_pages,
	  BOOL_OR(ocr_used) AS ocr_used,
	  MAX(ocr_pages)    AS ocr_pages,
	  MIN(uploaded_at)  AS uploaded_at
	FROM document_chunks
	WHERE collection_id = $1
	GROUP BY document_id
	ORDER BY MIN(uploaded_at) DESC`

	rows, err := db.Pool.Query(ctx, query, collection)
	if err != nil {
		return nil, fmt.Errorf("unable to list documents: %w", err)
	}

	defer rows.Close()

	var documents []DocumentSummary
	for rows.Next() {
		var doc DocumentSummary

		if err := rows.Scan(&doc.DocumentID, &doc.Filename, &doc.TotalChunks, &doc.TotalPages, &doc.OCRUsed, &doc.OCRPages, &doc.UploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document summary: %w", err)
		}

		documents = append(documents, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return documents, nil
}

// CountChunks returns the number of chunks indexed in a collection, or in
// the whole store when collection is empty (used by the health endpoint).
func (db *DB) CountChunks(ctx context.Context, collection string) (int64, error) {
	query := `SELECT COUNT(*) FROM document_chunks WHERE collection_id = $1`
	args := []any{collection}
	if collection == "" {
		query = `SELECT COUNT(*) FROM document_chunks`
		args = nil
	}

	var count int64
	if err := db.Pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("unable to count chunks: %w", err)
	}

	return count, nil
}
