package ingestion

import (
	"fmt"
	"strings"
)

// Chunker splits extracted document text into overlapping word windows.
// Chunking is deterministic: the same text and parameters always produce the
// same chunk sequence, which re-indexing and the tests rely on.
type Chunker struct {
	ChunkSize    int
	ChunkOverlap int
}

// DocumentChunk is a draft chunk produced at ingestion, before embedding.
// Document provenance (filename, page count, OCR flags) is carried by the
// pipeline's IngestInput, not duplicated per chunk here.
type DocumentChunk struct {
	ChunkID    string
	DocumentID string
	Index      int
	Page       int
	Text       string
}

// NewChunker validates the window parameters. Rejecting overlap >= size here
// keeps the stride positive; a zero or negative stride would loop forever.
func NewChunker(chunkSize, overlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must not be negative, got %d", overlap)
	}
	if overlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)", overlap, chunkSize)
	}

	return &Chunker{
		ChunkSize:    chunkSize,
		ChunkOverlap: overlap,
	}, nil
}

// Chunk splits text into word windows of ChunkSize words, advancing
// ChunkSize-ChunkOverlap words per step. The final window may be shorter but
// is always emitted, so no trailing text is dropped. pageBoundaries[i] is the
// word offset at which page i+2 begins; an empty slice attributes everything
// to page 1. Empty text yields zero chunks.
func (c *Chunker) Chunk(documentID, text string, pageBoundaries []int) []DocumentChunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []DocumentChunk

	pos := 0
	index := 0

	for pos < len(words) {
		end := pos + c.ChunkSize
		if end > len(words) {
			end = len(words)
		}

		chunks = append(chunks, DocumentChunk{
			ChunkID:    fmt.Sprintf("%s_chunk_%d", documentID, index),
			DocumentID: documentID,
			Index:      index,
			Page:       pageForSpan(pos, end, pageBoundaries),
			Text:       strings.Join(words[pos:end], " "),
		})

		pos += c.ChunkSize - c.ChunkOverlap
		index++
	}

	return chunks
}

// pageForSpan attributes a word span to the page containing its middle word,
// so a chunk straddling a page break lands on the page it predominantly
// belongs to.
func pageForSpan(start, end int, pageBoundaries []int) int {
	if len(pageBoundaries) == 0 {
		return 1
	}

	mid := start + (end-start)/2

	page := 1
	for _, boundary := range pageBoundaries {
		if mid < boundary {
			break
		}
		page++
	}

	return page
}
