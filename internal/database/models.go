package database

import "time"

// ChunkRecord is a chunk as stored: id, provenance and embedding. The
// embedding is written once at ingestion and never mutated in place.
type ChunkRecord struct {
	ChunkID    string
	DocumentID string
	ChunkIndex int
	Page       int
	Content    string
	Filename   string
	TotalPages int
	OCRUsed    bool
	OCRPages   int
}

// ScoredChunk is a chunk returned from a similarity query.
type ScoredChunk struct {
	ChunkID    string
	DocumentID string
	Content    string
	Filename   string
	Page       int
	// Distance is the raw cosine distance from pgvector (0 identical, 2 opposite).
	Distance float64
}

// DocumentSummary is aggregated per-document metadata, derived from chunk
// rows rather than stored separately.
type DocumentSummary struct {
	DocumentID  string
	Filename    string
	TotalChunks int
	TotalPages  int
	OCRUsed     bool
	OCRPages    int
	UploadedAt  time.Time
}
