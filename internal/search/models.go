package search

import "time"

type SearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty" description:"Max results (default: 5)"`
	// UseReranking defaults to true when a reranker is configured.
	UseReranking     *bool `json:"use_reranking,omitempty"`
	SynthesizeAnswer bool  `json:"synthesize_answer,omitempty"`
	RewriteQuery     bool  `json:"rewrite_query,omitempty"`
}

type ResultMetadata struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Page       int    `json:"page"`
	ChunkID    string `json:"chunk_id"`
}

type SearchResult struct {
	Text string `json:"text"`
	// SimilarityScore is the cosine retrieval score in [0,1].
	SimilarityScore float64 `json:"similarity_score"`
	// RerankScore is the normalized cross-encoder score, present only when
	// reranking ran. It lives on a different scale than SimilarityScore;
	// result order is authoritative, not either score.
	RerankScore  *float64       `json:"rerank_score,omitempty"`
	LowRelevance bool           `json:"low_relevance,omitempty"`
	Metadata     ResultMetadata `json:"metadata"`
}

// Answer status values reported alongside an optional synthesized answer.
const (
	AnswerStatusOK                 = "ok"
	AnswerStatusNoRelevantPassages = "no_relevant_passages"
	AnswerStatusUnavailable        = "synthesis_unavailable"
	AnswerStatusFailed             = "synthesis_failed"
)

type SearchResponse struct {
	Query             string         `json:"query"`
	Results           []SearchResult `json:"results"`
	TotalResults      int            `json:"total_results"`
	SynthesizedAnswer *string        `json:"synthesized_answer"`
	AnswerStatus      string         `json:"answer_status,omitempty"`
}

type IngestRequest struct {
	DocumentID string `json:"document_id,omitempty" description:"Generated when omitted"`
	Filename   string `json:"filename"`
	Text       string `json:"text"`
	// PageBoundaries[i] is the word offset at which page i+2 begins, as
	// reported by the extraction service.
	PageBoundaries []int `json:"page_boundaries,omitempty"`
	TotalPages     int   `json:"total_pages,omitempty"`
	OCRUsed        bool  `json:"ocr_used,omitempty"`
	OCRPages       int   `json:"ocr_pages,omitempty"`
}

type IngestResponse struct {
	DocumentID  string `json:"document_id"`
	TotalChunks int    `json:"total_chunks"`
	Message     string `json:"message"`
}

type DocumentInfo struct {
	DocumentID  string    `json:"document_id"`
	Filename    string    `json:"filename"`
	TotalChunks int       `json:"total_chunks"`
	TotalPages  int       `json:"total_pages"`
	OCRUsed     bool      `json:"ocr_used"`
	OCRPages    int       `json:"ocr_pages"`
	UploadDate  time.Time `json:"upload_date"`
}

type DocumentListResponse struct {
	Documents      []DocumentInfo `json:"documents"`
	TotalDocuments int            `json:"total_documents"`
}

type DeleteResponse struct {
	DocumentID    string `json:"document_id"`
	ChunksDeleted int64  `json:"chunks_deleted"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	TotalChunks int64  `json:"total_chunks"`
}
