package search

import (
	"context"
	"errors"
	"net/http"

	restful "github.com/emicklei/go-restful/v3"
	"github.com/rs/zerolog/log"
	"github.com/soleralabs/legalrag/internal/api/middleware"
	"github.com/soleralabs/legalrag/internal/cache"
	"github.com/soleralabs/legalrag/internal/database"
	"github.com/soleralabs/legalrag/internal/ingestion"
)

// CollectionHeader carries the tenant collection id. Tenant identity is
// resolved upstream (auth is not this service's job); the core only scopes
// every store call by the supplied value.
const CollectionHeader = "X-Collection-ID"

var errMissingCollection = errors.New("missing " + CollectionHeader + " header")

// Ingestor is the ingestion pipeline as the handler sees it.
type Ingestor interface {
	IngestDocument(ctx context.Context, collection string, input ingestion.IngestInput) (*ingestion.IngestResult, error)
}

// DocumentStore is the document-level slice of the database layer.
type DocumentStore interface {
	ListDocuments(ctx context.Context, collection string) ([]database.DocumentSummary, error)
	DeleteDocument(ctx context.Context, collection string, documentID string) (int64, error)
	CountChunks(ctx context.Context, collection string) (int64, error)
}

// Searcher runs one search request against a collection.
type Searcher interface {
	Search(ctx context.Context, collection string, req SearchRequest) (*SearchResponse, error)
}

type Handler struct {
	searcher  Searcher
	ingestor  Ingestor
	documents DocumentStore
	cache     *cache.SearchCache // optional
}

func NewHandler(searcher Searcher, ingestor Ingestor, documents DocumentStore, searchCache *cache.SearchCache) *Handler {
	return &Handler{
		searcher:  searcher,
		ingestor:  ingestor,
		documents: documents,
		cache:     searchCache,
	}
}

func collectionFrom(req *restful.Request) (string, error) {
	collection := req.HeaderParameter(CollectionHeader)
	if collection == "" {
		return "", errMissingCollection
	}
	return collection, nil
}

// Search handles POST /api/v1/search
func (h *Handler) Search(req *restful.Request, resp *restful.Response) {
	collection, err := collectionFrom(req)
	if err != nil {
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}

	var searchRequest SearchRequest
	if err := req.ReadEntity(&searchRequest); err != nil {
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}

	if searchRequest.Query == "" {
		middleware.HandleError(resp, errors.New("query must not be empty"), http.StatusBadRequest)
		return
	}

	ctx := req.Request.Context()

	response, err := h.searcher.Search(ctx, collection, searchRequest)
	if err != nil {
		log.Error().Err(err).Str("collection", collection).Msg("Search failed")
		middleware.HandleError(resp, err, http.StatusInternalServerError)
		return
	}

	resp.WriteEntity(response)
}

// Ingest handles POST /api/v1/ingest
func (h *Handler) Ingest(req *restful.Request, resp *restful.Response) {
	collection, err := collectionFrom(req)
	if err != nil {
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}

	var ingestRequest IngestRequest
	if err := req.ReadEntity(&ingestRequest); err != nil {
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}

	ctx := req.Request.Context()

	result, err := h.ingestor.IngestDocument(ctx, collection, ingestion.IngestInput{
		DocumentID:     ingestRequest.DocumentID,
		Filename:       ingestRequest.Filename,
		Text:           ingestRequest.Text,
		PageBoundaries: ingestRequest.PageBoundaries,
		TotalPages:     ingestRequest.TotalPages,
		OCRUsed:        ingestRequest.OCRUsed,
		OCRPages:       ingestRequest.OCRPages,
	})
	if err != nil {
		log.Error().Err(err).Str("collection", collection).Msg("Ingestion failed")
		middleware.HandleError(resp, err, http.StatusInternalServerError)
		return
	}

	if h.cache != nil {
		h.cache.Invalidate(ctx)
	}

	resp.WriteHeaderAndEntity(http.StatusCreated, IngestResponse{
		DocumentID:  result.DocumentID,
		TotalChunks: result.TotalChunks,
		Message:     "document indexed",
	})
}

// ListDocuments handles GET /api/v1/documents
func (h *Handler) ListDocuments(req *restful.Request, resp *restful.Response) {
	collection, err := collectionFrom(req)
	if err != nil {
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}

	ctx := req.Request.Context()

	summaries, err := h.documents.ListDocuments(ctx, collection)
	if err != nil {
		log.Error().Err(err).Str("collection", collection).Msg("Listing documents failed")
		middleware.HandleError(resp, err, http.StatusInternalServerError)
		return
	}

	documents := make([]DocumentInfo, 0, len(summaries))
	for _, summary := range summaries {
		documents = append(documents, DocumentInfo{
			DocumentID:  summary.DocumentID,
			Filename:    summary.Filename,
			TotalChunks: summary.TotalChunks,
			TotalPages:  summary.TotalPages,
			OCRUsed:     summary.OCRUsed,
			OCRPages:    summary.OCRPages,
			UploadDate:  summary.UploadedAt,
		})
	}

	resp.WriteEntity(DocumentListResponse{
		Documents:      documents,
		TotalDocuments: len(documents),
	})
}

// DeleteDocument handles DELETE /api/v1/documents/{document_id}
func (h *Handler) DeleteDocument(req *restful.Request, resp *restful.Response) {
	collection, err := collectionFrom(req)
	if err != nil {
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}

	documentID := req.PathParameter("document_id")
	ctx := req.Request.Context()

	deleted, err := h.documents.DeleteDocument(ctx, collection, documentID)
	if err != nil {
		log.Error().Err(err).Str("collection", collection).Str("doc_id", documentID).Msg("Delete failed")
		middleware.HandleError(resp, err, http.StatusInternalServerError)
		return
	}

	if deleted == 0 {
		middleware.HandleError(resp, errors.New("document not found"), http.StatusNotFound)
		return
	}

	if h.cache != nil {
		h.cache.Invalidate(ctx)
	}

	resp.WriteEntity(DeleteResponse{
		DocumentID:    documentID,
		ChunksDeleted: deleted,
	})
}

// Health handles GET /api/v1/health
func (h *Handler) Health(req *restful.Request, resp *restful.Response) {
	ctx := req.Request.Context()

	// Counting chunks also verifies the store is reachable.
	collection := req.HeaderParameter(CollectionHeader)
	total, err := h.documents.CountChunks(ctx, collection)
	if err != nil {
		middleware.HandleError(resp, err, http.StatusServiceUnavailable)
		return
	}

	resp.WriteEntity(HealthResponse{
		Status:      "ok",
		TotalChunks: total,
	})
}
