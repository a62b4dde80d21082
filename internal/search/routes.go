package search

import (
	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	restful "github.com/emicklei/go-restful/v3"
	"github.com/soleralabs/legalrag/internal/api/middleware"
)

func RegisterRoutes(container *restful.Container, handler *Handler) {
	ws := new(restful.WebService)
	ws.
		Path("/api/v1").
		Consumes(restful.MIME_JSON).
		Produces(restful.MIME_JSON)

	collectionParam := ws.HeaderParameter(CollectionHeader, "Tenant collection id").DataType("string")

	ws.Route(ws.GET("/health").
		To(handler.Health).
		Doc("Health check with indexed chunk count").
		Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
		Writes(HealthResponse{}).
		Returns(200, "OK", HealthResponse{}))

	ws.Route(ws.POST("/ingest").
		To(handler.Ingest).
		Doc("Index an extracted document").
		Metadata(restfulspec.KeyOpenAPITags, []string{"documents"}).
		Param(collectionParam).
		Reads(IngestRequest{}).
		Writes(IngestResponse{}).
		Returns(201, "Created", IngestResponse{}).
		Returns(400, "Bad Request", middleware.ErrorResponse{}).
		Returns(500, "Internal Server Error", middleware.ErrorResponse{}))

	ws.Route(ws.POST("/search").
		To(handler.Search).
		Doc("Semantic search with reranking and optional answer synthesis").
		Metadata(restfulspec.KeyOpenAPITags, []string{"search"}).
		Param(collectionParam).
		Reads(SearchRequest{}).
		Writes(SearchResponse{}).
		Returns(200, "OK", SearchResponse{}).
		Returns(400, "Bad Request", middleware.ErrorResponse{}).
		Returns(500, "Internal Server Error", middleware.ErrorResponse{}))

	ws.Route(ws.GET("/documents").
		To(handler.ListDocuments).
		Doc("List indexed documents").
		Metadata(restfulspec.KeyOpenAPITags, []string{"documents"}).
		Param(collectionParam).
		Writes(DocumentListResponse{}).
		Returns(200, "OK", DocumentListResponse{}))

	ws.Route(ws.DELETE("/documents/{document_id}").
		To(handler.DeleteDocument).
		Doc("Delete a document and all of its chunks").
		Metadata(restfulspec.KeyOpenAPITags, []string{"documents"}).
		Param(collectionParam).
		Param(ws.PathParameter("document_id", "Document id").DataType("string")).
		Writes(DeleteResponse{}).
		Returns(200, "OK", DeleteResponse{}).
		Returns(404, "Not Found", middleware.ErrorResponse{}))

	container.Add(ws)
}
