package mcpadapter

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/soleralabs/legalrag/internal/search"
)

// SearchInput is the MCP tool input schema (matches HTTP API field names).
type SearchInput struct {
	Collection       string `json:"collection" jsonschema:"tenant collection id"`
	Query            string `json:"query" jsonschema:"natural language search query"`
	TopK             int    `json:"top_k,omitempty" jsonschema:"max results (default: 5)"`
	SynthesizeAnswer bool   `json:"synthesize_answer,omitempty" jsonschema:"synthesize a grounded answer from the top passages"`
}

// ListDocumentsInput scopes a document listing to one collection.
type ListDocumentsInput struct {
	Collection string `json:"collection" jsonschema:"tenant collection id"`
}

// DeleteDocumentInput identifies one document within a collection.
type DeleteDocumentInput struct {
	Collection string `json:"collection" jsonschema:"tenant collection id"`
	DocumentID string `json:"document_id" jsonschema:"document id to delete"`
}

// NewSearchHandler returns a tool handler backed by the search service.
// Pass the returned function to mcp.AddTool.
func NewSearchHandler(searcher search.Searcher) func(context.Context, *mcp.CallToolRequest, SearchInput) (*mcp.CallToolResult, search.SearchResponse, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, search.SearchResponse, error) {
		response, err := searcher.Search(ctx, input.Collection, search.SearchRequest{
			Query:            input.Query,
			TopK:             input.TopK,
			SynthesizeAnswer: input.SynthesizeAnswer,
		})
		if err != nil {
			return nil, search.SearchResponse{}, err
		}
		return nil, *response, nil
	}
}

// NewListDocumentsHandler returns a tool handler listing a collection's documents.
func NewListDocumentsHandler(documents search.DocumentStore) func(context.Context, *mcp.CallToolRequest, ListDocumentsInput) (*mcp.CallToolResult, search.DocumentListResponse, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListDocumentsInput) (*mcp.CallToolResult, search.DocumentListResponse, error) {
		if input.Collection == "" {
			return nil, search.DocumentListResponse{}, fmt.Errorf("collection must not be empty")
		}

		summaries, err := documents.ListDocuments(ctx, input.Collection)
		if err != nil {
			return nil, search.DocumentListResponse{}, err
		}

		list := make([]search.DocumentInfo, 0, len(summaries))
		for _, summary := range summaries {
			list = append(list, search.DocumentInfo{
				DocumentID:  summary.DocumentID,
				Filename:    summary.Filename,
				TotalChunks: summary.TotalChunks,
				TotalPages:  summary.TotalPages,
				OCRUsed:     summary.OCRUsed,
				OCRPages:    summary.OCRPages,
				UploadDate:  summary.UploadedAt,
			})
		}

		return nil, search.DocumentListResponse{
			Documents:      list,
			TotalDocuments: len(list),
		}, nil
	}
}

// NewDeleteDocumentHandler returns a tool handler deleting one document.
func NewDeleteDocumentHandler(documents search.DocumentStore) func(context.Context, *mcp.CallToolRequest, DeleteDocumentInput) (*mcp.CallToolResult, search.DeleteResponse, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input DeleteDocumentInput) (*mcp.CallToolResult, search.DeleteResponse, error) {
		if input.Collection == "" {
			return nil, search.DeleteResponse{}, fmt.Errorf("collection must not be empty")
		}

		deleted, err := documents.DeleteDocument(ctx, input.Collection, input.DocumentID)
		if err != nil {
			return nil, search.DeleteResponse{}, err
		}
		if deleted == 0 {
			return nil, search.DeleteResponse{}, fmt.Errorf("document %s not found", input.DocumentID)
		}

		return nil, search.DeleteResponse{
			DocumentID:    input.DocumentID,
			ChunksDeleted: deleted,
		}, nil
	}
}
