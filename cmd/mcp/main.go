package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
	"github.com/soleralabs/legalrag/internal/mcpadapter"
	"github.com/soleralabs/legalrag/internal/setup"
	"github.com/soleralabs/legalrag/internal/setup/logger"
)

func main() {
	_ = godotenv.Load()

	cfg := setup.LoadConfig()
	log.Logger = logger.New(cfg.LogLevel, cfg.LogFormat)

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := setup.Wire(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("Unable to load dependencies")
		os.Exit(1)
	}
	defer deps.DB.Close()
	if deps.Cache != nil {
		defer deps.Cache.Close()
	}

	server := createMCPServer(deps)

	// Run over stdio
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		// EOF / "server is closing" is expected when stdin closes
		if errors.Is(err, io.EOF) || strings.Contains(err.Error(), "server is closing") {
			log.Debug().Err(err).Msg("MCP server stopped")
			return
		}
		log.Error().Err(err).Msg("Failed to run mcp server")
		os.Exit(1)
	}
}

func createMCPServer(deps *setup.Dependencies) *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "legalrag",
			Version: "1.0.0",
		}, nil,
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_documents",
		Description: "Semantic search over a collection's legal documents, with optional grounded answer synthesis",
	}, mcpadapter.NewSearchHandler(deps.Service))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List the documents indexed in a collection",
	}, mcpadapter.NewListDocumentsHandler(deps.DB))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_document",
		Description: "Delete a document and all of its chunks from a collection",
	}, mcpadapter.NewDeleteDocumentHandler(deps.DB))

	return server
}
