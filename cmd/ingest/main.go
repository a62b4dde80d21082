package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/soleralabs/legalrag/internal/ingestion"
	"github.com/soleralabs/legalrag/internal/setup"
	"github.com/soleralabs/legalrag/internal/setup/logger"
)

func main() {
	collection := flag.String("collection", "", "Collection to operate on")

	insertDocCommand := flag.Bool("insert-doc", false, "Ingest a document from a file")
	filePath := flag.String("filePath", "", "Path to the extracted text file")

	deleteDocCommand := flag.Bool("delete-doc", false, "Delete a document and all its chunks")
	documentID := flag.String("doc-id", "", "Document id to delete")

	getDocsCommand := flag.Bool("get-docs", false, "List documents in the collection")

	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found")
	}

	cfg := setup.LoadConfig()
	log.Logger = logger.New(cfg.LogLevel, cfg.LogFormat)

	if *collection == "" {
		log.Fatal().Msg("Please provide a collection with -collection")
	}

	ctx := context.Background()

	deps, err := setup.Wire(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer deps.DB.Close()
	if deps.Cache != nil {
		defer deps.Cache.Close()
	}

	switch {
	case *deleteDocCommand:
		if *documentID == "" {
			log.Fatal().Msg("Please provide a document id with -doc-id")
		}
		deleted, err := deps.DB.DeleteDocument(ctx, *collection, *documentID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to delete document")
		}
		if deleted == 0 {
			log.Warn().Str("document_id", *documentID).Msg("Document not found")
			return
		}
		log.Info().Str("document_id", *documentID).Int64("chunks_deleted", deleted).Msg("Document deleted")

	case *getDocsCommand:
		documents, err := deps.DB.ListDocuments(ctx, *collection)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to list documents")
		}
		for _, doc := range documents {
			fmt.Printf("%s  %s  chunks=%d pages=%d uploaded=%s\n",
				doc.DocumentID, doc.Filename, doc.TotalChunks, doc.TotalPages,
				doc.UploadedAt.Format("2006-01-02 15:04:05"))
		}
		log.Info().Int("count", len(documents)).Msg("Documents listed")

	case *insertDocCommand:
		if *filePath == "" {
			log.Fatal().Msg("Please provide a file with -filePath")
		}

		parser := ingestion.NewParser()
		document, err := parser.ParseFile(*filePath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to parse file")
		}

		chunker, err := ingestion.NewChunker(deps.Pipeline.Chunking.SizeWords, deps.Pipeline.Chunking.OverlapWords)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid chunking configuration")
		}
		pipeline := ingestion.NewPipeline(chunker, deps.Embedder, deps.DB)

		result, err := pipeline.IngestDocument(ctx, *collection, ingestion.IngestInput{
			Filename:       document.Filename,
			Text:           document.Text,
			PageBoundaries: document.PageBoundaries,
			TotalPages:     document.TotalPages,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Ingestion failed")
		}
		log.Info().
			Str("document_id", result.DocumentID).
			Int("chunks", result.TotalChunks).
			Msg("Ingestion successful")

	default:
		log.Fatal().Msg("Please provide a command: -insert-doc, -delete-doc or -get-docs")
	}
}
