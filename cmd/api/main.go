package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	restful "github.com/emicklei/go-restful/v3"
	"github.com/go-openapi/spec"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"github.com/soleralabs/legalrag/internal/api/middleware"
	"github.com/soleralabs/legalrag/internal/ingestion"
	"github.com/soleralabs/legalrag/internal/search"
	"github.com/soleralabs/legalrag/internal/setup"
	"github.com/soleralabs/legalrag/internal/setup/logger"
)

func enrichSwaggerObject(swo *spec.Swagger) {
	swo.Info = &spec.Info{
		InfoProps: spec.InfoProps{
			Title:       "Legal RAG Search API",
			Description: "Semantic retrieval over legal documents with reranking and answer synthesis",
			Version:     "1.0.0",
		},
	}
	swo.Tags = []spec.Tag{
		{TagProps: spec.TagProps{Name: "health", Description: "Health checks"}},
		{TagProps: spec.TagProps{Name: "search", Description: "Semantic search"}},
		{TagProps: spec.TagProps{Name: "documents", Description: "Document management"}},
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found")
	}

	cfg := setup.LoadConfig()
	log.Logger = logger.New(cfg.LogLevel, cfg.LogFormat)

	log.Info().Msg("Starting Legal RAG Search API")

	ctx := context.Background()

	deps, err := setup.Wire(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer deps.DB.Close()
	if deps.Cache != nil {
		defer deps.Cache.Close()
	}

	chunker, err := ingestion.NewChunker(deps.Pipeline.Chunking.SizeWords, deps.Pipeline.Chunking.OverlapWords)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid chunking configuration")
	}
	pipeline := ingestion.NewPipeline(chunker, deps.Embedder, deps.DB)

	handler := search.NewHandler(deps.Service, pipeline, deps.DB, deps.Cache)

	container := restful.NewContainer()
	container.Filter(middleware.Logger)
	container.Filter(middleware.RecoverPanic)

	search.RegisterRoutes(container, handler)

	openapiConfig := restfulspec.Config{
		WebServices:                   container.RegisteredWebServices(),
		APIPath:                       "/api/v1/openapi.json",
		PostBuildSwaggerObjectHandler: enrichSwaggerObject,
	}
	container.Add(restfulspec.NewOpenAPIService(openapiConfig))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Info().Str("address", addr).Msg("Starting server")

	server := http.Server{
		Addr:         addr,
		Handler:      corsHandler.Handler(container),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if err := server.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("Server failed to start")
	}
}
