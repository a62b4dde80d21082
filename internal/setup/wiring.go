package setup

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/soleralabs/legalrag/internal/bedrock"
	"github.com/soleralabs/legalrag/internal/cache"
	"github.com/soleralabs/legalrag/internal/config"
	"github.com/soleralabs/legalrag/internal/database"
	"github.com/soleralabs/legalrag/internal/embedding"
	llmbedrock "github.com/soleralabs/legalrag/internal/llm/bedrock"
	"github.com/soleralabs/legalrag/internal/rerank"
	"github.com/soleralabs/legalrag/internal/rewrite"
	"github.com/soleralabs/legalrag/internal/search"
	"github.com/soleralabs/legalrag/internal/synthesis"
)

// Config collects the environment-driven settings: connection endpoints,
// credentials and model identifiers. Pipeline tuning parameters live in the
// YAML file referenced by PipelineConfigPath instead.
type Config struct {
	AWSRegion      string
	ClaudeModelID  string
	TitanModelID   string
	TitanDimension int

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	RerankerURL     string
	RerankerTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisTTL      time.Duration

	Port               string
	LogLevel           string
	LogFormat          string
	PipelineConfigPath string
}

// Dependencies holds the wired pipeline components shared by the API server
// and the ingest CLI.
type Dependencies struct {
	DB       *database.DB
	Embedder embedding.Embedder
	Service  *search.Service
	Pipeline *config.Config
	Cache    *cache.SearchCache
}

func LoadConfig() *Config {
	return &Config{
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		ClaudeModelID:  getEnv("CLAUDE_MODEL_ID", ""),
		TitanModelID:   getEnv("TITAN_MODEL_ID", embedding.DefaultTitanModelID),
		TitanDimension: getEnvInt("TITAN_DIMENSION", 1024),

		DBHost:     getEnv("LEGALRAG_DB_HOST", "localhost"),
		DBPort:     getEnv("LEGALRAG_DB_PORT", "5432"),
		DBUser:     getEnv("LEGALRAG_DB_USER", "postgres"),
		DBPassword: getEnv("LEGALRAG_DB_PASSWORD", ""),
		DBName:     getEnv("LEGALRAG_DB_NAME", "legalrag"),
		DBSSLMode:  getEnv("LEGALRAG_DB_SSLMODE", "disable"),

		RerankerURL:     getEnv("RERANKER_URL", ""),
		RerankerTimeout: time.Duration(getEnvInt("RERANKER_TIMEOUT_SECONDS", 15)) * time.Second,

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTTL:      time.Duration(getEnvInt("REDIS_TTL_SECONDS", 300)) * time.Second,

		Port:               getEnv("SEARCH_API_PORT", "8082"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "console"),
		PipelineConfigPath: getEnv("PIPELINE_CONFIG_PATH", "config/pipeline.yaml"),
	}
}

// Wire connects the retrieval pipeline. The database, Bedrock client and
// pipeline config are required; the reranker, synthesizer and cache are
// optional and the service degrades to plain cosine search without them.
func Wire(ctx context.Context, cfg *Config) (*Dependencies, error) {
	pipeline, err := config.Load(cfg.PipelineConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline config: %w", err)
	}

	db, err := database.NewWithBackoff(ctx, database.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}, 5)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	bedrockClient, err := bedrock.NewClient(ctx, cfg.AWSRegion)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create Bedrock client: %w", err)
	}

	embedder := embedding.NewTitanEmbedder(bedrockClient.Client, cfg.TitanModelID, cfg.TitanDimension)

	service := search.NewService(db, embedder, pipeline.Retrieval)

	if cfg.RerankerURL != "" {
		reranker := rerank.NewCrossEncoderClient(cfg.RerankerURL, cfg.RerankerTimeout)
		service.WithReranker(reranker)
		log.Info().Str("endpoint", cfg.RerankerURL).Msg("Cross-encoder reranking enabled")
	} else {
		log.Info().Msg("No reranker endpoint configured, using similarity order")
	}

	if cfg.ClaudeModelID != "" {
		llmClient := llmbedrock.NewClient(bedrockClient.Client, cfg.ClaudeModelID)
		llmClient.MaxRetries = pipeline.Synthesis.MaxRetries

		synthesizer := synthesis.NewSynthesizer(
			llmClient,
			pipeline.Synthesis.MaxTokens,
			pipeline.Synthesis.Temperature,
			time.Duration(pipeline.Synthesis.TimeoutSeconds)*time.Second,
			pipeline.Retrieval.RelevanceThreshold,
		)
		service.WithSynthesizer(synthesizer)
		service.WithRewriter(rewrite.NewRewriter(llmClient))
		log.Info().Str("model", cfg.ClaudeModelID).Msg("Answer synthesis enabled")
	} else {
		log.Info().Msg("No Claude model configured, answer synthesis disabled")
	}

	var searchCache *cache.SearchCache
	if cfg.RedisAddr != "" {
		searchCache, err = cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisTTL)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, running without search cache")
		} else {
			service.WithCache(searchCache)
		}
	}

	return &Dependencies{
		DB:       db,
		Embedder: embedder,
		Service:  service,
		Pipeline: pipeline,
		Cache:    searchCache,
	}, nil
}

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}

	return value
}

func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		value = defaultValue
	}

	return value
}
