package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the tunable retrieval pipeline parameters. Values are loaded
// from a YAML file so chunking and ranking behaviour can be changed without
// rebuilding, but bad chunking parameters are rejected at load time: a changed
// chunking strategy requires reindexing every document, so it must never be
// the result of a half-applied config edit.
type Config struct {
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Synthesis SynthesisConfig `yaml:"synthesis"`
}

type ChunkingConfig struct {
	SizeWords    int `yaml:"size_words"`
	OverlapWords int `yaml:"overlap_words"`
}

type RetrievalConfig struct {
	TopK               int     `yaml:"top_k"`
	OversampleFactor   int     `yaml:"oversample_factor"`
	RelevanceThreshold float64 `yaml:"relevance_threshold"`
}

type SynthesisConfig struct {
	MaxTokens      int     `yaml:"max_tokens"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	MaxRetries     int     `yaml:"max_retries"`
	Temperature    float64 `yaml:"temperature"`
}

// Default returns the pipeline configuration used when no YAML file is present.
func Default() *Config {
	return &Config{
		Chunking: ChunkingConfig{
			SizeWords:    250,
			OverlapWords: 25,
		},
		Retrieval: RetrievalConfig{
			TopK:               5,
			OversampleFactor:   3,
			RelevanceThreshold: 0.30,
		},
		Synthesis: SynthesisConfig{
			MaxTokens:      500,
			TimeoutSeconds: 30,
			MaxRetries:     3,
			Temperature:    0.3,
		},
	}
}

// Load reads the pipeline config from path. A missing file falls back to
// defaults; an unreadable or invalid file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate enforces the startup-fatal configuration invariants.
func (c *Config) Validate() error {
	if c.Chunking.SizeWords <= 0 {
		return fmt.Errorf("chunking.size_words must be positive, got %d", c.Chunking.SizeWords)
	}
	if c.Chunking.OverlapWords < 0 {
		return fmt.Errorf("chunking.overlap_words must not be negative, got %d", c.Chunking.OverlapWords)
	}
	if c.Chunking.OverlapWords >= c.Chunking.SizeWords {
		return fmt.Errorf("chunking.overlap_words (%d) must be smaller than chunking.size_words (%d)",
			c.Chunking.OverlapWords, c.Chunking.SizeWords)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.OversampleFactor < 1 {
		return fmt.Errorf("retrieval.oversample_factor must be at least 1, got %d", c.Retrieval.OversampleFactor)
	}
	if c.Retrieval.RelevanceThreshold < 0 || c.Retrieval.RelevanceThreshold > 1 {
		return fmt.Errorf("retrieval.relevance_threshold must be in [0,1], got %f", c.Retrieval.RelevanceThreshold)
	}
	return nil
}
