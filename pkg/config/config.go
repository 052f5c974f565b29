// Package config loads runtime settings for the ingestion and serving
// binaries. Precedence is environment variables over an optional YAML file
// over built-in defaults; the YAML file path comes from LEGALRAG_CONFIG.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
)

// Provider and backend names accepted in configuration.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	BackendQdrant   = "qdrant"
	BackendPgvector = "pgvector"
)

// Config holds every setting both binaries read. Fields carry yaml tags for
// the optional config file; the environment overrides all of them.
type Config struct {
	// Model providers.
	LLMProvider     string `yaml:"llm_provider"`
	GeminiAPIKey    string `yaml:"gemini_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	GenerationModel string `yaml:"generation_model"`
	EmbeddingModel  string `yaml:"embedding_model"`
	EmbeddingDim    int    `yaml:"embedding_dimension"`

	// Vector store.
	VectorBackend    string `yaml:"vector_backend"`
	QdrantURL        string `yaml:"qdrant_url"`
	QdrantAPIKey     string `yaml:"qdrant_api_key"`
	QdrantCollection string `yaml:"qdrant_collection"`
	PostgresURL      string `yaml:"postgres_url"`
	PgvectorTable    string `yaml:"pgvector_table"`

	// Ingestion.
	InputDir       string `yaml:"input_dir"`
	ProcessedDir   string `yaml:"processed_dir"`
	ChunkPages     int    `yaml:"chunk_pages"`
	ChunkOverlap   int    `yaml:"chunk_overlap"`
	EmbedBatchSize int    `yaml:"embed_batch_size"`

	// Serving.
	TopK           int           `yaml:"top_k"`
	HTTPAddr       string        `yaml:"http_addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		LLMProvider:      ProviderGemini,
		GenerationModel:  "gemini-2.0-flash",
		EmbeddingModel:   "text-embedding-004",
		EmbeddingDim:     768,
		VectorBackend:    BackendQdrant,
		QdrantURL:        "http://localhost:6334",
		QdrantCollection: "legaladviser",
		PgvectorTable:    "legal_chunks",
		InputDir:         "output/documents",
		ProcessedDir:     "processed/documents",
		ChunkPages:       5,
		ChunkOverlap:     1,
		EmbedBatchSize:   32,
		TopK:             5,
		HTTPAddr:         ":8000",
		RequestTimeout:   5 * time.Minute,
	}
}

// Load builds the effective configuration: defaults, then the YAML file named
// by LEGALRAG_CONFIG if set, then environment variables on top.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("LEGALRAG_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.LLMProvider, "LLM_PROVIDER")
	setString(&c.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&c.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&c.GenerationModel, "GENERATION_MODEL")
	setString(&c.EmbeddingModel, "EMBEDDING_MODEL")
	setString(&c.VectorBackend, "VECTOR_BACKEND")
	setString(&c.QdrantURL, "QDRANT_URL")
	setString(&c.QdrantAPIKey, "QDRANT_API_KEY")
	setString(&c.QdrantCollection, "QDRANT_COLLECTION")
	setString(&c.PostgresURL, "POSTGRES_URL")
	setString(&c.PgvectorTable, "PGVECTOR_TABLE")
	setString(&c.InputDir, "INPUT_DIR")
	setString(&c.ProcessedDir, "PROCESSED_DIR")
	setString(&c.HTTPAddr, "HTTP_ADDR")

	for _, v := range []struct {
		dst *int
		key string
	}{
		{&c.EmbeddingDim, "EMBEDDING_DIMENSION"},
		{&c.ChunkPages, "CHUNK_PAGES"},
		{&c.ChunkOverlap, "CHUNK_OVERLAP"},
		{&c.EmbedBatchSize, "EMBED_BATCH_SIZE"},
		{&c.TopK, "TOP_K"},
	} {
		if err := setInt(v.dst, v.key); err != nil {
			return err
		}
	}

	if raw := os.Getenv("REQUEST_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid REQUEST_TIMEOUT %q: %w", raw, err)
		}
		c.RequestTimeout = d
	}
	return nil
}

func (c *Config) validate() error {
	switch c.LLMProvider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	switch c.VectorBackend {
	case BackendQdrant, BackendPgvector:
	default:
		return fmt.Errorf("unknown VECTOR_BACKEND %q", c.VectorBackend)
	}
	if c.ChunkOverlap >= c.ChunkPages {
		return fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", c.ChunkOverlap, c.ChunkPages)
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.EmbeddingDim)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	*dst = n
	return nil
}
