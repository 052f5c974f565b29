// Command ingest walks the converted markdown corpus and indexes it: each
// document is chunked by page windows, summarized, embedded in batches and
// upserted into the configured vector store under deterministic identifiers.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/legaladviser/legalrag/pkg/ai"
	"github.com/legaladviser/legalrag/pkg/ai/gemini"
	"github.com/legaladviser/legalrag/pkg/ai/openai"
	"github.com/legaladviser/legalrag/pkg/config"
	"github.com/legaladviser/legalrag/pkg/ingest"
	"github.com/legaladviser/legalrag/pkg/vectorstore"
	"github.com/legaladviser/legalrag/pkg/vectorstore/pgvector"
	"github.com/legaladviser/legalrag/pkg/vectorstore/qdrant"
)

func main() {
	_ = godotenv.Load()
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Str("component", "ingest").Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	client, err := newAIClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create model client")
	}

	store, err := newStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to vector store")
	}
	defer store.Close()

	pipeline, err := ingest.New(client, client, store, ingest.Config{
		InputDir:       cfg.InputDir,
		ProcessedDir:   cfg.ProcessedDir,
		ChunkPages:     cfg.ChunkPages,
		Overlap:        cfg.ChunkOverlap,
		EmbedBatchSize: cfg.EmbedBatchSize,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build ingestion pipeline")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := pipeline.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("ingestion run failed")
	}
	log.Info().
		Int("processed", stats.Processed).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Int("chunks", stats.Chunks).
		Msg("ingestion complete")
	if stats.Failed > 0 {
		os.Exit(1)
	}
}

// newAIClient selects the model provider. API keys left empty in the
// configuration fall through to the provider's own environment lookup.
func newAIClient(cfg config.Config) (ai.Client, error) {
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		var opts []openai.Option
		if cfg.OpenAIAPIKey != "" {
			opts = append(opts, openai.WithConfig(&openai.Config{APIKey: cfg.OpenAIAPIKey}))
		}
		return openai.New(cfg.GenerationModel, cfg.EmbeddingModel, opts...)
	default:
		var opts []gemini.Option
		if cfg.GeminiAPIKey != "" {
			opts = append(opts, gemini.WithConfig(&gemini.Config{APIKey: cfg.GeminiAPIKey}))
		}
		return gemini.New(cfg.GenerationModel, cfg.EmbeddingModel, opts...)
	}
}

func newStore(cfg config.Config) (vectorstore.Store, error) {
	switch cfg.VectorBackend {
	case config.BackendPgvector:
		return pgvector.New(&pgvector.Config{
			ConnectionString: cfg.PostgresURL,
			TableName:        cfg.PgvectorTable,
			Dimension:        cfg.EmbeddingDim,
		})
	default:
		return qdrant.New(&qdrant.Config{
			URL:            cfg.QdrantURL,
			CollectionName: cfg.QdrantCollection,
			APIKey:         cfg.QdrantAPIKey,
			Dimension:      cfg.EmbeddingDim,
		})
	}
}
