// Command server runs the question-answering API: POST /chat streams
// translation, retrieval and answer-generation progress as server-sent
// events, with health and metrics endpoints alongside.
package main

import (
	"context"
	"errors"
	"net/http"
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
	"github.com/legaladviser/legalrag/pkg/query"
	"github.com/legaladviser/legalrag/pkg/server"
	"github.com/legaladviser/legalrag/pkg/vectorstore"
	"github.com/legaladviser/legalrag/pkg/vectorstore/pgvector"
	"github.com/legaladviser/legalrag/pkg/vectorstore/qdrant"
)

func main() {
	_ = godotenv.Load()
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Str("component", "server").Logger()

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

	srv, err := server.New(
		query.NewTranslator(client, log),
		query.NewRetriever(client, store, cfg.TopK),
		query.NewAnswerGenerator(client),
		store,
		cfg.RequestTimeout,
		log,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build server")
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown did not complete cleanly")
		}
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Str("backend", cfg.VectorBackend).Msg("listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Msg("server stopped")
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
