// Package gemini provides Google Gemini model integration. It implements the
// ai.Client interface to serve text generation, streaming generation and
// batch embeddings through Google's genai SDK.
package gemini

import (
	"context"
	"fmt"
	"iter"
	"os"

	"google.golang.org/genai"

	"github.com/legaladviser/legalrag/pkg/ai"
)

// Client implements ai.Client for Google Gemini.
//
// Example:
//
//	client, _ := gemini.New("gemini-2.5-flash", "text-embedding-004")
type Client struct {
	client     *genai.Client
	model      string
	embedModel string
	config     *Config
}

// Config holds Gemini-specific configuration.
// All fields are optional with sensible defaults.
type Config struct {
	// API key for Google AI authentication. Falls back to GEMINI_API_KEY.
	APIKey string

	// Controls randomness in token selection (0.0-2.0)
	Temperature *float32

	// Maximum number of tokens in the response
	MaxTokens *int

	// System instructions to steer model behavior
	SystemInstruction string
}

// Option interface for functional options pattern
type Option interface {
	Apply(*Config)
}

type configOption struct{ config *Config }

func (o configOption) Apply(opts *Config) { *opts = *o.config }

// WithConfig sets custom Gemini configuration, overriding the defaults.
func WithConfig(config *Config) Option {
	return configOption{config: config}
}

// DefaultConfig returns sensible defaults: API key from GEMINI_API_KEY and
// temperature 0.2, biased toward faithful extraction over creativity.
func DefaultConfig() *Config {
	return &Config{
		APIKey:      os.Getenv("GEMINI_API_KEY"),
		Temperature: ai.Float32Ptr(0.2),
	}
}

// New creates a Gemini client for the given generation and embedding models.
//
// Requires GEMINI_API_KEY in the environment or config.APIKey.
//
// Example:
//
//	client, err := gemini.New("gemini-2.5-flash", "text-embedding-004")
//	if err != nil { log.Fatal(err) }
func New(model, embedModel string, opts ...Option) (*Client, error) {
	if model == "" {
		return nil, fmt.Errorf("generation model name is required")
	}
	if embedModel == "" {
		return nil, fmt.Errorf("embedding model name is required")
	}

	config := DefaultConfig()
	for _, opt := range opts {
		opt.Apply(config)
	}

	if config.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set or provided in config")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: config.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Client{
		client:     client,
		model:      model,
		embedModel: embedModel,
		config:     config,
	}, nil
}

// Generate implements ai.Generator.
func (g *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), g.generateConfig())
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}
	return resp.Text(), nil
}

// GenerateStream implements ai.StreamGenerator, yielding response fragments
// as they arrive from the model.
func (g *Client) GenerateStream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, genai.Text(prompt), g.generateConfig()) {
			if err != nil {
				yield("", fmt.Errorf("gemini stream failed: %w", err))
				return
			}
			if text := resp.Text(); text != "" {
				if !yield(text, nil) {
					return
				}
			}
		}
	}
}

// Embed implements ai.Embedder. Returns one vector per input text, in input
// order, or an error when the service responds with a mismatched count.
func (g *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.Text(t)...)
	}

	resp, err := g.client.Models.EmbedContent(ctx, g.embedModel, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embed failed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embed returned %d vectors for %d inputs", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// generateConfig maps the provider config onto a genai request config.
func (g *Client) generateConfig() *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if g.config.Temperature != nil {
		config.Temperature = genai.Ptr(*g.config.Temperature)
	}
	if g.config.MaxTokens != nil {
		config.MaxOutputTokens = int32(*g.config.MaxTokens)
	}
	if g.config.SystemInstruction != "" {
		if systemContent := genai.Text(g.config.SystemInstruction); len(systemContent) > 0 {
			config.SystemInstruction = systemContent[0]
		}
	}
	return config
}
