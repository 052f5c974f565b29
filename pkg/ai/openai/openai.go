// Package openai provides OpenAI model integration behind the ai.Client
// interface, as the alternative to the default Gemini provider. Selected with
// LLM_PROVIDER=openai.
package openai

import (
	"context"
	"fmt"
	"iter"
	"os"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"github.com/legaladviser/legalrag/pkg/ai"
)

// Client implements ai.Client for OpenAI.
//
// Example:
//
//	client, _ := openai.New("gpt-4o-mini", "text-embedding-3-small")
type Client struct {
	client     *openai.Client
	model      shared.ChatModel
	embedModel string
	config     *Config
}

// Config holds OpenAI-specific configuration.
type Config struct {
	// API key for authentication. Falls back to OPENAI_API_KEY.
	APIKey string

	// Optional custom endpoint, e.g. an Azure or proxy deployment
	BaseURL string

	// Controls randomness in token selection (0.0-2.0)
	Temperature *float32

	// Maximum number of completion tokens
	MaxTokens *int
}

// Option interface for functional options pattern
type Option interface {
	Apply(*Config)
}

type configOption struct{ config *Config }

func (o configOption) Apply(opts *Config) { *opts = *o.config }

// WithConfig sets custom OpenAI configuration, overriding the defaults.
func WithConfig(config *Config) Option {
	return configOption{config: config}
}

// DefaultConfig returns sensible defaults with the API key read from
// OPENAI_API_KEY.
func DefaultConfig() *Config {
	return &Config{
		APIKey:      os.Getenv("OPENAI_API_KEY"),
		Temperature: ai.Float32Ptr(0.2),
	}
}

// New creates an OpenAI client for the given generation and embedding models.
//
// Requires OPENAI_API_KEY in the environment or config.APIKey.
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
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set or provided in config")
	}

	clientOptions := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		clientOptions = append(clientOptions, option.WithBaseURL(config.BaseURL))
	}
	openaiClient := openai.NewClient(clientOptions...)

	return &Client{
		client:     &openaiClient,
		model:      shared.ChatModel(model),
		embedModel: embedModel,
		config:     config,
	}, nil
}

// Generate implements ai.Generator.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, c.chatParams(prompt))
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateStream implements ai.StreamGenerator, yielding content deltas as
// they arrive.
func (c *Client) GenerateStream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		stream := c.client.Chat.Completions.NewStreaming(ctx, c.chatParams(prompt))
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				if !yield(delta, nil) {
					return
				}
			}
		}
		if err := stream.Err(); err != nil {
			yield("", fmt.Errorf("openai stream failed: %w", err))
		}
	}
}

// Embed implements ai.Embedder. Returns one vector per input text, in input
// order, or an error when the service responds with a mismatched count.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.embedModel),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embed returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, emb := range resp.Data {
		vec := make([]float32, len(emb.Embedding))
		for j, v := range emb.Embedding {
			vec[j] = float32(v)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// chatParams builds completion parameters for a single-turn user prompt.
func (c *Client) chatParams(prompt string) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
	}
	if c.config.Temperature != nil {
		params.Temperature = openai.Float(float64(*c.config.Temperature))
	}
	if c.config.MaxTokens != nil {
		params.MaxCompletionTokens = openai.Int(int64(*c.config.MaxTokens))
	}
	return params
}
