// Package ai defines the model capability interfaces the pipelines depend
// on: text generation, streaming generation and embedding. Providers live in
// subpackages (gemini, openai) and are passed in at construction so tests can
// substitute the mock client.
package ai

import (
	"context"
	"iter"
)

// Generator produces a complete text response for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// StreamGenerator produces a lazy sequence of response fragments for a
// prompt. The sequence ends after the final fragment, or after yielding a
// non-nil error; consumers must stop on the first error.
type StreamGenerator interface {
	GenerateStream(ctx context.Context, prompt string) iter.Seq2[string, error]
}

// Embedder converts a batch of texts into fixed-length vectors. The i-th
// output vector corresponds to the i-th input text; implementations must
// return exactly one vector per input or an error.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Client bundles the three capabilities a full provider exposes.
type Client interface {
	Generator
	StreamGenerator
	Embedder
}

// Helper functions for pointer creation in provider configs.
func Float32Ptr(f float32) *float32 { return &f }
func IntPtr(i int) *int             { return &i }
