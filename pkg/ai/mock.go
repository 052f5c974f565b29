package ai

import (
	"context"
	"fmt"
	"iter"
	"strings"
)

// MockClient implements the Client interface for testing
type MockClient struct {
	response    string
	responses   []string // Multiple responses for sequential Generate calls
	callCount   int      // Track which response to return
	dimension   int
	shouldError bool
	errorMsg    string

	// Prompts and texts the mock has seen, for assertions
	Prompts     []string
	EmbedCalls  [][]string
	embedFn     func(texts []string) ([][]float32, error)
	streamParts []string
}

// NewMockClient creates a mock client that always answers with response.
func NewMockClient(response string) *MockClient {
	return &MockClient{response: response, dimension: 4}
}

// NewMockClientWithResponses creates a mock client with sequential responses.
func NewMockClientWithResponses(responses []string) *MockClient {
	return &MockClient{responses: responses, dimension: 4}
}

// NewMockClientWithError creates a mock client that fails every call.
func NewMockClientWithError(msg string) *MockClient {
	return &MockClient{shouldError: true, errorMsg: msg}
}

// WithDimension sets the width of the vectors Embed returns.
func (m *MockClient) WithDimension(dim int) *MockClient {
	m.dimension = dim
	return m
}

// WithStreamParts sets the fragments GenerateStream yields instead of the
// word-split response.
func (m *MockClient) WithStreamParts(parts ...string) *MockClient {
	m.streamParts = parts
	return m
}

// WithEmbedFunc replaces the default embedding behavior entirely.
func (m *MockClient) WithEmbedFunc(fn func(texts []string) ([][]float32, error)) *MockClient {
	m.embedFn = fn
	return m
}

// Generate implements the Generator interface.
func (m *MockClient) Generate(_ context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.shouldError {
		return "", fmt.Errorf("mock error: %s", m.errorMsg)
	}
	if len(m.responses) > 0 {
		resp := m.responses[m.callCount%len(m.responses)]
		m.callCount++
		return resp, nil
	}
	return m.response, nil
}

// GenerateStream implements the StreamGenerator interface, yielding the
// configured parts or the response split by words.
func (m *MockClient) GenerateStream(_ context.Context, prompt string) iter.Seq2[string, error] {
	m.Prompts = append(m.Prompts, prompt)
	return func(yield func(string, error) bool) {
		if m.shouldError {
			yield("", fmt.Errorf("mock error: %s", m.errorMsg))
			return
		}
		parts := m.streamParts
		if parts == nil {
			parts = strings.SplitAfter(m.response, " ")
		}
		for _, p := range parts {
			if !yield(p, nil) {
				return
			}
		}
	}
}

// Embed implements the Embedder interface with deterministic vectors: the
// i-th vector is filled with float32(i+1).
func (m *MockClient) Embed(_ context.Context, texts []string) ([][]float32, error) {
	m.EmbedCalls = append(m.EmbedCalls, texts)
	if m.embedFn != nil {
		return m.embedFn(texts)
	}
	if m.shouldError {
		return nil, fmt.Errorf("mock error: %s", m.errorMsg)
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, m.dimension)
		for j := range vec {
			vec[j] = float32(i + 1)
		}
		vectors[i] = vec
	}
	return vectors, nil
}
