package openai

import (
	"os"
	"strings"
	"testing"

	"github.com/legaladviser/legalrag/pkg/ai"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name          string
		model         string
		embedModel    string
		opts          []Option
		setupEnv      func()
		expectError   bool
		errorContains string
	}{
		{
			name:          "empty generation model",
			model:         "",
			embedModel:    "text-embedding-3-small",
			expectError:   true,
			errorContains: "generation model name is required",
		},
		{
			name:          "empty embedding model",
			model:         "gpt-4o-mini",
			embedModel:    "",
			expectError:   true,
			errorContains: "embedding model name is required",
		},
		{
			name:          "no API key",
			model:         "gpt-4o-mini",
			embedModel:    "text-embedding-3-small",
			setupEnv:      func() { os.Unsetenv("OPENAI_API_KEY") },
			expectError:   true,
			errorContains: "OPENAI_API_KEY environment variable not set",
		},
		{
			name:       "valid models with config API key",
			model:      "gpt-4o-mini",
			embedModel: "text-embedding-3-small",
			opts: []Option{
				WithConfig(&Config{
					APIKey:      "config-api-key",
					Temperature: ai.Float32Ptr(0.5),
				}),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setupEnv != nil {
				tt.setupEnv()
			}

			client, err := New(tt.model, tt.embedModel, tt.opts...)

			if tt.expectError {
				if err == nil {
					t.Error("Expected error, got none")
					return
				}
				if tt.errorContains != "" && !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("Expected error to contain %q, got %q", tt.errorContains, err.Error())
				}
				return
			}

			if err != nil {
				t.Errorf("New() error = %v", err)
				return
			}
			if string(client.model) != tt.model {
				t.Errorf("New() model = %v, want %v", client.model, tt.model)
			}
			if client.client == nil {
				t.Error("New() openai client should not be nil")
			}
		})
	}

	os.Unsetenv("OPENAI_API_KEY")
}

func TestChatParams(t *testing.T) {
	client := &Client{
		model: "gpt-4o-mini",
		config: &Config{
			Temperature: ai.Float32Ptr(0.4),
			MaxTokens:   ai.IntPtr(1024),
		},
	}

	params := client.chatParams("what is a contract?")
	if len(params.Messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(params.Messages))
	}
	if !params.Temperature.Valid() || params.Temperature.Value != 0.4 {
		t.Errorf("Temperature = %v, want 0.4", params.Temperature)
	}
	if !params.MaxCompletionTokens.Valid() || params.MaxCompletionTokens.Value != 1024 {
		t.Errorf("MaxCompletionTokens = %v, want 1024", params.MaxCompletionTokens)
	}
}
