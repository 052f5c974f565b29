package qdrant

import (
	"strings"
	"testing"

	"github.com/legaladviser/legalrag/pkg/document"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		config        *Config
		errorContains string
	}{
		{
			name:          "missing URL",
			config:        &Config{CollectionName: "legaladviser", Dimension: 768},
			errorContains: "URL is required",
		},
		{
			name:          "missing collection",
			config:        &Config{URL: "http://localhost:6334", Dimension: 768},
			errorContains: "collection name is required",
		},
		{
			name:          "missing dimension",
			config:        &Config{URL: "http://localhost:6334", CollectionName: "legaladviser"},
			errorContains: "dimension is required",
		},
		{
			name:          "bad port",
			config:        &Config{URL: "http://localhost:notaport", CollectionName: "legaladviser", Dimension: 768},
			errorContains: "invalid qdrant URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tt.config)
			if err == nil {
				t.Fatal("expected error, got none")
			}
			if !strings.Contains(err.Error(), tt.errorContains) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.errorContains)
			}
		})
	}
}

func TestPointID(t *testing.T) {
	t.Parallel()

	// Content identifiers are 32-char hex digests and must map onto their
	// UUID rendering, stably.
	hexID := document.ContentID("contract-act.md", 0)
	a, b := pointID(hexID), pointID(hexID)
	if a != b {
		t.Errorf("same input produced %s and %s", a, b)
	}
	if strings.ReplaceAll(a, "-", "") != hexID {
		t.Errorf("pointID(%s) = %s, not its UUID rendering", hexID, a)
	}

	// Canonical UUIDs pass through.
	const canonical = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
	if got := pointID(canonical); got != canonical {
		t.Errorf("pointID(%s) = %s", canonical, got)
	}

	// Arbitrary strings map deterministically and don't collide trivially.
	x, y := pointID("not-a-uuid"), pointID("not-a-uuid")
	if x != y {
		t.Error("fallback mapping is not deterministic")
	}
	if pointID("not-a-uuid") == pointID("another-string") {
		t.Error("distinct strings mapped to the same point id")
	}
}
