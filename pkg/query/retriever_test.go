package query

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/legaladviser/legalrag/pkg/ai"
	"github.com/legaladviser/legalrag/pkg/vectorstore"
)

// mockStore returns configured matches and records the query.
type mockStore struct {
	matches   []vectorstore.Match
	queryErr  error
	lastTopK  int
	lastQuery []float32
}

func (m *mockStore) Upsert(_ context.Context, _ []vectorstore.Entry) ([]string, error) {
	return nil, nil
}

func (m *mockStore) Query(_ context.Context, vector []float32, topK int, _ bool) ([]vectorstore.Match, error) {
	m.lastQuery = vector
	m.lastTopK = topK
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	if len(m.matches) > topK {
		return m.matches[:topK], nil
	}
	return m.matches, nil
}

func (m *mockStore) Delete(_ context.Context, _ []string) error { return nil }
func (m *mockStore) Health(context.Context) error               { return nil }
func (m *mockStore) Close() error                               { return nil }

func TestRetrieveMapsMatches(t *testing.T) {
	t.Parallel()

	store := &mockStore{matches: []vectorstore.Match{
		{ID: "a", Document: "chunk text a", Summary: "summary a", Score: 0.92},
		{ID: "b", Summary: "summary b", Score: 0.77},
		{ID: "c", Document: "chunk text c", Score: 0.41},
	}}
	retriever := NewRetriever(ai.NewMockClient("").WithDimension(3), store, 5)

	passages, err := retriever.Retrieve(context.Background(), "property rights")
	if err != nil {
		t.Fatal(err)
	}
	if len(passages) != 3 {
		t.Fatalf("got %d passages, want 3", len(passages))
	}

	// Stored document text wins; summary is the fallback.
	if passages[0].Text != "chunk text a" {
		t.Errorf("passage 0 text = %q", passages[0].Text)
	}
	if passages[1].Text != "summary b" {
		t.Errorf("passage 1 text = %q", passages[1].Text)
	}

	// Scores stay in non-increasing order.
	for i := 1; i < len(passages); i++ {
		if passages[i].Score > passages[i-1].Score {
			t.Errorf("passages out of order at %d", i)
		}
	}
}

func TestRetrieveHonorsTopK(t *testing.T) {
	t.Parallel()

	store := &mockStore{matches: []vectorstore.Match{
		{ID: "a", Score: 0.9}, {ID: "b", Score: 0.8}, {ID: "c", Score: 0.7},
	}}
	retriever := NewRetriever(ai.NewMockClient(""), store, 2)

	passages, err := retriever.Retrieve(context.Background(), "q")
	if err != nil {
		t.Fatal(err)
	}
	if store.lastTopK != 2 {
		t.Errorf("store queried with topK=%d, want 2", store.lastTopK)
	}
	if len(passages) > 2 {
		t.Errorf("got %d passages, want at most 2", len(passages))
	}
}

func TestRetrieveEmptyResultIsNotError(t *testing.T) {
	t.Parallel()

	retriever := NewRetriever(ai.NewMockClient(""), &mockStore{}, 5)
	passages, err := retriever.Retrieve(context.Background(), "nothing indexed yet")
	if err != nil {
		t.Fatalf("empty result treated as error: %v", err)
	}
	if len(passages) != 0 {
		t.Errorf("got %d passages, want 0", len(passages))
	}
}

func TestRetrieveFailsWithoutEmbedding(t *testing.T) {
	t.Parallel()

	t.Run("embed error", func(t *testing.T) {
		t.Parallel()
		retriever := NewRetriever(ai.NewMockClientWithError("quota exceeded"), &mockStore{}, 5)
		if _, err := retriever.Retrieve(context.Background(), "q"); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("no vector returned", func(t *testing.T) {
		t.Parallel()
		client := ai.NewMockClient("").WithEmbedFunc(func([]string) ([][]float32, error) {
			return nil, nil
		})
		retriever := NewRetriever(client, &mockStore{}, 5)
		_, err := retriever.Retrieve(context.Background(), "q")
		if err == nil || !strings.Contains(err.Error(), "no vector") {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("store error propagates", func(t *testing.T) {
		t.Parallel()
		store := &mockStore{queryErr: errors.New("connection refused")}
		retriever := NewRetriever(ai.NewMockClient(""), store, 5)
		if _, err := retriever.Retrieve(context.Background(), "q"); err == nil {
			t.Error("expected error")
		}
	})
}

func TestRetrieveDefaultTopK(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	retriever := NewRetriever(ai.NewMockClient(""), store, 0)
	if _, err := retriever.Retrieve(context.Background(), "q"); err != nil {
		t.Fatal(err)
	}
	if store.lastTopK != DefaultTopK {
		t.Errorf("topK = %d, want %d", store.lastTopK, DefaultTopK)
	}
}
