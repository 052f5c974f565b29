package query

import (
	"context"
	"fmt"

	"github.com/legaladviser/legalrag/pkg/ai"
	"github.com/legaladviser/legalrag/pkg/vectorstore"
)

// DefaultTopK is the number of passages retrieved per query.
const DefaultTopK = 5

// Passage is one retrieved grounding text: the stored chunk (or its summary
// when the chunk text is absent) with its similarity score.
type Passage struct {
	ID    string  `json:"id"`
	Text  string  `json:"document"`
	Score float32 `json:"distance"`
}

// Retriever embeds query text and fetches the nearest index entries.
type Retriever struct {
	embedder ai.Embedder
	store    vectorstore.Store
	topK     int
}

// NewRetriever creates a retriever. topK <= 0 falls back to DefaultTopK.
func NewRetriever(embedder ai.Embedder, store vectorstore.Store, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{embedder: embedder, store: store, topK: topK}
}

// Retrieve embeds the query text as a single input and returns up to topK
// passages ordered by descending similarity. An empty result set is not an
// error; refusing to answer ungrounded questions is the answer generator's
// job, not the retriever's.
func (r *Retriever) Retrieve(ctx context.Context, queryText string) ([]Passage, error) {
	vectors, err := r.embedder.Embed(ctx, []string{queryText})
	if err != nil {
		return nil, fmt.Errorf("embedding query failed: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding query returned no vector")
	}

	matches, err := r.store.Query(ctx, vectors[0], r.topK, true)
	if err != nil {
		return nil, fmt.Errorf("vector store query failed: %w", err)
	}

	passages := make([]Passage, 0, len(matches))
	for _, m := range matches {
		passages = append(passages, Passage{
			ID:    m.ID,
			Text:  m.Text(),
			Score: m.Score,
		})
	}
	return passages, nil
}
