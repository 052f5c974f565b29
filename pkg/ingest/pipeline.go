// Package ingest turns converted markdown documents into index entries: it
// chunks each document into overlapping page windows, summarizes every chunk
// sequentially, batch-embeds the summary+chunk pairs and replaces the
// document's vectors in the store under deterministic identifiers.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/legaladviser/legalrag/pkg/ai"
	"github.com/legaladviser/legalrag/pkg/document"
	"github.com/legaladviser/legalrag/pkg/vectorstore"
)

// ErrEmbeddingMismatch marks the data-integrity failure where an embedding
// batch returns a different number of vectors than inputs. The document is
// aborted and the store left untouched.
var ErrEmbeddingMismatch = errors.New("embedding batch returned mismatched vector count")

// DefaultEmbedBatchSize is the number of texts sent per embedding call.
const DefaultEmbedBatchSize = 32

// Config holds pipeline parameters. Zero values fall back to defaults.
type Config struct {
	// Directory of converted markdown files to ingest
	InputDir string

	// Directory of completion markers; a same-named copy of each ingested
	// file lands here, and files with an existing copy are skipped
	ProcessedDir string

	// Pages per chunk and page overlap between consecutive chunks
	ChunkPages int
	Overlap    int

	// Texts per embedding call
	EmbedBatchSize int
}

// Stats counts the outcome of one ingestion run.
type Stats struct {
	Processed int
	Skipped   int
	Failed    int
	Chunks    int
}

// Pipeline ingests documents using injected model and store clients.
type Pipeline struct {
	generator ai.Generator
	embedder  ai.Embedder
	store     vectorstore.Store
	config    Config
	log       zerolog.Logger
}

// New creates an ingestion pipeline. All collaborators are required.
func New(generator ai.Generator, embedder ai.Embedder, store vectorstore.Store, config Config, log zerolog.Logger) (*Pipeline, error) {
	if generator == nil || embedder == nil || store == nil {
		return nil, fmt.Errorf("generator, embedder and store are required")
	}
	if config.InputDir == "" || config.ProcessedDir == "" {
		return nil, fmt.Errorf("input and processed directories are required")
	}
	if config.ChunkPages <= 0 {
		config.ChunkPages = document.DefaultChunkPages
	}
	if config.Overlap < 0 || config.Overlap >= config.ChunkPages {
		config.Overlap = document.DefaultOverlap
	}
	if config.EmbedBatchSize <= 0 {
		config.EmbedBatchSize = DefaultEmbedBatchSize
	}
	return &Pipeline{
		generator: generator,
		embedder:  embedder,
		store:     store,
		config:    config,
		log:       log,
	}, nil
}

// Run ingests every unprocessed markdown file in the input directory, in
// lexical order. Per-document failures are logged and counted but never stop
// the run; documents are independent.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	names, err := p.listInputs()
	if err != nil {
		return stats, err
	}
	if err := os.MkdirAll(p.config.ProcessedDir, 0o755); err != nil {
		return stats, fmt.Errorf("failed to create processed directory: %w", err)
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if p.processed(name) {
			p.log.Info().Str("document", name).Msg("skipping; already processed")
			stats.Skipped++
			continue
		}

		chunks, err := p.processDocument(ctx, name)
		if err != nil {
			p.log.Error().Err(err).Str("document", name).Msg("document ingestion failed")
			stats.Failed++
			continue
		}
		if chunks == 0 {
			p.log.Warn().Str("document", name).Msg("no chunks produced")
			continue
		}
		stats.Processed++
		stats.Chunks += chunks
	}

	return stats, nil
}

// processDocument runs the full chunk → summarize → embed → replace → mark
// sequence for one file and returns the number of chunks indexed. Any
// failure before the store replacement leaves the store untouched.
func (p *Pipeline) processDocument(ctx context.Context, name string) (int, error) {
	raw, err := os.ReadFile(filepath.Join(p.config.InputDir, name))
	if err != nil {
		return 0, fmt.Errorf("failed to read document: %w", err)
	}

	doc := document.New(name, string(raw))
	chunks := doc.Chunks(p.config.ChunkPages, p.config.Overlap)
	if len(chunks) == 0 {
		return 0, nil
	}
	p.log.Info().Str("document", name).Int("chunks", len(chunks)).Msg("processing document")

	// Summarize each chunk in document order, one at a time. Only the first
	// chunk's prompt asks for the official document title.
	embedInputs := make([]string, 0, len(chunks))
	for i := range chunks {
		p.log.Debug().Str("document", name).Int("chunk", i).Msg("summarizing chunk")

		prompt := summaryPrompt(chunks[i].Text, name, i == 0)
		summary, err := retry(ctx, p.log, "summarize", func() (string, error) {
			return p.generator.Generate(ctx, prompt)
		})
		if err != nil {
			return 0, fmt.Errorf("summarizing chunk %d: %w", i, err)
		}
		chunks[i].Summary = summary
		embedInputs = append(embedInputs, fmt.Sprintf("Summary:\n%s\n\nDocument Chunk:\n%s", summary, chunks[i].Text))
	}

	vectors, err := p.batchEmbed(ctx, embedInputs)
	if err != nil {
		return 0, fmt.Errorf("embedding chunks: %w", err)
	}

	entries := make([]vectorstore.Entry, len(chunks))
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID()
		entries[i] = vectorstore.Entry{
			ID:       ids[i],
			Vector:   vectors[i],
			Document: c.Text,
			Summary:  c.Summary,
		}
	}

	// Replace: delete first so stale entries from shifted chunk boundaries
	// never linger, then upsert under the same deterministic identifiers.
	// Not atomic; a crash between the calls leaves the document unindexed
	// until the next run, which self-heals.
	if err := p.store.Delete(ctx, ids); err != nil {
		return 0, fmt.Errorf("deleting previous entries: %w", err)
	}
	p.log.Info().Str("document", name).Msg("deleted any existing index entries")

	if _, err := p.store.Upsert(ctx, entries); err != nil {
		return 0, fmt.Errorf("upserting entries: %w", err)
	}
	p.log.Info().Str("document", name).Int("entries", len(entries)).Msg("upserted index entries")

	if err := p.mark(name); err != nil {
		return 0, fmt.Errorf("marking document processed: %w", err)
	}
	return len(chunks), nil
}

// batchEmbed embeds inputs in fixed-size batches, preserving input order.
// A batch returning a mismatched vector count is a hard failure.
func (p *Pipeline) batchEmbed(ctx context.Context, inputs []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(inputs))
	for start := 0; start < len(inputs); start += p.config.EmbedBatchSize {
		end := min(start+p.config.EmbedBatchSize, len(inputs))
		batch := inputs[start:end]

		batchVectors, err := retry(ctx, p.log, "embed", func() ([][]float32, error) {
			return p.embedder.Embed(ctx, batch)
		})
		if err != nil {
			return nil, err
		}
		if len(batchVectors) != len(batch) {
			return nil, fmt.Errorf("%w: got %d for %d inputs", ErrEmbeddingMismatch, len(batchVectors), len(batch))
		}
		vectors = append(vectors, batchVectors...)
	}
	return vectors, nil
}

// listInputs returns the markdown file names in the input directory, sorted.
func (p *Pipeline) listInputs() ([]string, error) {
	entries, err := os.ReadDir(p.config.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// processed reports whether the completion marker for name exists.
func (p *Pipeline) processed(name string) bool {
	_, err := os.Stat(filepath.Join(p.config.ProcessedDir, name))
	return err == nil
}

// mark copies the source file into the processed directory. The copy is the
// completion marker; ingestion never reads it back.
func (p *Pipeline) mark(name string) error {
	src, err := os.Open(filepath.Join(p.config.InputDir, name))
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(p.config.ProcessedDir, name))
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}
