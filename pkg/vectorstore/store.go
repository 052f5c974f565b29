// Package vectorstore defines the vector database boundary: the Store
// interface the pipelines depend on and the entry/match types that cross it.
// Backends live in subpackages (qdrant, pgvector) and are injected at
// construction.
package vectorstore

import (
	"context"

	"github.com/google/uuid"
)

// UpsertBatchSize caps the number of records written per backend call.
const UpsertBatchSize = 100

// Entry is the persisted unit: an embedding vector plus the chunk text and
// its generated summary as metadata. After upsert the store owns it; the
// ingestion pipeline never reads entries back except through Query.
type Entry struct {
	ID       string
	Vector   []float32
	Document string
	Summary  string
}

// Match is a query hit: the stored metadata plus a similarity score.
type Match struct {
	ID       string
	Document string
	Summary  string
	Score    float32
}

// Text returns the best retrievable text for the match, preferring the raw
// chunk over its summary.
func (m Match) Text() string {
	if m.Document != "" {
		return m.Document
	}
	return m.Summary
}

// Store is the interface all vector database backends implement.
//
// Upsert is idempotent when entry IDs are supplied: writing the same ID twice
// overwrites in place. Delete of an unknown ID is a no-op. Query returns up
// to topK matches ordered by non-increasing similarity score.
type Store interface {
	// Upsert writes entries in batches, returning the IDs written
	Upsert(ctx context.Context, entries []Entry) ([]string, error)

	// Query returns the topK nearest entries to the vector
	Query(ctx context.Context, vector []float32, topK int, withPayload bool) ([]Match, error)

	// Delete removes the entries with the given IDs
	Delete(ctx context.Context, ids []string) error

	// Health checks if the backend is available
	Health(ctx context.Context) error

	// Close releases any resources held by the backend
	Close() error
}

// AssignIDs fills empty entry IDs with random UUIDs and returns the full ID
// list in entry order. Supplied IDs are left untouched.
func AssignIDs(entries []Entry) []string {
	ids := make([]string, len(entries))
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = uuid.NewString()
		}
		ids[i] = entries[i].ID
	}
	return ids
}

// Batches splits entries into UpsertBatchSize windows, preserving order.
func Batches(entries []Entry) [][]Entry {
	var batches [][]Entry
	for start := 0; start < len(entries); start += UpsertBatchSize {
		end := min(start+UpsertBatchSize, len(entries))
		batches = append(batches, entries[start:end])
	}
	return batches
}
