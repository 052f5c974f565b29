// Package qdrant implements vectorstore.Store backed by a Qdrant collection.
package qdrant

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	qd "github.com/qdrant/go-client/qdrant"

	"github.com/legaladviser/legalrag/pkg/vectorstore"
)

// Client implements vectorstore.Store for Qdrant.
//
// Points are keyed by UUID. Content identifiers arrive as 32-char hex
// digests; pointID maps them onto the equivalent UUID rendering so the same
// identifier always addresses the same point.
type Client struct {
	client         *qd.Client
	collectionName string
	dimension      uint64
}

// Config holds Qdrant client configuration.
type Config struct {
	// Qdrant server URL, e.g. "http://localhost:6334"
	URL string

	// Collection name for storing index entries
	CollectionName string

	// Optional API key for authentication
	APIKey string

	// Embedding dimension used when the collection must be created
	Dimension int
}

// New creates a Qdrant-backed store. The collection is created on first
// upsert if it does not exist, with cosine distance and the configured
// dimension.
//
// Example:
//
//	store, err := qdrant.New(&qdrant.Config{
//	    URL:            "http://localhost:6334",
//	    CollectionName: "legaladviser",
//	    Dimension:      768,
//	})
func New(config *Config) (*Client, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("qdrant URL is required")
	}
	if config.CollectionName == "" {
		return nil, fmt.Errorf("qdrant collection name is required")
	}
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension is required")
	}

	parsedURL, err := url.Parse(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid qdrant URL: %w", err)
	}

	port := 6334 // Default Qdrant gRPC port
	if parsedURL.Port() != "" {
		p, err := strconv.ParseInt(parsedURL.Port(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid qdrant port: %w", err)
		}
		port = int(p)
	}

	qdrantClient, err := qd.NewClient(&qd.Config{
		Host:   parsedURL.Hostname(),
		Port:   port,
		APIKey: config.APIKey,
		UseTLS: parsedURL.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &Client{
		client:         qdrantClient,
		collectionName: config.CollectionName,
		dimension:      uint64(config.Dimension),
	}, nil
}

// Upsert writes entries in batches of at most vectorstore.UpsertBatchSize
// points per call. Entries without IDs get random UUIDs. Returns the IDs
// written, in entry order.
func (c *Client) Upsert(ctx context.Context, entries []vectorstore.Entry) ([]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	if err := c.ensureCollection(ctx); err != nil {
		return nil, err
	}

	ids := vectorstore.AssignIDs(entries)

	for _, batch := range vectorstore.Batches(entries) {
		points := make([]*qd.PointStruct, 0, len(batch))
		for _, e := range batch {
			points = append(points, &qd.PointStruct{
				Id:      qd.NewIDUUID(pointID(e.ID)),
				Vectors: qd.NewVectors(e.Vector...),
				Payload: map[string]*qd.Value{
					"document": qd.NewValueString(e.Document),
					"summary":  qd.NewValueString(e.Summary),
				},
			})
		}

		_, err := c.client.Upsert(ctx, &qd.UpsertPoints{
			CollectionName: c.collectionName,
			Points:         points,
			Wait:           qd.PtrOf(true),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to upsert %d points to collection %s: %w", len(points), c.collectionName, err)
		}
	}

	return ids, nil
}

// Query returns up to topK matches ordered by descending similarity score.
func (c *Client) Query(ctx context.Context, vector []float32, topK int, withPayload bool) ([]vectorstore.Match, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is required")
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	points, err := c.client.Query(ctx, &qd.QueryPoints{
		CollectionName: c.collectionName,
		Query:          qd.NewQuery(vector...),
		Limit:          qd.PtrOf(uint64(topK)),
		WithPayload:    qd.NewWithPayload(withPayload),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query failed: %w", err)
	}

	matches := make([]vectorstore.Match, 0, len(points))
	for _, p := range points {
		m := vectorstore.Match{Score: p.Score}
		if p.Id != nil {
			m.ID = p.Id.GetUuid()
		}
		if doc, ok := p.Payload["document"]; ok {
			m.Document = doc.GetStringValue()
		}
		if sum, ok := p.Payload["summary"]; ok {
			m.Summary = sum.GetStringValue()
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// Delete removes the points with the given IDs in batches. Unknown IDs are
// ignored by Qdrant, so deleting never-written identifiers is a no-op.
func (c *Client) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	for start := 0; start < len(ids); start += vectorstore.UpsertBatchSize {
		end := min(start+vectorstore.UpsertBatchSize, len(ids))

		pointIDs := make([]*qd.PointId, 0, end-start)
		for _, id := range ids[start:end] {
			pointIDs = append(pointIDs, qd.NewIDUUID(pointID(id)))
		}

		_, err := c.client.Delete(ctx, &qd.DeletePoints{
			CollectionName: c.collectionName,
			Points:         qd.NewPointsSelector(pointIDs...),
			Wait:           qd.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("failed to delete %d points from collection %s: %w", len(pointIDs), c.collectionName, err)
		}
	}
	return nil
}

// Health checks if the Qdrant server is available and responsive.
func (c *Client) Health(ctx context.Context) error {
	if _, err := c.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check failed: %w", err)
	}
	return nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("failed to close qdrant client: %w", err)
	}
	return nil
}

// ensureCollection creates the collection with cosine distance if missing.
func (c *Client) ensureCollection(ctx context.Context) error {
	exists, err := c.client.CollectionExists(ctx, c.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", c.collectionName, err)
	}
	if exists {
		return nil
	}

	err = c.client.CreateCollection(ctx, &qd.CreateCollection{
		CollectionName: c.collectionName,
		VectorsConfig: qd.NewVectorsConfig(&qd.VectorParams{
			Size:     c.dimension,
			Distance: qd.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", c.collectionName, err)
	}
	return nil
}

// pointID maps an identifier onto Qdrant's UUID point-id space. A 32-char
// hex content identifier parses directly into its UUID rendering; anything
// else that already is a UUID passes through canonicalized; remaining
// strings map deterministically via an md5-derived UUID.
func pointID(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return uuid.NewMD5(uuid.NameSpaceOID, []byte(id)).String()
}
