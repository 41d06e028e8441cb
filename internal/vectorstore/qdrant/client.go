// Package qdrant is a retrieval backend over a Qdrant collection.
package qdrant

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/khanglvm/graphrag-agent/internal/domain"
	"github.com/khanglvm/graphrag-agent/internal/observability"
	"github.com/khanglvm/graphrag-agent/internal/search"
)

// payloadText is the payload key holding the document text.
const payloadText = "text"

// Config holds Qdrant connection configuration.
type Config struct {
	// URL is the Qdrant gRPC address (e.g., "http://localhost:6334").
	URL string

	// CollectionName is the collection to search and index into.
	CollectionName string

	// APIKey is optional API key for authentication.
	APIKey string

	// Dimension is the vector size used when creating the collection.
	Dimension int

	// Distance is "cosine" or "euclid".
	Distance string
}

// Client implements search.Backend for Qdrant.
type Client struct {
	client         *qdrant.Client
	collectionName string
	embedder       domain.Embedder
	dimension      int
	distance       qdrant.Distance
}

var (
	_ search.Backend         = (*Client)(nil)
	_ domain.DocumentIndexer = (*Client)(nil)
)

// New creates a new Qdrant client.
func New(cfg Config, embedder domain.Embedder) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}
	if cfg.CollectionName == "" {
		return nil, fmt.Errorf("qdrant collection is required")
	}

	host, port, useTLS, err := parseEndpoint(cfg.URL)
	if err != nil {
		return nil, err
	}

	distance, err := parseDistance(cfg.Distance)
	if err != nil {
		return nil, err
	}

	qdrantClient, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &Client{
		client:         qdrantClient,
		collectionName: cfg.CollectionName,
		embedder:       embedder,
		dimension:      cfg.Dimension,
		distance:       distance,
	}, nil
}

// parseEndpoint splits a Qdrant URL into host, port and TLS flag.
// A bare host defaults to https on port 6334.
func parseEndpoint(raw string) (string, int, bool, error) {
	parsed := raw
	if !strings.HasPrefix(parsed, "http://") && !strings.HasPrefix(parsed, "https://") {
		parsed = "https://" + parsed
	}

	u, err := url.Parse(parsed)
	if err != nil {
		return "", 0, false, fmt.Errorf("failed to parse qdrant url: %w", err)
	}
	if u.Hostname() == "" {
		return "", 0, false, fmt.Errorf("qdrant url %q has no host", raw)
	}

	port := 6334
	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return "", 0, false, fmt.Errorf("invalid port: %w", err)
		}
		port = p
	}

	return u.Hostname(), port, u.Scheme == "https", nil
}

func parseDistance(s string) (qdrant.Distance, error) {
	switch strings.ToLower(s) {
	case "", "cosine":
		return qdrant.Distance_Cosine, nil
	case "euclid", "euclidean", "l2":
		return qdrant.Distance_Euclid, nil
	default:
		return 0, fmt.Errorf("unsupported qdrant distance %q", s)
	}
}

// Metric implements search.Backend. Qdrant returns similarity for cosine
// collections and raw distance for euclidean ones.
func (c *Client) Metric() search.Metric {
	return metricFor(c.distance)
}

func metricFor(d qdrant.Distance) search.Metric {
	if d == qdrant.Distance_Euclid {
		return search.MetricEuclidean
	}
	return search.MetricCosineSimilarity
}

// Search implements search.Backend.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]search.ScoredHit, error) {
	if limit <= 0 {
		limit = search.DefaultTopK
	}

	vectors, err := c.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 query", len(vectors))
	}

	limitUint64 := uint64(limit)
	points, err := c.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: c.collectionName,
		Query:          qdrant.NewQuery(vectors[0]...),
		Limit:          &limitUint64,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}

	hits := make([]search.ScoredHit, 0, len(points))
	for _, point := range points {
		hits = append(hits, payloadToHit(float64(point.Score), point.Payload))
	}
	return hits, nil
}

func payloadToHit(score float64, payload map[string]*qdrant.Value) search.ScoredHit {
	hit := search.ScoredHit{Raw: score, Metadata: make(map[string]any)}
	for k, v := range payload {
		if k == payloadText {
			hit.Text = v.GetStringValue()
			continue
		}
		hit.Metadata[k] = extractValue(v)
	}
	return hit
}

// AddDocuments embeds docs and upserts them, creating the collection on
// first use. Point ids are derived from document ids so re-indexing
// replaces rather than duplicates.
func (c *Client) AddDocuments(ctx context.Context, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for i, d := range docs {
		payload, err := buildPayload(d)
		if err != nil {
			return err
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID(d.ID)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: payload,
		})
	}

	wait := true
	if _, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: c.collectionName,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	return nil
}

func pointID(docID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(docID)).String()
}

func buildPayload(d domain.Document) (map[string]*qdrant.Value, error) {
	fields := make(map[string]any, len(d.Metadata)+1)
	for k, v := range d.Metadata {
		fields[k] = v
	}
	fields[payloadText] = d.Text

	payload, err := qdrant.TryValueMap(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build payload for %s: %w", d.ID, err)
	}
	return payload, nil
}

func (c *Client) ensureCollection(ctx context.Context, dim int) error {
	exists, err := c.client.CollectionExists(ctx, c.collectionName)
	if err != nil {
		return fmt.Errorf("qdrant collection check failed: %w", err)
	}
	if exists {
		return nil
	}

	if c.dimension > 0 && c.dimension != dim {
		return fmt.Errorf("embedding dimension %d does not match configured %d", dim, c.dimension)
	}

	observability.Logger().Info("creating qdrant collection", "collection", c.collectionName, "dimension", dim)
	err = c.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: c.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: c.distance,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant create collection failed: %w", err)
	}
	return nil
}

// Stats implements domain.DocumentIndexer.
func (c *Client) Stats(ctx context.Context) (domain.IndexStats, error) {
	stats := domain.IndexStats{Backend: "qdrant", Collection: c.collectionName, Dimension: c.dimension}

	exists, err := c.client.CollectionExists(ctx, c.collectionName)
	if err != nil {
		return stats, fmt.Errorf("qdrant collection check failed: %w", err)
	}
	if !exists {
		return stats, nil
	}

	info, err := c.client.GetCollectionInfo(ctx, c.collectionName)
	if err != nil {
		return stats, fmt.Errorf("qdrant collection info failed: %w", err)
	}
	stats.Count = int(info.GetPointsCount())
	return stats, nil
}

// Close releases the gRPC connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// extractValue extracts a Go value from a Qdrant Value.
func extractValue(v *qdrant.Value) any {
	if v == nil {
		return nil
	}

	switch val := v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_ListValue:
		out := make([]any, 0, len(val.ListValue.GetValues()))
		for _, item := range val.ListValue.GetValues() {
			out = append(out, extractValue(item))
		}
		return out
	case *qdrant.Value_StructValue:
		out := make(map[string]any, len(val.StructValue.GetFields()))
		for k, item := range val.StructValue.GetFields() {
			out[k] = extractValue(item)
		}
		return out
	default:
		return nil
	}
}
