// Package graph is the Neo4j side of retrieval: ad-hoc Cypher, a cached
// schema description and the entity export used to seed vector backends.
package graph

import (
	"context"
	"fmt"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/khanglvm/graphrag-agent/internal/domain"
	"github.com/khanglvm/graphrag-agent/internal/observability"
)

// Config holds Neo4j connection settings.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// queryFunc runs one Cypher statement and returns plain rows.
type queryFunc func(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)

// Store implements domain.GraphStore over a Neo4j driver.
type Store struct {
	driver   neo4j.DriverWithContext
	database string

	mu     sync.RWMutex
	schema string
	loaded bool
}

var _ domain.GraphStore = (*Store)(nil)

// Open connects to Neo4j and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("neo4j uri is required")
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("neo4j connection failed: %w", err)
	}

	observability.Logger().Debug("connected to neo4j", "uri", cfg.URI, "database", cfg.Database)
	return &Store{driver: driver, database: cfg.Database}, nil
}

// Query implements domain.GraphStore.
func (s *Store) Query(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	if params == nil {
		params = map[string]any{}
	}

	opts := []neo4j.ExecuteQueryConfigurationOption{}
	if s.database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(s.database))
	}

	result, err := neo4j.ExecuteQuery(ctx, s.driver, query, params, neo4j.EagerResultTransformer, opts...)
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}

	rows := make([]map[string]any, 0, len(result.Records))
	for _, record := range result.Records {
		row := make(map[string]any, len(record.Keys))
		for k, v := range record.AsMap() {
			row[k] = toPlain(v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Schema implements domain.GraphStore. The schema is read once and cached
// until RefreshSchema is called.
func (s *Store) Schema(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.loaded {
		schema := s.schema
		s.mu.RUnlock()
		return schema, nil
	}
	s.mu.RUnlock()

	return s.RefreshSchema(ctx)
}

// RefreshSchema re-reads labels, relationship types and their properties.
func (s *Store) RefreshSchema(ctx context.Context) (string, error) {
	schema, err := buildSchema(ctx, s.Query)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.schema = schema
	s.loaded = true
	s.mu.Unlock()
	return schema, nil
}

// ExportEntities returns up to limit named or described nodes as documents.
func (s *Store) ExportEntities(ctx context.Context, limit int) ([]domain.Document, error) {
	return exportEntities(ctx, s.Query, limit)
}

// Verify checks the server is reachable.
func (s *Store) Verify(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

// Close releases the driver's connection pool.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}
