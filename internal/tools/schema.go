package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/khanglvm/graphrag-agent/internal/domain"
)

// SchemaRefresher is implemented by graph stores that cache their schema.
type SchemaRefresher interface {
	RefreshSchema(ctx context.Context) (string, error)
}

// SchemaTool describes the node labels, properties and relationships in the graph.
type SchemaTool struct {
	graph domain.GraphStore
}

// NewSchemaTool creates the schema tool.
func NewSchemaTool(graph domain.GraphStore) *SchemaTool {
	return &SchemaTool{graph: graph}
}

func (t *SchemaTool) Spec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        "graph_schema",
		Description: "Return the knowledge graph schema: node labels with properties and relationship patterns.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"refresh": map[string]any{
					"type":        "boolean",
					"description": "Re-read the schema from the database instead of the cached copy",
				},
			},
		},
	}
}

func (t *SchemaTool) Call(ctx context.Context, args map[string]any) (string, error) {
	var (
		schema string
		err    error
	)
	if r, ok := t.graph.(SchemaRefresher); ok && boolArg(args, "refresh") {
		schema, err = r.RefreshSchema(ctx)
	} else {
		schema, err = t.graph.Schema(ctx)
	}
	if err != nil {
		return "", fmt.Errorf("schema unavailable: %w", err)
	}

	if strings.TrimSpace(schema) == "" {
		return "The graph schema is empty.", nil
	}
	return "Graph schema:\n" + schema, nil
}
