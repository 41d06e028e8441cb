package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/khanglvm/graphrag-agent/internal/domain"
)

// CypherPreviewRows bounds how many rows are rendered back to the model.
const CypherPreviewRows = 50

// CypherTool executes a caller-supplied Cypher query verbatim.
type CypherTool struct {
	graph domain.GraphStore
}

// NewCypherTool creates the structured-query tool.
func NewCypherTool(graph domain.GraphStore) *CypherTool {
	return &CypherTool{graph: graph}
}

func (t *CypherTool) Spec() domain.ToolSpec {
	return domain.ToolSpec{
		Name: "cypher_query",
		Description: `Execute a Cypher query against the Neo4j knowledge graph.

Use this for precise questions about entities, counts and relationships.
Call graph_schema first if you do not know the labels and relationship types.`,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Cypher query to execute",
				},
				"params": map[string]any{
					"type":        "object",
					"description": "Optional query parameters",
				},
			},
			"required": []string{"query"},
		},
	}
}

func (t *CypherTool) Call(ctx context.Context, args map[string]any) (string, error) {
	query, err := requireString(args, "query")
	if err != nil {
		return "", err
	}
	params, err := mapArg(args, "params")
	if err != nil {
		return "", err
	}

	rows, err := t.graph.Query(ctx, query, params)
	if err != nil {
		return "", fmt.Errorf("query failed: %w", err)
	}

	return renderRows(rows), nil
}

func renderRows(rows []map[string]any) string {
	if len(rows) == 0 {
		return "Query returned no results."
	}

	var b strings.Builder
	if len(rows) > CypherPreviewRows {
		fmt.Fprintf(&b, "Query returned %d rows (showing first %d):\n", len(rows), CypherPreviewRows)
		rows = rows[:CypherPreviewRows]
	} else {
		fmt.Fprintf(&b, "Query returned %d rows:\n", len(rows))
	}

	for _, row := range rows {
		b.WriteString(compactJSON(row))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
