package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/khanglvm/graphrag-agent/internal/domain"
)

const (
	defaultTopK       = 5
	maxTopK           = 20
	semanticPreviewLn = 200
)

// SemanticSearchTool finds passages similar in meaning to a query.
type SemanticSearchTool struct {
	vectors   domain.VectorStore
	threshold float64
}

// NewSemanticSearchTool creates the semantic-search tool.
func NewSemanticSearchTool(vectors domain.VectorStore, threshold float64) *SemanticSearchTool {
	return &SemanticSearchTool{vectors: vectors, threshold: threshold}
}

func (t *SemanticSearchTool) Spec() domain.ToolSpec {
	return domain.ToolSpec{
		Name: "semantic_search",
		Description: `Search the knowledge base by meaning rather than exact keywords.

Use this for vague or conceptual questions when you do not know the exact entity names.`,
		Parameters: topKParameters("Natural language search query"),
	}
}

func (t *SemanticSearchTool) Call(ctx context.Context, args map[string]any) (string, error) {
	query, err := requireString(args, "query")
	if err != nil {
		return "", err
	}
	topK, err := intArg(args, "top_k", defaultTopK, 1, maxTopK)
	if err != nil {
		return "", err
	}

	hits, err := t.vectors.SimilaritySearch(ctx, query, topK, t.threshold)
	if err != nil {
		return "", err
	}

	return renderSemantic(hits), nil
}

func renderSemantic(hits []domain.RetrievalHit) string {
	if len(hits) == 0 {
		return "No semantically similar results found above the similarity threshold."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d semantically related results:\n", len(hits))
	for i, hit := range hits {
		fmt.Fprintf(&b, "\n%d. [similarity: %.3f]\n", i+1, hit.Score)
		fmt.Fprintf(&b, "   %s\n", truncate(hit.Text, semanticPreviewLn))
		if len(hit.Metadata) > 0 {
			fmt.Fprintf(&b, "   metadata: %s\n", compactJSON(hit.Metadata))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func topKParameters(queryDesc string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": queryDesc,
			},
			"top_k": map[string]any{
				"type":        "integer",
				"description": fmt.Sprintf("Number of results to return (default %d, max %d)", defaultTopK, maxTopK),
			},
		},
		"required": []string{"query"},
	}
}
