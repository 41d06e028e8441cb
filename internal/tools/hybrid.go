package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/khanglvm/graphrag-agent/internal/domain"
	"github.com/khanglvm/graphrag-agent/internal/search"
)

const (
	hybridHitPreview  = 3
	hybridEdgePreview = 5
	hybridPreviewLn   = 150
)

// HybridSearchTool combines semantic search with graph expansion.
type HybridSearchTool struct {
	fuser *search.Fuser
}

// NewHybridSearchTool creates the hybrid-search tool.
func NewHybridSearchTool(fuser *search.Fuser) *HybridSearchTool {
	return &HybridSearchTool{fuser: fuser}
}

func (t *HybridSearchTool) Spec() domain.ToolSpec {
	return domain.ToolSpec{
		Name: "hybrid_search",
		Description: `Semantic search followed by a walk of the graph around the matched entities.

Use this for complex questions that need both related passages and the relationships between entities.`,
		Parameters: topKParameters("Natural language search query"),
	}
}

func (t *HybridSearchTool) Call(ctx context.Context, args map[string]any) (string, error) {
	query, err := requireString(args, "query")
	if err != nil {
		return "", err
	}
	topK, err := intArg(args, "top_k", defaultTopK, 1, maxTopK)
	if err != nil {
		return "", err
	}

	result, err := t.fuser.Fuse(ctx, query, topK)
	if err != nil {
		return "", err
	}

	return renderHybrid(result), nil
}

func renderHybrid(r search.FusedResult) string {
	var b strings.Builder
	b.WriteString("Hybrid search results:\n")

	if len(r.SemanticHits) == 0 {
		b.WriteString("\nSemantic matches: none\n")
	} else {
		fmt.Fprintf(&b, "\nSemantic matches (%d):\n", len(r.SemanticHits))
		for i, hit := range r.SemanticHits {
			if i == hybridHitPreview {
				fmt.Fprintf(&b, "  ... %d more\n", len(r.SemanticHits)-hybridHitPreview)
				break
			}
			fmt.Fprintf(&b, "  %d. [%.3f] %s\n", i+1, hit.Score, truncate(hit.Text, hybridPreviewLn))
		}
	}

	switch {
	case r.Degraded():
		fmt.Fprintf(&b, "\nGraph relationships: unavailable (%v)\n", r.GraphErr)
	case len(r.GraphEdges) == 0:
		b.WriteString("\nGraph relationships: none\n")
	default:
		fmt.Fprintf(&b, "\nGraph relationships (%d):\n", len(r.GraphEdges))
		for i, e := range r.GraphEdges {
			if i == hybridEdgePreview {
				fmt.Fprintf(&b, "  ... %d more\n", len(r.GraphEdges)-hybridEdgePreview)
				break
			}
			fmt.Fprintf(&b, "  • %s --%s--> %s\n", e.Source, e.Relation, e.Target)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
