package tools

import (
	"time"

	"github.com/khanglvm/graphrag-agent/internal/domain"
	"github.com/khanglvm/graphrag-agent/internal/search"
)

// NewDefaultRegistry registers the four retrieval tools.
// Without a vector store only the graph tools are available.
func NewDefaultRegistry(graph domain.GraphStore, vectors domain.VectorStore, threshold float64, timeout time.Duration) (*Registry, error) {
	r := NewRegistry(timeout)

	toolset := []Tool{
		NewCypherTool(graph),
		NewSchemaTool(graph),
	}
	if vectors != nil {
		toolset = append(toolset,
			NewSemanticSearchTool(vectors, threshold),
			NewHybridSearchTool(search.NewFuser(vectors, graph, threshold)),
		)
	}

	for _, t := range toolset {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}
