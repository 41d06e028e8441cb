package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/khanglvm/graphrag-agent/internal/domain"
)

// maxEmbedBatch is the most texts one EmbedContent request accepts.
const maxEmbedBatch = 100

// GeminiEmbedder implements domain.Embedder.
type GeminiEmbedder struct {
	client    *genai.Client
	model     string
	dimension int
}

var _ domain.Embedder = (*GeminiEmbedder)(nil)

// NewGeminiEmbedder creates an embedder. A dimension > 0 asks the model
// for reduced-size vectors.
func NewGeminiEmbedder(client *genai.Client, model string, dimension int) *GeminiEmbedder {
	return &GeminiEmbedder{client: client, model: model, dimension: dimension}
}

// Embed implements domain.Embedder.
func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	cfg := &genai.EmbedContentConfig{}
	if e.dimension > 0 {
		dim := int32(e.dimension)
		cfg.OutputDimensionality = &dim
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxEmbedBatch {
		batch := texts[start:min(start+maxEmbedBatch, len(texts))]

		contents := make([]*genai.Content, len(batch))
		for i, t := range batch {
			contents[i] = genai.NewContentFromText(t, genai.RoleUser)
		}

		res, err := e.client.Models.EmbedContent(ctx, e.model, contents, cfg)
		if err != nil {
			return nil, fmt.Errorf("gemini embed content: %w", err)
		}
		if len(res.Embeddings) != len(batch) {
			return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(res.Embeddings), len(batch))
		}
		for _, emb := range res.Embeddings {
			out = append(out, emb.Values)
		}
	}
	return out, nil
}
