// Package llm adapts Gemini (via the Gemini API or Vertex AI) to the model
// and embedder capabilities, and provides offline stand-ins for both.
package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Provider names.
const (
	ProviderGemini = "gemini"
	ProviderVertex = "vertex"
	ProviderMock   = "mock"
)

// DefaultLocation is used for Vertex AI when none is configured.
const DefaultLocation = "us-central1"

// Config selects and parameterizes the model backend.
type Config struct {
	Provider       string
	APIKey         string
	Project        string
	Location       string
	Model          string
	EmbeddingModel string
	Temperature    float32
	// Dimension requests a reduced embedding size when > 0.
	Dimension int
}

// NewClient creates a genai client for the Gemini API or Vertex AI.
func NewClient(ctx context.Context, cfg Config) (*genai.Client, error) {
	cc := &genai.ClientConfig{}

	switch cfg.Provider {
	case ProviderVertex:
		if cfg.Project == "" {
			return nil, fmt.Errorf("vertex provider requires a GCP project (GOOGLE_CLOUD_PROJECT)")
		}
		location := cfg.Location
		if location == "" {
			location = DefaultLocation
		}
		cc.Backend = genai.BackendVertexAI
		cc.Project = cfg.Project
		cc.Location = location
	case ProviderGemini, "":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini provider requires an API key (GEMINI_API_KEY)")
		}
		cc.Backend = genai.BackendGeminiAPI
		cc.APIKey = cfg.APIKey
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return client, nil
}
