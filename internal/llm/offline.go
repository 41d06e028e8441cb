package llm

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/khanglvm/graphrag-agent/internal/domain"
)

// toolPreference is the order the offline model picks retrieval tools in.
var toolPreference = []string{"hybrid_search", "semantic_search", "graph_schema"}

// Offline is a deterministic model for running without network access.
// It looks the question up with the best available retrieval tool and
// answers with the head of the tool's output.
type Offline struct {
	tools map[string]bool
}

var (
	_ domain.Model      = (*Offline)(nil)
	_ domain.ToolBinder = (*Offline)(nil)
)

// NewOffline creates an offline model with no tools bound.
func NewOffline() *Offline {
	return &Offline{tools: map[string]bool{}}
}

// BindTools implements domain.ToolBinder.
func (o *Offline) BindTools(specs []domain.ToolSpec) domain.Model {
	bound := &Offline{tools: make(map[string]bool, len(specs))}
	for _, s := range specs {
		bound.tools[s.Name] = true
	}
	return bound
}

// Complete implements domain.Model.
func (o *Offline) Complete(ctx context.Context, messages []domain.Message) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	if len(messages) == 0 {
		return domain.Message{}, fmt.Errorf("no messages")
	}

	last := messages[len(messages)-1]
	switch last.Role {
	case domain.RoleTool:
		return domain.Message{
			Role:    domain.RoleAssistant,
			Content: fmt.Sprintf("Based on %s:\n%s", last.ToolName, headLines(last.Content, 8)),
		}, nil
	case domain.RoleUser:
		for _, name := range toolPreference {
			if !o.tools[name] {
				continue
			}
			args := map[string]any{}
			if name != "graph_schema" {
				args["query"] = last.Content
			}
			return domain.Message{
				Role:      domain.RoleAssistant,
				ToolCalls: []domain.ToolCall{{Name: name, Arguments: args}},
			}, nil
		}
		return domain.Message{
			Role:    domain.RoleAssistant,
			Content: "No retrieval tools are available to answer this question.",
		}, nil
	default:
		return domain.Message{Role: domain.RoleAssistant, Content: last.Content}, nil
	}
}

func headLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = append(lines[:n], "...")
	}
	return strings.Join(lines, "\n")
}

// HashEmbedder maps text to a bag-of-words vector by feature hashing.
// Texts sharing words land close together, which is enough for offline
// demos and tests.
type HashEmbedder struct {
	dimension int
}

var _ domain.Embedder = (*HashEmbedder)(nil)

// NewHashEmbedder creates an embedder producing vectors of dimension.
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &HashEmbedder{dimension: dimension}
}

// Embed implements domain.Embedder.
func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, e.dimension)
		words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, w := range words {
			h := fnv.New32a()
			h.Write([]byte(w))
			vec[h.Sum32()%uint32(e.dimension)]++
		}

		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		if norm > 0 {
			scale := float32(1 / math.Sqrt(norm))
			for j := range vec {
				vec[j] *= scale
			}
		}
		out[i] = vec
	}
	return out, nil
}
