package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/khanglvm/graphrag-agent/internal/domain"
)

// Gemini implements domain.Model with function calling.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
	system      string
	tools       []*genai.Tool
}

var (
	_ domain.Model      = (*Gemini)(nil)
	_ domain.ToolBinder = (*Gemini)(nil)
)

// NewGemini creates a model using SystemPrompt.
func NewGemini(client *genai.Client, model string, temperature float32) *Gemini {
	return &Gemini{
		client:      client,
		model:       model,
		temperature: temperature,
		system:      SystemPrompt,
	}
}

// BindTools returns a copy of the model that declares specs on every call.
func (g *Gemini) BindTools(specs []domain.ToolSpec) domain.Model {
	bound := *g
	bound.tools = toTools(specs)
	return &bound
}

// Complete implements domain.Model.
func (g *Gemini) Complete(ctx context.Context, messages []domain.Message) (domain.Message, error) {
	temp := g.temperature
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(g.system, genai.RoleUser),
		Temperature:       &temp,
		Tools:             g.tools,
	}

	res, err := g.client.Models.GenerateContent(ctx, g.model, toContents(messages), cfg)
	if err != nil {
		return domain.Message{}, fmt.Errorf("gemini generate content: %w", err)
	}
	return fromResponse(res)
}

// toContents maps the conversation onto Gemini turns. Consecutive tool
// results are grouped into one user turn, as the API expects every
// function call of a model turn to be answered together.
func toContents(messages []domain.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))

	for _, m := range messages {
		switch m.Role {
		case domain.RoleUser:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))

		case domain.RoleAssistant:
			var parts []*genai.Part
			if m.Content != "" {
				parts = append(parts, &genai.Part{Text: m.Content})
			}
			for _, call := range m.ToolCalls {
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   call.ID,
						Name: call.Name,
						Args: call.Arguments,
					},
					ThoughtSignature: call.Signature,
				})
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: parts})

		case domain.RoleTool:
			part := &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       m.ToolCallID,
					Name:     m.ToolName,
					Response: map[string]any{"output": m.Content},
				},
			}
			if n := len(contents); n > 0 && isFunctionResponseTurn(contents[n-1]) {
				contents[n-1].Parts = append(contents[n-1].Parts, part)
				continue
			}
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{part}})
		}
	}

	return contents
}

func isFunctionResponseTurn(c *genai.Content) bool {
	if c.Role != genai.RoleUser || len(c.Parts) == 0 {
		return false
	}
	for _, p := range c.Parts {
		if p.FunctionResponse == nil {
			return false
		}
	}
	return true
}

func fromResponse(res *genai.GenerateContentResponse) (domain.Message, error) {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return domain.Message{}, fmt.Errorf("gemini returned no candidates")
	}

	msg := domain.Message{Role: domain.RoleAssistant}
	var text strings.Builder

	for _, part := range res.Candidates[0].Content.Parts {
		switch {
		case part.FunctionCall != nil:
			msg.ToolCalls = append(msg.ToolCalls, domain.ToolCall{
				ID:        part.FunctionCall.ID,
				Name:      part.FunctionCall.Name,
				Arguments: part.FunctionCall.Args,
				Signature: part.ThoughtSignature,
			})
		case part.Text != "" && !part.Thought:
			text.WriteString(part.Text)
		}
	}

	msg.Content = text.String()
	return msg, nil
}

func toTools(specs []domain.ToolSpec) []*genai.Tool {
	if len(specs) == 0 {
		return nil
	}

	decls := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, s := range specs {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  toSchema(s.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// toSchema converts a JSON-schema map into a genai.Schema. Objects without
// declared properties are sent as JSON strings, which every backend
// accepts.
func toSchema(m map[string]any) *genai.Schema {
	if m == nil {
		return nil
	}

	s := &genai.Schema{}
	if t, ok := m["type"].(string); ok {
		s.Type = genai.Type(strings.ToUpper(t))
	}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	if props, ok := m["properties"].(map[string]any); ok && len(props) > 0 {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if pm, ok := raw.(map[string]any); ok {
				s.Properties[name] = toSchema(pm)
			}
		}
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = toSchema(items)
	}
	s.Required = stringList(m["required"])
	s.Enum = stringList(m["enum"])

	if s.Type == genai.TypeObject && len(s.Properties) == 0 {
		s.Type = genai.TypeString
		s.Description = strings.TrimSpace(s.Description + " (JSON object)")
	}
	return s
}

func stringList(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
