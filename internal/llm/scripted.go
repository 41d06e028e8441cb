package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/khanglvm/graphrag-agent/internal/domain"
)

// Scripted replays a fixed list of responses and records what it was sent.
type Scripted struct {
	mu        sync.Mutex
	responses []domain.Message
	calls     [][]domain.Message
	tools     []domain.ToolSpec
}

var (
	_ domain.Model      = (*Scripted)(nil)
	_ domain.ToolBinder = (*Scripted)(nil)
)

// NewScripted creates a model that answers with responses in order.
func NewScripted(responses ...domain.Message) *Scripted {
	return &Scripted{responses: responses}
}

// BindTools records specs and returns the same model.
func (s *Scripted) BindTools(specs []domain.ToolSpec) domain.Model {
	s.mu.Lock()
	s.tools = append([]domain.ToolSpec(nil), specs...)
	s.mu.Unlock()
	return s
}

// Complete implements domain.Model.
func (s *Scripted) Complete(ctx context.Context, messages []domain.Message) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, append([]domain.Message(nil), messages...))
	if len(s.calls) > len(s.responses) {
		return domain.Message{}, fmt.Errorf("script exhausted after %d responses", len(s.responses))
	}
	return s.responses[len(s.calls)-1], nil
}

// Calls returns the message lists the model was invoked with.
func (s *Scripted) Calls() [][]domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]domain.Message(nil), s.calls...)
}

// Tools returns the specs bound last.
func (s *Scripted) Tools() []domain.ToolSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ToolSpec(nil), s.tools...)
}
