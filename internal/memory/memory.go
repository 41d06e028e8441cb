// Package memory is the durable, session-keyed conversation record consulted
// at the start of each turn and updated at the end of it.
package memory

import (
	"context"
	"fmt"

	"github.com/khanglvm/graphrag-agent/internal/domain"
)

// DefaultHistoryLimit bounds the messages loaded into a new run.
const DefaultHistoryLimit = 50

// NotExecuted is the tool result loaded for a call the run stopped before
// dispatching.
const NotExecuted = "Not executed: the iteration limit was reached before this call ran."

// Memory wraps a ConversationStore with session-level semantics.
type Memory struct {
	store        domain.ConversationStore
	historyLimit int
}

// New creates a Memory. A historyLimit <= 0 uses DefaultHistoryLimit.
func New(store domain.ConversationStore, historyLimit int) *Memory {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Memory{store: store, historyLimit: historyLimit}
}

// Store returns the underlying store.
func (m *Memory) Store() domain.ConversationStore {
	return m.store
}

// LoadOrCreate upserts the session and returns its recent history. Calling
// it again for the same id creates nothing new.
//
// The history window never starts in the middle of a turn: leading
// assistant and tool messages are dropped so the model sees a user message
// first and no tool result without its call. Calls a run never dispatched
// are answered with NotExecuted so every call has a result.
func (m *Memory) LoadOrCreate(ctx context.Context, sessionID string) ([]domain.Message, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}

	if _, err := m.store.UpsertSession(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("failed to create session %s: %w", sessionID, err)
	}

	msgs, err := m.store.Messages(ctx, sessionID, m.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	return resolveToolCalls(trimToTurnStart(msgs)), nil
}

func trimToTurnStart(msgs []domain.Message) []domain.Message {
	for i, msg := range msgs {
		if msg.Role == domain.RoleUser {
			return msgs[i:]
		}
	}
	return []domain.Message{}
}

// resolveToolCalls inserts a NotExecuted result after the results of any
// assistant message whose calls were left unanswered.
func resolveToolCalls(msgs []domain.Message) []domain.Message {
	out := make([]domain.Message, 0, len(msgs))
	for i := 0; i < len(msgs); i++ {
		msg := msgs[i]
		out = append(out, msg)
		if msg.Role != domain.RoleAssistant || !msg.HasToolCalls() {
			continue
		}

		answered := make(map[string]bool, len(msg.ToolCalls))
		for i+1 < len(msgs) && msgs[i+1].Role == domain.RoleTool {
			i++
			answered[msgs[i].ToolCallID] = true
			out = append(out, msgs[i])
		}
		for _, call := range msg.ToolCalls {
			if !answered[call.ID] {
				out = append(out, domain.ToolResultMessage(call, NotExecuted, msg.CreatedAt))
			}
		}
	}
	return out
}

// Append adds one message to the session log.
func (m *Memory) Append(ctx context.Context, sessionID string, msg domain.Message) error {
	return m.AppendTurn(ctx, sessionID, []domain.Message{msg})
}

// AppendTurn adds msgs as one unit: either all are visible afterwards or
// none are.
func (m *Memory) AppendTurn(ctx context.Context, sessionID string, msgs []domain.Message) error {
	if err := m.store.AppendMessages(ctx, sessionID, msgs); err != nil {
		return fmt.Errorf("failed to save session %s: %w", sessionID, err)
	}
	return nil
}

// History returns at most limit messages, oldest first. A limit <= 0
// returns the whole log. An unknown session has an empty history.
func (m *Memory) History(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	msgs, err := m.store.Messages(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read history for %s: %w", sessionID, err)
	}
	return msgs, nil
}

// Sessions lists all sessions, most recently updated first.
func (m *Memory) Sessions(ctx context.Context) ([]domain.SessionSummary, error) {
	return m.store.ListSessions(ctx)
}

// Delete removes the session and its log together. It reports false when
// the session was already gone.
func (m *Memory) Delete(ctx context.Context, sessionID string) (bool, error) {
	existed, err := m.store.DeleteSession(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return existed, nil
}
