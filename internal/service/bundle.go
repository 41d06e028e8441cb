package service

import (
	"github.com/khanglvm/graphrag-agent/internal/agent"
	"github.com/khanglvm/graphrag-agent/internal/domain"
)

// toolPreviewChars bounds tool output shown in an answer's conversation.
const toolPreviewChars = 300

// Entry is one line of a conversation as shown to callers.
type Entry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolCallEntry records a tool the model asked for.
type ToolCallEntry struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// AnswerBundle is the result of Ask.
type AnswerBundle struct {
	SessionID    string          `json:"session_id"`
	Question     string          `json:"question"`
	Answer       string          `json:"answer"`
	Conversation []Entry         `json:"conversation"`
	ToolCalls    []ToolCallEntry `json:"tool_calls"`

	// TerminationReason is "no_tool_call" or "iteration_ceiling". The
	// latter means Answer may be partial or empty.
	TerminationReason string `json:"termination_reason"`
	Iterations        int    `json:"iterations"`

	// PersistError is set when the answer was produced but the turn could
	// not be saved.
	PersistError string `json:"persist_error,omitempty"`
}

// formatBundle renders the current turn: the question and everything the
// run produced.
func formatBundle(sessionID, question string, userMsg domain.Message, result *agent.Result) *AnswerBundle {
	b := &AnswerBundle{
		SessionID:         sessionID,
		Question:          question,
		Conversation:      []Entry{{Role: string(domain.RoleUser), Content: userMsg.Content}},
		ToolCalls:         []ToolCallEntry{},
		TerminationReason: string(result.Reason),
		Iterations:        result.IterationCount,
	}

	for _, m := range result.Produced {
		switch m.Role {
		case domain.RoleAssistant:
			b.Answer = m.Content
			if m.HasToolCalls() {
				for _, c := range m.ToolCalls {
					args := c.Arguments
					if args == nil {
						args = map[string]any{}
					}
					b.ToolCalls = append(b.ToolCalls, ToolCallEntry{Tool: c.Name, Args: args})
				}
				continue
			}
			b.Conversation = append(b.Conversation, Entry{Role: string(m.Role), Content: m.Content})
		case domain.RoleTool:
			b.Conversation = append(b.Conversation, Entry{Role: string(m.Role), Content: preview(m.Content, toolPreviewChars)})
		}
	}

	return b
}

// transcript keeps user messages and final assistant answers.
func transcript(msgs []domain.Message) []Entry {
	entries := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		switch {
		case m.Role == domain.RoleUser:
			entries = append(entries, Entry{Role: string(m.Role), Content: m.Content})
		case m.Role == domain.RoleAssistant && !m.HasToolCalls():
			entries = append(entries, Entry{Role: string(m.Role), Content: m.Content})
		}
	}
	return entries
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
