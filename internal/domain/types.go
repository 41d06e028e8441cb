/*
Package domain holds the conversation and retrieval types shared by every
component of graphrag-agent, plus the capability interfaces the core consumes.

Nothing in this package performs I/O.
*/
package domain

import (
	"errors"
	"time"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ErrSessionNotFound is returned by stores when a session does not exist.
var ErrSessionNotFound = errors.New("session not found")

// ToolCall is a structured request emitted by the model.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`

	// Signature is an opaque provider token that must be echoed back
	// with the call on the next request.
	Signature []byte `json:"signature,omitempty"`
}

// Message is one turn in a conversation.
//
// Messages are values; once appended to a history they are never mutated.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// ToolCalls is set on assistant messages that request tools.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a tool message back to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// ToolName is the name of the tool that produced a tool message.
	ToolName string `json:"tool_name,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// HasToolCalls reports whether the message requests at least one tool.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// UserMessage builds a user message stamped with the given time.
func UserMessage(content string, at time.Time) Message {
	return Message{Role: RoleUser, Content: content, CreatedAt: at}
}

// ToolResultMessage builds the tool-role answer to call.
func ToolResultMessage(call ToolCall, content string, at time.Time) Message {
	return Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: call.ID,
		ToolName:   call.Name,
		CreatedAt:  at,
	}
}

// RetrievalHit is one normalized semantic search result.
//
// Score is always in [0,1] with higher meaning more similar.
type RetrievalHit struct {
	Text     string         `json:"text"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// EntityID returns the graph entity the hit was derived from, if any.
func (h RetrievalHit) EntityID() (string, bool) {
	for _, key := range []string{MetaEntityID, MetaNodeID} {
		v, ok := h.Metadata[key]
		if !ok || v == nil {
			continue
		}
		id := stringify(v)
		if id != "" {
			return id, true
		}
	}
	return "", false
}

// Metadata keys written by the graph indexer.
const (
	MetaEntityID = "entity_id"
	MetaLabel    = "label"
	MetaName     = "name"

	// MetaNodeID is read as a fallback for entity_id. Collections indexed
	// by other tools store the graph node id under this key.
	MetaNodeID = "node_id"
)

// GraphEdge is one relationship incident to a retrieved entity.
type GraphEdge struct {
	Source   string `json:"source"`
	Relation string `json:"relation"`
	Target   string `json:"target"`
}

// Document is a unit of text added to a vector backend.
type Document struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SessionRecord is the persisted header of a session.
type SessionRecord struct {
	ID        string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionSummary is returned by session listings.
type SessionSummary struct {
	ID           string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// ToolUsage is an audit record of one dispatched tool call.
type ToolUsage struct {
	Tool      string        `json:"tool"`
	SessionID string        `json:"session_id,omitempty"`
	Duration  time.Duration `json:"duration"`
	Failed    bool          `json:"failed"`
	At        time.Time     `json:"at"`
}

// IndexStats describes the contents of a vector backend.
type IndexStats struct {
	Backend    string `json:"backend"`
	Collection string `json:"collection,omitempty"`
	Count      int    `json:"count"`
	Dimension  int    `json:"dimension,omitempty"`
}
