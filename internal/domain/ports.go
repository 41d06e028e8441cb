package domain

import (
	"context"
	"fmt"
	"strconv"
)

// Model produces the next assistant message for a conversation.
type Model interface {
	Complete(ctx context.Context, messages []Message) (Message, error)
}

// ToolSpec declares a tool to the model.
type ToolSpec struct {
	Name        string
	Description string
	// Parameters is a JSON-schema object describing the arguments.
	Parameters map[string]any
}

// ToolBinder is implemented by models that need tool declarations up front.
type ToolBinder interface {
	BindTools(specs []ToolSpec) Model
}

// Embedder turns text into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// GraphStore is the read side of the knowledge graph.
type GraphStore interface {
	// Query runs a structured query. No match yields an empty, non-nil slice.
	Query(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
	Schema(ctx context.Context) (string, error)
}

// VectorStore returns normalized hits, highest score first.
type VectorStore interface {
	SimilaritySearch(ctx context.Context, query string, topK int, threshold float64) ([]RetrievalHit, error)
}

// DocumentIndexer is implemented by vector backends that accept new documents.
type DocumentIndexer interface {
	AddDocuments(ctx context.Context, docs []Document) error
	Stats(ctx context.Context) (IndexStats, error)
}

// ConversationStore persists sessions and their append-only message logs.
type ConversationStore interface {
	// UpsertSession creates the session if missing and returns its record.
	UpsertSession(ctx context.Context, sessionID string) (SessionRecord, error)

	// AppendMessages appends msgs to the session log as one atomic unit.
	// Returns ErrSessionNotFound if the session does not exist.
	AppendMessages(ctx context.Context, sessionID string, msgs []Message) error

	// Messages returns the most recent limit messages, oldest first.
	// A limit <= 0 returns the whole log.
	Messages(ctx context.Context, sessionID string, limit int) ([]Message, error)

	ListSessions(ctx context.Context) ([]SessionSummary, error)

	// DeleteSession removes the session and its messages together.
	// It reports whether the session existed.
	DeleteSession(ctx context.Context, sessionID string) (bool, error)

	Close() error
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
