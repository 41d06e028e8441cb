package storage

import (
	"time"

	"github.com/khanglvm/graphrag-agent/internal/domain"
)

// ToolUsageStat aggregates the audit trail for one tool.
type ToolUsageStat struct {
	// Tool is the tool name.
	Tool string `json:"tool"`

	// Calls is the number of dispatched calls.
	Calls int `json:"calls"`

	// Failures is the number of calls that returned an error.
	Failures int `json:"failures"`

	// AvgDuration is the mean call duration.
	AvgDuration time.Duration `json:"avg_duration"`
}

// StoredDocument is a document with its embedding.
type StoredDocument struct {
	domain.Document

	// Vector is the embedding of Text.
	Vector []float32 `json:"vector"`

	// Model is the embedding model that produced Vector.
	Model string `json:"model"`
}
