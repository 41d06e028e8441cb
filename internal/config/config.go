/*
Package config handles loading, saving, and validating graphrag-agent
configuration.

Configuration is stored in ~/.graphrag-agent.json. Missing keys keep their
defaults, and a few environment variables override the file.

Schema:
  {
    "neo4j":   {"uri": "bolt://localhost:7687", "username": "neo4j", "password": "...", "database": "neo4j"},
    "storage": {"backend": "sqlite", "path": "", "firestoreProject": ""},
    "vector":  {"backend": "local", "qdrantUrl": "http://localhost:6334", "collection": "knowledge_base",
                "dimension": 768, "metric": "cosine", "scoreThreshold": 0.7, "indexPath": ""},
    "llm":     {"provider": "gemini", "model": "gemini-2.5-flash", "embeddingModel": "text-embedding-004",
                "temperature": 0, "apiKey": "", "project": "", "location": "us-central1"},
    "agent":   {"maxIterations": 10, "historyLimit": 50, "sessionPolicy": "queue",
                "runTimeoutSeconds": 120, "toolTimeoutSeconds": 30},
    "redis":   {"addr": "", "password": "", "db": 0, "lockTtlSeconds": 300},
    "verbose": false
  }
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Backend names.
const (
	StorageSQLite    = "sqlite"
	StorageMemory    = "memory"
	StorageFirestore = "firestore"

	VectorLocal   = "local"
	VectorQdrant  = "qdrant"
	VectorKeyword = "keyword"
	VectorNone    = "none"

	ProviderGemini = "gemini"
	ProviderVertex = "vertex"
	ProviderMock   = "mock"
)

// Config represents the root configuration structure.
type Config struct {
	Neo4j   Neo4jConfig   `json:"neo4j"`
	Storage StorageConfig `json:"storage"`
	Vector  VectorConfig  `json:"vector"`
	LLM     LLMConfig     `json:"llm"`
	Agent   AgentConfig   `json:"agent"`
	Redis   RedisConfig   `json:"redis"`

	// Verbose enables debug logging.
	Verbose bool `json:"verbose,omitempty"`
}

// Neo4jConfig locates the knowledge graph.
type Neo4jConfig struct {
	URI      string `json:"uri"`
	Username string `json:"username"`
	Password string `json:"password"`
	Database string `json:"database"`
}

// StorageConfig selects the conversation store.
type StorageConfig struct {
	Backend string `json:"backend"`

	// Path is the SQLite file. Empty means ~/.graphrag-agent/history.db.
	Path string `json:"path,omitempty"`

	FirestoreProject string `json:"firestoreProject,omitempty"`
}

// VectorConfig selects the semantic retrieval backend.
type VectorConfig struct {
	Backend        string  `json:"backend"`
	QdrantURL      string  `json:"qdrantUrl,omitempty"`
	QdrantAPIKey   string  `json:"qdrantApiKey,omitempty"`
	Collection     string  `json:"collection,omitempty"`
	Dimension      int     `json:"dimension,omitempty"`
	Metric         string  `json:"metric,omitempty"`
	ScoreThreshold float64 `json:"scoreThreshold"`

	// IndexPath persists the keyword index. Empty keeps it in memory.
	IndexPath string `json:"indexPath,omitempty"`
}

// LLMConfig selects the language model and embedder.
type LLMConfig struct {
	Provider       string  `json:"provider"`
	Model          string  `json:"model"`
	EmbeddingModel string  `json:"embeddingModel"`
	Temperature    float32 `json:"temperature"`
	APIKey         string  `json:"apiKey,omitempty"`
	Project        string  `json:"project,omitempty"`
	Location       string  `json:"location,omitempty"`
}

// AgentConfig bounds each run.
type AgentConfig struct {
	MaxIterations      int    `json:"maxIterations"`
	HistoryLimit       int    `json:"historyLimit"`
	SessionPolicy      string `json:"sessionPolicy"`
	RunTimeoutSeconds  int    `json:"runTimeoutSeconds"`
	ToolTimeoutSeconds int    `json:"toolTimeoutSeconds"`
}

// RunTimeout returns the per-question deadline.
func (a AgentConfig) RunTimeout() time.Duration {
	return time.Duration(a.RunTimeoutSeconds) * time.Second
}

// ToolTimeout returns the per-tool-call deadline.
func (a AgentConfig) ToolTimeout() time.Duration {
	return time.Duration(a.ToolTimeoutSeconds) * time.Second
}

// RedisConfig enables cross-process session locking when Addr is set.
type RedisConfig struct {
	Addr           string `json:"addr,omitempty"`
	Password       string `json:"password,omitempty"`
	DB             int    `json:"db,omitempty"`
	LockTTLSeconds int    `json:"lockTtlSeconds,omitempty"`
}

// LockTTL returns how long a session lock survives a crashed holder.
func (r RedisConfig) LockTTL() time.Duration {
	return time.Duration(r.LockTTLSeconds) * time.Second
}

// NewConfig creates a configuration populated with defaults.
func NewConfig() *Config {
	return &Config{
		Neo4j: Neo4jConfig{
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
			Password: "graphrag",
			Database: "neo4j",
		},
		Storage: StorageConfig{
			Backend: StorageSQLite,
		},
		Vector: VectorConfig{
			Backend:        VectorLocal,
			QdrantURL:      "http://localhost:6334",
			Collection:     "knowledge_base",
			Dimension:      768,
			Metric:         "cosine",
			ScoreThreshold: 0.7,
		},
		LLM: LLMConfig{
			Provider:       ProviderGemini,
			Model:          "gemini-2.5-flash",
			EmbeddingModel: "text-embedding-004",
			Location:       "us-central1",
		},
		Agent: AgentConfig{
			MaxIterations:      10,
			HistoryLimit:       50,
			SessionPolicy:      "queue",
			RunTimeoutSeconds:  120,
			ToolTimeoutSeconds: 30,
		},
		Redis: RedisConfig{
			LockTTLSeconds: 300,
		},
	}
}

// GetDefaultConfigPath returns the path to ~/.graphrag-agent.json
func GetDefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".graphrag-agent.json"), nil
}
