package config

import (
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"unknown storage", func(c *Config) { c.Storage.Backend = "postgres" }, "storage.backend"},
		{"firestore without project", func(c *Config) { c.Storage.Backend = StorageFirestore }, "firestoreProject"},
		{"firestore with project", func(c *Config) {
			c.Storage.Backend = StorageFirestore
			c.Storage.FirestoreProject = "p"
		}, ""},
		{"unknown vector", func(c *Config) { c.Vector.Backend = "faiss" }, "vector.backend"},
		{"threshold above one", func(c *Config) { c.Vector.ScoreThreshold = 1.5 }, "scoreThreshold"},
		{"threshold negative", func(c *Config) { c.Vector.ScoreThreshold = -0.1 }, "scoreThreshold"},
		{"qdrant bad metric", func(c *Config) {
			c.Vector.Backend = VectorQdrant
			c.Vector.Metric = "dot"
		}, "vector.metric"},
		{"qdrant euclid", func(c *Config) {
			c.Vector.Backend = VectorQdrant
			c.Vector.Metric = "Euclid"
		}, ""},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "openai" }, "llm.provider"},
		{"zero iterations", func(c *Config) { c.Agent.MaxIterations = 0 }, "maxIterations"},
		{"zero history", func(c *Config) { c.Agent.HistoryLimit = 0 }, "historyLimit"},
		{"bad policy", func(c *Config) { c.Agent.SessionPolicy = "drop" }, "sessionPolicy"},
		{"zero timeout", func(c *Config) { c.Agent.ToolTimeoutSeconds = 0 }, "timeouts"},
		{"neo4j uri missing scheme", func(c *Config) { c.Neo4j.URI = "localhost" }, "neo4j.uri"},
		{"redis without ttl", func(c *Config) {
			c.Redis.Addr = "localhost:6379"
			c.Redis.LockTTLSeconds = 0
		}, "lockTtlSeconds"},
		{"redis ttl shorter than run", func(c *Config) {
			c.Redis.Addr = "localhost:6379"
			c.Redis.LockTTLSeconds = 10
			c.Agent.RunTimeoutSeconds = 120
		}, "lockTtlSeconds"},
		{"redis ttl without room to save", func(c *Config) {
			c.Redis.Addr = "localhost:6379"
			c.Redis.LockTTLSeconds = 150
			c.Agent.RunTimeoutSeconds = 120
		}, "lockTtlSeconds"},
		{"redis ttl covers run and save", func(c *Config) {
			c.Redis.Addr = "localhost:6379"
			c.Redis.LockTTLSeconds = 151
			c.Agent.RunTimeoutSeconds = 120
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}
