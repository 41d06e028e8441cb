package config

import (
	"fmt"
	"net/url"
	"strings"
)

// lockSaveSeconds is the time allowed for saving a turn after its run.
const lockSaveSeconds = 30

// Validate checks that every backend name is known and every bound is
// usable. It returns the first problem found.
func Validate(cfg *Config) error {
	if err := oneOf("storage.backend", cfg.Storage.Backend, StorageSQLite, StorageMemory, StorageFirestore); err != nil {
		return err
	}
	if cfg.Storage.Backend == StorageFirestore && cfg.Storage.FirestoreProject == "" {
		return fmt.Errorf("storage.firestoreProject is required for the firestore backend")
	}

	if err := oneOf("vector.backend", cfg.Vector.Backend, VectorLocal, VectorQdrant, VectorKeyword, VectorNone); err != nil {
		return err
	}
	if cfg.Vector.ScoreThreshold < 0 || cfg.Vector.ScoreThreshold > 1 {
		return fmt.Errorf("vector.scoreThreshold must be within [0,1], got %v", cfg.Vector.ScoreThreshold)
	}
	if cfg.Vector.Backend == VectorQdrant {
		if err := oneOf("vector.metric", strings.ToLower(cfg.Vector.Metric), "cosine", "euclid", "l2"); err != nil {
			return err
		}
		if cfg.Vector.Collection == "" {
			return fmt.Errorf("vector.collection is required for the qdrant backend")
		}
		if cfg.Vector.Dimension <= 0 {
			return fmt.Errorf("vector.dimension must be positive, got %d", cfg.Vector.Dimension)
		}
	}

	if err := oneOf("llm.provider", cfg.LLM.Provider, ProviderGemini, ProviderVertex, ProviderMock); err != nil {
		return err
	}
	if cfg.LLM.Provider != ProviderMock && cfg.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}

	if cfg.Agent.MaxIterations <= 0 {
		return fmt.Errorf("agent.maxIterations must be positive, got %d", cfg.Agent.MaxIterations)
	}
	if cfg.Agent.HistoryLimit <= 0 {
		return fmt.Errorf("agent.historyLimit must be positive, got %d", cfg.Agent.HistoryLimit)
	}
	if err := oneOf("agent.sessionPolicy", cfg.Agent.SessionPolicy, "queue", "reject"); err != nil {
		return err
	}
	if cfg.Agent.RunTimeoutSeconds <= 0 || cfg.Agent.ToolTimeoutSeconds <= 0 {
		return fmt.Errorf("agent timeouts must be positive")
	}

	if cfg.Neo4j.URI == "" {
		return fmt.Errorf("neo4j.uri is required")
	}
	if u, err := url.Parse(cfg.Neo4j.URI); err != nil || u.Scheme == "" {
		return fmt.Errorf("neo4j.uri %q is not a URI", cfg.Neo4j.URI)
	}

	// The Redis lock is not renewed, so it must outlive a run and its save.
	if cfg.Redis.Addr != "" {
		minTTL := cfg.Agent.RunTimeoutSeconds + lockSaveSeconds
		if cfg.Redis.LockTTLSeconds <= minTTL {
			return fmt.Errorf("redis.lockTtlSeconds must exceed agent.runTimeoutSeconds + %d (%d), got %d",
				lockSaveSeconds, minTTL, cfg.Redis.LockTTLSeconds)
		}
	}

	return nil
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, ", "), value)
}
