package storage

import (
	"encoding/json"
	"fmt"

	"github.com/khanglvm/graphrag-agent/internal/observability"
)

// migration represents a single database migration.
type migration struct {
	version int
	name    string
	up      func() error
}

// runMigrations executes database schema migrations.
func (s *SQLiteStorage) runMigrations() error {
	if err := s.createMigrationsTable(); err != nil {
		return err
	}

	version, err := s.getCurrentMigrationVersion()
	if err != nil {
		return err
	}

	migrations := []migration{
		{version: 1, name: "conversations", up: s.migration001Conversations},
		{version: 2, name: "tool_usage", up: s.migration002ToolUsage},
		{version: 3, name: "documents", up: s.migration003Documents},
	}

	for _, m := range migrations {
		if version >= m.version {
			continue
		}
		observability.Logger().Info("running migration", "version", m.version, "name", m.name)
		if err := m.up(); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}
		if err := s.setMigrationVersion(m.version, m.name); err != nil {
			return err
		}
	}

	return nil
}

func (s *SQLiteStorage) createMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`)
	return err
}

// getCurrentMigrationVersion returns the highest applied migration version.
func (s *SQLiteStorage) getCurrentMigrationVersion() (int, error) {
	var version int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

func (s *SQLiteStorage) setMigrationVersion(version int, name string) error {
	_, err := s.db.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", version, name)
	return err
}

// migration001Conversations creates sessions and their message logs.
func (s *SQLiteStorage) migration001Conversations() error {
	stmts := []struct {
		what string
		sql  string
	}{
		{"sessions table", `
			CREATE TABLE IF NOT EXISTS sessions (
				session_id TEXT PRIMARY KEY,
				metadata TEXT NOT NULL DEFAULT '{}',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`},
		{"messages table", `
			CREATE TABLE IF NOT EXISTS messages (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
				role TEXT NOT NULL,
				content TEXT NOT NULL,
				tool_calls TEXT,
				tool_call_id TEXT,
				tool_name TEXT,
				created_at TEXT NOT NULL
			)`},
		{"messages session index", `
			CREATE INDEX IF NOT EXISTS idx_messages_session
			ON messages(session_id, id)`},
		{"sessions updated index", `
			CREATE INDEX IF NOT EXISTS idx_sessions_updated
			ON sessions(updated_at DESC)`},
	}

	for _, st := range stmts {
		if _, err := s.db.Exec(st.sql); err != nil {
			return fmt.Errorf("failed to create %s: %w", st.what, err)
		}
	}
	return nil
}

// migration002ToolUsage creates the tool call audit table.
func (s *SQLiteStorage) migration002ToolUsage() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tool_usage (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tool_name TEXT NOT NULL,
			session_id TEXT,
			duration_ms INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			timestamp TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to create tool_usage table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_tool_usage_timestamp
		ON tool_usage(timestamp DESC)
	`); err != nil {
		return fmt.Errorf("failed to create tool_usage timestamp index: %w", err)
	}

	return nil
}

// migration003Documents creates storage for the local vector backend.
func (s *SQLiteStorage) migration003Documents() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			vector TEXT NOT NULL,
			model TEXT NOT NULL,
			created_at TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}
	return nil
}

// vectorToJSON converts a float32 vector to JSON for storage.
func vectorToJSON(vector []float32) (string, error) {
	data, err := json.Marshal(vector)
	if err != nil {
		return "", fmt.Errorf("failed to marshal vector: %w", err)
	}
	return string(data), nil
}

// jsonToVector parses JSON storage back to a float32 vector.
func jsonToVector(jsonStr string) ([]float32, error) {
	var vector []float32
	if err := json.Unmarshal([]byte(jsonStr), &vector); err != nil {
		return nil, err
	}
	return vector, nil
}
