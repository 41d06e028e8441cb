package config

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"
)

// EnvConfigPath names the environment variable that overrides the config path.
const EnvConfigPath = "GRAPHRAG_CONFIG"

// Load resolves the config path, reads the file and applies environment
// overrides. explicit wins over GRAPHRAG_CONFIG, which wins over the default
// path. A missing file at the default path yields the defaults; a missing
// file that was asked for by name is an error.
func Load(explicit string) (*Config, string, error) {
	path := explicit
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	named := path != ""
	if !named {
		var err error
		if path, err = GetDefaultConfigPath(); err != nil {
			return nil, "", err
		}
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		if named || !IsNotFound(err) {
			return nil, path, err
		}
		cfg = NewConfig()
	}

	ApplyEnv(cfg, os.Getenv)

	if err := Validate(cfg); err != nil {
		return nil, path, &InvalidConfigError{
			Path:    path,
			Message: err.Error(),
			Err:     err,
			Hint:    "Fix the value above or run 'graphrag-agent init --force' to start from defaults",
		}
	}
	return cfg, path, nil
}

// LoadFrom reads config with enhanced error handling. Keys missing from the
// file keep their defaults.
func LoadFrom(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, &ConfigNotFoundError{
				Path: path,
				Hint: "Run 'graphrag-agent init' to create configuration",
			}
		}
		return nil, fmt.Errorf("failed to access config: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, &PermissionError{
				Path:    path,
				Op:      "read",
				Fix:     getReadPermissionFix(path),
				Details: getPermissionDetails(path),
			}
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, &InvalidConfigError{
			Path:    path,
			Message: fmt.Sprintf("JSON parse error: %v", err),
			Hint:    "Restore from .bak file if available",
			Err:     err,
		}
	}

	return cfg, nil
}

// envOverrides maps environment variables onto config fields.
var envOverrides = []struct {
	name  string
	apply func(cfg *Config, v string)
}{
	{"GRAPHRAG_NEO4J_URI", func(c *Config, v string) { c.Neo4j.URI = v }},
	{"GRAPHRAG_NEO4J_USERNAME", func(c *Config, v string) { c.Neo4j.Username = v }},
	{"GRAPHRAG_NEO4J_PASSWORD", func(c *Config, v string) { c.Neo4j.Password = v }},
	{"GRAPHRAG_STORAGE_BACKEND", func(c *Config, v string) { c.Storage.Backend = v }},
	{"GRAPHRAG_VECTOR_BACKEND", func(c *Config, v string) { c.Vector.Backend = v }},
	{"GRAPHRAG_QDRANT_URL", func(c *Config, v string) { c.Vector.QdrantURL = v }},
	{"QDRANT_API_KEY", func(c *Config, v string) { c.Vector.QdrantAPIKey = v }},
	{"GRAPHRAG_LLM_PROVIDER", func(c *Config, v string) { c.LLM.Provider = v }},
	{"GEMINI_API_KEY", func(c *Config, v string) { c.LLM.APIKey = v }},
	{"GOOGLE_CLOUD_PROJECT", func(c *Config, v string) {
		c.LLM.Project = v
		if c.Storage.FirestoreProject == "" {
			c.Storage.FirestoreProject = v
		}
	}},
	{"GOOGLE_CLOUD_LOCATION", func(c *Config, v string) { c.LLM.Location = v }},
	{"GRAPHRAG_REDIS_ADDR", func(c *Config, v string) { c.Redis.Addr = v }},
}

// ApplyEnv overlays non-empty environment variables read through getenv.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	for _, o := range envOverrides {
		if v := strings.TrimSpace(getenv(o.name)); v != "" {
			o.apply(cfg, v)
		}
	}
}

// getReadPermissionFix returns platform-specific fix command
func getReadPermissionFix(path string) string {
	switch runtime.GOOS {
	case "windows":
		return fmt.Sprintf("Right-click %s → Properties → Security → Edit permissions", path)
	default:
		return fmt.Sprintf("Run: chmod 600 %s", path)
	}
}

// getPermissionDetails reports the current mode bits
func getPermissionDetails(path string) string {
	if runtime.GOOS == "windows" {
		return ""
	}

	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("Current permissions: %04o", info.Mode().Perm())
}
