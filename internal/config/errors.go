package config

import (
	"errors"
	"fmt"
	"strings"
)

// PermissionError is returned when the config file cannot be read or written.
type PermissionError struct {
	Path    string
	Op      string // "read" or "write"
	Fix     string
	Details string
}

func (e *PermissionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "permission denied (cannot %s config): %s\n", e.Op, e.Path)
	if e.Details != "" {
		b.WriteString(e.Details + "\n")
	}
	b.WriteString("💡 Fix: " + e.Fix)
	return b.String()
}

// ConfigNotFoundError is returned when no file exists at the config path.
type ConfigNotFoundError struct {
	Path string
	Hint string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("config file not found: %s\n\n💡 %s", e.Path, e.Hint)
}

// InvalidConfigError covers unparseable files and values rejected by Validate.
type InvalidConfigError struct {
	Path    string
	Message string
	Hint    string
	Err     error
}

func (e *InvalidConfigError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invalid config: %s\n", e.Path)
	if e.Message != "" {
		b.WriteString(e.Message + "\n")
	}
	if e.Hint != "" {
		b.WriteString("💡 " + e.Hint)
	}
	return b.String()
}

func (e *InvalidConfigError) Unwrap() error { return e.Err }

// IsNotFound reports whether err means the config file does not exist.
func IsNotFound(err error) bool {
	var notFound *ConfigNotFoundError
	return errors.As(err, &notFound)
}
