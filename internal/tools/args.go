package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMissingArgument is wrapped when a required argument is absent.
var ErrMissingArgument = errors.New("missing required argument")

func requireString(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", fmt.Errorf("%w: %s", ErrMissingArgument, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %s must be a string, got %T", key, v)
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingArgument, key)
	}
	return s, nil
}

// intArg reads an integer argument; JSON numbers and numeric strings are accepted.
func intArg(args map[string]any, key string, def, min, max int) (int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return def, nil
	}

	var n int
	switch t := v.(type) {
	case int:
		n = t
	case int32:
		n = int(t)
	case int64:
		n = int(t)
	case float64:
		if t != math.Trunc(t) {
			return 0, fmt.Errorf("argument %s must be an integer, got %v", key, t)
		}
		n = int(t)
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return 0, fmt.Errorf("argument %s must be an integer: %w", key, err)
		}
		n = int(i)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("argument %s must be an integer, got %q", key, t)
		}
		n = i
	default:
		return 0, fmt.Errorf("argument %s must be an integer, got %T", key, v)
	}

	if n < min {
		n = min
	}
	if n > max {
		n = max
	}
	return n, nil
}

func boolArg(args map[string]any, key string) bool {
	switch t := args[key].(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(t)
		return b
	default:
		return false
	}
}

func mapArg(args map[string]any, key string) (map[string]any, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case map[string]any:
		return t, nil
	case string:
		// Some providers only pass free-form objects as JSON text.
		if strings.TrimSpace(t) == "" {
			return nil, nil
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(t), &m); err != nil {
			return nil, fmt.Errorf("argument %s must be a JSON object: %v", key, err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("argument %s must be an object, got %T", key, v)
	}
}

// truncate shortens s to n runes, appending "..." when cut.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func compactJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
