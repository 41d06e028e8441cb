package tools

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/khanglvm/graphrag-agent/internal/domain"
	"github.com/khanglvm/graphrag-agent/internal/observability"
)

type funcTool struct {
	name string
	fn   func(ctx context.Context, args map[string]any) (string, error)
}

func (f *funcTool) Spec() domain.ToolSpec { return domain.ToolSpec{Name: f.name} }

func (f *funcTool) Call(ctx context.Context, args map[string]any) (string, error) {
	return f.fn(ctx, args)
}

type memRecorder struct {
	mu     sync.Mutex
	usages []domain.ToolUsage
}

func (m *memRecorder) RecordToolUsage(ctx context.Context, u domain.ToolUsage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usages = append(m.usages, u)
	return nil
}

func TestRegistryUnknownTool(t *testing.T) {
	r := NewRegistry(0)
	_ = r.Register(&funcTool{name: "graph_schema", fn: func(context.Context, map[string]any) (string, error) { return "ok", nil }})

	out := r.Invoke(context.Background(), domain.ToolCall{ID: "1", Name: "drop_database"})
	if !strings.Contains(out, "unknown tool") {
		t.Errorf("expected unknown tool message, got %q", out)
	}
	if !strings.Contains(out, "graph_schema") {
		t.Errorf("expected available tools to be listed, got %q", out)
	}
}

func TestRegistryDuplicateRegistration(t *testing.T) {
	r := NewRegistry(0)
	tool := &funcTool{name: "x", fn: func(context.Context, map[string]any) (string, error) { return "", nil }}
	if err := r.Register(tool); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if err := r.Register(tool); err == nil {
		t.Error("expected error registering duplicate name")
	}
}

func TestRegistryConvertsFailuresToText(t *testing.T) {
	tests := []struct {
		name string
		fn   func(ctx context.Context, args map[string]any) (string, error)
		want string
	}{
		{
			name: "error",
			fn: func(context.Context, map[string]any) (string, error) {
				return "", errors.New("connection refused")
			},
			want: "connection refused",
		},
		{
			name: "panic",
			fn: func(context.Context, map[string]any) (string, error) {
				panic("boom")
			},
			want: "panic: boom",
		},
		{
			name: "timeout",
			fn: func(ctx context.Context, _ map[string]any) (string, error) {
				<-ctx.Done()
				return "", ctx.Err()
			},
			want: "deadline exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(20 * time.Millisecond)
			_ = r.Register(&funcTool{name: "flaky", fn: tt.fn})

			out := r.Invoke(context.Background(), domain.ToolCall{Name: "flaky"})
			if !strings.HasPrefix(out, "Error: flaky failed") {
				t.Errorf("expected failure prefix, got %q", out)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("expected %q in output, got %q", tt.want, out)
			}
		})
	}
}

func TestRegistryRecordsUsage(t *testing.T) {
	r := NewRegistry(0)
	rec := &memRecorder{}
	r.SetRecorder(rec)
	_ = r.Register(&funcTool{name: "ok", fn: func(context.Context, map[string]any) (string, error) { return "fine", nil }})
	_ = r.Register(&funcTool{name: "bad", fn: func(context.Context, map[string]any) (string, error) { return "", errors.New("x") }})

	ctx := observability.WithSessionID(context.Background(), "s1")
	r.Invoke(ctx, domain.ToolCall{Name: "ok"})
	r.Invoke(ctx, domain.ToolCall{Name: "bad"})
	r.Invoke(ctx, domain.ToolCall{Name: "missing"})

	if len(rec.usages) != 2 {
		t.Fatalf("expected 2 usage records, got %d", len(rec.usages))
	}
	if rec.usages[0].Failed || !rec.usages[1].Failed {
		t.Errorf("unexpected failed flags: %+v", rec.usages)
	}
	if rec.usages[0].SessionID != "s1" {
		t.Errorf("expected session id s1, got %q", rec.usages[0].SessionID)
	}
}

func TestRegistrySpecsKeepRegistrationOrder(t *testing.T) {
	r := NewRegistry(0)
	for _, name := range []string{"c", "a", "b"} {
		_ = r.Register(&funcTool{name: name, fn: func(context.Context, map[string]any) (string, error) { return "", nil }})
	}

	specs := r.Specs()
	if specs[0].Name != "c" || specs[1].Name != "a" || specs[2].Name != "b" {
		t.Errorf("unexpected spec order: %v", specs)
	}
	if names := r.Names(); names[0] != "a" {
		t.Errorf("Names() should be sorted, got %v", names)
	}
}

func TestIntArg(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    int
		wantErr bool
	}{
		{"missing", nil, 5, false},
		{"json number", float64(7), 7, false},
		{"int", 3, 3, false},
		{"string", "4", 4, false},
		{"clamped high", float64(500), 20, false},
		{"clamped low", float64(-2), 1, false},
		{"fraction", 2.5, 0, true},
		{"bad string", "many", 0, true},
		{"wrong type", []any{1}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := map[string]any{}
			if tt.value != nil {
				args["top_k"] = tt.value
			}
			got, err := intArg(args, "top_k", 5, 1, 20)
			if (err != nil) != tt.wantErr {
				t.Fatalf("intArg error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("intArg = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate changed short string: %q", got)
	}
	if got := truncate("abcdef", 3); got != "abc..." {
		t.Errorf("truncate = %q, want abc...", got)
	}
	if got := truncate("héllo wörld", 5); got != "héllo..." {
		t.Errorf("truncate should count runes, got %q", got)
	}
}

func TestMapArg(t *testing.T) {
	m, err := mapArg(map[string]any{"params": map[string]any{"name": "Alice"}}, "params")
	if err != nil || m["name"] != "Alice" {
		t.Errorf("object form = %v, %v", m, err)
	}

	m, err = mapArg(map[string]any{"params": `{"limit": 5}`}, "params")
	if err != nil || m["limit"] != float64(5) {
		t.Errorf("JSON string form = %v, %v", m, err)
	}

	m, err = mapArg(map[string]any{"params": "  "}, "params")
	if err != nil || m != nil {
		t.Errorf("blank string = %v, %v", m, err)
	}

	if _, err := mapArg(map[string]any{"params": "not json"}, "params"); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if _, err := mapArg(map[string]any{"params": 3}, "params"); err == nil {
		t.Error("expected error for non-object")
	}
}
