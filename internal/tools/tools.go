/*
Package tools implements the retrieval tools the agent can call.

Tools are registered by name in a Registry. The Registry is the only way the
agent reaches a tool, and it never returns an error: unknown names, bad
arguments, backend failures, timeouts and panics all come back as readable
text the model can act on.
*/
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/khanglvm/graphrag-agent/internal/domain"
	"github.com/khanglvm/graphrag-agent/internal/observability"
)

// Tool is a single callable retrieval operation.
type Tool interface {
	Spec() domain.ToolSpec
	Call(ctx context.Context, args map[string]any) (string, error)
}

// UsageRecorder receives an audit record for every dispatched call.
type UsageRecorder interface {
	RecordToolUsage(ctx context.Context, usage domain.ToolUsage) error
}

// Registry maps tool names to handlers.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	order    []string
	timeout  time.Duration
	recorder UsageRecorder
	now      func() time.Time
}

// NewRegistry creates an empty registry. A positive timeout bounds each call.
func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		timeout: timeout,
		now:     time.Now,
	}
}

// SetRecorder installs an audit sink.
func (r *Registry) SetRecorder(rec UsageRecorder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorder = rec
}

// Register adds a tool. Names must be unique.
func (r *Registry) Register(t Tool) error {
	name := t.Spec().Name
	if name == "" {
		return errors.New("tool has empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// Specs returns tool declarations in registration order.
func (r *Registry) Specs() []domain.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]domain.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.tools[name].Spec())
	}
	return specs
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

// Invoke dispatches call and always returns result text.
func (r *Registry) Invoke(ctx context.Context, call domain.ToolCall) string {
	r.mu.RLock()
	tool, ok := r.tools[call.Name]
	recorder := r.recorder
	r.mu.RUnlock()

	log := observability.LoggerFromContext(ctx).With("tool", call.Name)

	if !ok {
		log.Warn("unknown tool requested")
		return fmt.Sprintf("Error: unknown tool %q. Available tools: %s", call.Name, strings.Join(r.Names(), ", "))
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := r.now()
	out, err := safeCall(ctx, tool, call.Arguments)
	elapsed := r.now().Sub(start)

	if recorder != nil {
		usage := domain.ToolUsage{
			Tool:      call.Name,
			SessionID: observability.SessionIDFromContext(ctx),
			Duration:  elapsed,
			Failed:    err != nil,
			At:        start,
		}
		if recErr := recorder.RecordToolUsage(context.WithoutCancel(ctx), usage); recErr != nil {
			log.Warn("failed to record tool usage", "error", recErr)
		}
	}

	if err != nil {
		log.Warn("tool call failed", "error", err, "elapsed_ms", elapsed.Milliseconds())
		return fmt.Sprintf("Error: %s failed: %v", call.Name, err)
	}

	log.Debug("tool call finished", "elapsed_ms", elapsed.Milliseconds())
	return out
}

func safeCall(ctx context.Context, tool Tool, args map[string]any) (out string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	if args == nil {
		args = map[string]any{}
	}
	out, err = tool.Call(ctx, args)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return out, err
}
