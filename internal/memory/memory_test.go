package memory

import (
	"context"
	"testing"
	"time"

	"github.com/khanglvm/graphrag-agent/internal/domain"
	"github.com/khanglvm/graphrag-agent/internal/storage/memstore"
)

func TestLoadOrCreateIdempotent(t *testing.T) {
	store := memstore.New()
	m := New(store, 0)
	ctx := context.Background()

	first, err := m.LoadOrCreate(ctx, "s1")
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	if len(first) != 0 {
		t.Errorf("new session should have no history, got %d", len(first))
	}

	if _, err := m.LoadOrCreate(ctx, "s1"); err != nil {
		t.Fatalf("second LoadOrCreate failed: %v", err)
	}

	sessions, _ := m.Sessions(ctx)
	if len(sessions) != 1 {
		t.Errorf("expected 1 session, got %d", len(sessions))
	}
}

func TestLoadOrCreateRequiresID(t *testing.T) {
	if _, err := New(memstore.New(), 0).LoadOrCreate(context.Background(), ""); err == nil {
		t.Error("expected error for empty session id")
	}
}

func TestLoadOrCreateStartsAtUserMessage(t *testing.T) {
	store := memstore.New()
	m := New(store, 3)
	ctx := context.Background()
	now := time.Now()

	m.LoadOrCreate(ctx, "s1")
	call := domain.ToolCall{ID: "c1", Name: "graph_schema"}
	m.AppendTurn(ctx, "s1", []domain.Message{
		domain.UserMessage("q1", now),
		{Role: domain.RoleAssistant, ToolCalls: []domain.ToolCall{call}, CreatedAt: now},
		domain.ToolResultMessage(call, "schema", now),
		{Role: domain.RoleAssistant, Content: "a1", CreatedAt: now},
		domain.UserMessage("q2", now),
	})

	// The last 3 are tool, assistant, user; the window is trimmed to q2.
	msgs, err := m.LoadOrCreate(ctx, "s1")
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "q2" {
		t.Errorf("unexpected window: %+v", msgs)
	}
}

func TestLoadOrCreateAnswersUndispatchedCalls(t *testing.T) {
	store := memstore.New()
	m := New(store, 0)
	ctx := context.Background()
	now := time.Now()

	m.LoadOrCreate(ctx, "s1")
	first := domain.ToolCall{ID: "c1", Name: "graph_schema"}
	second := domain.ToolCall{ID: "c2", Name: "cypher_query"}
	third := domain.ToolCall{ID: "c3", Name: "graph_schema"}
	m.AppendTurn(ctx, "s1", []domain.Message{
		domain.UserMessage("q1", now),
		{Role: domain.RoleAssistant, ToolCalls: []domain.ToolCall{first}, CreatedAt: now},
		domain.ToolResultMessage(first, "schema", now),
		{Role: domain.RoleAssistant, ToolCalls: []domain.ToolCall{second, third}, CreatedAt: now},
	})

	msgs, err := m.LoadOrCreate(ctx, "s1")
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	if len(msgs) != 6 {
		t.Fatalf("expected 6 messages, got %d", len(msgs))
	}
	if msgs[2].Content != "schema" {
		t.Errorf("answered call should keep its result, got %q", msgs[2].Content)
	}
	for i, id := range []string{"c2", "c3"} {
		got := msgs[4+i]
		if got.Role != domain.RoleTool || got.ToolCallID != id || got.Content != NotExecuted {
			t.Errorf("message %d = %+v, want NotExecuted result for %s", 4+i, got, id)
		}
	}

	stored, _ := m.History(ctx, "s1", 0)
	if len(stored) != 4 {
		t.Errorf("stored log should be unchanged, got %d messages", len(stored))
	}
}

func TestAppendAndHistory(t *testing.T) {
	m := New(memstore.New(), 0)
	ctx := context.Background()
	m.LoadOrCreate(ctx, "s1")

	for _, c := range []string{"a", "b", "c"} {
		if err := m.Append(ctx, "s1", domain.UserMessage(c, time.Now())); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	all, _ := m.History(ctx, "s1", 0)
	if len(all) != 3 || all[0].Content != "a" || all[2].Content != "c" {
		t.Errorf("unexpected history: %+v", all)
	}

	bounded, _ := m.History(ctx, "s1", 2)
	if len(bounded) != 2 || bounded[0].Content != "b" {
		t.Errorf("unexpected bounded history: %+v", bounded)
	}
}

func TestAppendToUnknownSessionFails(t *testing.T) {
	m := New(memstore.New(), 0)
	if err := m.Append(context.Background(), "ghost", domain.UserMessage("x", time.Now())); err == nil {
		t.Error("expected error appending to unknown session")
	}
}

func TestDeleteThenHistory(t *testing.T) {
	m := New(memstore.New(), 0)
	ctx := context.Background()
	m.LoadOrCreate(ctx, "s1")
	m.Append(ctx, "s1", domain.UserMessage("hello", time.Now()))

	existed, err := m.Delete(ctx, "s1")
	if err != nil || !existed {
		t.Fatalf("Delete = %v, %v", existed, err)
	}

	msgs, err := m.History(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("History after delete failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected empty history, got %d", len(msgs))
	}

	again, err := m.Delete(ctx, "s1")
	if err != nil || again {
		t.Errorf("second Delete = %v, %v; want false, nil", again, err)
	}
}
