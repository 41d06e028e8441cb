package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/khanglvm/graphrag-agent/internal/domain"
	"github.com/khanglvm/graphrag-agent/internal/llm"
	"github.com/khanglvm/graphrag-agent/internal/memory"
	"github.com/khanglvm/graphrag-agent/internal/service"
	"github.com/khanglvm/graphrag-agent/internal/storage/memstore"
	"github.com/khanglvm/graphrag-agent/internal/tools"
)

type fakeGraph struct {
	rows []map[string]any
}

func (g *fakeGraph) Query(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	return g.rows, nil
}

func (g *fakeGraph) Schema(ctx context.Context) (string, error) {
	return "Node properties:\nPerson {name: STRING}", nil
}

// failingStore accepts sessions but refuses to append messages.
type failingStore struct {
	*memstore.Store
}

func (s failingStore) AppendMessages(ctx context.Context, sessionID string, msgs []domain.Message) error {
	return errors.New("disk full")
}

// stallingStore never finishes an append before its context ends.
type stallingStore struct {
	*memstore.Store
}

func (s stallingStore) AppendMessages(ctx context.Context, sessionID string, msgs []domain.Message) error {
	<-ctx.Done()
	return ctx.Err()
}

type fixture struct {
	svc    *service.Service
	model  *llm.Scripted
	store  domain.ConversationStore
	locker memory.Locker
}

func newFixture(t *testing.T, store domain.ConversationStore, locker memory.Locker, maxIter int, responses ...domain.Message) *fixture {
	t.Helper()

	registry, err := tools.NewDefaultRegistry(&fakeGraph{rows: []map[string]any{{"count": 3}}}, nil, 0.7, time.Second)
	if err != nil {
		t.Fatalf("NewDefaultRegistry failed: %v", err)
	}
	if store == nil {
		store = memstore.New()
	}
	if locker == nil {
		locker = memory.NewLocalLocker(memory.PolicyQueue)
	}

	model := llm.NewScripted(responses...)
	svc := service.New(service.Deps{
		Model:  model,
		Tools:  registry,
		Memory: memory.New(store, 0),
		Locker: locker,
	}, service.Options{MaxIterations: maxIter})

	return &fixture{svc: svc, model: model, store: store, locker: locker}
}

func toolCall(id, name string, args map[string]any) domain.Message {
	return domain.Message{
		Role:      domain.RoleAssistant,
		ToolCalls: []domain.ToolCall{{ID: id, Name: name, Arguments: args}},
	}
}

func answer(text string) domain.Message {
	return domain.Message{Role: domain.RoleAssistant, Content: text}
}

func TestAsk_ToolThenAnswer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil, 0,
		toolCall("c1", "cypher_query", map[string]any{"query": "MATCH (p:Person) RETURN count(p) AS count"}),
		answer("There are 3 people."),
	)

	out, err := f.svc.Ask(ctx, service.AskInput{Question: "How many people are there?"})
	if err != nil {
		t.Fatalf("Ask returned error: %v", err)
	}

	if out.SessionID == "" {
		t.Error("expected a generated session id")
	}
	if out.Answer != "There are 3 people." {
		t.Errorf("unexpected answer %q", out.Answer)
	}
	if out.TerminationReason != "no_tool_call" {
		t.Errorf("expected no_tool_call, got %q", out.TerminationReason)
	}
	if out.Iterations != 2 {
		t.Errorf("expected 2 iterations, got %d", out.Iterations)
	}
	if out.PersistError != "" {
		t.Errorf("unexpected persist error %q", out.PersistError)
	}

	if len(out.ToolCalls) != 1 || out.ToolCalls[0].Tool != "cypher_query" {
		t.Fatalf("unexpected tool calls %+v", out.ToolCalls)
	}
	if _, ok := out.ToolCalls[0].Args["query"]; !ok {
		t.Error("expected tool call args to carry the query")
	}

	roles := make([]string, 0, len(out.Conversation))
	for _, e := range out.Conversation {
		roles = append(roles, e.Role)
	}
	if got := strings.Join(roles, ","); got != "user,tool,assistant" {
		t.Errorf("unexpected conversation roles %s", got)
	}
	if !strings.Contains(out.Conversation[1].Content, `"count":3`) {
		t.Errorf("expected tool output in conversation, got %q", out.Conversation[1].Content)
	}

	msgs, err := f.store.Messages(ctx, out.SessionID, 0)
	if err != nil {
		t.Fatalf("Messages returned error: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("expected 4 stored messages, got %d", len(msgs))
	}
	if msgs[0].Role != domain.RoleUser || msgs[3].Content != "There are 3 people." {
		t.Errorf("unexpected stored log %+v", msgs)
	}
}

func TestAsk_BindsRegistryTools(t *testing.T) {
	f := newFixture(t, nil, nil, 0, answer("hi"))

	if _, err := f.svc.Ask(context.Background(), service.AskInput{Question: "hello"}); err != nil {
		t.Fatalf("Ask returned error: %v", err)
	}

	specs := f.model.Tools()
	if len(specs) != 2 {
		t.Fatalf("expected the two graph tools to be bound, got %d", len(specs))
	}
}

func TestAsk_IterationCeiling(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil, 2,
		toolCall("c1", "graph_schema", nil),
		toolCall("c2", "graph_schema", nil),
		answer("never reached"),
	)

	out, err := f.svc.Ask(ctx, service.AskInput{Question: "loop forever", SessionID: "s1"})
	if err != nil {
		t.Fatalf("Ask returned error: %v", err)
	}

	if out.TerminationReason != "iteration_ceiling" {
		t.Errorf("expected iteration_ceiling, got %q", out.TerminationReason)
	}
	if out.Answer != "" {
		t.Errorf("expected empty answer, got %q", out.Answer)
	}
	if len(out.ToolCalls) != 2 {
		t.Errorf("expected 2 tool calls, got %d", len(out.ToolCalls))
	}
	if n := len(f.model.Calls()); n != 2 {
		t.Errorf("expected 2 model calls, got %d", n)
	}

	msgs, _ := f.store.Messages(ctx, "s1", 0)
	// user, call, result, call
	if len(msgs) != 4 {
		t.Errorf("expected 4 stored messages, got %d", len(msgs))
	}
}

func TestAsk_ContinuesAfterIterationCeiling(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil, 1,
		toolCall("c1", "graph_schema", nil),
		answer("recovered"),
	)

	first, err := f.svc.Ask(ctx, service.AskInput{Question: "q1", SessionID: "s1"})
	if err != nil {
		t.Fatalf("first Ask returned error: %v", err)
	}
	if first.TerminationReason != "iteration_ceiling" {
		t.Fatalf("expected iteration_ceiling, got %q", first.TerminationReason)
	}

	second, err := f.svc.Ask(ctx, service.AskInput{Question: "q2", SessionID: "s1"})
	if err != nil {
		t.Fatalf("second Ask returned error: %v", err)
	}
	if second.Answer != "recovered" {
		t.Errorf("expected answer 'recovered', got %q", second.Answer)
	}

	sent := f.model.Calls()[1]
	answered := map[string]bool{}
	for _, msg := range sent {
		if msg.Role == domain.RoleTool {
			answered[msg.ToolCallID] = true
		}
	}
	for _, msg := range sent {
		for _, call := range msg.ToolCalls {
			if !answered[call.ID] {
				t.Errorf("model was sent tool call %q with no result: %+v", call.ID, sent)
			}
		}
	}
	if len(sent) != 4 || sent[2].Content != memory.NotExecuted || sent[3].Content != "q2" {
		t.Errorf("unexpected context %+v", sent)
	}
}

func TestAsk_ContinuesSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil, 0, answer("first"), answer("second"))

	first, err := f.svc.Ask(ctx, service.AskInput{Question: "one"})
	if err != nil {
		t.Fatalf("first Ask returned error: %v", err)
	}
	if _, err := f.svc.Ask(ctx, service.AskInput{Question: "two", SessionID: first.SessionID}); err != nil {
		t.Fatalf("second Ask returned error: %v", err)
	}

	calls := f.model.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 model calls, got %d", len(calls))
	}
	sent := calls[1]
	if len(sent) != 3 {
		t.Fatalf("expected history plus question, got %d messages", len(sent))
	}
	if sent[0].Content != "one" || sent[1].Content != "first" || sent[2].Content != "two" {
		t.Errorf("unexpected context %+v", sent)
	}
}

func TestAsk_EmptyQuestion(t *testing.T) {
	f := newFixture(t, nil, nil, 0)

	_, err := f.svc.Ask(context.Background(), service.AskInput{Question: "   "})
	if !errors.Is(err, service.ErrEmptyQuestion) {
		t.Errorf("expected ErrEmptyQuestion, got %v", err)
	}
}

func TestAsk_PersistFailureKeepsAnswer(t *testing.T) {
	f := newFixture(t, failingStore{memstore.New()}, nil, 0, answer("42"))

	out, err := f.svc.Ask(context.Background(), service.AskInput{Question: "meaning?", SessionID: "s1"})
	if err != nil {
		t.Fatalf("Ask returned error: %v", err)
	}
	if out.Answer != "42" {
		t.Errorf("expected answer to survive, got %q", out.Answer)
	}
	if !strings.Contains(out.PersistError, "disk full") {
		t.Errorf("expected persist error, got %q", out.PersistError)
	}
}

func TestAsk_PersistTimeoutKeepsAnswer(t *testing.T) {
	registry, err := tools.NewDefaultRegistry(&fakeGraph{}, nil, 0.7, time.Second)
	if err != nil {
		t.Fatalf("NewDefaultRegistry failed: %v", err)
	}
	svc := service.New(service.Deps{
		Model:  llm.NewScripted(answer("still here")),
		Tools:  registry,
		Memory: memory.New(stallingStore{memstore.New()}, 0),
	}, service.Options{PersistTimeout: 50 * time.Millisecond})

	done := make(chan struct{})
	var out *service.AnswerBundle
	go func() {
		defer close(done)
		out, err = svc.Ask(context.Background(), service.AskInput{Question: "q", SessionID: "s1"})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Ask did not return while the store was stalled")
	}

	if err != nil {
		t.Fatalf("Ask returned error: %v", err)
	}
	if out.Answer != "still here" {
		t.Errorf("expected answer to survive, got %q", out.Answer)
	}
	if !strings.Contains(out.PersistError, "deadline") {
		t.Errorf("expected deadline in PersistError, got %q", out.PersistError)
	}
}

func TestAsk_ModelFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil, 0) // empty script

	if _, err := f.svc.Ask(ctx, service.AskInput{Question: "q", SessionID: "s1"}); err == nil {
		t.Fatal("expected error from exhausted model")
	}

	msgs, _ := f.store.Messages(ctx, "s1", 0)
	if len(msgs) != 0 {
		t.Errorf("expected no stored messages, got %d", len(msgs))
	}
}

func TestAsk_CancelledWritesNothing(t *testing.T) {
	f := newFixture(t, nil, nil, 0, answer("late"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.svc.Ask(ctx, service.AskInput{Question: "q", SessionID: "s1"}); err == nil {
		t.Fatal("expected error for cancelled context")
	}

	msgs, _ := f.store.Messages(context.Background(), "s1", 0)
	if len(msgs) != 0 {
		t.Errorf("expected no stored messages, got %d", len(msgs))
	}
}

func TestAsk_SameSessionIsSerialized(t *testing.T) {
	const n = 5
	responses := make([]domain.Message, n)
	for i := range responses {
		responses[i] = answer("ok")
	}
	f := newFixture(t, nil, nil, 0, responses...)

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Ask(context.Background(), service.AskInput{Question: "q", SessionID: "shared"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Ask returned error: %v", err)
		}
	}

	msgs, _ := f.store.Messages(context.Background(), "shared", 0)
	if len(msgs) != 2*n {
		t.Fatalf("expected %d messages, got %d", 2*n, len(msgs))
	}
	for i, m := range msgs {
		want := domain.RoleUser
		if i%2 == 1 {
			want = domain.RoleAssistant
		}
		if m.Role != want {
			t.Fatalf("turns interleaved at %d: %+v", i, msgs)
		}
	}

	// Each run saw every earlier turn.
	for i, call := range f.model.Calls() {
		if len(call) != 2*i+1 {
			t.Errorf("call %d: expected %d messages, got %d", i, 2*i+1, len(call))
		}
	}
}

func TestAsk_RejectPolicy(t *testing.T) {
	locker := memory.NewLocalLocker(memory.PolicyReject)
	f := newFixture(t, nil, locker, 0, answer("ok"))

	release, err := locker.Lock(context.Background(), "busy")
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	defer release()

	_, err = f.svc.Ask(context.Background(), service.AskInput{Question: "q", SessionID: "busy"})
	if !errors.Is(err, memory.ErrSessionBusy) {
		t.Errorf("expected ErrSessionBusy, got %v", err)
	}

	if _, err := f.svc.Ask(context.Background(), service.AskInput{Question: "q", SessionID: "free"}); err != nil {
		t.Errorf("other sessions should proceed, got %v", err)
	}
}

func TestHistory_HidesToolTraffic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil, 0,
		toolCall("c1", "graph_schema", nil),
		answer("People have names."),
	)

	out, err := f.svc.Ask(ctx, service.AskInput{Question: "What is in the graph?"})
	if err != nil {
		t.Fatalf("Ask returned error: %v", err)
	}

	entries, err := f.svc.History(ctx, out.SessionID)
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", entries)
	}
	if entries[0].Role != "user" || entries[1].Content != "People have names." {
		t.Errorf("unexpected history %+v", entries)
	}
}

func TestDeleteSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil, 0, answer("ok"))

	out, err := f.svc.Ask(ctx, service.AskInput{Question: "q"})
	if err != nil {
		t.Fatalf("Ask returned error: %v", err)
	}

	existed, err := f.svc.DeleteSession(ctx, out.SessionID)
	if err != nil || !existed {
		t.Fatalf("expected delete to succeed, got %v %v", existed, err)
	}

	entries, err := f.svc.History(ctx, out.SessionID)
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty history, got %+v", entries)
	}

	sessions, err := f.svc.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions returned error: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("expected no sessions, got %+v", sessions)
	}

	existed, err = f.svc.DeleteSession(ctx, out.SessionID)
	if err != nil || existed {
		t.Errorf("second delete should report false, got %v %v", existed, err)
	}
}
