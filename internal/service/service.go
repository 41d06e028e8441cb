// Package service composes the agent loop, session memory and retrieval
// tools into the question-answering operation and its administrative
// companions.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/khanglvm/graphrag-agent/internal/agent"
	"github.com/khanglvm/graphrag-agent/internal/domain"
	"github.com/khanglvm/graphrag-agent/internal/memory"
	"github.com/khanglvm/graphrag-agent/internal/observability"
	"github.com/khanglvm/graphrag-agent/internal/tools"
)

const (
	// DefaultRunTimeout bounds one Ask when no timeout is configured.
	DefaultRunTimeout = 2 * time.Minute

	// DefaultPersistTimeout bounds the save at the end of an Ask.
	DefaultPersistTimeout = 30 * time.Second
)

// ErrEmptyQuestion is returned by Ask for blank questions.
var ErrEmptyQuestion = errors.New("question is empty")

// Deps are the capabilities the service is built from.
type Deps struct {
	Model  domain.Model
	Tools  *tools.Registry
	Memory *memory.Memory
	// Locker defaults to an in-process queueing locker.
	Locker memory.Locker
	// Indexer and Exporter enable IndexGraph and index stats. Optional.
	Indexer  domain.DocumentIndexer
	Exporter EntityExporter
}

// Options tune a Service.
type Options struct {
	MaxIterations  int
	RunTimeout     time.Duration
	PersistTimeout time.Duration
	// HistoryLimit bounds the transcript returned by History.
	HistoryLimit int
}

// Service is the orchestration entry point.
type Service struct {
	loop     *agent.Loop
	registry *tools.Registry
	memory   *memory.Memory
	locker   memory.Locker
	indexer  domain.DocumentIndexer
	exporter EntityExporter

	maxIterations  int
	runTimeout     time.Duration
	persistTimeout time.Duration
	historyLimit   int
	now            func() time.Time
}

// New creates a Service. Models that need tool declarations are bound to
// the registry's tools here.
func New(deps Deps, opts Options) *Service {
	model := deps.Model
	if binder, ok := model.(domain.ToolBinder); ok {
		model = binder.BindTools(deps.Tools.Specs())
	}

	locker := deps.Locker
	if locker == nil {
		locker = memory.NewLocalLocker(memory.PolicyQueue)
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = agent.DefaultMaxIterations
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = DefaultRunTimeout
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = DefaultPersistTimeout
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = memory.DefaultHistoryLimit
	}

	return &Service{
		loop:           agent.NewLoop(model, deps.Tools),
		registry:       deps.Tools,
		memory:         deps.Memory,
		locker:         locker,
		indexer:        deps.Indexer,
		exporter:       deps.Exporter,
		maxIterations:  opts.MaxIterations,
		runTimeout:     opts.RunTimeout,
		persistTimeout: opts.PersistTimeout,
		historyLimit:   opts.HistoryLimit,
		now:            time.Now,
	}
}

// AskInput is one question, optionally continuing a session.
type AskInput struct {
	Question  string
	SessionID string
}

// Ask answers a question within a session.
//
// At most one Ask runs per session at a time; how a second caller is
// treated depends on the Locker. The turn is saved only after the run
// completes, in one append that is not interrupted by cancellation but is
// bounded by the persist timeout. If that save fails the answer is still
// returned with PersistError set.
func (s *Service) Ask(ctx context.Context, in AskInput) (*AnswerBundle, error) {
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	sessionID := in.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx = observability.WithRequestID(ctx, uuid.NewString())
	ctx = observability.WithSessionID(ctx, sessionID)
	log := observability.LoggerFromContext(ctx)

	release, err := s.locker.Lock(ctx, sessionID)
	if err != nil {
		log.Warn("failed to acquire session", "error", err)
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}
	defer release()

	history, err := s.memory.LoadOrCreate(ctx, sessionID)
	if err != nil {
		log.Error("failed to load session", "error", err)
		return nil, err
	}

	userMsg := domain.UserMessage(question, s.now())
	initial := append(history, userMsg)

	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	log.Info("running agent", "history", len(history))
	result, err := s.loop.Run(runCtx, initial, sessionID, s.maxIterations)
	if err != nil {
		log.Error("agent run failed", "error", err)
		return nil, fmt.Errorf("agent run failed: %w", err)
	}

	// A caller that has gone away gets nothing written.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bundle := formatBundle(sessionID, question, userMsg, result)

	turn := append([]domain.Message{userMsg}, result.Produced...)
	saveCtx, cancelSave := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
	defer cancelSave()
	if err := s.memory.AppendTurn(saveCtx, sessionID, turn); err != nil {
		log.Error("failed to save turn", "error", err, "messages", len(turn))
		bundle.PersistError = err.Error()
	}

	log.Info("ask completed",
		"reason", string(result.Reason),
		"iterations", result.IterationCount,
		"tool_calls", len(bundle.ToolCalls),
	)
	return bundle, nil
}

// ListSessions returns session summaries, most recently updated first.
func (s *Service) ListSessions(ctx context.Context) ([]domain.SessionSummary, error) {
	return s.memory.Sessions(ctx)
}

// History returns the questions and final answers of a session, oldest
// first. Tool traffic is kept in the store but left out here.
func (s *Service) History(ctx context.Context, sessionID string) ([]Entry, error) {
	msgs, err := s.memory.History(ctx, sessionID, 0)
	if err != nil {
		return nil, err
	}

	entries := transcript(msgs)
	if len(entries) > s.historyLimit {
		entries = entries[len(entries)-s.historyLimit:]
	}
	return entries, nil
}

// DeleteSession removes a session and its messages. It waits for, or is
// refused by, a run in progress on the same session. Deleting a missing
// session reports false without error.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	release, err := s.locker.Lock(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("session %s: %w", sessionID, err)
	}
	defer release()

	existed, err := s.memory.Delete(ctx, sessionID)
	if err != nil {
		return false, err
	}

	observability.LoggerFromContext(ctx).Info("session deleted", "session_id", sessionID, "existed", existed)
	return existed, nil
}

// Tools returns the names of the registered tools.
func (s *Service) Tools() []string {
	return s.registry.Names()
}
