/*
Package agent runs the bounded tool-calling loop.

A run alternates between a model turn and a dispatch of the tool calls the
model asked for:

	start -> modelTurn -> dispatch -> modelTurn -> ... -> done
	                   \-> done (no tool calls)
	                   \-> ceiling (iteration limit reached)

Each model call increments the iteration count. Once the count reaches the
configured maximum the run stops after appending that response, whatever it
contains.
*/
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/khanglvm/graphrag-agent/internal/domain"
	"github.com/khanglvm/graphrag-agent/internal/observability"
)

// DefaultMaxIterations is used when Run is given a non-positive limit.
const DefaultMaxIterations = 10

// TerminationReason tells the caller why a run stopped.
type TerminationReason string

const (
	// NoToolCall means the model produced a final answer.
	NoToolCall TerminationReason = "no_tool_call"
	// IterationCeiling means the run was cut off and the answer may be partial.
	IterationCeiling TerminationReason = "iteration_ceiling"
)

type phase int

const (
	phaseModelTurn phase = iota
	phaseDispatch
	phaseDone
	phaseCeiling
)

func (p phase) String() string {
	switch p {
	case phaseModelTurn:
		return "model_turn"
	case phaseDispatch:
		return "dispatch"
	case phaseDone:
		return "done"
	case phaseCeiling:
		return "ceiling"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Dispatcher executes a tool call and returns its result text.
// It must not fail; problems are reported in the returned text.
type Dispatcher interface {
	Invoke(ctx context.Context, call domain.ToolCall) string
}

// State is the working copy threaded through one run.
type State struct {
	Messages       []domain.Message
	IterationCount int
	SessionID      string
}

// Result is the outcome of a run.
type Result struct {
	// Messages is the full sequence: the initial messages followed by
	// everything produced during the run.
	Messages []domain.Message

	// Produced is the suffix of Messages generated by this run.
	Produced []domain.Message

	IterationCount int
	Reason         TerminationReason
}

// Final returns the last message of the run.
func (r *Result) Final() domain.Message {
	if len(r.Messages) == 0 {
		return domain.Message{}
	}
	return r.Messages[len(r.Messages)-1]
}

// ToolCalls returns every tool call requested during the run, in issue order.
func (r *Result) ToolCalls() []domain.ToolCall {
	var calls []domain.ToolCall
	for _, m := range r.Produced {
		calls = append(calls, m.ToolCalls...)
	}
	return calls
}

// Loop drives a model and a tool dispatcher.
type Loop struct {
	model domain.Model
	tools Dispatcher
	now   func() time.Time
}

// NewLoop creates a Loop.
func NewLoop(model domain.Model, tools Dispatcher) *Loop {
	return &Loop{
		model: model,
		tools: tools,
		now:   time.Now,
	}
}

// Run executes the loop starting from initial.
//
// Model errors and cancellation end the run with an error; tool problems
// never do. The initial slice is not modified.
func (l *Loop) Run(ctx context.Context, initial []domain.Message, sessionID string, maxIterations int) (*Result, error) {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	if len(initial) == 0 {
		return nil, errors.New("run requires at least one message")
	}

	log := observability.LoggerFromContext(ctx)

	state := State{
		Messages:  append(make([]domain.Message, 0, len(initial)+4), initial...),
		SessionID: sessionID,
	}
	start := len(initial)

	current := phaseModelTurn
	for current != phaseDone && current != phaseCeiling {
		if err := ctx.Err(); err != nil {
			log.Warn("run cancelled", "phase", current.String(), "iteration", state.IterationCount)
			return nil, err
		}

		var err error
		switch current {
		case phaseModelTurn:
			current, err = l.modelTurn(ctx, &state, maxIterations)
		case phaseDispatch:
			current, err = l.dispatch(ctx, &state)
		}
		if err != nil {
			return nil, err
		}
	}

	reason := NoToolCall
	if current == phaseCeiling {
		reason = IterationCeiling
	}
	log.Info("run finished",
		"reason", string(reason),
		"iterations", state.IterationCount,
		"messages", len(state.Messages)-start,
	)

	return &Result{
		Messages:       state.Messages,
		Produced:       state.Messages[start:],
		IterationCount: state.IterationCount,
		Reason:         reason,
	}, nil
}

func (l *Loop) modelTurn(ctx context.Context, state *State, maxIterations int) (phase, error) {
	log := observability.LoggerFromContext(ctx)

	started := l.now()
	resp, err := l.model.Complete(ctx, state.Messages)
	if err != nil {
		return phaseDone, fmt.Errorf("model call failed: %w", err)
	}
	state.IterationCount++

	resp = l.normalizeResponse(resp)
	state.Messages = append(state.Messages, resp)

	log.Debug("model turn",
		"iteration", state.IterationCount,
		"tool_calls", len(resp.ToolCalls),
		"elapsed_ms", l.now().Sub(started).Milliseconds(),
	)

	switch {
	case state.IterationCount >= maxIterations:
		if resp.HasToolCalls() {
			log.Warn("iteration ceiling reached with pending tool calls", "iteration", state.IterationCount)
		}
		return phaseCeiling, nil
	case resp.HasToolCalls():
		return phaseDispatch, nil
	default:
		return phaseDone, nil
	}
}

// dispatch resolves every call of the last assistant message in order.
func (l *Loop) dispatch(ctx context.Context, state *State) (phase, error) {
	pending := state.Messages[len(state.Messages)-1].ToolCalls

	results := make([]domain.Message, 0, len(pending))
	for _, call := range pending {
		if err := ctx.Err(); err != nil {
			return phaseDone, err
		}
		content := l.tools.Invoke(ctx, call)
		results = append(results, domain.ToolResultMessage(call, content, l.now()))
	}

	state.Messages = append(state.Messages, results...)
	return phaseModelTurn, nil
}

// normalizeResponse forces the assistant role, stamps the time and gives
// every tool call an id so results can be linked back to it.
func (l *Loop) normalizeResponse(resp domain.Message) domain.Message {
	resp.Role = domain.RoleAssistant
	if resp.CreatedAt.IsZero() {
		resp.CreatedAt = l.now()
	}
	if len(resp.ToolCalls) == 0 {
		return resp
	}

	calls := make([]domain.ToolCall, len(resp.ToolCalls))
	for i, c := range resp.ToolCalls {
		if c.ID == "" {
			c.ID = "call_" + uuid.NewString()
		}
		calls[i] = c
	}
	resp.ToolCalls = calls
	return resp
}
