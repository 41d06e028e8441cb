/*
Package audit records tool usage in the background.

Tool calls happen on the agent's hot path; the Tracker queues their audit
records and writes them to a Sink in batches from its own goroutine.
*/
package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/khanglvm/graphrag-agent/internal/domain"
	"github.com/khanglvm/graphrag-agent/internal/observability"
)

const (
	// eventQueueSize is the buffer size for the event queue.
	// If full, events are dropped.
	eventQueueSize = 1000

	// batchFlushSize is the number of events that triggers an immediate flush.
	batchFlushSize = 10

	// flushInterval is how often pending events are written.
	flushInterval = 50 * time.Millisecond

	// writeTimeout bounds one sink write.
	writeTimeout = 5 * time.Second
)

var (
	// ErrQueueFull is returned when a record was dropped.
	ErrQueueFull = errors.New("audit queue full")
	// ErrStopped is returned for records arriving after Stop.
	ErrStopped = errors.New("audit tracker stopped")
)

// Sink persists usage records.
type Sink interface {
	RecordToolUsage(ctx context.Context, usage domain.ToolUsage) error
}

// Tracker queues usage records and writes them to a Sink.
type Tracker struct {
	sink       Sink
	eventQueue chan domain.ToolUsage
	stopChan   chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup

	mu      sync.RWMutex
	enabled bool
}

// NewTracker starts a tracker writing to sink.
func NewTracker(sink Sink) *Tracker {
	t := &Tracker{
		sink:       sink,
		eventQueue: make(chan domain.ToolUsage, eventQueueSize),
		stopChan:   make(chan struct{}),
		enabled:    sink != nil,
	}

	t.wg.Add(1)
	go t.processEvents()

	return t
}

// RecordToolUsage queues usage without blocking.
func (t *Tracker) RecordToolUsage(ctx context.Context, usage domain.ToolUsage) error {
	if !t.IsEnabled() {
		return nil
	}

	select {
	case <-t.stopChan:
		return ErrStopped
	default:
	}

	select {
	case t.eventQueue <- usage:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop flushes queued records and ends the background goroutine. It is
// safe to call more than once.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopChan)
		t.wg.Wait()
	})
}

// Close implements io.Closer.
func (t *Tracker) Close() error {
	t.Stop()
	return nil
}

// Disable makes the tracker ignore new records.
func (t *Tracker) Disable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = false
}

// IsEnabled reports whether records are accepted.
func (t *Tracker) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// Pending returns the number of queued records.
func (t *Tracker) Pending() int {
	return len(t.eventQueue)
}

func (t *Tracker) processEvents() {
	defer t.wg.Done()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]domain.ToolUsage, 0, batchFlushSize)

	for {
		select {
		case event := <-t.eventQueue:
			batch = append(batch, event)
			if len(batch) >= batchFlushSize {
				t.flush(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				t.flush(batch)
				batch = batch[:0]
			}

		case <-t.stopChan:
			for {
				select {
				case event := <-t.eventQueue:
					batch = append(batch, event)
				default:
					t.flush(batch)
					return
				}
			}
		}
	}
}

func (t *Tracker) flush(events []domain.ToolUsage) {
	if len(events) == 0 {
		return
	}

	for _, event := range events {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := t.sink.RecordToolUsage(ctx, event)
		cancel()
		if err != nil {
			observability.Logger().Warn("failed to record tool usage", "tool", event.Tool, "error", err)
		}
	}
}
