package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrSessionBusy is returned under PolicyReject when another run holds the
// session.
var ErrSessionBusy = errors.New("session is busy")

// Policy decides what happens to a run that finds its session locked.
type Policy string

const (
	// PolicyQueue waits for the session, in arrival order, until the
	// caller's context ends.
	PolicyQueue Policy = "queue"
	// PolicyReject fails fast with ErrSessionBusy.
	PolicyReject Policy = "reject"
)

// ParsePolicy accepts the config spelling of a policy. Empty means queue.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyQueue:
		return PolicyQueue, nil
	case PolicyReject:
		return PolicyReject, nil
	default:
		return "", fmt.Errorf("unknown session policy %q (use queue or reject)", s)
	}
}

// Locker grants at most one holder per session id.
type Locker interface {
	// Lock blocks or fails according to the locker's policy. The returned
	// release func is safe to call more than once.
	Lock(ctx context.Context, sessionID string) (release func(), err error)
}

type slot struct {
	ch   chan struct{}
	refs int
}

// LocalLocker serializes runs within one process.
type LocalLocker struct {
	mu     sync.Mutex
	slots  map[string]*slot
	policy Policy
}

var _ Locker = (*LocalLocker)(nil)

// NewLocalLocker creates an in-process locker.
func NewLocalLocker(policy Policy) *LocalLocker {
	if policy == "" {
		policy = PolicyQueue
	}
	return &LocalLocker{slots: make(map[string]*slot), policy: policy}
}

// Lock implements Locker.
func (l *LocalLocker) Lock(ctx context.Context, sessionID string) (func(), error) {
	s := l.acquireSlot(sessionID)

	if l.policy == PolicyReject {
		select {
		case s.ch <- struct{}{}:
		default:
			l.releaseSlot(sessionID)
			return nil, ErrSessionBusy
		}
	} else {
		select {
		case s.ch <- struct{}{}:
		case <-ctx.Done():
			l.releaseSlot(sessionID)
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.releaseSlot(sessionID)
		})
	}, nil
}

func (l *LocalLocker) acquireSlot(sessionID string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[sessionID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[sessionID] = s
	}
	s.refs++
	return s
}

func (l *LocalLocker) releaseSlot(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[sessionID]
	if !ok {
		return
	}
	s.refs--
	if s.refs == 0 {
		delete(l.slots, sessionID)
	}
}

// held returns the number of sessions with a holder or waiter.
func (l *LocalLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
