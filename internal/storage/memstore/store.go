// Package memstore is an in-process ConversationStore. Data is lost on exit.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/khanglvm/graphrag-agent/internal/domain"
)

type session struct {
	record   domain.SessionRecord
	messages []domain.Message
	seq      int64
}

// Store keeps sessions in a map guarded by one lock.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session
	seq      int64
	now      func() time.Time
}

var _ domain.ConversationStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		sessions: make(map[string]*session),
		now:      time.Now,
	}
}

func (s *Store) UpsertSession(ctx context.Context, sessionID string) (domain.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.SessionRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[sessionID]; ok {
		return sess.record, nil
	}

	now := s.now()
	s.seq++
	sess := &session{
		record: domain.SessionRecord{ID: sessionID, CreatedAt: now, UpdatedAt: now},
		seq:    s.seq,
	}
	s.sessions[sessionID] = sess
	return sess.record, nil
}

func (s *Store) AppendMessages(ctx context.Context, sessionID string, msgs []domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if len(msgs) == 0 {
		return nil
	}

	now := s.now()
	for _, m := range msgs {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		m.ToolCalls = append([]domain.ToolCall(nil), m.ToolCalls...)
		sess.messages = append(sess.messages, m)
	}
	sess.record.UpdatedAt = now
	s.seq++
	sess.seq = s.seq
	return nil
}

func (s *Store) Messages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return []domain.Message{}, nil
	}

	msgs := sess.messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]domain.Message{}, msgs...), nil
}

func (s *Store) ListSessions(ctx context.Context) ([]domain.SessionSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	type entry struct {
		sum domain.SessionSummary
		seq int64
	}
	entries := make([]entry, 0, len(s.sessions))
	for _, sess := range s.sessions {
		entries = append(entries, entry{
			sum: domain.SessionSummary{
				ID:           sess.record.ID,
				CreatedAt:    sess.record.CreatedAt,
				UpdatedAt:    sess.record.UpdatedAt,
				MessageCount: len(sess.messages),
			},
			seq: sess.seq,
		})
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seq > entries[j].seq
	})

	out := make([]domain.SessionSummary, len(entries))
	for i, e := range entries {
		out[i] = e.sum
	}
	return out, nil
}

func (s *Store) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return false, nil
	}
	delete(s.sessions, sessionID)
	return true, nil
}

func (s *Store) Close() error { return nil }
