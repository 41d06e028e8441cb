// Package firestore stores conversations in Cloud Firestore.
//
// Layout:
//
//	sessions/{sessionID}                  created_at, updated_at, message_count
//	sessions/{sessionID}/messages/{seq}   seq, role, content, tool_calls, ...
//
// Appends and deletes run in transactions so a session and its messages
// always change together.
package firestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/khanglvm/graphrag-agent/internal/domain"
)

// Store is a Firestore-backed ConversationStore.
type Store struct {
	client *firestore.Client
	now    func() time.Time
}

var _ domain.ConversationStore = (*Store)(nil)

// NewStore creates a Firestore store for projectID.
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client, now: time.Now}, nil
}

func (s *Store) sessionsCol() *firestore.CollectionRef {
	return s.client.Collection("sessions")
}

func (s *Store) sessionRef(id string) *firestore.DocumentRef {
	return s.sessionsCol().Doc(id)
}

func (s *Store) messagesCol(sessionID string) *firestore.CollectionRef {
	return s.sessionRef(sessionID).Collection("messages")
}

type sessionDoc struct {
	CreatedAt    time.Time `firestore:"created_at"`
	UpdatedAt    time.Time `firestore:"updated_at"`
	MessageCount int64     `firestore:"message_count"`
}

type messageDoc struct {
	Seq        int64     `firestore:"seq"`
	Role       string    `firestore:"role"`
	Content    string    `firestore:"content"`
	ToolCalls  string    `firestore:"tool_calls,omitempty"`
	ToolCallID string    `firestore:"tool_call_id,omitempty"`
	ToolName   string    `firestore:"tool_name,omitempty"`
	CreatedAt  time.Time `firestore:"created_at"`
}

// messageID pads seq so document ids sort in append order.
func messageID(seq int64) string {
	return fmt.Sprintf("%012d", seq)
}

func toMessageDoc(seq int64, m domain.Message) (messageDoc, error) {
	doc := messageDoc{
		Seq:        seq,
		Role:       string(m.Role),
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
		ToolName:   m.ToolName,
		CreatedAt:  m.CreatedAt,
	}
	if len(m.ToolCalls) > 0 {
		data, err := json.Marshal(m.ToolCalls)
		if err != nil {
			return messageDoc{}, fmt.Errorf("encode tool calls: %w", err)
		}
		doc.ToolCalls = string(data)
	}
	return doc, nil
}

func fromMessageDoc(doc messageDoc) (domain.Message, error) {
	m := domain.Message{
		Role:       domain.Role(doc.Role),
		Content:    doc.Content,
		ToolCallID: doc.ToolCallID,
		ToolName:   doc.ToolName,
		CreatedAt:  doc.CreatedAt,
	}
	if doc.ToolCalls != "" {
		if err := json.Unmarshal([]byte(doc.ToolCalls), &m.ToolCalls); err != nil {
			return domain.Message{}, fmt.Errorf("decode tool calls: %w", err)
		}
	}
	return m, nil
}

func (s *Store) UpsertSession(ctx context.Context, sessionID string) (domain.SessionRecord, error) {
	ref := s.sessionRef(sessionID)
	var doc sessionDoc

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err == nil {
			return snap.DataTo(&doc)
		}
		if status.Code(err) != codes.NotFound {
			return err
		}

		now := s.now().UTC()
		doc = sessionDoc{CreatedAt: now, UpdatedAt: now}
		return tx.Create(ref, doc)
	})
	if err != nil {
		return domain.SessionRecord{}, fmt.Errorf("firestore UpsertSession: %w", err)
	}

	return domain.SessionRecord{ID: sessionID, CreatedAt: doc.CreatedAt, UpdatedAt: doc.UpdatedAt}, nil
}

func (s *Store) AppendMessages(ctx context.Context, sessionID string, msgs []domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ref := s.sessionRef(sessionID)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return domain.ErrSessionNotFound
		}
		if err != nil {
			return err
		}

		var sess sessionDoc
		if err := snap.DataTo(&sess); err != nil {
			return fmt.Errorf("decode sessionDoc: %w", err)
		}

		now := s.now().UTC()
		seq := sess.MessageCount
		for _, m := range msgs {
			seq++
			if m.CreatedAt.IsZero() {
				m.CreatedAt = now
			}
			doc, err := toMessageDoc(seq, m)
			if err != nil {
				return err
			}
			if err := tx.Create(s.messagesCol(sessionID).Doc(messageID(seq)), doc); err != nil {
				return err
			}
		}

		return tx.Update(ref, []firestore.Update{
			{Path: "message_count", Value: seq},
			{Path: "updated_at", Value: now},
		})
	})
	if errors.Is(err, domain.ErrSessionNotFound) {
		return domain.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("firestore AppendMessages: %w", err)
	}
	return nil
}

func (s *Store) Messages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	q := s.messagesCol(sessionID).OrderBy("seq", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var newestFirst []domain.Message
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore Messages: %w", err)
		}

		var doc messageDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode messageDoc: %w", err)
		}
		m, err := fromMessageDoc(doc)
		if err != nil {
			return nil, err
		}
		newestFirst = append(newestFirst, m)
	}

	out := make([]domain.Message, len(newestFirst))
	for i, m := range newestFirst {
		out[len(newestFirst)-1-i] = m
	}
	return out, nil
}

func (s *Store) ListSessions(ctx context.Context) ([]domain.SessionSummary, error) {
	iter := s.sessionsCol().OrderBy("updated_at", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	out := []domain.SessionSummary{}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore ListSessions: %w", err)
		}

		var doc sessionDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode sessionDoc: %w", err)
		}
		out = append(out, domain.SessionSummary{
			ID:           snap.Ref.ID,
			CreatedAt:    doc.CreatedAt,
			UpdatedAt:    doc.UpdatedAt,
			MessageCount: int(doc.MessageCount),
		})
	}
	return out, nil
}

func (s *Store) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	ref := s.sessionRef(sessionID)
	existed := false

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existed = false

		if _, err := tx.Get(ref); err != nil {
			if status.Code(err) == codes.NotFound {
				return nil
			}
			return err
		}
		existed = true

		snaps, err := tx.Documents(s.messagesCol(sessionID)).GetAll()
		if err != nil {
			return err
		}
		for _, snap := range snaps {
			if err := tx.Delete(snap.Ref); err != nil {
				return err
			}
		}
		return tx.Delete(ref)
	})
	if err != nil {
		return false, fmt.Errorf("firestore DeleteSession: %w", err)
	}
	return existed, nil
}

// Close releases the Firestore client.
func (s *Store) Close() error {
	return s.client.Close()
}
