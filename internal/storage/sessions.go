package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/khanglvm/graphrag-agent/internal/domain"
)

// UpsertSession creates the session if it does not exist and returns it.
func (s *SQLiteStorage) UpsertSession(ctx context.Context, sessionID string) (domain.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return domain.SessionRecord{}, err
	}

	now := formatTime(s.now())
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, created_at, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO NOTHING
	`, sessionID, now, now); err != nil {
		return domain.SessionRecord{}, fmt.Errorf("failed to upsert session: %w", err)
	}

	return s.getSession(ctx, sessionID)
}

func (s *SQLiteStorage) getSession(ctx context.Context, sessionID string) (domain.SessionRecord, error) {
	var created, updated string
	err := s.db.QueryRowContext(ctx, `
		SELECT created_at, updated_at FROM sessions WHERE session_id = ?
	`, sessionID).Scan(&created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SessionRecord{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.SessionRecord{}, fmt.Errorf("failed to load session: %w", err)
	}

	rec := domain.SessionRecord{ID: sessionID}
	if rec.CreatedAt, err = parseTime(created); err != nil {
		return domain.SessionRecord{}, fmt.Errorf("bad created_at %q: %w", created, err)
	}
	if rec.UpdatedAt, err = parseTime(updated); err != nil {
		return domain.SessionRecord{}, fmt.Errorf("bad updated_at %q: %w", updated, err)
	}
	return rec, nil
}

// AppendMessages writes msgs in one transaction.
func (s *SQLiteStorage) AppendMessages(ctx context.Context, sessionID string, msgs []domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM sessions WHERE session_id = ?", sessionID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (session_id, role, content, tool_calls, tool_call_id, tool_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range msgs {
		calls, err := encodeToolCalls(m.ToolCalls)
		if err != nil {
			return err
		}
		at := m.CreatedAt
		if at.IsZero() {
			at = s.now()
		}
		if _, err := stmt.ExecContext(ctx,
			sessionID,
			string(m.Role),
			m.Content,
			calls,
			nullString(m.ToolCallID),
			nullString(m.ToolName),
			formatTime(at),
		); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, "UPDATE sessions SET updated_at = ? WHERE session_id = ?",
		formatTime(s.now()), sessionID); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit messages: %w", err)
	}
	return nil
}

// Messages returns the most recent limit messages of a session, oldest first.
// An unknown session yields an empty slice.
func (s *SQLiteStorage) Messages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, tool_calls, tool_call_id, tool_name, created_at FROM (
			SELECT id, role, content, tool_calls, tool_call_id, tool_name, created_at
			FROM messages
			WHERE session_id = ?
			ORDER BY id DESC
			LIMIT ?
		) ORDER BY id ASC
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	msgs := []domain.Message{}
	for rows.Next() {
		var (
			role, content, created  string
			calls, callID, toolName sql.NullString
		)
		if err := rows.Scan(&role, &content, &calls, &callID, &toolName, &created); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		m := domain.Message{
			Role:       domain.Role(role),
			Content:    content,
			ToolCallID: callID.String,
			ToolName:   toolName.String,
		}
		if m.ToolCalls, err = decodeToolCalls(calls); err != nil {
			return nil, err
		}
		if m.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("bad message timestamp %q: %w", created, err)
		}
		msgs = append(msgs, m)
	}

	return msgs, rows.Err()
}

// ListSessions returns all sessions, most recently updated first.
func (s *SQLiteStorage) ListSessions(ctx context.Context) ([]domain.SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.session_id, s.created_at, s.updated_at, COUNT(m.id)
		FROM sessions s
		LEFT JOIN messages m ON m.session_id = s.session_id
		GROUP BY s.session_id
		ORDER BY s.updated_at DESC, s.rowid DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	summaries := []domain.SessionSummary{}
	for rows.Next() {
		var (
			sum              domain.SessionSummary
			created, updated string
		)
		if err := rows.Scan(&sum.ID, &created, &updated, &sum.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		if sum.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if sum.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, err
		}
		summaries = append(summaries, sum)
	}

	return summaries, rows.Err()
}

// DeleteSession removes a session and its messages in one transaction.
func (s *SQLiteStorage) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE session_id = ?", sessionID); err != nil {
		return false, fmt.Errorf("failed to delete messages: %w", err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE session_id = ?", sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit delete: %w", err)
	}
	return n > 0, nil
}

func encodeToolCalls(calls []domain.ToolCall) (sql.NullString, error) {
	if len(calls) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(calls)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode tool calls: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeToolCalls(raw sql.NullString) ([]domain.ToolCall, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var calls []domain.ToolCall
	if err := json.Unmarshal([]byte(raw.String), &calls); err != nil {
		return nil, fmt.Errorf("failed to decode tool calls: %w", err)
	}
	return calls, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
