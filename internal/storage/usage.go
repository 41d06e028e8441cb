package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/khanglvm/graphrag-agent/internal/domain"
)

// RecordToolUsage appends a tool call to the audit trail.
func (s *SQLiteStorage) RecordToolUsage(ctx context.Context, usage domain.ToolUsage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return err
	}

	failed := 0
	if usage.Failed {
		failed = 1
	}
	at := usage.At
	if at.IsZero() {
		at = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_usage (tool_name, session_id, duration_ms, failed, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`,
		usage.Tool,
		nullString(usage.SessionID),
		usage.Duration.Milliseconds(),
		failed,
		formatTime(at),
	)
	if err != nil {
		return fmt.Errorf("failed to record tool usage: %w", err)
	}
	return nil
}

// ToolUsageStats aggregates tool calls since the given time.
func (s *SQLiteStorage) ToolUsageStats(ctx context.Context, since time.Time) ([]ToolUsageStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT tool_name, COUNT(*), SUM(failed), AVG(duration_ms)
		FROM tool_usage
		WHERE timestamp >= ?
		GROUP BY tool_name
		ORDER BY COUNT(*) DESC, tool_name ASC
	`, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query tool usage: %w", err)
	}
	defer rows.Close()

	stats := []ToolUsageStat{}
	for rows.Next() {
		var (
			st    ToolUsageStat
			avgMs float64
		)
		if err := rows.Scan(&st.Tool, &st.Calls, &st.Failures, &avgMs); err != nil {
			return nil, fmt.Errorf("failed to scan usage row: %w", err)
		}
		st.AvgDuration = time.Duration(avgMs * float64(time.Millisecond))
		stats = append(stats, st)
	}

	return stats, rows.Err()
}

// Cleanup removes audit records older than retention.
func (s *SQLiteStorage) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return 0, err
	}

	cutoff := formatTime(s.now().Add(-retention))
	res, err := s.db.ExecContext(ctx, "DELETE FROM tool_usage WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean tool usage: %w", err)
	}
	return res.RowsAffected()
}
