package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

// SaveDocuments inserts or replaces documents with their vectors.
func (s *SQLiteStorage) SaveDocuments(ctx context.Context, docs []StoredDocument) error {
	if len(docs) == 0 {
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

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO documents (id, text, metadata, vector, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := formatTime(s.now())
	for _, d := range docs {
		vec, err := vectorToJSON(d.Vector)
		if err != nil {
			return err
		}
		meta, err := json.Marshal(d.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %s: %w", d.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, d.ID, d.Text, string(meta), vec, d.Model, now); err != nil {
			return fmt.Errorf("failed to save document %s: %w", d.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit documents: %w", err)
	}
	return nil
}

// LoadDocuments returns every stored document in insertion order.
func (s *SQLiteStorage) LoadDocuments(ctx context.Context) ([]StoredDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, metadata, vector, model FROM documents ORDER BY rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	docs := []StoredDocument{}
	for rows.Next() {
		var (
			d         StoredDocument
			meta, vec string
		)
		if err := rows.Scan(&d.ID, &d.Text, &meta, &vec, &d.Model); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &d.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for %s: %w", d.ID, err)
		}
		if d.Vector, err = jsonToVector(vec); err != nil {
			return nil, fmt.Errorf("failed to decode vector for %s: %w", d.ID, err)
		}
		docs = append(docs, d)
	}

	return docs, rows.Err()
}

// CountDocuments returns the number of stored documents.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return 0, err
	}

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}
