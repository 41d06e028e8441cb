/*
Package storage implements the durable conversation log on SQLite.

The database lives at ~/.graphrag-agent/history.db by default and uses
modernc.org/sqlite (a pure Go, CGo-free implementation). It holds three
kinds of data:

  - sessions and their append-only message logs
  - an audit trail of tool calls
  - documents and embedding vectors for the local vector backend

Sessions own their messages: deleting a session removes its log in the same
transaction, and the foreign key cascades as a second line.
*/
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/khanglvm/graphrag-agent/internal/domain"
)

// timeLayout is fixed width so timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var _ domain.ConversationStore = (*SQLiteStorage)(nil)

// SQLiteStorage implements domain.ConversationStore on SQLite.
type SQLiteStorage struct {
	db       *sql.DB
	dbPath   string
	mu       sync.Mutex
	initOnce sync.Once
	now      func() time.Time
}

// DefaultPath returns ~/.graphrag-agent/history.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".graphrag-agent", "history.db"), nil
}

// NewStorage creates a storage instance for dbPath. Call Init before use.
func NewStorage(dbPath string) *SQLiteStorage {
	return &SQLiteStorage{
		dbPath: dbPath,
		now:    time.Now,
	}
}

// Open creates and initializes a storage instance.
func Open(dbPath string) (*SQLiteStorage, error) {
	s := NewStorage(dbPath)
	if err := s.Init(); err != nil {
		return nil, err
	}
	return s, nil
}

// Init opens the database and runs migrations. It is safe to call twice.
func (s *SQLiteStorage) Init() error {
	if s.dbPath == "" {
		return errors.New("database path is empty")
	}

	var initErr error
	s.initOnce.Do(func() {
		if err := os.MkdirAll(filepath.Dir(s.dbPath), 0755); err != nil {
			initErr = fmt.Errorf("failed to create db directory: %w", err)
			return
		}

		db, err := sql.Open("sqlite", dsn(s.dbPath))
		if err != nil {
			initErr = fmt.Errorf("failed to open database: %w", err)
			return
		}
		// One writer keeps the per-connection pragmas and transactions simple.
		db.SetMaxOpenConns(1)

		if err := db.Ping(); err != nil {
			db.Close()
			initErr = fmt.Errorf("failed to ping database: %w", err)
			return
		}
		s.db = db

		if err := s.runMigrations(); err != nil {
			initErr = fmt.Errorf("failed to run migrations: %w", err)
			return
		}
	})
	if initErr == nil && s.db == nil {
		initErr = errors.New("database not initialized")
	}

	return initErr
}

func dsn(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.db = nil
	return nil
}

func (s *SQLiteStorage) ready() error {
	if s.db == nil {
		return errors.New("storage is closed or not initialized")
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}
