// Package localstore is the dashboard's on-disk local storage: the session
// token, the last encrypted API key, and the history of task submissions.
package localstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// Keys of the kv table.
const (
	KeyToken            = "atsg_jwt"
	KeyEncryptedAPIKey  = "encrypted_api_key"
	KeyAPIKeyProvider   = "encrypted_api_key_provider"
	defaultQueryTimeout = 5 * time.Second
)

// Submission is one successful initiate response kept for the run pane.
type Submission struct {
	ID        int64
	TaskID    int64
	Status    string
	Payload   string // raw JSON of the backend response
	CreatedAt time.Time
}

// StoredKey is the last API key sent to the backend, as sealed at the time,
// with the provider it was entered for. Provider is empty for keys saved
// before providers were recorded.
type StoredKey struct {
	Value    string
	Provider string
}

// Store defines local storage operations.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error

	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error

	EncryptedAPIKey(ctx context.Context) (StoredKey, bool, error)
	SetEncryptedAPIKey(ctx context.Context, key StoredKey) error

	RecordSubmission(ctx context.Context, sub Submission) (int64, error)
	ListSubmissions(ctx context.Context, taskID int64, limit int) ([]Submission, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed store at the given path.
// Creates parent directories if needed.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	return open(ctx, connStr)
}

var memoryStores atomic.Int64

// NewMemoryStore creates an in-memory SQLite store for testing.
// Each call gets its own database, shared between that store's connections.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	connStr := fmt.Sprintf("file:atsg-mem-%d?mode=memory&cache=shared", memoryStores.Add(1))
	return open(ctx, connStr)
}

func open(ctx context.Context, connStr string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(2)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
