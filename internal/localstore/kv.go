package localstore

import (
	"context"
	"database/sql"
	"fmt"
)

// Get returns the value stored under key. The bool is false when the key is absent.
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts a value.
func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Token returns the persisted bearer token, or "" when logged out.
// It satisfies api.TokenSource.
func (s *SQLiteStore) Token(ctx context.Context) (string, error) {
	token, _, err := s.Get(ctx, KeyToken)
	return token, err
}

// SetToken persists the bearer token.
func (s *SQLiteStore) SetToken(ctx context.Context, token string) error {
	return s.Set(ctx, KeyToken, token)
}

// ClearToken forgets the bearer token.
func (s *SQLiteStore) ClearToken(ctx context.Context) error {
	return s.Delete(ctx, KeyToken)
}

// EncryptedAPIKey returns the last sealed API key and its provider tag.
func (s *SQLiteStore) EncryptedAPIKey(ctx context.Context) (StoredKey, bool, error) {
	value, ok, err := s.Get(ctx, KeyEncryptedAPIKey)
	if err != nil || !ok || value == "" {
		return StoredKey{}, false, err
	}
	provider, _, err := s.Get(ctx, KeyAPIKeyProvider)
	if err != nil {
		return StoredKey{}, false, err
	}
	return StoredKey{Value: value, Provider: provider}, true, nil
}

// SetEncryptedAPIKey stores the sealed key and its provider atomically.
func (s *SQLiteStore) SetEncryptedAPIKey(ctx context.Context, key StoredKey) error {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	upsert := `
		INSERT INTO kv (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := tx.ExecContext(ctx, upsert, KeyEncryptedAPIKey, key.Value); err != nil {
		return fmt.Errorf("failed to save encrypted API key: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upsert, KeyAPIKeyProvider, key.Provider); err != nil {
		return fmt.Errorf("failed to save API key provider: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
