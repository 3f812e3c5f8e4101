package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"edugame/internal/database"
)

// SQLStore persists encrypted values in the kv_entries table
type SQLStore struct {
	db     database.DBTX
	cipher *Cipher
}

func NewSQLStore(db database.DBTX, cipher *Cipher) *SQLStore {
	return &SQLStore{db: db, cipher: cipher}
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, error) {
	var sealed string
	err := s.db.QueryRowContext(ctx, "SELECT entry_value FROM kv_entries WHERE entry_key = ?", key).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}

	return s.cipher.Open(key, sealed)
}

func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	sealed, err := s.cipher.Seal(key, value)
	if err != nil {
		return fmt.Errorf("failed to encrypt %s: %w", key, err)
	}

	query := s.db.GetDialect().UpsertKVQuery()
	if _, err := s.db.ExecContext(ctx, query, key, sealed, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv_entries WHERE entry_key = ?", key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
