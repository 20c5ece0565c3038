package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/chorenest/chorenest-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// POSTGRES KEY-VALUE STORE
// Implements the engine's kv.Store contract on the kv_entries table. Upserts
// go through INSERT ... ON CONFLICT so writes stay single-statement.
// ══════════════════════════════════════════════════════════════════════════════

// Store is the PostgreSQL implementation of the engine's key-value contract.
type Store struct {
	conn *Connection
}

// NewStore creates a Store over an established connection.
func NewStore(conn *Connection) *Store {
	return &Store{conn: conn}
}

const (
	upsertSQL = `
		INSERT INTO kv_entries (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	selectSQL = `SELECT value FROM kv_entries WHERE key = $1`
	deleteSQL = `DELETE FROM kv_entries WHERE key = $1`
	prefixSQL = `SELECT key FROM kv_entries WHERE key LIKE $1 || '%' ORDER BY key`
)

func (s *Store) save(ctx context.Context, key, value string) error {
	if key == "" {
		return shared.NewDomainError("storage", "Save", shared.ErrInvalidInput, "key cannot be empty")
	}
	if _, err := s.conn.Exec(ctx, upsertSQL, key, value); err != nil {
		return shared.WrapError("storage", "Save", shared.ErrStorageUnavailable, "postgres write failed: key "+key, err)
	}
	return nil
}

func (s *Store) load(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", shared.NewDomainError("storage", "Load", shared.ErrInvalidInput, "key cannot be empty")
	}
	var value string
	err := s.conn.QueryRow(ctx, selectSQL, key).Scan(&value)
	if IsNoRows(err) {
		return "", shared.ErrKeyNotFound
	}
	if err != nil {
		return "", shared.WrapError("storage", "Load", shared.ErrStorageUnavailable, "postgres read failed: key "+key, err)
	}
	return value, nil
}

// SaveInt stores an integer value.
func (s *Store) SaveInt(ctx context.Context, key string, value int) error {
	return s.save(ctx, key, strconv.Itoa(value))
}

// LoadInt loads an integer, returning defaultValue when the key is absent.
func (s *Store) LoadInt(ctx context.Context, key string, defaultValue int) (int, error) {
	raw, err := s.load(ctx, key)
	if shared.IsNotFound(err) {
		return defaultValue, nil
	}
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: key %s: %v", shared.ErrDecodeFailed, key, err)
	}
	return value, nil
}

// SaveBool stores a boolean value.
func (s *Store) SaveBool(ctx context.Context, key string, value bool) error {
	return s.save(ctx, key, strconv.FormatBool(value))
}

// LoadBool loads a boolean, returning false when the key is absent.
func (s *Store) LoadBool(ctx context.Context, key string) (bool, error) {
	raw, err := s.load(ctx, key)
	if shared.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: key %s: %v", shared.ErrDecodeFailed, key, err)
	}
	return value, nil
}

// SaveDate stores a timestamp as RFC 3339.
func (s *Store) SaveDate(ctx context.Context, key string, value time.Time) error {
	return s.save(ctx, key, value.Format(time.RFC3339Nano))
}

// LoadDate loads a timestamp.
// Returns shared.ErrKeyNotFound when the key is absent.
func (s *Store) LoadDate(ctx context.Context, key string) (time.Time, error) {
	raw, err := s.load(ctx, key)
	if err != nil {
		return time.Time{}, err
	}
	value, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: key %s: %v", shared.ErrDecodeFailed, key, err)
	}
	return value, nil
}

// SaveJSON stores a JSON-encoded value.
func (s *Store) SaveJSON(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: key %s: %v", shared.ErrDecodeFailed, key, err)
	}
	return s.save(ctx, key, string(data))
}

// LoadJSON loads and decodes a JSON value into dest.
// Returns shared.ErrKeyNotFound when the key is absent.
func (s *Store) LoadJSON(ctx context.Context, key string, dest interface{}) error {
	raw, err := s.load(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return fmt.Errorf("%w: key %s: %v", shared.ErrDecodeFailed, key, err)
	}
	return nil
}

// Remove deletes a key. Removing an absent key is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	if key == "" {
		return shared.NewDomainError("storage", "Remove", shared.ErrInvalidInput, "key cannot be empty")
	}
	if _, err := s.conn.Exec(ctx, deleteSQL, key); err != nil {
		return shared.WrapError("storage", "Remove", shared.ErrStorageUnavailable, "postgres delete failed: key "+key, err)
	}
	return nil
}

// Keys lists stored keys with the given prefix.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.conn.Query(ctx, prefixSQL, prefix)
	if err != nil {
		return nil, shared.WrapError("storage", "Keys", shared.ErrStorageUnavailable, "postgres prefix scan failed", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, shared.WrapError("storage", "Keys", shared.ErrStorageUnavailable, "postgres scan failed", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
