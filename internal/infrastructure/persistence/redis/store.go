package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chorenest/chorenest-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REDIS KEY-VALUE STORE
// Implements the engine's kv.Store contract on plain Redis keys. Dates are
// stored as RFC 3339 strings, everything structured as JSON.
// ══════════════════════════════════════════════════════════════════════════════

// Store is the Redis implementation of the engine's key-value contract.
type Store struct {
	client *Client
}

// NewStore creates a Store over an established client.
func NewStore(client *Client) *Store {
	return &Store{client: client}
}

// SaveInt stores an integer value.
func (s *Store) SaveInt(ctx context.Context, key string, value int) error {
	if key == "" {
		return ErrKeyEmpty
	}
	return s.wrapWrite(key, s.client.rdb.Set(ctx, s.client.namespaced(key), value, 0).Err())
}

// LoadInt loads an integer, returning defaultValue when the key is absent.
func (s *Store) LoadInt(ctx context.Context, key string, defaultValue int) (int, error) {
	if key == "" {
		return 0, ErrKeyEmpty
	}
	raw, err := s.client.rdb.Get(ctx, s.client.namespaced(key)).Result()
	if errors.Is(err, redis.Nil) {
		return defaultValue, nil
	}
	if err != nil {
		return 0, s.wrapRead(key, err)
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: key %s: %v", shared.ErrDecodeFailed, key, err)
	}
	return value, nil
}

// SaveBool stores a boolean value.
func (s *Store) SaveBool(ctx context.Context, key string, value bool) error {
	if key == "" {
		return ErrKeyEmpty
	}
	return s.wrapWrite(key, s.client.rdb.Set(ctx, s.client.namespaced(key), strconv.FormatBool(value), 0).Err())
}

// LoadBool loads a boolean, returning false when the key is absent.
func (s *Store) LoadBool(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrKeyEmpty
	}
	raw, err := s.client.rdb.Get(ctx, s.client.namespaced(key)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, s.wrapRead(key, err)
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: key %s: %v", shared.ErrDecodeFailed, key, err)
	}
	return value, nil
}

// SaveDate stores a timestamp as RFC 3339.
func (s *Store) SaveDate(ctx context.Context, key string, value time.Time) error {
	if key == "" {
		return ErrKeyEmpty
	}
	return s.wrapWrite(key, s.client.rdb.Set(ctx, s.client.namespaced(key), value.Format(time.RFC3339Nano), 0).Err())
}

// LoadDate loads a timestamp.
// Returns shared.ErrKeyNotFound when the key is absent.
func (s *Store) LoadDate(ctx context.Context, key string) (time.Time, error) {
	if key == "" {
		return time.Time{}, ErrKeyEmpty
	}
	raw, err := s.client.rdb.Get(ctx, s.client.namespaced(key)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, shared.ErrKeyNotFound
	}
	if err != nil {
		return time.Time{}, s.wrapRead(key, err)
	}
	value, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: key %s: %v", shared.ErrDecodeFailed, key, err)
	}
	return value, nil
}

// SaveJSON stores a JSON-encoded value.
func (s *Store) SaveJSON(ctx context.Context, key string, value interface{}) error {
	if key == "" {
		return ErrKeyEmpty
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: key %s: %v", ErrSerialization, key, err)
	}
	return s.wrapWrite(key, s.client.rdb.Set(ctx, s.client.namespaced(key), data, 0).Err())
}

// LoadJSON loads and decodes a JSON value into dest.
// Returns shared.ErrKeyNotFound when the key is absent.
func (s *Store) LoadJSON(ctx context.Context, key string, dest interface{}) error {
	if key == "" {
		return ErrKeyEmpty
	}
	data, err := s.client.rdb.Get(ctx, s.client.namespaced(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return shared.ErrKeyNotFound
	}
	if err != nil {
		return s.wrapRead(key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: key %s: %v", shared.ErrDecodeFailed, key, err)
	}
	return nil
}

// Remove deletes a key. Removing an absent key is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	if key == "" {
		return ErrKeyEmpty
	}
	return s.wrapWrite(key, s.client.rdb.Del(ctx, s.client.namespaced(key)).Err())
}

// Keys lists stored keys with the given prefix, namespace stripped.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	pattern := s.client.namespaced(prefix) + "*"
	var keys []string

	iter := s.client.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.client.config.KeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, shared.WrapError("storage", "Keys", shared.ErrStorageUnavailable, "redis scan failed", err)
	}
	return keys, nil
}

func (s *Store) wrapWrite(key string, err error) error {
	if err == nil {
		return nil
	}
	return shared.WrapError("storage", "Save", shared.ErrStorageUnavailable, "redis write failed: key "+key, err)
}

func (s *Store) wrapRead(key string, err error) error {
	return shared.WrapError("storage", "Load", shared.ErrStorageUnavailable, "redis read failed: key "+key, err)
}
