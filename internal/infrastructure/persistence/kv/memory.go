package kv

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/chorenest/chorenest-engine/internal/domain/shared"
)

// MemoryStore is an in-process Store for tests and single-device embedding.
// Values are kept JSON-encoded so the round-trip behaves exactly like the
// Redis and Postgres backends.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) set(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return shared.WrapError("storage", "Save", shared.ErrInvalidFormat, "encode value", err)
	}
	s.mu.Lock()
	s.data[key] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) get(key string, dest interface{}) error {
	s.mu.RLock()
	raw, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return shared.ErrKeyNotFound
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return shared.WrapError("storage", "Load", shared.ErrInvalidFormat, "decode value", err)
	}
	return nil
}

// SaveInt implements Store.
func (s *MemoryStore) SaveInt(_ context.Context, key string, value int) error {
	return s.set(key, value)
}

// LoadInt implements Store.
func (s *MemoryStore) LoadInt(_ context.Context, key string, defaultValue int) (int, error) {
	var v int
	err := s.get(key, &v)
	if shared.IsNotFound(err) {
		return defaultValue, nil
	}
	if err != nil {
		return 0, err
	}
	return v, nil
}

// SaveBool implements Store.
func (s *MemoryStore) SaveBool(_ context.Context, key string, value bool) error {
	return s.set(key, value)
}

// LoadBool implements Store.
func (s *MemoryStore) LoadBool(_ context.Context, key string) (bool, error) {
	var v bool
	err := s.get(key, &v)
	if shared.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v, nil
}

// SaveDate implements Store.
func (s *MemoryStore) SaveDate(_ context.Context, key string, value time.Time) error {
	return s.set(key, value)
}

// LoadDate implements Store.
func (s *MemoryStore) LoadDate(_ context.Context, key string) (time.Time, error) {
	var v time.Time
	if err := s.get(key, &v); err != nil {
		return time.Time{}, err
	}
	return v, nil
}

// SaveJSON implements Store.
func (s *MemoryStore) SaveJSON(_ context.Context, key string, value interface{}) error {
	return s.set(key, value)
}

// LoadJSON implements Store.
func (s *MemoryStore) LoadJSON(_ context.Context, key string, dest interface{}) error {
	return s.get(key, dest)
}

// Remove implements Store.
func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

// Keys implements Store.
func (s *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Len returns the number of stored keys. Test helper.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
