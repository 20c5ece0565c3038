// Package kv defines the key-value persistence contract the engine runs on,
// an in-memory implementation, and the repository adapters that map domain
// aggregates onto namespaced keys. Redis and Postgres backends implement the
// same Store interface in their own packages.
package kv

import (
	"context"
	"time"
)

// Store is the persistence contract supplied by a collaborator. Values are
// stored per key; structured values round-trip through JSON. Load operations
// for absent keys return shared.ErrKeyNotFound except LoadInt, which takes a
// default the way host apps read counters.
type Store interface {
	SaveInt(ctx context.Context, key string, value int) error
	LoadInt(ctx context.Context, key string, defaultValue int) (int, error)

	SaveBool(ctx context.Context, key string, value bool) error
	LoadBool(ctx context.Context, key string) (bool, error)

	SaveDate(ctx context.Context, key string, value time.Time) error
	LoadDate(ctx context.Context, key string) (time.Time, error)

	SaveJSON(ctx context.Context, key string, value interface{}) error
	LoadJSON(ctx context.Context, key string, dest interface{}) error

	Remove(ctx context.Context, key string) error

	// Keys lists stored keys with the given prefix. Used by sweep jobs to
	// enumerate entities; implementations may return keys in any order.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
