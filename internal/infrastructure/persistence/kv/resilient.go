package kv

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/chorenest/chorenest-engine/internal/domain/shared"
	"github.com/chorenest/chorenest-engine/pkg/circuitbreaker"
	"github.com/chorenest/chorenest-engine/pkg/retry"
)

// ResilientStore decorates a Store with retries and a circuit breaker, for
// backends that can fail transiently (Postgres, Redis). The in-memory store
// does not need it.
//
// A missing key is a healthy answer, not a backend failure: it passes
// through without retrying and without counting against the breaker.
type ResilientStore struct {
	inner   Store
	retrier *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker
}

// NewResilientStore wraps inner with the store retry and breaker presets.
func NewResilientStore(inner Store, logger *slog.Logger) *ResilientStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResilientStore{
		inner:   inner,
		retrier: retry.StoreRetrier(),
		breaker: circuitbreaker.StoreBreaker(func(name string, from, to circuitbreaker.State) {
			logger.Warn("store circuit state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		}),
	}
}

// do runs op through the retrier and breaker.
func (s *ResilientStore) do(ctx context.Context, op func(ctx context.Context) error) error {
	return s.retrier.Do(ctx, func(ctx context.Context) error {
		var opErr error
		err := s.breaker.Execute(ctx, func(ctx context.Context) error {
			opErr = op(ctx)
			if errors.Is(opErr, shared.ErrNotFound) {
				return nil
			}
			return opErr
		})
		if err == nil {
			// opErr is nil or a not-found sentinel; neither is retried.
			return opErr
		}
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			return err
		}
		return retry.Retryable(err)
	})
}

func (s *ResilientStore) SaveInt(ctx context.Context, key string, value int) error {
	return s.do(ctx, func(ctx context.Context) error {
		return s.inner.SaveInt(ctx, key, value)
	})
}

func (s *ResilientStore) LoadInt(ctx context.Context, key string, defaultValue int) (int, error) {
	var out int
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.inner.LoadInt(ctx, key, defaultValue)
		return err
	})
	return out, err
}

func (s *ResilientStore) SaveBool(ctx context.Context, key string, value bool) error {
	return s.do(ctx, func(ctx context.Context) error {
		return s.inner.SaveBool(ctx, key, value)
	})
}

func (s *ResilientStore) LoadBool(ctx context.Context, key string) (bool, error) {
	var out bool
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.inner.LoadBool(ctx, key)
		return err
	})
	return out, err
}

func (s *ResilientStore) SaveDate(ctx context.Context, key string, value time.Time) error {
	return s.do(ctx, func(ctx context.Context) error {
		return s.inner.SaveDate(ctx, key, value)
	})
}

func (s *ResilientStore) LoadDate(ctx context.Context, key string) (time.Time, error) {
	var out time.Time
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.inner.LoadDate(ctx, key)
		return err
	})
	return out, err
}

func (s *ResilientStore) SaveJSON(ctx context.Context, key string, value interface{}) error {
	return s.do(ctx, func(ctx context.Context) error {
		return s.inner.SaveJSON(ctx, key, value)
	})
}

func (s *ResilientStore) LoadJSON(ctx context.Context, key string, dest interface{}) error {
	return s.do(ctx, func(ctx context.Context) error {
		return s.inner.LoadJSON(ctx, key, dest)
	})
}

func (s *ResilientStore) Remove(ctx context.Context, key string) error {
	return s.do(ctx, func(ctx context.Context) error {
		return s.inner.Remove(ctx, key)
	})
}

func (s *ResilientStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.inner.Keys(ctx, prefix)
		return err
	})
	return out, err
}

// BreakerState exposes the current circuit state for health reporting.
func (s *ResilientStore) BreakerState() circuitbreaker.State {
	return s.breaker.State()
}

var _ Store = (*ResilientStore)(nil)
