package redis

import (
	"context"
	"errors"
	"log/slog"

	"github.com/chorenest/chorenest-engine/internal/domain/shared"
	"github.com/chorenest/chorenest-engine/internal/domain/xp"
	"github.com/chorenest/chorenest-engine/pkg/circuitbreaker"
	"github.com/chorenest/chorenest-engine/pkg/retry"
)

// GuardedLeaderboard decorates a LeaderboardCache with the cache retry and
// breaker presets. While the circuit is open every call fails fast; callers
// already treat cache errors as a miss and fall back to the store of record.
type GuardedLeaderboard struct {
	inner   xp.LeaderboardCache
	retrier *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker
}

// NewGuardedLeaderboard wraps inner with the cache presets.
func NewGuardedLeaderboard(inner xp.LeaderboardCache, logger *slog.Logger) *GuardedLeaderboard {
	if logger == nil {
		logger = slog.Default()
	}
	return &GuardedLeaderboard{
		inner:   inner,
		retrier: retry.CacheRetrier(),
		breaker: circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
			logger.Warn("cache circuit state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		}),
	}
}

func (g *GuardedLeaderboard) do(ctx context.Context, op func(ctx context.Context) error) error {
	return g.retrier.Do(ctx, func(ctx context.Context) error {
		err := g.breaker.Execute(ctx, op)
		if err == nil {
			return nil
		}
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			return err
		}
		return retry.Retryable(err)
	})
}

func (g *GuardedLeaderboard) UpdateScore(ctx context.Context, userID shared.UserID, lifetimeEarned int) error {
	return g.do(ctx, func(ctx context.Context) error {
		return g.inner.UpdateScore(ctx, userID, lifetimeEarned)
	})
}

func (g *GuardedLeaderboard) Top(ctx context.Context, limit int) ([]xp.LeaderboardEntry, error) {
	var out []xp.LeaderboardEntry
	err := g.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.inner.Top(ctx, limit)
		return err
	})
	return out, err
}

func (g *GuardedLeaderboard) Rank(ctx context.Context, userID shared.UserID) (int, error) {
	var out int
	err := g.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.inner.Rank(ctx, userID)
		return err
	})
	return out, err
}

var _ xp.LeaderboardCache = (*GuardedLeaderboard)(nil)
