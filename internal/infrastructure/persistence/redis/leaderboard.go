package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/chorenest/chorenest-engine/internal/domain/shared"
	"github.com/chorenest/chorenest-engine/internal/domain/xp"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// Sorted set keyed by lifetime earned XP. O(log N) rank lookups; the member
// is the user ID, the score the lifetime total.
// ══════════════════════════════════════════════════════════════════════════════

// leaderboardKey is the sorted set holding the lifetime XP ranking.
const leaderboardKey = "leaderboard:lifetime_xp"

// Leaderboard is the Redis-backed xp.LeaderboardCache.
type Leaderboard struct {
	client *Client
}

// NewLeaderboard creates a Leaderboard over an established client.
func NewLeaderboard(client *Client) *Leaderboard {
	return &Leaderboard{client: client}
}

var _ xp.LeaderboardCache = (*Leaderboard)(nil)

// UpdateScore records the user's lifetime earned XP.
func (l *Leaderboard) UpdateScore(ctx context.Context, userID shared.UserID, lifetimeEarned int) error {
	err := l.client.rdb.ZAdd(ctx, l.client.namespaced(leaderboardKey), redis.Z{
		Score:  float64(lifetimeEarned),
		Member: userID.String(),
	}).Err()
	if err != nil {
		return shared.WrapError("leaderboard", "UpdateScore", shared.ErrStorageUnavailable, "redis zadd failed", err)
	}
	return nil
}

// Top returns the highest-ranked users with their lifetime totals.
func (l *Leaderboard) Top(ctx context.Context, limit int) ([]xp.LeaderboardEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := l.client.rdb.ZRevRangeWithScores(ctx, l.client.namespaced(leaderboardKey), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, shared.WrapError("leaderboard", "Top", shared.ErrStorageUnavailable, "redis zrevrange failed", err)
	}

	entries := make([]xp.LeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		member, _ := row.Member.(string)
		entries = append(entries, xp.LeaderboardEntry{
			UserID:         shared.UserID(member),
			LifetimeEarned: int(row.Score),
			Rank:           i + 1,
		})
	}
	return entries, nil
}

// Rank returns the user's 1-based rank, or 0 when unranked.
func (l *Leaderboard) Rank(ctx context.Context, userID shared.UserID) (int, error) {
	rank, err := l.client.rdb.ZRevRank(ctx, l.client.namespaced(leaderboardKey), userID.String()).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, shared.WrapError("leaderboard", "Rank", shared.ErrStorageUnavailable, "redis zrevrank failed", err)
	}
	return int(rank) + 1, nil
}

// Remove drops a user from the ranking. Used on account deletion.
func (l *Leaderboard) Remove(ctx context.Context, userID shared.UserID) error {
	err := l.client.rdb.ZRem(ctx, l.client.namespaced(leaderboardKey), userID.String()).Err()
	if err != nil {
		return shared.WrapError("leaderboard", "Remove", shared.ErrStorageUnavailable, "redis zrem failed", err)
	}
	return nil
}
