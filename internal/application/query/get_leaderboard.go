package query

import (
	"context"
	"sort"

	"github.com/chorenest/chorenest-engine/internal/domain/shared"
	"github.com/chorenest/chorenest-engine/internal/domain/xp"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD QUERY
// Lifetime-earned ranking. Served from the cache when one is wired, with a
// repository scan as the fallback.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery selects the top of the XP ranking.
type GetLeaderboardQuery struct {
	Limit int
}

// LeaderboardHandler handles leaderboard reads.
type LeaderboardHandler struct {
	deps *Deps
}

// NewLeaderboardHandler creates a new LeaderboardHandler.
func NewLeaderboardHandler(deps *Deps) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps}
}

// Handle returns the top users by lifetime earned XP. A cache failure falls
// back to the repository scan instead of surfacing the error.
func (h *LeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) ([]xp.LeaderboardEntry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	if h.deps.LeaderboardCache != nil {
		entries, err := h.deps.LeaderboardCache.Top(ctx, limit)
		if err == nil && len(entries) > 0 {
			return entries, nil
		}
		if err != nil {
			h.deps.log().Warn("leaderboard cache read failed, scanning repository", "error", err)
		}
	}
	return h.scan(ctx, limit)
}

// GetRank returns the user's 1-based position, 0 when unranked.
func (h *LeaderboardHandler) GetRank(ctx context.Context, userID shared.UserID) (int, error) {
	if !userID.IsValid() {
		return 0, shared.ErrInvalidUserID
	}
	if h.deps.LeaderboardCache != nil {
		rank, err := h.deps.LeaderboardCache.Rank(ctx, userID)
		if err == nil {
			return rank, nil
		}
		h.deps.log().Warn("leaderboard cache rank failed, scanning repository", "error", err)
	}

	entries, err := h.scan(ctx, 0)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if e.UserID == userID {
			return e.Rank, nil
		}
	}
	return 0, nil
}

// scan rebuilds the ranking from stored accounts. limit 0 means all.
func (h *LeaderboardHandler) scan(ctx context.Context, limit int) ([]xp.LeaderboardEntry, error) {
	ids, err := h.deps.XPRepo.ListUserIDs(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]xp.LeaderboardEntry, 0, len(ids))
	for _, id := range ids {
		account, err := h.deps.XPRepo.Get(ctx, id)
		if shared.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, xp.LeaderboardEntry{
			UserID:         id,
			LifetimeEarned: account.LifetimeEarned,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].LifetimeEarned != entries[j].LifetimeEarned {
			return entries[i].LifetimeEarned > entries[j].LifetimeEarned
		}
		return entries[i].UserID < entries[j].UserID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
