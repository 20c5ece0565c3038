package xp

import (
	"context"

	"github.com/chorenest/chorenest-engine/internal/domain/shared"
)

// Repository persists XP accounts. The whole account is one record so that a
// balance change and its transaction always land together.
type Repository interface {
	// Get returns the user's account.
	// Returns shared.ErrNotFound when none exists yet.
	Get(ctx context.Context, userID shared.UserID) (*Account, error)

	// Save writes the full account, creating it if absent.
	Save(ctx context.Context, account *Account) error

	// ListUserIDs returns every user with a stored account, for the daily
	// digest and the leaderboard rebuild.
	ListUserIDs(ctx context.Context) ([]shared.UserID, error)

	// Delete removes a user's account. Explicit account/test reset only.
	Delete(ctx context.Context, userID shared.UserID) error
}

// LeaderboardCache ranks users by lifetime earned XP. Implementations are
// best-effort caches; a miss or failure never blocks a ledger write.
type LeaderboardCache interface {
	// UpdateScore records the user's lifetime earned XP.
	UpdateScore(ctx context.Context, userID shared.UserID, lifetimeEarned int) error

	// Top returns the highest-ranked users with their scores.
	Top(ctx context.Context, limit int) ([]LeaderboardEntry, error)

	// Rank returns the user's 1-based rank, or 0 when unranked.
	Rank(ctx context.Context, userID shared.UserID) (int, error)
}

// LeaderboardEntry is one row of the XP ranking.
type LeaderboardEntry struct {
	UserID         shared.UserID `json:"user_id"`
	LifetimeEarned int           `json:"lifetime_earned"`
	Rank           int           `json:"rank"`
}
