// Package command contains write operations (CQRS - Commands). Every handler
// serializes per-entity through the key lock, persists the whole aggregate in
// one save, and publishes domain events only after the save succeeded.
// Publishing is post-commit: a failed or slow subscriber never rolls back a
// ledger write.
package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/chorenest/chorenest-engine/internal/domain/credibility"
	"github.com/chorenest/chorenest-engine/internal/domain/shared"
	"github.com/chorenest/chorenest-engine/internal/domain/xp"
	"github.com/chorenest/chorenest-engine/pkg/keylock"
)

// Deps bundles the collaborators every command handler shares.
type Deps struct {
	CredibilityRepo  credibility.Repository
	XPRepo           xp.Repository
	LeaderboardCache xp.LeaderboardCache // optional
	Locks            *keylock.KeyLock
	Publisher        shared.EventPublisher // optional
	Logger           *slog.Logger

	CredibilityRules credibility.Rules
	XPRules          xp.Rules

	// Now is the clock; tests override it.
	Now func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Deps) log() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// publish fans events out to the bus. Errors are logged and swallowed.
func (d *Deps) publish(events ...shared.Event) {
	if d.Publisher == nil {
		return
	}
	for _, e := range events {
		if err := d.Publisher.Publish(e); err != nil {
			d.log().Warn("event publish failed",
				"event_type", e.EventType(),
				"aggregate_id", e.AggregateID(),
				"error", err)
		}
	}
}

// updateLeaderboard refreshes the XP ranking cache best-effort.
func (d *Deps) updateLeaderboard(ctx context.Context, account *xp.Account) {
	if d.LeaderboardCache == nil {
		return
	}
	if err := d.LeaderboardCache.UpdateScore(ctx, account.UserID, account.LifetimeEarned); err != nil {
		d.log().Warn("leaderboard update failed", "user_id", account.UserID, "error", err)
	}
}

// loadOrCreateProfile fetches a child's profile, creating the default state
// on first access. Callers must hold the child's key lock.
func (d *Deps) loadOrCreateProfile(ctx context.Context, childID shared.ChildID) (*credibility.Profile, error) {
	profile, err := d.CredibilityRepo.Get(ctx, childID)
	if shared.IsNotFound(err) {
		return credibility.NewProfile(childID, d.CredibilityRules, d.now()), nil
	}
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// loadOrCreateAccount fetches a user's XP account, creating it lazily.
// Callers must hold the user's key lock.
func (d *Deps) loadOrCreateAccount(ctx context.Context, userID shared.UserID) (*xp.Account, error) {
	account, err := d.XPRepo.Get(ctx, userID)
	if shared.IsNotFound(err) {
		return xp.NewAccount(userID, d.now()), nil
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

// lockKey namespaces lock keys so a child and a user with the same raw ID
// never contend.
func childLockKey(id shared.ChildID) string { return "cred:" + id.String() }
func userLockKey(id shared.UserID) string   { return "xp:" + id.String() }
