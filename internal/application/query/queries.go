// Package query contains read operations (CQRS - Queries). Reads are pure
// over persisted state with one exception: reading a conversion rate past a
// lapsed redemption window closes the window, so those paths take the same
// key lock the commands use.
package query

import (
	"context"
	"log/slog"
	"time"

	"github.com/chorenest/chorenest-engine/internal/domain/credibility"
	"github.com/chorenest/chorenest-engine/internal/domain/shared"
	"github.com/chorenest/chorenest-engine/internal/domain/xp"
	"github.com/chorenest/chorenest-engine/pkg/keylock"
)

// Deps bundles the collaborators the query handlers share.
type Deps struct {
	CredibilityRepo  credibility.Repository
	XPRepo           xp.Repository
	LeaderboardCache xp.LeaderboardCache // optional
	Locks            *keylock.KeyLock
	Publisher        shared.EventPublisher // optional
	Logger           *slog.Logger

	CredibilityRules credibility.Rules
	XPRules          xp.Rules

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

func (d *Deps) publish(events ...shared.Event) {
	if d.Publisher == nil {
		return
	}
	for _, e := range events {
		if err := d.Publisher.Publish(e); err != nil {
			d.log().Warn("event publish failed", "event_type", e.EventType(), "error", err)
		}
	}
}

// loadProfile fetches a child's profile, substituting the default state when
// none is stored yet. Reads never create records.
func (d *Deps) loadProfile(ctx context.Context, childID shared.ChildID) (*credibility.Profile, bool, error) {
	profile, err := d.CredibilityRepo.Get(ctx, childID)
	if shared.IsNotFound(err) {
		return credibility.NewProfile(childID, d.CredibilityRules, d.now()), false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return profile, true, nil
}

func childLockKey(id shared.ChildID) string { return "cred:" + id.String() }
