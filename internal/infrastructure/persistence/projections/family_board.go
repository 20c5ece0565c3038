// Package projections implements denormalized read models kept current by
// domain events. The host app reads them for display; nothing in the write
// path depends on them, so a stale or rebuilding projection never blocks a
// ledger mutation.
package projections

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/chorenest/chorenest-engine/internal/domain/credibility"
	"github.com/chorenest/chorenest-engine/internal/domain/shared"
	"github.com/chorenest/chorenest-engine/internal/domain/xp"
	"github.com/chorenest/chorenest-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAMILY BOARD
// ══════════════════════════════════════════════════════════════════════════════

// FamilyBoardEntry is one child's row on the household board: everything a
// single screen needs without touching the store.
type FamilyBoardEntry struct {
	ChildID     string `json:"child_id"`
	DisplayName string `json:"display_name,omitempty"`

	Score      int     `json:"score"`
	Tier       string  `json:"tier"`
	Multiplier float64 `json:"multiplier"`

	XPBalance   int `json:"xp_balance"`
	LifetimeXP  int `json:"lifetime_xp"`
	DailyStreak int `json:"daily_streak"`

	// Rolling counters for the current household calendar day.
	TodayEarned          int `json:"today_earned"`
	TodayRedeemedMinutes int `json:"today_redeemed_minutes"`

	UpdatedAt time.Time `json:"updated_at"`
}

// FamilyBoardStats is the aggregate footer of the board.
type FamilyBoardStats struct {
	Children     int       `json:"children"`
	AverageScore float64   `json:"average_score"`
	TodayEarned  int       `json:"today_earned"`
	Version      int64     `json:"version"`
	LastUpdated  time.Time `json:"last_updated"`
}

// FamilyBoardConfig configures a FamilyBoard.
type FamilyBoardConfig struct {
	Logger *slog.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// FamilyBoard is an in-memory read model of every child's standing, updated
// from domain events. Day-scoped counters reset lazily when the first event
// of a new household day arrives.
type FamilyBoard struct {
	mu      sync.RWMutex
	entries map[string]*FamilyBoardEntry
	day     string
	version int64

	logger *slog.Logger
	now    func() time.Time
}

// NewFamilyBoard creates an empty board.
func NewFamilyBoard(config FamilyBoardConfig) *FamilyBoard {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := config.Now
	if now == nil {
		now = timeutil.Now
	}
	return &FamilyBoard{
		entries: make(map[string]*FamilyBoardEntry),
		day:     timeutil.FormatDateStr(now()),
		logger:  logger.With("component", "family_board"),
		now:     now,
	}
}

// Register subscribes the board to every event on the bus.
func (b *FamilyBoard) Register(bus shared.EventSubscriber) {
	bus.SubscribeAll(b.Apply)
}

// Apply folds one domain event into the board. Unknown event types are
// ignored so new events never break the projection.
func (b *FamilyBoard) Apply(event shared.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollDayLocked()

	payload := event.Payload()
	entry := b.entryLocked(event.AggregateID())

	switch event.EventType() {
	case shared.EventChildEnrolled:
		entry.DisplayName, _ = payload["display_name"].(string)
		entry.Score = asInt(payload["initial_score"])
		entry.XPBalance = asInt(payload["welcome_xp"])
		entry.LifetimeXP = entry.XPBalance

	case shared.EventCredibilityDownvoted,
		shared.EventCredibilityDownvoteUndo,
		shared.EventCredibilityApproved,
		shared.EventCredibilityStreakBonus,
		shared.EventCredibilityDecayed:
		entry.Score = asInt(payload["new_score"])

	case shared.EventDailyStreakAdvanced:
		entry.DailyStreak = asInt(payload["streak"])

	case shared.EventDailyStreakBroken:
		entry.DailyStreak = 0

	case shared.EventXPAwarded:
		credited := asInt(payload["credited"])
		entry.XPBalance = asInt(payload["new_balance"])
		entry.LifetimeXP += credited
		entry.TodayEarned += credited

	case shared.EventXPGranted:
		amount := asInt(payload["amount"])
		entry.XPBalance = asInt(payload["new_balance"])
		entry.LifetimeXP += amount
		entry.TodayEarned += amount

	case shared.EventXPRedeemed:
		entry.XPBalance = asInt(payload["new_balance"])
		entry.TodayRedeemedMinutes += asInt(payload["minutes_granted"])

	default:
		return nil
	}

	tier := credibility.TierFor(entry.Score)
	entry.Tier = tier.Name
	entry.Multiplier = tier.Multiplier
	entry.UpdatedAt = b.now()
	b.version++
	return nil
}

// Rebuild replaces the board's contents from the stores of record. Used at
// startup and after the projection and the ledgers drift apart.
func (b *FamilyBoard) Rebuild(ctx context.Context, credRepo credibility.Repository, xpRepo xp.Repository) error {
	childIDs, err := credRepo.ListChildIDs(ctx)
	if err != nil {
		return fmt.Errorf("rebuild family board: list children: %w", err)
	}

	entries := make(map[string]*FamilyBoardEntry, len(childIDs))
	now := b.now()
	for _, childID := range childIDs {
		profile, err := credRepo.Get(ctx, childID)
		if err != nil {
			return fmt.Errorf("rebuild family board: profile %s: %w", childID, err)
		}

		tier := credibility.TierFor(profile.Score)
		entry := &FamilyBoardEntry{
			ChildID:     string(childID),
			Score:       profile.Score,
			Tier:        tier.Name,
			Multiplier:  tier.Multiplier,
			DailyStreak: profile.DailyStreak,
			UpdatedAt:   now,
		}

		account, err := xpRepo.Get(ctx, shared.UserID(childID))
		if err == nil {
			entry.XPBalance = account.CurrentXP
			entry.LifetimeXP = account.LifetimeEarned
		} else if !errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("rebuild family board: account %s: %w", childID, err)
		}

		entries[string(childID)] = entry
	}

	b.mu.Lock()
	b.entries = entries
	b.day = timeutil.FormatDateStr(now)
	b.version++
	b.mu.Unlock()

	b.logger.Info("family board rebuilt", "children", len(entries))
	return nil
}

// Snapshot returns the board rows sorted by lifetime XP, highest first.
// Ties break by child ID for a stable order.
func (b *FamilyBoard) Snapshot() []FamilyBoardEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]FamilyBoardEntry, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LifetimeXP != out[j].LifetimeXP {
			return out[i].LifetimeXP > out[j].LifetimeXP
		}
		return out[i].ChildID < out[j].ChildID
	})
	return out
}

// Entry returns one child's row.
func (b *FamilyBoard) Entry(childID string) (FamilyBoardEntry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.entries[childID]
	if !ok {
		return FamilyBoardEntry{}, false
	}
	return *e, true
}

// Stats returns the aggregate footer.
func (b *FamilyBoard) Stats() FamilyBoardStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stats := FamilyBoardStats{
		Children: len(b.entries),
		Version:  b.version,
	}
	var scoreSum, earned int
	for _, e := range b.entries {
		scoreSum += e.Score
		earned += e.TodayEarned
		if e.UpdatedAt.After(stats.LastUpdated) {
			stats.LastUpdated = e.UpdatedAt
		}
	}
	if stats.Children > 0 {
		stats.AverageScore = float64(scoreSum) / float64(stats.Children)
	}
	stats.TodayEarned = earned
	return stats
}

// entryLocked returns the child's row, creating a zero row for a child the
// board has not seen. Caller holds the write lock.
func (b *FamilyBoard) entryLocked(childID string) *FamilyBoardEntry {
	if e, ok := b.entries[childID]; ok {
		return e
	}
	e := &FamilyBoardEntry{ChildID: childID}
	b.entries[childID] = e
	return e
}

// rollDayLocked resets the day-scoped counters when the household calendar
// day has changed since the last event. Caller holds the write lock.
func (b *FamilyBoard) rollDayLocked() {
	today := timeutil.FormatDateStr(b.now())
	if today == b.day {
		return
	}
	for _, e := range b.entries {
		e.TodayEarned = 0
		e.TodayRedeemedMinutes = 0
	}
	b.day = today
}

// asInt coerces a payload value to int. Events that crossed the Redis bus
// arrive with float64 numbers after JSON decoding.
func asInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
