package projections

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chorenest/chorenest-engine/internal/domain/credibility"
	"github.com/chorenest/chorenest-engine/internal/domain/shared"
	"github.com/chorenest/chorenest-engine/internal/domain/xp"
	"github.com/chorenest/chorenest-engine/internal/infrastructure/persistence/kv"
)

func newTestBoard(clock *time.Time) *FamilyBoard {
	return NewFamilyBoard(FamilyBoardConfig{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:    func() time.Time { return *clock },
	})
}

func TestFamilyBoard_EnrollmentCreatesRow(t *testing.T) {
	clock := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	board := newTestBoard(&clock)

	require.NoError(t, board.Apply(shared.NewChildEnrolledEvent("child-1", "Alia", 100, 25)))

	entry, ok := board.Entry("child-1")
	require.True(t, ok)
	assert.Equal(t, "Alia", entry.DisplayName)
	assert.Equal(t, 100, entry.Score)
	assert.Equal(t, "Excellent", entry.Tier)
	assert.Equal(t, 25, entry.XPBalance)
	assert.Equal(t, 25, entry.LifetimeXP)
}

func TestFamilyBoard_ScoreEventsRetier(t *testing.T) {
	clock := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	board := newTestBoard(&clock)

	require.NoError(t, board.Apply(shared.NewChildEnrolledEvent("child-1", "Alia", 100, 0)))
	require.NoError(t, board.Apply(shared.NewCredibilityDownvotedEvent("child-1", "task-1", "guardian-1", -20, 80)))

	entry, _ := board.Entry("child-1")
	assert.Equal(t, 80, entry.Score)
	assert.Equal(t, "Good", entry.Tier)
	assert.Equal(t, 1.0, entry.Multiplier)

	require.NoError(t, board.Apply(shared.NewCredibilityDownvoteUndoneEvent("child-1", "task-1", 20, 100)))
	entry, _ = board.Entry("child-1")
	assert.Equal(t, "Excellent", entry.Tier)
}

func TestFamilyBoard_XPEventsAccumulate(t *testing.T) {
	clock := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	board := newTestBoard(&clock)

	require.NoError(t, board.Apply(shared.NewXPAwardedEvent("child-1", "task-1", 24, 30, 24, 85)))
	require.NoError(t, board.Apply(shared.NewXPAwardedEvent("child-1", "task-2", 10, 10, 34, 85)))
	require.NoError(t, board.Apply(shared.NewXPRedeemedEvent("child-1", 30, 30, 4)))

	entry, _ := board.Entry("child-1")
	assert.Equal(t, 4, entry.XPBalance)
	assert.Equal(t, 34, entry.LifetimeXP)
	assert.Equal(t, 34, entry.TodayEarned)
	assert.Equal(t, 30, entry.TodayRedeemedMinutes)
}

func TestFamilyBoard_DayRolloverResetsCounters(t *testing.T) {
	clock := time.Date(2026, 5, 1, 23, 0, 0, 0, time.UTC)
	board := newTestBoard(&clock)

	require.NoError(t, board.Apply(shared.NewXPAwardedEvent("child-1", "task-1", 24, 24, 24, 85)))

	clock = clock.Add(2 * time.Hour)
	require.NoError(t, board.Apply(shared.NewXPAwardedEvent("child-1", "task-2", 10, 10, 34, 85)))

	entry, _ := board.Entry("child-1")
	assert.Equal(t, 10, entry.TodayEarned, "yesterday's XP should not count toward today")
	assert.Equal(t, 34, entry.LifetimeXP)
}

func TestFamilyBoard_CoercesBusNumbers(t *testing.T) {
	// Events that crossed the Redis bus decode payload numbers as float64.
	assert.Equal(t, 42, asInt(float64(42)))
	assert.Equal(t, 42, asInt(int64(42)))
	assert.Equal(t, 42, asInt(42))
	assert.Equal(t, 0, asInt("42"))
	assert.Equal(t, 0, asInt(nil))
}

func TestFamilyBoard_SnapshotOrdersByLifetimeXP(t *testing.T) {
	clock := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	board := newTestBoard(&clock)

	require.NoError(t, board.Apply(shared.NewXPAwardedEvent("child-a", "t1", 10, 10, 10, 100)))
	require.NoError(t, board.Apply(shared.NewXPAwardedEvent("child-b", "t2", 50, 50, 50, 100)))
	require.NoError(t, board.Apply(shared.NewXPAwardedEvent("child-c", "t3", 10, 10, 10, 100)))

	snap := board.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "child-b", snap[0].ChildID)
	assert.Equal(t, "child-a", snap[1].ChildID)
	assert.Equal(t, "child-c", snap[2].ChildID)

	stats := board.Stats()
	assert.Equal(t, 3, stats.Children)
	assert.Equal(t, 70, stats.TodayEarned)
}

func TestFamilyBoard_RebuildFromStores(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	credRepo := kv.NewCredibilityRepository(store)
	xpRepo := kv.NewXPRepository(store)

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	profile := credibility.NewProfile("child-1", credibility.DefaultRules(), now)
	profile.Score = 72
	profile.DailyStreak = 3
	require.NoError(t, credRepo.Save(ctx, profile))

	account := xp.NewAccount("child-1", now)
	account.CurrentXP = 40
	account.LifetimeEarned = 200
	require.NoError(t, xpRepo.Save(ctx, account))

	clock := now
	board := newTestBoard(&clock)
	require.NoError(t, board.Rebuild(ctx, credRepo, xpRepo))

	entry, ok := board.Entry("child-1")
	require.True(t, ok)
	assert.Equal(t, 72, entry.Score)
	assert.Equal(t, "Fair", entry.Tier)
	assert.Equal(t, 3, entry.DailyStreak)
	assert.Equal(t, 40, entry.XPBalance)
	assert.Equal(t, 200, entry.LifetimeXP)
}
