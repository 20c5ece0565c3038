package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chorenest/chorenest-engine/internal/domain/credibility"
	"github.com/chorenest/chorenest-engine/internal/domain/shared"
	"github.com/chorenest/chorenest-engine/internal/domain/xp"
	"github.com/chorenest/chorenest-engine/internal/infrastructure/persistence/kv"
	"github.com/chorenest/chorenest-engine/pkg/keylock"
)

type testEnv struct {
	deps  *Deps
	store *kv.MemoryStore
	clock time.Time
}

func newTestEnv() *testEnv {
	store := kv.NewMemoryStore()
	credRules := credibility.DefaultRules()
	credRules.Location = time.UTC
	xpRules := xp.DefaultRules()
	xpRules.Location = time.UTC

	env := &testEnv{
		store: store,
		clock: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	env.deps = &Deps{
		CredibilityRepo:  kv.NewCredibilityRepository(store),
		XPRepo:           kv.NewXPRepository(store),
		Locks:            keylock.New(),
		CredibilityRules: credRules,
		XPRules:          xpRules,
		Now:              func() time.Time { return env.clock },
	}
	return env
}

func (e *testEnv) advance(d time.Duration) { e.clock = e.clock.Add(d) }
func (e *testEnv) advanceDays(n int)       { e.clock = e.clock.AddDate(0, 0, n) }

func TestDownvoteAndUndoFlow(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	down, err := NewProcessDownvoteHandler(env.deps).Handle(ctx, ProcessDownvoteCommand{
		ChildID:    "child-1",
		TaskID:     "task-1",
		ReviewerID: "mom",
		Notes:      "dishes still dirty",
	})
	assert.NoError(t, err)
	assert.Equal(t, -20, down.Penalty)
	assert.Equal(t, 80, down.NewScore)
	assert.Equal(t, "Good", down.Tier.Name)

	undo, err := NewUndoDownvoteHandler(env.deps).Handle(ctx, UndoDownvoteCommand{
		ChildID:    "child-1",
		TaskID:     "task-1",
		ReviewerID: "mom",
	})
	assert.NoError(t, err)
	assert.True(t, undo.Matched)
	assert.Equal(t, 100, undo.NewScore)
}

func TestUndoWithoutDownvoteIsNoOp(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	res, err := NewUndoDownvoteHandler(env.deps).Handle(ctx, UndoDownvoteCommand{
		ChildID: "child-1",
		TaskID:  "never-reviewed",
	})
	assert.NoError(t, err)
	assert.False(t, res.Matched)
}

func TestUndoMissDoesNotLoseRedemptionExpiry(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	// Seed a profile whose redemption window has already lapsed.
	profile := credibility.NewProfile("child-1", env.deps.CredibilityRules, env.clock.AddDate(0, 0, -10))
	expiry := env.clock.Add(-time.Hour)
	profile.HasRedemptionBonus = true
	profile.RedemptionBonusExpiry = &expiry
	assert.NoError(t, env.deps.CredibilityRepo.Save(ctx, profile))

	res, err := NewUndoDownvoteHandler(env.deps).Handle(ctx, UndoDownvoteCommand{
		ChildID: "child-1",
		TaskID:  "never-reviewed",
	})
	assert.NoError(t, err)
	assert.False(t, res.Matched)

	// The miss was not saved, so the stored profile still carries the
	// lapsed bonus; the next persisted operation expires it.
	stored, err := env.deps.CredibilityRepo.Get(ctx, "child-1")
	assert.NoError(t, err)
	assert.True(t, stored.HasRedemptionBonus)
	assert.NotNil(t, stored.RedemptionBonusExpiry)
}

func TestApproveTaskEarnsPricedXP(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	// Drop the child to 80 first so pricing is visible.
	_, err := NewProcessDownvoteHandler(env.deps).Handle(ctx, ProcessDownvoteCommand{
		ChildID: "child-1", TaskID: "task-0", ReviewerID: "dad",
	})
	assert.NoError(t, err)

	res, err := NewApproveTaskHandler(env.deps).Handle(ctx, ApproveTaskCommand{
		ChildID:     "child-1",
		TaskID:      "task-1",
		ReviewerID:  "dad",
		TimeMinutes: 30,
	})
	assert.NoError(t, err)
	// 80 + 5 approval bonus, then 30 minutes at 0.85 = ceil(25.5) = 26 XP.
	assert.Equal(t, 85, res.NewScore)
	assert.Equal(t, 26, res.XPEarned)
	assert.Equal(t, 26, res.NewBalance)
	assert.Equal(t, 1, res.ApprovalStreak)

	// The XP account is keyed by the same ID and holds the priced earn.
	account, err := env.deps.XPRepo.Get(ctx, "child-1")
	assert.NoError(t, err)
	assert.Equal(t, 26, account.CurrentXP)
	assert.NotNil(t, account.Transactions[0].CredibilityAtTime)
	assert.Equal(t, 85, *account.Transactions[0].CredibilityAtTime)
}

func TestTenApprovalsOneStreakBonus(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	h := NewApproveTaskHandler(env.deps)

	bonusCount := 0
	for i := 0; i < 10; i++ {
		res, err := h.Handle(ctx, ApproveTaskCommand{
			ChildID: "child-1", TaskID: shared.TaskID("task"), ReviewerID: "mom",
		})
		assert.NoError(t, err)
		if res.StreakBonusAwarded {
			bonusCount++
			assert.Equal(t, 10, res.ApprovalStreak)
		}
		env.advance(time.Hour)
	}
	assert.Equal(t, 1, bonusCount)
}

func TestDecayCommandOverStoredHistory(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	_, err := NewProcessDownvoteHandler(env.deps).Handle(ctx, ProcessDownvoteCommand{
		ChildID: "child-1", TaskID: "task-1", ReviewerID: "mom",
	})
	assert.NoError(t, err)

	// Too fresh: nothing decays.
	res, err := NewApplyDecayHandler(env.deps).Handle(ctx, ApplyDecayCommand{ChildID: "child-1"})
	assert.NoError(t, err)
	assert.Equal(t, 0, res.Recovered)

	// 40 days on: half the penalty returns.
	env.advanceDays(40)
	res, err = NewApplyDecayHandler(env.deps).Handle(ctx, ApplyDecayCommand{ChildID: "child-1"})
	assert.NoError(t, err)
	assert.Equal(t, 10, res.Recovered)
	assert.Equal(t, 90, res.NewScore)

	// Stamped decayed: a later pass recovers nothing more.
	env.advanceDays(40)
	res, err = NewApplyDecayHandler(env.deps).Handle(ctx, ApplyDecayCommand{ChildID: "child-1"})
	assert.NoError(t, err)
	assert.Equal(t, 0, res.Recovered)
}

func TestDecayForUnknownChildIsNoOp(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	res, err := NewApplyDecayHandler(env.deps).Handle(ctx, ApplyDecayCommand{ChildID: "ghost"})
	assert.NoError(t, err)
	assert.Equal(t, 0, res.Recovered)
}

func TestRedeemFlow(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	// Empty balance refuses with a typed failure.
	_, err := NewRedeemXPHandler(env.deps).Handle(ctx, RedeemXPCommand{UserID: "user-1", Amount: 10})
	assert.ErrorIs(t, err, shared.ErrInsufficientXP)

	_, err = NewAwardXPHandler(env.deps).Handle(ctx, AwardXPCommand{
		UserID: "user-1", TaskID: "task-1", TimeMinutes: 100, CredibilityScore: 100,
	})
	assert.NoError(t, err)

	_, err = NewRedeemXPHandler(env.deps).Handle(ctx, RedeemXPCommand{UserID: "user-1", Amount: 0})
	assert.ErrorIs(t, err, shared.ErrInvalidAmount)

	out, err := NewRedeemXPHandler(env.deps).Handle(ctx, RedeemXPCommand{UserID: "user-1", Amount: 40})
	assert.NoError(t, err)
	assert.Equal(t, 40, out.MinutesGranted)
	assert.Equal(t, 60, out.NewBalance)

	account, err := env.deps.XPRepo.Get(ctx, "user-1")
	assert.NoError(t, err)
	assert.NoError(t, account.CheckInvariant())
}

func TestGrantIsIdempotentAcrossCalls(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	h := NewGrantXPHandler(env.deps)

	res, err := h.Handle(ctx, GrantXPCommand{UserID: "user-1", Amount: 100, Reason: "starter_bonus"})
	assert.NoError(t, err)
	assert.Equal(t, 100, res.NewBalance)

	_, err = h.Handle(ctx, GrantXPCommand{UserID: "user-1", Amount: 100, Reason: "starter_bonus"})
	assert.ErrorIs(t, err, shared.ErrAlreadyGranted)

	account, err := env.deps.XPRepo.Get(ctx, "user-1")
	assert.NoError(t, err)
	assert.Equal(t, 100, account.CurrentXP)
}

func TestRecordUploadStreakAcrossDays(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	h := NewRecordUploadHandler(env.deps)

	res, err := h.Handle(ctx, RecordUploadCommand{ChildID: "child-1", TaskID: "t1"})
	assert.NoError(t, err)
	assert.Equal(t, 1, res.Streak)

	// Same-day repeat changes nothing.
	env.advance(3 * time.Hour)
	res, err = h.Handle(ctx, RecordUploadCommand{ChildID: "child-1", TaskID: "t2"})
	assert.NoError(t, err)
	assert.True(t, res.SameDay)
	assert.Equal(t, 1, res.Streak)

	// Next day advances.
	env.advanceDays(1)
	res, err = h.Handle(ctx, RecordUploadCommand{ChildID: "child-1", TaskID: "t3"})
	assert.NoError(t, err)
	assert.True(t, res.Advanced)
	assert.Equal(t, 2, res.Streak)

	// A three-day gap breaks it.
	env.advanceDays(3)
	res, err = h.Handle(ctx, RecordUploadCommand{ChildID: "child-1", TaskID: "t4"})
	assert.NoError(t, err)
	assert.True(t, res.Broken)
	assert.Equal(t, 1, res.Streak)
}

func TestSoftCapThroughAwardCommand(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	h := NewAwardXPHandler(env.deps)

	// 950 minutes at full credibility lands exactly at 950 XP.
	_, err := h.Handle(ctx, AwardXPCommand{UserID: "user-1", TaskID: "t1", TimeMinutes: 950, CredibilityScore: 100})
	assert.NoError(t, err)

	res, err := h.Handle(ctx, AwardXPCommand{UserID: "user-1", TaskID: "t2", TimeMinutes: 100, CredibilityScore: 100})
	assert.NoError(t, err)
	assert.True(t, res.CapApplied)
	assert.Equal(t, 75, res.Credited)
	assert.Equal(t, 1025, res.NewBalance)
}
