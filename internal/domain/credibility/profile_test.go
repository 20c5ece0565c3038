package credibility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chorenest/chorenest-engine/internal/domain/shared"
)

var baseTime = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestProfile() *Profile {
	return NewProfile("child-1", testRules(), baseTime)
}

func TestNewProfileDefaults(t *testing.T) {
	p := newTestProfile()
	assert.Equal(t, 100, p.Score)
	assert.Empty(t, p.History)
	assert.Equal(t, 0, p.ConsecutiveApprovedTasks)
	assert.Equal(t, 0, p.DailyStreak)
	assert.Nil(t, p.LastUploadDate)
	assert.False(t, p.HasRedemptionBonus)
}

func TestDownvoteThenUndoRestoresScore(t *testing.T) {
	r := testRules()
	p := newTestProfile()

	out := p.ApplyDownvote(r, "task-1", "mom", "room not cleaned", baseTime)
	assert.Equal(t, -20, out.Penalty)
	assert.Equal(t, 80, out.NewScore)
	assert.Equal(t, 0, p.ConsecutiveApprovedTasks)
	assert.Len(t, p.History, 1)
	assert.Equal(t, KindDownvote, p.History[0].Kind)
	assert.Equal(t, 80, p.History[0].NewScore)

	undo, ok := p.UndoDownvote(r, "task-1", "mom", baseTime.Add(time.Hour))
	assert.True(t, ok)
	assert.Equal(t, 20, undo.Restored)
	assert.Equal(t, 100, undo.NewScore)
	assert.Equal(t, 100, p.Score)
	assert.True(t, p.History[0].Undone)
	assert.Equal(t, KindDownvoteUndone, p.History[1].Kind)
}

func TestUndoWithoutMatchingDownvote(t *testing.T) {
	r := testRules()
	p := newTestProfile()

	_, ok := p.UndoDownvote(r, "task-404", "mom", baseTime)
	assert.False(t, ok)
	assert.Equal(t, 100, p.Score)
	assert.Empty(t, p.History)
}

func TestUndoWithoutMatchLeavesLapsedRedemptionIntact(t *testing.T) {
	r := testRules()
	p := newTestProfile()
	expiry := baseTime.Add(-time.Hour)
	p.HasRedemptionBonus = true
	p.RedemptionBonusExpiry = &expiry

	_, ok := p.UndoDownvote(r, "task-404", "mom", baseTime)
	assert.False(t, ok)

	// A miss is never saved, so the profile must not mutate: the lapsed
	// bonus is left for the next persisted operation to expire.
	assert.True(t, p.HasRedemptionBonus)
	assert.Empty(t, p.History)
}

func TestUndoWithMatchExpiresLapsedRedemption(t *testing.T) {
	r := testRules()
	p := newTestProfile()
	p.ApplyDownvote(r, "task-1", "mom", "", baseTime)
	expiry := baseTime.Add(time.Minute)
	p.HasRedemptionBonus = true
	p.RedemptionBonusExpiry = &expiry

	_, ok := p.UndoDownvote(r, "task-1", "mom", baseTime.Add(time.Hour))
	assert.True(t, ok)
	assert.False(t, p.HasRedemptionBonus)
	assert.Nil(t, p.RedemptionBonusExpiry)
}

func TestUndoSkipsAlreadyUndoneDownvote(t *testing.T) {
	r := testRules()
	p := newTestProfile()

	p.ApplyDownvote(r, "task-1", "mom", "", baseTime)
	_, ok := p.UndoDownvote(r, "task-1", "mom", baseTime.Add(time.Minute))
	assert.True(t, ok)

	// Second undo for the same task finds nothing live.
	_, ok = p.UndoDownvote(r, "task-1", "mom", baseTime.Add(2*time.Minute))
	assert.False(t, ok)
	assert.Equal(t, 100, p.Score)
}

func TestDownvoteClampsAtZero(t *testing.T) {
	r := testRules()
	p := newTestProfile()
	p.Score = 10

	out := p.ApplyDownvote(r, "task-1", "dad", "", baseTime)
	assert.Equal(t, 0, out.NewScore)
	assert.Equal(t, 0, p.Score)
}

func TestApprovalIncrementsStreakAndScore(t *testing.T) {
	r := testRules()
	p := newTestProfile()
	p.Score = 70

	out := p.ApplyApproval(r, "task-1", "mom", "", baseTime)
	assert.Equal(t, 75, out.NewScore)
	assert.Equal(t, 1, out.ApprovalStreak)
	assert.False(t, out.StreakBonusAwarded)
}

func TestTenApprovalsGrantExactlyOneStreakBonus(t *testing.T) {
	r := testRules()
	p := newTestProfile()

	ts := baseTime
	for i := 0; i < 10; i++ {
		p.ApplyApproval(r, shared.TaskID("task"), "mom", "", ts)
		ts = ts.Add(time.Hour)
	}

	assert.Equal(t, 10, p.ConsecutiveApprovedTasks)
	bonuses := 0
	for _, e := range p.History {
		if e.Kind == KindStreakBonus {
			bonuses++
			assert.Equal(t, 10, e.StreakCount)
		}
	}
	assert.Equal(t, 1, bonuses)
}

func TestRejectionResetsApprovalStreakOnly(t *testing.T) {
	r := testRules()
	p := newTestProfile()
	p.DailyStreak = 4

	p.ApplyApproval(r, "task-1", "mom", "", baseTime)
	p.ApplyApproval(r, "task-2", "mom", "", baseTime)
	assert.Equal(t, 2, p.ConsecutiveApprovedTasks)

	p.ApplyDownvote(r, "task-3", "mom", "", baseTime)
	assert.Equal(t, 0, p.ConsecutiveApprovedTasks)
	// The daily streak never resets on rejection.
	assert.Equal(t, 4, p.DailyStreak)
}

func TestRedemptionBonusActivation(t *testing.T) {
	r := testRules()
	p := newTestProfile()
	p.Score = 55 // below the comeback threshold

	// Climb back up. Approvals add 5 each; the streak bonus at 10 pushes
	// the score from 55 to 95 within nine approvals.
	ts := baseTime
	var activated bool
	for i := 0; i < 20 && !activated; i++ {
		out := p.ApplyApproval(r, "task", "mom", "", ts)
		activated = out.RedemptionActivated
		ts = ts.Add(time.Hour)
	}

	assert.True(t, activated)
	assert.True(t, p.HasRedemptionBonus)
	assert.NotNil(t, p.RedemptionBonusExpiry)
	assert.GreaterOrEqual(t, p.Score, 95)

	found := false
	for _, e := range p.History {
		if e.Kind == KindRedemptionActivate {
			found = true
		}
	}
	assert.True(t, found)
}

func TestNoRedemptionBonusWithoutComeback(t *testing.T) {
	r := testRules()
	p := newTestProfile()
	p.Score = 92 // was never below 60

	out := p.ApplyApproval(r, "task-1", "mom", "", baseTime)
	assert.Equal(t, 97, out.NewScore)
	assert.False(t, out.RedemptionActivated)
	assert.False(t, p.HasRedemptionBonus)
}

func TestDownvoteDeactivatesRedemptionBonus(t *testing.T) {
	r := testRules()
	p := newTestProfile()
	p.Score = 96
	expiry := baseTime.AddDate(0, 0, 5)
	p.HasRedemptionBonus = true
	p.RedemptionBonusExpiry = &expiry

	out := p.ApplyDownvote(r, "task-1", "dad", "", baseTime)
	assert.True(t, out.RedemptionExpired)
	assert.False(t, p.HasRedemptionBonus)

	last := p.History[len(p.History)-1]
	assert.Equal(t, KindRedemptionExpired, last.Kind)
	assert.Equal(t, "score_dropped", last.Notes)
}

func TestRedemptionBonusExpiresByTime(t *testing.T) {
	r := testRules()
	p := newTestProfile()
	expiry := baseTime.AddDate(0, 0, 7)
	p.HasRedemptionBonus = true
	p.RedemptionBonusExpiry = &expiry

	// Inside the window: 1.2 tier multiplier times 1.3 bonus.
	rate, expired := p.ConversionRate(r, baseTime.AddDate(0, 0, 3))
	assert.False(t, expired)
	assert.InDelta(t, 1.56, rate, 0.0001)

	// Past the window: bonus closes and the plain tier rate returns.
	rate, expired = p.ConversionRate(r, baseTime.AddDate(0, 0, 8))
	assert.True(t, expired)
	assert.InDelta(t, 1.2, rate, 0.0001)
	assert.False(t, p.HasRedemptionBonus)

	last := p.History[len(p.History)-1]
	assert.Equal(t, KindRedemptionExpired, last.Kind)
	assert.Equal(t, "window_elapsed", last.Notes)
}

func TestXPToMinutesRounds(t *testing.T) {
	r := testRules()
	p := newTestProfile()
	p.Score = 70 // Fair, 0.8x

	minutes, _ := p.XPToMinutes(r, 41, baseTime)
	assert.Equal(t, 33, minutes) // 41 * 0.8 = 32.8 rounds to 33
}

func TestApplyDecayWritesSingleRecoveryEvent(t *testing.T) {
	r := testRules()
	p := newTestProfile()
	p.Score = 60
	p.History = []*Event{
		{Kind: KindDownvote, Amount: -20, Timestamp: baseTime.AddDate(0, 0, -70), NewScore: 80},
		{Kind: KindDownvote, Amount: -20, Timestamp: baseTime.AddDate(0, 0, -40), NewScore: 60},
	}

	recovered := p.ApplyDecay(r, baseTime)
	assert.Equal(t, 30, recovered)
	assert.Equal(t, 90, p.Score)
	assert.True(t, p.History[0].Decayed)
	assert.True(t, p.History[1].Decayed)
	assert.Equal(t, KindTimeDecayRecovery, p.History[len(p.History)-1].Kind)

	// A second pass recovers nothing because both events are stamped.
	assert.Equal(t, 0, p.ApplyDecay(r, baseTime.Add(time.Hour)))
	assert.Equal(t, 90, p.Score)
}

func TestApplyDecayHalfRecoveryIsFinal(t *testing.T) {
	r := testRules()
	p := newTestProfile()
	p.Score = 80
	p.History = []*Event{
		{Kind: KindDownvote, Amount: -20, Timestamp: baseTime.AddDate(0, 0, -40), NewScore: 80},
	}

	// Only the half threshold has matured: 10 of the 20 points return.
	assert.Equal(t, 10, p.ApplyDecay(r, baseTime))
	assert.Equal(t, 90, p.Score)
	assert.True(t, p.History[0].Decayed)

	// Aging past the full threshold does not return the other half; a
	// downvote recovers once, at whichever threshold matured first.
	assert.Equal(t, 0, p.ApplyDecay(r, baseTime.AddDate(0, 0, 30)))
	assert.Equal(t, 90, p.Score)
}

func TestApplyDecayNoOpLeavesLapsedRedemptionIntact(t *testing.T) {
	r := testRules()
	p := newTestProfile()
	expiry := baseTime.Add(-time.Hour)
	p.HasRedemptionBonus = true
	p.RedemptionBonusExpiry = &expiry

	assert.Equal(t, 0, p.ApplyDecay(r, baseTime))
	assert.True(t, p.HasRedemptionBonus)
	assert.Empty(t, p.History)
}

func TestRecordUploadTransitions(t *testing.T) {
	r := testRules()
	p := newTestProfile()

	// First upload ever.
	out := p.RecordUpload(r, "t1", baseTime)
	assert.Equal(t, 1, out.Streak)
	assert.NotNil(t, p.LastUploadDate)

	// Same-day repeat is idempotent.
	out = p.RecordUpload(r, "t2", baseTime.Add(2*time.Hour))
	assert.True(t, out.SameDay)
	assert.Equal(t, 1, p.DailyStreak)

	// Next day advances.
	out = p.RecordUpload(r, "t3", baseTime.AddDate(0, 0, 1))
	assert.True(t, out.Advanced)
	assert.Equal(t, 2, p.DailyStreak)

	// A gap resets to 1.
	out = p.RecordUpload(r, "t4", baseTime.AddDate(0, 0, 5))
	assert.True(t, out.Broken)
	assert.Equal(t, 1, p.DailyStreak)
}

func TestDailyStreakBonusAtInterval(t *testing.T) {
	r := testRules()
	p := newTestProfile()
	p.Score = 50

	// Upload every day; day 10 grants +5 credibility.
	ts := baseTime
	var bonusDays []int
	for day := 1; day <= 20; day++ {
		out := p.RecordUpload(r, shared.TaskID("t"), ts)
		if out.BonusAwarded {
			bonusDays = append(bonusDays, day)
			assert.Equal(t, day, out.Streak)
		}
		ts = ts.AddDate(0, 0, 1)
	}

	assert.Equal(t, []int{10, 20}, bonusDays)
	assert.Equal(t, 60, p.Score)

	bonuses := 0
	for _, e := range p.History {
		if e.Kind == KindStreakBonus {
			bonuses++
		}
	}
	assert.Equal(t, 2, bonuses)
}

func TestCloneIsDeep(t *testing.T) {
	r := testRules()
	p := newTestProfile()
	p.ApplyDownvote(r, "task-1", "mom", "", baseTime)

	cp := p.Clone()
	cp.Score = 5
	cp.History[0].Decayed = true

	assert.Equal(t, 80, p.Score)
	assert.False(t, p.History[0].Decayed)
}
