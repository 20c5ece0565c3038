package xp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chorenest/chorenest-engine/internal/domain/shared"
)

var baseTime = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestAccount() *Account {
	return NewAccount("user-1", baseTime)
}

func TestAwardKeepsInvariant(t *testing.T) {
	r := testRules()
	a := newTestAccount()

	res := a.Award(r, 30, "task-1", 100, "", baseTime)
	assert.Equal(t, 30, res.Credited)
	assert.Equal(t, 30, res.NewBalance)
	assert.False(t, res.CapApplied)
	assert.NoError(t, a.CheckInvariant())

	assert.Len(t, a.Transactions, 1)
	tx := a.Transactions[0]
	assert.Equal(t, KindEarned, tx.Kind)
	assert.Equal(t, 30, tx.Amount)
	assert.NotNil(t, tx.CredibilityAtTime)
	assert.Equal(t, 100, *tx.CredibilityAtTime)
}

func TestAwardAcrossSoftCap(t *testing.T) {
	r := testRules()
	a := newTestAccount()

	a.Award(r, 950, "task-1", 100, "", baseTime)
	res := a.Award(r, 100, "task-2", 100, "", baseTime.Add(time.Hour))

	// 50 at full rate to reach the cap, the remaining 50 at half rate.
	assert.Equal(t, 75, res.Credited)
	assert.Equal(t, 100, res.Uncapped)
	assert.True(t, res.CapApplied)
	assert.Equal(t, 1025, a.CurrentXP)
	assert.NoError(t, a.CheckInvariant())

	// The pre-cap figure survives in the transaction notes for audit.
	tx := a.Transactions[len(a.Transactions)-1]
	assert.Equal(t, 75, tx.Amount)
	assert.Contains(t, tx.Notes, "100")
}

func TestRedeemSuccess(t *testing.T) {
	r := testRules()
	a := newTestAccount()
	a.Award(r, 100, "task-1", 100, "", baseTime)

	out, err := a.Redeem(r, 40, baseTime.Add(time.Hour))
	assert.NoError(t, err)
	assert.Equal(t, 40, out.XPSpent)
	assert.Equal(t, 40, out.MinutesGranted) // 1 XP = 1 minute, flat
	assert.Equal(t, 60, out.NewBalance)
	assert.Equal(t, 60, a.CurrentXP)
	assert.Equal(t, 40, a.LifetimeSpent)
	assert.NoError(t, a.CheckInvariant())
}

func TestRedeemInvalidAmount(t *testing.T) {
	r := testRules()
	a := newTestAccount()
	a.Award(r, 100, "task-1", 100, "", baseTime)

	_, err := a.Redeem(r, 0, baseTime)
	assert.ErrorIs(t, err, shared.ErrInvalidAmount)

	_, err = a.Redeem(r, -10, baseTime)
	assert.ErrorIs(t, err, shared.ErrInvalidAmount)

	assert.Equal(t, 100, a.CurrentXP)
	assert.Len(t, a.Transactions, 1)
}

func TestRedeemInsufficientBalance(t *testing.T) {
	r := testRules()
	a := newTestAccount()

	_, err := a.Redeem(r, 10, baseTime)
	assert.ErrorIs(t, err, shared.ErrInsufficientXP)
	assert.Equal(t, 0, a.CurrentXP)
	assert.Empty(t, a.Transactions)
	assert.NoError(t, a.CheckInvariant())
}

func TestGrantDirectIsIdempotent(t *testing.T) {
	r := testRules()
	a := newTestAccount()

	balance, err := a.GrantDirect(r, 50, "starter_bonus", baseTime)
	assert.NoError(t, err)
	assert.Equal(t, 50, balance)

	_, err = a.GrantDirect(r, 50, "starter_bonus", baseTime.Add(time.Minute))
	assert.ErrorIs(t, err, shared.ErrAlreadyGranted)
	assert.Equal(t, 50, a.CurrentXP)
	assert.Len(t, a.Transactions, 1)

	// The grant transaction carries no credibility annotation.
	assert.Nil(t, a.Transactions[0].CredibilityAtTime)
}

func TestTransactionLogCapDropsOldest(t *testing.T) {
	r := testRules()
	r.TransactionLogLimit = 5
	a := newTestAccount()

	ts := baseTime
	for i := 0; i < 8; i++ {
		a.Award(r, 10, shared.TaskID("task"), 100, "", ts)
		ts = ts.Add(time.Minute)
	}

	assert.Len(t, a.Transactions, 5)
	// The oldest entries fell off; the newest survives.
	assert.Equal(t, ts.Add(-time.Minute), a.Transactions[4].Timestamp)
	assert.Equal(t, 80, a.CurrentXP)
	assert.NoError(t, a.CheckInvariant())
}

func TestStatsForCountsOnlyToday(t *testing.T) {
	r := testRules()
	a := newTestAccount()

	yesterday := baseTime.AddDate(0, 0, -1)
	a.Award(r, 40, "old", 100, "", yesterday)
	a.Award(r, 25, "new", 80, "", baseTime)
	_, err := a.Redeem(r, 10, baseTime.Add(time.Hour))
	assert.NoError(t, err)

	stats := a.StatsFor(r, baseTime.Add(2*time.Hour), 80)
	assert.Equal(t, 25, stats.EarnedToday)
	assert.Equal(t, 10, stats.RedeemedToday)
	assert.Equal(t, 55, stats.CurrentBalance)
	assert.Equal(t, 80, stats.Credibility)
	assert.InDelta(t, 0.8, stats.EarningRate, 0.0001)
}

func TestCloneIsDeep(t *testing.T) {
	r := testRules()
	a := newTestAccount()
	a.Award(r, 30, "task-1", 90, "", baseTime)

	cp := a.Clone()
	cp.CurrentXP = 0
	cp.Transactions[0].Amount = 999
	cp.GrantsReceived["starter_bonus"] = true

	assert.Equal(t, 30, a.CurrentXP)
	assert.Equal(t, 30, a.Transactions[0].Amount)
	assert.False(t, a.GrantsReceived["starter_bonus"])
}
