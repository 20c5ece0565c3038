package xp

import (
	"strconv"
	"time"

	"github.com/chorenest/chorenest-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// XP ACCOUNT
// Per-user aggregate: balance, lifetime counters, capped transaction log,
// and the side ledger of one-time direct grants. Invariant held after every
// mutation: CurrentXP = LifetimeEarned - LifetimeSpent.
// ══════════════════════════════════════════════════════════════════════════════

// Account is the per-user XP state.
type Account struct {
	UserID shared.UserID `json:"user_id"`

	CurrentXP      int `json:"current_xp"`
	LifetimeEarned int `json:"lifetime_earned"`
	LifetimeSpent  int `json:"lifetime_spent"`

	Transactions []*Transaction `json:"transactions"`

	// GrantsReceived records direct-grant reasons already honored, so a
	// repeated starter grant fails instead of doubling the balance.
	GrantsReceived map[string]bool `json:"grants_received,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAccount creates an empty account, built lazily on first earn, redeem,
// or query.
func NewAccount(userID shared.UserID, now time.Time) *Account {
	return &Account{
		UserID:         userID,
		Transactions:   []*Transaction{},
		GrantsReceived: map[string]bool{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Clone returns a deep copy for the in-memory store.
func (a *Account) Clone() *Account {
	cp := *a
	cp.Transactions = make([]*Transaction, len(a.Transactions))
	for i, t := range a.Transactions {
		tx := *t
		if t.CredibilityAtTime != nil {
			v := *t.CredibilityAtTime
			tx.CredibilityAtTime = &v
		}
		cp.Transactions[i] = &tx
	}
	cp.GrantsReceived = make(map[string]bool, len(a.GrantsReceived))
	for k, v := range a.GrantsReceived {
		cp.GrantsReceived[k] = v
	}
	return &cp
}

func (a *Account) appendTx(r Rules, tx *Transaction) {
	a.Transactions = append(a.Transactions, tx)
	if limit := r.TransactionLogLimit; limit > 0 && len(a.Transactions) > limit {
		a.Transactions = a.Transactions[len(a.Transactions)-limit:]
	}
	a.UpdatedAt = tx.Timestamp
}

// AwardResult reports the effect of Award.
type AwardResult struct {
	Credited   int
	Uncapped   int
	NewBalance int
	CapApplied bool
}

// Award credits earned XP against the soft cap. The transaction's Amount is
// the XP actually credited; the pre-cap figure is preserved in Notes when
// the cap bit.
func (a *Account) Award(r Rules, uncapped int, taskID shared.TaskID, credibilityScore int, notes string, now time.Time) AwardResult {
	credited := ApplySoftCap(r, a.CurrentXP, uncapped)
	a.CurrentXP += credited
	a.LifetimeEarned += credited

	txNotes := notes
	capApplied := credited != uncapped
	if capApplied {
		if txNotes != "" {
			txNotes += "; "
		}
		txNotes += softCapNote(uncapped)
	}
	score := credibilityScore
	a.appendTx(r, &Transaction{
		UserID:            a.UserID,
		Kind:              KindEarned,
		Amount:            credited,
		Timestamp:         now,
		RelatedTaskID:     taskID,
		CredibilityAtTime: &score,
		Notes:             txNotes,
	})
	return AwardResult{
		Credited:   credited,
		Uncapped:   uncapped,
		NewBalance: a.CurrentXP,
		CapApplied: capApplied,
	}
}

// RedemptionOutcome is returned on a successful redemption.
type RedemptionOutcome struct {
	MinutesGranted int `json:"minutes_granted"`
	XPSpent        int `json:"xp_spent"`
	NewBalance     int `json:"new_balance"`
}

// Redeem exchanges XP for screen-time minutes at the fixed rate. Returns
// shared.ErrInvalidAmount or shared.ErrInsufficientXP as typed failures;
// callers branch on them, the balance is untouched either way.
func (a *Account) Redeem(r Rules, amount int, now time.Time) (RedemptionOutcome, error) {
	if amount <= 0 {
		return RedemptionOutcome{}, shared.ErrInvalidAmount
	}
	if a.CurrentXP < amount {
		return RedemptionOutcome{}, shared.ErrInsufficientXP
	}
	a.CurrentXP -= amount
	a.LifetimeSpent += amount
	a.appendTx(r, &Transaction{
		UserID:    a.UserID,
		Kind:      KindRedeemed,
		Amount:    amount,
		Timestamp: now,
	})
	minutes := amount
	if r.MinutesPerXP > 0 {
		minutes = amount * r.MinutesPerXP
	}
	return RedemptionOutcome{
		MinutesGranted: minutes,
		XPSpent:        amount,
		NewBalance:     a.CurrentXP,
	}, nil
}

// GrantDirect credits a one-time bonus that bypasses credibility pricing and
// the soft cap. Idempotent per reason: a second grant with the same reason
// returns shared.ErrAlreadyGranted and changes nothing.
func (a *Account) GrantDirect(r Rules, amount int, reason string, now time.Time) (int, error) {
	if amount <= 0 {
		return 0, shared.ErrInvalidAmount
	}
	if a.GrantsReceived == nil {
		a.GrantsReceived = map[string]bool{}
	}
	if a.GrantsReceived[reason] {
		return 0, shared.ErrAlreadyGranted
	}
	a.GrantsReceived[reason] = true
	a.CurrentXP += amount
	a.LifetimeEarned += amount
	a.appendTx(r, &Transaction{
		UserID:    a.UserID,
		Kind:      KindEarned,
		Amount:    amount,
		Timestamp: now,
		Notes:     reason,
	})
	return a.CurrentXP, nil
}

// DailyStats summarizes today's ledger activity.
type DailyStats struct {
	EarnedToday    int     `json:"earned_today"`
	RedeemedToday  int     `json:"redeemed_today"`
	CurrentBalance int     `json:"current_balance"`
	Credibility    int     `json:"credibility"`
	EarningRate    float64 `json:"earning_rate"`
}

// StatsFor sums the day's transactions by kind using calendar-day boundaries
// in the ledger's location.
func (a *Account) StatsFor(r Rules, now time.Time, credibilityScore int) DailyStats {
	stats := DailyStats{
		CurrentBalance: a.CurrentXP,
		Credibility:    credibilityScore,
		EarningRate:    CreditMultiplier(credibilityScore),
	}
	loc := r.Loc()
	for _, t := range a.Transactions {
		if !t.IsToday(now, loc) {
			continue
		}
		switch t.Kind {
		case KindEarned:
			stats.EarnedToday += t.Amount
		case KindRedeemed:
			stats.RedeemedToday += t.Amount
		}
	}
	return stats
}

// CheckInvariant verifies CurrentXP = LifetimeEarned - LifetimeSpent and a
// non-negative balance. A failure is a ledger bug, surfaced loudly in tests.
func (a *Account) CheckInvariant() error {
	if a.CurrentXP < 0 {
		return shared.ErrNegativeBalance
	}
	if a.CurrentXP != a.LifetimeEarned-a.LifetimeSpent {
		return shared.NewDomainError("xp", "CheckInvariant", shared.ErrInvariantViolated,
			"balance does not equal lifetime earned minus lifetime spent")
	}
	return nil
}

func softCapNote(uncapped int) string {
	return "soft cap applied, pre-cap earn " + strconv.Itoa(uncapped)
}
