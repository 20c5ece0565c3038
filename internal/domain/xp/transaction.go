// Package xp implements the experience-point ledger: per-user balances,
// earn/redeem bookkeeping with soft-cap diminishing returns, direct grants,
// and the capped transaction log.
package xp

import (
	"time"

	"github.com/chorenest/chorenest-engine/internal/domain/shared"
)

// TransactionKind classifies a ledger entry.
type TransactionKind string

const (
	KindEarned   TransactionKind = "earned"
	KindRedeemed TransactionKind = "redeemed"
)

// Transaction is one immutable ledger entry. The log is append-only and
// capped; the oldest entries fall off first.
type Transaction struct {
	UserID        shared.UserID   `json:"user_id"`
	Kind          TransactionKind `json:"kind"`
	Amount        int             `json:"amount"` // always positive, XP actually moved
	Timestamp     time.Time       `json:"timestamp"`
	RelatedTaskID shared.TaskID   `json:"related_task_id,omitempty"`

	// CredibilityAtTime records the credibility score that priced an earn.
	// Nil for redemptions and direct grants.
	CredibilityAtTime *int `json:"credibility_at_time,omitempty"`

	Notes string `json:"notes,omitempty"`
}

// IsToday reports whether the transaction falls on the calendar day of now
// in loc.
func (t *Transaction) IsToday(now time.Time, loc *time.Location) bool {
	a := t.Timestamp.In(loc)
	b := now.In(loc)
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
