package credibility

import (
	"time"

	"github.com/chorenest/chorenest-engine/internal/domain/shared"
)

// EventKind classifies a credibility history entry.
type EventKind string

const (
	KindDownvote           EventKind = "downvote"
	KindDownvoteUndone     EventKind = "downvoteUndone"
	KindApprovedTask       EventKind = "approvedTask"
	KindStreakBonus        EventKind = "streakBonus"
	KindTimeDecayRecovery  EventKind = "timeDecayRecovery"
	KindRedemptionActivate EventKind = "redemptionBonusActivated"
	KindRedemptionExpired  EventKind = "redemptionBonusExpired"
)

// Event is one entry of a child's credibility history. The history is
// append-only: after creation an event is never modified, with two narrow
// exceptions set exactly once each — Decayed, stamped by the decay pass so a
// penalty is never forgiven twice, and Undone, stamped when a guardian
// reverses a downvote so decay skips it.
type Event struct {
	Kind       EventKind         `json:"kind"`
	Amount     int               `json:"amount"`
	TaskID     shared.TaskID     `json:"task_id,omitempty"`
	ReviewerID shared.ReviewerID `json:"reviewer_id,omitempty"`
	Notes      string            `json:"notes,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`

	// NewScore is the score immediately after this event was applied.
	NewScore int `json:"new_score"`

	// StreakCount tags streakBonus events with the streak length that earned
	// them; zero elsewhere.
	StreakCount int `json:"streak_count,omitempty"`

	// Decayed marks a downvote whose penalty the decay pass already returned.
	Decayed bool `json:"decayed,omitempty"`

	// Undone marks a downvote reversed by a guardian.
	Undone bool `json:"undone,omitempty"`
}

// IsDownvote reports whether the event is a penalty entry.
func (e *Event) IsDownvote() bool {
	return e.Kind == KindDownvote
}

// AgeDays returns the event's age in whole days as of asOf.
func (e *Event) AgeDays(asOf time.Time) int {
	if asOf.Before(e.Timestamp) {
		return 0
	}
	return int(asOf.Sub(e.Timestamp).Hours() / 24)
}
