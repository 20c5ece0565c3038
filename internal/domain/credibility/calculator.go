package credibility

import (
	"math"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREDIBILITY CALCULATOR
// Pure, stateless functions consumed by the profile entity and the decay job.
// ══════════════════════════════════════════════════════════════════════════════

// Clamp forces score into [0,100].
func Clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// clampTo forces score into the configured bounds.
func clampTo(r Rules, score int) int {
	if score < r.MinScore {
		return r.MinScore
	}
	if score > r.MaxScore {
		return r.MaxScore
	}
	return score
}

// DownvotePenalty returns the (negative) penalty for a new downvote. When the
// child's previous downvote fell within the stacking window, the stacked
// penalty applies instead of the flat one.
func DownvotePenalty(r Rules, lastDownvoteAt *time.Time, now time.Time) int {
	if lastDownvoteAt == nil {
		return r.DownvotePenalty
	}
	days := int(now.Sub(*lastDownvoteAt).Hours() / 24)
	if days >= 0 && days < r.StackingWindowDays {
		return r.StackedPenalty
	}
	return r.DownvotePenalty
}

// ShouldAwardStreakBonus reports whether a streak of length n earns a bonus:
// n positive and an exact multiple of the interval.
func ShouldAwardStreakBonus(n, interval int) bool {
	return n > 0 && interval > 0 && n%interval == 0
}

// DecayRecovery sums recoverable credibility across non-decayed, non-undone
// downvote events as of asOf: the full penalty magnitude once an event is at
// least FullDecayDays old, half once at least HalfDecayDays old, 0 otherwise.
// It also returns the events that contributed, so the caller can stamp their
// Decayed flag in the same write. Events are not modified here.
func DecayRecovery(r Rules, events []*Event, asOf time.Time) (int, []*Event) {
	total := 0
	var matured []*Event
	for _, e := range events {
		if !e.IsDownvote() || e.Decayed || e.Undone {
			continue
		}
		age := e.AgeDays(asOf)
		magnitude := -e.Amount // penalties are negative
		if magnitude <= 0 {
			continue
		}
		switch {
		case age >= r.FullDecayDays:
			total += magnitude
			matured = append(matured, e)
		case age >= r.HalfDecayDays:
			total += magnitude / 2
			matured = append(matured, e)
		}
	}
	return total, matured
}

// ApprovalsToNextTier returns how many approvals are needed to reach the
// next tier from score, or 0 when already in the top tier.
func ApprovalsToNextTier(r Rules, score int) int {
	next, ok := NextTierAbove(score)
	if !ok {
		return 0
	}
	pointsNeeded := next.MinScore - score
	if r.ApprovalBonus <= 0 {
		return pointsNeeded
	}
	return int(math.Ceil(float64(pointsNeeded) / float64(r.ApprovalBonus)))
}
