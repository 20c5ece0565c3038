package credibility

import "time"

// ══════════════════════════════════════════════════════════════════════════════
// DAILY STREAK
// Consecutive calendar-day count of task uploads. Orthogonal to the approval
// streak: a declined task never touches it, only a missed day does.
// ══════════════════════════════════════════════════════════════════════════════

// StreakTransition describes the outcome of one upload evaluation.
type StreakTransition struct {
	Streak   int
	Advanced bool // streak grew by one
	Broken   bool // a gap reset the streak to 1
	SameDay  bool // repeat upload within the same day, no change
}

// NextDailyStreak evaluates the streak state machine for an upload at now.
// Calendar-day comparisons use loc.
func NextDailyStreak(prev int, lastUpload *time.Time, now time.Time, loc *time.Location) StreakTransition {
	if lastUpload == nil || prev <= 0 {
		return StreakTransition{Streak: 1, Advanced: prev <= 0 && lastUpload == nil}
	}
	last := lastUpload.In(loc)
	cur := now.In(loc)
	switch {
	case sameDay(last, cur):
		return StreakTransition{Streak: prev, SameDay: true}
	case consecutiveDay(last, cur):
		return StreakTransition{Streak: prev + 1, Advanced: true}
	default:
		return StreakTransition{Streak: 1, Broken: true}
	}
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func consecutiveDay(earlier, later time.Time) bool {
	return sameDay(earlier.AddDate(0, 0, 1), later)
}
