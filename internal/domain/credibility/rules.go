package credibility

import "time"

// Rules holds the tunable constants of the credibility economy. A single
// Rules value is constructed from config at startup and shared read-only by
// every operation; tests construct their own.
type Rules struct {
	// Score bounds.
	MinScore     int
	MaxScore     int
	InitialScore int

	// Downvote penalties. Penalty values are negative. StackedPenalty applies
	// when the previous downvote fell within StackingWindowDays; it defaults
	// to the flat penalty, so stacking is a no-op unless configured.
	DownvotePenalty    int
	StackedPenalty     int
	StackingWindowDays int

	// Approval rewards.
	ApprovalBonus          int
	ApprovalStreakInterval int
	ApprovalStreakBonus    int

	// Daily upload streak.
	DailyStreakInterval int
	DailyStreakBonus    int

	// Penalty decay. Each downvote recovers at most once, at whichever
	// threshold has matured when the sweep reaches it: the full magnitude
	// after FullDecayDays, half of it after only HalfDecayDays. A downvote
	// that recovered at the half threshold never returns the rest.
	HalfDecayDays int
	FullDecayDays int

	// Redemption bonus: reaching ActivationScore from below ComebackThreshold
	// opens a WindowDays-long 1.3x conversion bonus. Dropping back under
	// ActivationScore closes it early.
	RedemptionActivationScore int
	RedemptionComebackScore   int
	RedemptionWindowDays      int
	RedemptionMultiplier      float64

	// Location defines calendar-day boundaries for the daily streak and
	// daily stats.
	Location *time.Location
}

// DefaultRules returns the production rule set.
func DefaultRules() Rules {
	return Rules{
		MinScore:     0,
		MaxScore:     100,
		InitialScore: 100,

		DownvotePenalty:    -20,
		StackedPenalty:     -20,
		StackingWindowDays: 7,

		ApprovalBonus:          5,
		ApprovalStreakInterval: 10,
		ApprovalStreakBonus:    5,

		DailyStreakInterval: 10,
		DailyStreakBonus:    5,

		HalfDecayDays: 30,
		FullDecayDays: 60,

		RedemptionActivationScore: 95,
		RedemptionComebackScore:   60,
		RedemptionWindowDays:      7,
		RedemptionMultiplier:      1.3,

		Location: time.Local,
	}
}

// Loc returns the configured location, falling back to time.Local.
func (r Rules) Loc() *time.Location {
	if r.Location != nil {
		return r.Location
	}
	return time.Local
}
