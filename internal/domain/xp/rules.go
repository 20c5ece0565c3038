package xp

import "time"

// Rules holds the tunable constants of the XP economy.
type Rules struct {
	// SoftCap is the balance above which earning halves. 0 disables it.
	SoftCap int

	// SoftCapRate is the fraction credited for the portion of an award that
	// lands above the cap.
	SoftCapRate float64

	// MinutesPerXP fixes the redemption rate. 1 XP buys 1 minute; tier
	// multipliers shape earning only, never redemption.
	MinutesPerXP int

	// TransactionLogLimit caps the per-user transaction log.
	TransactionLogLimit int

	// Location defines calendar-day boundaries for daily stats.
	Location *time.Location
}

// DefaultRules returns the production rule set.
func DefaultRules() Rules {
	return Rules{
		SoftCap:             1000,
		SoftCapRate:         0.5,
		MinutesPerXP:        1,
		TransactionLogLimit: 1000,
		Location:            time.Local,
	}
}

// Loc returns the configured location, falling back to time.Local.
func (r Rules) Loc() *time.Location {
	if r.Location != nil {
		return r.Location
	}
	return time.Local
}
