// Package credibility implements the trust economy for children: score
// bookkeeping, tier classification, streaks, penalty decay, and the
// redemption bonus window. The package has no external dependencies; all
// persistence and messaging happens behind interfaces in outer layers.
package credibility

import "fmt"

// Tier is a named band of credibility score with a reward multiplier.
type Tier struct {
	Name        string  `json:"name"`
	MinScore    int     `json:"min_score"`
	MaxScore    int     `json:"max_score"`
	Multiplier  float64 `json:"multiplier"`
	Description string  `json:"description"`
}

// The five tiers partition [0,100] with no gaps or overlaps.
var tiers = []Tier{
	{Name: "Excellent", MinScore: 90, MaxScore: 100, Multiplier: 1.2, Description: "Fully trusted, best reward rate"},
	{Name: "Good", MinScore: 75, MaxScore: 89, Multiplier: 1.0, Description: "Trusted, standard reward rate"},
	{Name: "Fair", MinScore: 60, MaxScore: 74, Multiplier: 0.8, Description: "Some recent issues, reduced rewards"},
	{Name: "Poor", MinScore: 40, MaxScore: 59, Multiplier: 0.5, Description: "Low trust, rewards halved"},
	{Name: "Very Poor", MinScore: 0, MaxScore: 39, Multiplier: 0.3, Description: "Minimal trust, minimal rewards"},
}

// TierFor returns the tier whose inclusive range contains score.
// Scores outside [0,100] are clamped first, so the lookup is total.
func TierFor(score int) Tier {
	score = Clamp(score)
	for _, t := range tiers {
		if score >= t.MinScore && score <= t.MaxScore {
			return t
		}
	}
	// Unreachable while the table partitions [0,100].
	panic(fmt.Sprintf("credibility: no tier for score %d", score))
}

// NextTierAbove returns the tier with the smallest lower bound strictly
// greater than score, or false if score already sits in the top tier.
func NextTierAbove(score int) (Tier, bool) {
	score = Clamp(score)
	var next Tier
	found := false
	for _, t := range tiers {
		if t.MinScore > score && (!found || t.MinScore < next.MinScore) {
			next = t
			found = true
		}
	}
	return next, found
}

// Tiers returns a copy of the tier table, highest first.
func Tiers() []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return out
}
