package xp

import "math"

// ══════════════════════════════════════════════════════════════════════════════
// XP CALCULATOR
// ══════════════════════════════════════════════════════════════════════════════

// CreditMultiplier maps a credibility score onto the earning rate. The score
// is treated as a percentage: 85 earns at 0.85x. This is deliberately smooth
// rather than tier-stepped; tiers drive the minutes conversion preview, not
// earning.
func CreditMultiplier(credibilityScore int) float64 {
	if credibilityScore < 0 {
		credibilityScore = 0
	}
	if credibilityScore > 100 {
		credibilityScore = 100
	}
	return float64(credibilityScore) / 100.0
}

// CalculateXP prices time worked: ceil(minutes x multiplier), floored at 1
// whenever any time was worked at all. Zero minutes earns zero.
func CalculateXP(timeMinutes, credibilityScore int) int {
	if timeMinutes <= 0 {
		return 0
	}
	earned := int(math.Ceil(float64(timeMinutes) * CreditMultiplier(credibilityScore)))
	if earned < 1 {
		earned = 1
	}
	return earned
}

// ApplySoftCap splits an award against the balance cap: the portion that fits
// under the cap credits in full, the overflow credits at the reduced rate.
// Returns the XP actually credited.
func ApplySoftCap(r Rules, currentBalance, uncapped int) int {
	if r.SoftCap <= 0 || uncapped <= 0 {
		return uncapped
	}
	headroom := r.SoftCap - currentBalance
	if headroom >= uncapped {
		return uncapped
	}
	if headroom < 0 {
		headroom = 0
	}
	overflow := uncapped - headroom
	return headroom + int(float64(overflow)*r.SoftCapRate)
}
