package xp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testRules() Rules {
	r := DefaultRules()
	r.Location = time.UTC
	return r
}

func TestCreditMultiplier(t *testing.T) {
	assert.Equal(t, 1.0, CreditMultiplier(100))
	assert.Equal(t, 0.85, CreditMultiplier(85))
	assert.Equal(t, 0.5, CreditMultiplier(50))
	assert.Equal(t, 0.0, CreditMultiplier(0))
	// Out-of-range scores clamp first.
	assert.Equal(t, 1.0, CreditMultiplier(150))
	assert.Equal(t, 0.0, CreditMultiplier(-5))
}

func TestCalculateXP(t *testing.T) {
	tests := []struct {
		minutes int
		score   int
		want    int
	}{
		{0, 100, 0},    // no time, no XP
		{-5, 100, 0},   // negative time, no XP
		{30, 100, 30},  // full credibility
		{30, 85, 26},   // ceil(25.5)
		{30, 50, 15},   // half rate
		{1, 1, 1},      // floored at minimum 1
		{10, 0, 1},     // zero score still earns the minimum
		{60, 33, 20},   // ceil(19.8)
		{120, 95, 114}, // exact product
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CalculateXP(tt.minutes, tt.score),
			"minutes=%d score=%d", tt.minutes, tt.score)
	}
}

func TestApplySoftCap(t *testing.T) {
	r := testRules()

	// Entirely under the cap: full credit.
	assert.Equal(t, 100, ApplySoftCap(r, 0, 100))
	assert.Equal(t, 50, ApplySoftCap(r, 950, 50))

	// Crossing the cap: full up to 1000, half beyond.
	assert.Equal(t, 75, ApplySoftCap(r, 950, 100))

	// Entirely above the cap: half rate throughout.
	assert.Equal(t, 50, ApplySoftCap(r, 1200, 100))

	// Disabled cap passes everything through.
	r.SoftCap = 0
	assert.Equal(t, 100, ApplySoftCap(r, 5000, 100))
}
