package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles and gradual rollouts. Households are
// assigned to rollout buckets by a stable hash, so a child never flips in and
// out of a feature between sessions.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// Per-user overrides, for testing and support cases.
	userOverrides map[string]map[string]bool // userID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100). Users are assigned by hash of their ID.
	RolloutPercent int

	// Time-based activation.
	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	UserID     string
	IsGuardian bool // guardians see everything
}

// Predefined feature flag names.
const (
	// === Credibility features ===
	FeatureCredibilityStreakBonus = "credibility.streak_bonus" // +trust every Nth approval
	FeatureCredibilityDecay       = "credibility.decay"        // penalties fade over time
	FeatureCredibilityRedemption  = "credibility.redemption"   // comeback conversion bonus
	FeatureCredibilityDailyStreak = "credibility.daily_streak" // consecutive upload days

	// === XP features ===
	FeatureXPSoftCap     = "xp.soft_cap"     // halve earning above the cap
	FeatureXPLeaderboard = "xp.leaderboard"  // lifetime XP rankings
	FeatureXPDirectGrant = "xp.direct_grant" // guardian one-off grants

	// === Notification features ===
	FeatureNotifyDownvote    = "notify.downvote"     // tell the child about declines
	FeatureNotifyStreakLost  = "notify.streak_lost"  // broken daily streak
	FeatureNotifyDailyDigest = "notify.daily_digest" // end of day summary
	FeatureNotifyRedemption  = "notify.redemption"   // comeback bonus opened/closed

	// === Guardian features ===
	FeatureGuardianPIN = "guardian.pin" // PIN gate on guardian operations
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:      make(map[string]*Feature),
		userOverrides: make(map[string]map[string]bool),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	// Credibility features ship enabled. They are the core of the economy.
	ff.features[FeatureCredibilityStreakBonus] = &Feature{
		Name:           FeatureCredibilityStreakBonus,
		Description:    "Trust bonus every Nth consecutive approval",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureCredibilityDecay] = &Feature{
		Name:           FeatureCredibilityDecay,
		Description:    "Old downvote penalties fade back",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureCredibilityRedemption] = &Feature{
		Name:           FeatureCredibilityRedemption,
		Description:    "Comeback conversion bonus after climbing back",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureCredibilityDailyStreak] = &Feature{
		Name:           FeatureCredibilityDailyStreak,
		Description:    "Track consecutive proof-upload days",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// XP features.
	ff.features[FeatureXPSoftCap] = &Feature{
		Name:           FeatureXPSoftCap,
		Description:    "Reduced earning above the balance soft cap",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureXPLeaderboard] = &Feature{
		Name:           FeatureXPLeaderboard,
		Description:    "Lifetime XP household rankings",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureXPDirectGrant] = &Feature{
		Name:           FeatureXPDirectGrant,
		Description:    "Guardian one-off XP grants",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Notifications are tuned to motivate without nagging.
	ff.features[FeatureNotifyDownvote] = &Feature{
		Name:           FeatureNotifyDownvote,
		Description:    "Notify the child when a task is declined",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureNotifyStreakLost] = &Feature{
		Name:           FeatureNotifyStreakLost,
		Description:    "Notify when a daily streak breaks",
		Enabled:        false, // can be demotivating
		RolloutPercent: 0,
	}

	ff.features[FeatureNotifyDailyDigest] = &Feature{
		Name:           FeatureNotifyDailyDigest,
		Description:    "End of day XP summary",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureNotifyRedemption] = &Feature{
		Name:           FeatureNotifyRedemption,
		Description:    "Comeback bonus opened and closed notices",
		Enabled:        true,
		RolloutPercent: 50, // gradual rollout
	}

	// Guardian features.
	ff.features[FeatureGuardianPIN] = &Feature{
		Name:           FeatureGuardianPIN,
		Description:    "Require a PIN for guardian operations",
		Enabled:        true,
		RolloutPercent: 100,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_XP_SOFT_CAP=false
// Example: FEATURE_NOTIFY_REDEMPTION=50 (50% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		val := os.Getenv(envKey)
		if val == "" {
			continue
		}

		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
			if b {
				feature.RolloutPercent = 100
			} else {
				feature.RolloutPercent = 0
			}
			continue
		}

		if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
			feature.Enabled = p > 0
			feature.RolloutPercent = p
		}
	}
}

// featureNameToEnvKey converts a feature name to its environment variable.
// "xp.soft_cap" -> "FEATURE_XP_SOFT_CAP"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	// User overrides win over everything.
	if ctx != nil && ctx.UserID != "" {
		if overrides, ok := ff.userOverrides[ctx.UserID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	if ctx != nil && ctx.IsGuardian {
		return true
	}

	if !feature.Enabled {
		return false
	}

	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	if feature.RolloutPercent < 100 && ctx != nil && ctx.UserID != "" {
		return ff.isInRollout(ctx.UserID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout determines if a user falls inside the rollout percentage.
// Consistent hashing keeps users in the same bucket across evaluations.
func (ff *FeatureFlags) isInRollout(userID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(userID))
	bucket := int(h.Sum32() % 100)
	return bucket < percent
}

// SetUserOverride sets a feature override for a specific user.
func (ff *FeatureFlags) SetUserOverride(userID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.userOverrides[userID]; !ok {
		ff.userOverrides[userID] = make(map[string]bool)
	}
	ff.userOverrides[userID][featureName] = enabled
}

// ClearUserOverrides removes all overrides for a user.
func (ff *FeatureFlags) ClearUserOverrides(userID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.userOverrides, userID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}
	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0
	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// NotificationsEnabled checks if any child-facing notifications are on.
func (ff *FeatureFlags) NotificationsEnabled(ctx *FeatureContext) bool {
	return ff.IsEnabled(FeatureNotifyDownvote, ctx) ||
		ff.IsEnabled(FeatureNotifyDailyDigest, ctx) ||
		ff.IsEnabled(FeatureNotifyRedemption, ctx) ||
		ff.IsEnabled(FeatureNotifyStreakLost, ctx)
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
