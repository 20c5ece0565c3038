package query

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/chorenest/chorenest-engine/internal/domain/credibility"
	"github.com/chorenest/chorenest-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREDIBILITY STATUS QUERIES
// Score, tier, conversion rate, and the human-readable recovery path shown
// on the child's trust screen.
// ══════════════════════════════════════════════════════════════════════════════

// CredibilityStatusDTO is the full trust snapshot for presentation.
type CredibilityStatusDTO struct {
	ChildID shared.ChildID `json:"child_id"`
	Score   int            `json:"score"`

	TierName        string  `json:"tier_name"`
	TierDescription string  `json:"tier_description"`
	Multiplier      float64 `json:"multiplier"`

	ConsecutiveApprovedTasks int `json:"consecutive_approved_tasks"`
	DailyStreak              int `json:"daily_streak"`

	HasRedemptionBonus    bool       `json:"has_redemption_bonus"`
	RedemptionBonusExpiry *time.Time `json:"redemption_bonus_expiry,omitempty"`

	ConversionRate float64 `json:"conversion_rate"`

	// RecoveryPath describes how to climb to the next tier, empty for
	// children already in the top tier.
	RecoveryPath        string `json:"recovery_path,omitempty"`
	NextTierName        string `json:"next_tier_name,omitempty"`
	ApprovalsToNextTier int    `json:"approvals_to_next_tier,omitempty"`
}

// CredibilityStatusHandler serves the credibility read operations.
type CredibilityStatusHandler struct {
	deps *Deps
}

// NewCredibilityStatusHandler creates a new CredibilityStatusHandler.
func NewCredibilityStatusHandler(deps *Deps) *CredibilityStatusHandler {
	return &CredibilityStatusHandler{deps: deps}
}

// GetScore returns the child's current score. Unknown children report the
// default starting score.
func (h *CredibilityStatusHandler) GetScore(ctx context.Context, childID shared.ChildID) (int, error) {
	profile, _, err := h.deps.loadProfile(ctx, childID)
	if err != nil {
		return 0, err
	}
	return profile.Score, nil
}

// GetTier returns the tier containing the child's current score.
func (h *CredibilityStatusHandler) GetTier(ctx context.Context, childID shared.ChildID) (credibility.Tier, error) {
	profile, _, err := h.deps.loadProfile(ctx, childID)
	if err != nil {
		return credibility.Tier{}, err
	}
	return profile.Tier(), nil
}

// GetConversionRate returns the XP-to-minutes rate: tier multiplier times
// the redemption bonus when its window is still open. A lapsed window closes
// here, under the child's lock, and the expiry persists.
func (h *CredibilityStatusHandler) GetConversionRate(ctx context.Context, childID shared.ChildID) (float64, error) {
	var rate float64
	err := h.deps.Locks.WithLock(childLockKey(childID), func() error {
		profile, stored, err := h.deps.loadProfile(ctx, childID)
		if err != nil {
			return err
		}
		var expired bool
		rate, expired = profile.ConversionRate(h.deps.CredibilityRules, h.deps.now())
		if expired && stored {
			if err := h.deps.CredibilityRepo.Save(ctx, profile); err != nil {
				return fmt.Errorf("get_conversion_rate: save expiry: %w", err)
			}
			h.deps.publish(shared.NewRedemptionExpiredEvent(childID.String(), "window_elapsed", profile.Score))
		}
		return nil
	})
	return rate, err
}

// XPToMinutes converts an XP amount into minutes at the current rate.
func (h *CredibilityStatusHandler) XPToMinutes(ctx context.Context, childID shared.ChildID, amount int) (int, error) {
	rate, err := h.GetConversionRate(ctx, childID)
	if err != nil {
		return 0, err
	}
	return int(math.Round(float64(amount) * rate)), nil
}

// GetCredibilityStatus returns the full snapshot.
func (h *CredibilityStatusHandler) GetCredibilityStatus(ctx context.Context, childID shared.ChildID) (*CredibilityStatusDTO, error) {
	rate, err := h.GetConversionRate(ctx, childID)
	if err != nil {
		return nil, err
	}
	profile, _, err := h.deps.loadProfile(ctx, childID)
	if err != nil {
		return nil, err
	}

	tier := profile.Tier()
	dto := &CredibilityStatusDTO{
		ChildID:                  childID,
		Score:                    profile.Score,
		TierName:                 tier.Name,
		TierDescription:          tier.Description,
		Multiplier:               tier.Multiplier,
		ConsecutiveApprovedTasks: profile.ConsecutiveApprovedTasks,
		DailyStreak:              profile.DailyStreak,
		HasRedemptionBonus:       profile.HasRedemptionBonus,
		RedemptionBonusExpiry:    profile.RedemptionBonusExpiry,
		ConversionRate:           rate,
	}

	if next, ok := credibility.NextTierAbove(profile.Score); ok {
		approvals := credibility.ApprovalsToNextTier(h.deps.CredibilityRules, profile.Score)
		dto.NextTierName = next.Name
		dto.ApprovalsToNextTier = approvals
		dto.RecoveryPath = fmt.Sprintf("%d more approved task(s) to reach %s", approvals, next.Name)
	}
	return dto, nil
}
