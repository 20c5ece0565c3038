package query

import (
	"context"

	"github.com/chorenest/chorenest-engine/internal/domain/shared"
	"github.com/chorenest/chorenest-engine/internal/domain/xp"
)

// ══════════════════════════════════════════════════════════════════════════════
// DAILY STATS QUERY
// Today's earn/spend totals plus the live earning rate, for the dashboard.
// ══════════════════════════════════════════════════════════════════════════════

// DailyStatsDTO is the per-user dashboard snapshot.
type DailyStatsDTO struct {
	UserID           shared.UserID `json:"user_id"`
	EarnedToday      int           `json:"earned_today"`
	RedeemedToday    int           `json:"redeemed_today"`
	CurrentBalance   int           `json:"current_balance"`
	CredibilityScore int           `json:"credibility_score"`
	EarningRate      float64       `json:"earning_rate"`
}

// DailyStatsHandler handles the daily stats query.
type DailyStatsHandler struct {
	deps *Deps
}

// NewDailyStatsHandler creates a new DailyStatsHandler.
func NewDailyStatsHandler(deps *Deps) *DailyStatsHandler {
	return &DailyStatsHandler{deps: deps}
}

// Handle computes today's stats. Users without a stored account report zeros
// at the default earning rate; the credibility score comes from the child's
// profile keyed by the same identifier.
func (h *DailyStatsHandler) Handle(ctx context.Context, userID shared.UserID) (*DailyStatsDTO, error) {
	if !userID.IsValid() {
		return nil, shared.ErrInvalidUserID
	}

	profile, _, err := h.deps.loadProfile(ctx, shared.ChildID(userID))
	if err != nil {
		return nil, err
	}

	account, err := h.deps.XPRepo.Get(ctx, userID)
	if shared.IsNotFound(err) {
		account = xp.NewAccount(userID, h.deps.now())
	} else if err != nil {
		return nil, err
	}

	stats := account.StatsFor(h.deps.XPRules, h.deps.now(), profile.Score)
	return &DailyStatsDTO{
		UserID:           userID,
		EarnedToday:      stats.EarnedToday,
		RedeemedToday:    stats.RedeemedToday,
		CurrentBalance:   stats.CurrentBalance,
		CredibilityScore: stats.Credibility,
		EarningRate:      stats.EarningRate,
	}, nil
}
