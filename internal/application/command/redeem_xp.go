package command

import (
	"context"
	"fmt"

	"github.com/chorenest/chorenest-engine/internal/domain/shared"
	"github.com/chorenest/chorenest-engine/internal/domain/xp"
)

// ══════════════════════════════════════════════════════════════════════════════
// REDEEM XP COMMAND
// Exchanges XP for screen-time minutes at the flat 1:1 rate. Validation
// failures come back as typed errors the caller branches on; the balance is
// untouched on any failure path.
// ══════════════════════════════════════════════════════════════════════════════

// RedeemXPCommand contains the redemption request.
type RedeemXPCommand struct {
	UserID shared.UserID
	Amount int
}

// Validate validates structural fields only; amount and balance checks are
// the ledger's typed failures.
func (c RedeemXPCommand) Validate() error {
	if !c.UserID.IsValid() {
		return shared.ErrInvalidUserID
	}
	return nil
}

// RedeemXPHandler handles the RedeemXPCommand.
type RedeemXPHandler struct {
	deps *Deps
}

// NewRedeemXPHandler creates a new RedeemXPHandler.
func NewRedeemXPHandler(deps *Deps) *RedeemXPHandler {
	return &RedeemXPHandler{deps: deps}
}

// Handle executes the redemption. Returns shared.ErrInvalidAmount or
// shared.ErrInsufficientXP on the expected failure paths.
func (h *RedeemXPHandler) Handle(ctx context.Context, cmd RedeemXPCommand) (*xp.RedemptionOutcome, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var outcome xp.RedemptionOutcome
	var events []shared.Event

	err := h.deps.Locks.WithLock(userLockKey(cmd.UserID), func() error {
		account, err := h.deps.loadOrCreateAccount(ctx, cmd.UserID)
		if err != nil {
			return err
		}

		outcome, err = account.Redeem(h.deps.XPRules, cmd.Amount, h.deps.now())
		if err != nil {
			return err
		}

		if err := h.deps.XPRepo.Save(ctx, account); err != nil {
			return fmt.Errorf("redeem_xp: save account: %w", err)
		}

		events = append(events, shared.NewXPRedeemedEvent(
			cmd.UserID.String(), outcome.XPSpent, outcome.MinutesGranted, outcome.NewBalance))
		return nil
	})
	if err != nil {
		if shared.IsValidation(err) {
			h.deps.log().Debug("redemption rejected", "user_id", cmd.UserID, "amount", cmd.Amount, "error", err)
		}
		return nil, err
	}

	h.deps.publish(events...)
	h.deps.log().Info("xp redeemed",
		"user_id", cmd.UserID,
		"xp_spent", outcome.XPSpent,
		"minutes_granted", outcome.MinutesGranted,
		"new_balance", outcome.NewBalance)
	return &outcome, nil
}
