package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/chorenest/chorenest-engine/internal/domain/shared"
	"github.com/chorenest/chorenest-engine/internal/domain/xp"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRANT XP DIRECT COMMAND
// One-time bonuses (new-user starter grant) that bypass credibility pricing
// and the soft cap. Idempotent per user and reason: a repeat attempt fails
// with shared.ErrAlreadyGranted instead of doubling the balance.
// ══════════════════════════════════════════════════════════════════════════════

// GrantXPCommand contains the direct grant.
type GrantXPCommand struct {
	UserID shared.UserID
	Amount int
	Reason string
}

// Validate validates the command.
func (c GrantXPCommand) Validate() error {
	if !c.UserID.IsValid() {
		return shared.ErrInvalidUserID
	}
	if c.Amount <= 0 {
		return shared.ErrInvalidAmount
	}
	if c.Reason == "" {
		return shared.NewDomainError("xp", "GrantXPDirect", shared.ErrEmptyValue, "grant reason is required")
	}
	return nil
}

// GrantXPResult reports the credited grant.
type GrantXPResult struct {
	Amount     int
	NewBalance int
}

// GrantXPHandler handles the GrantXPCommand.
type GrantXPHandler struct {
	deps *Deps
}

// NewGrantXPHandler creates a new GrantXPHandler.
func NewGrantXPHandler(deps *Deps) *GrantXPHandler {
	return &GrantXPHandler{deps: deps}
}

// Handle executes the grant.
func (h *GrantXPHandler) Handle(ctx context.Context, cmd GrantXPCommand) (*GrantXPResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var result *GrantXPResult
	var account *xp.Account
	var events []shared.Event

	err := h.deps.Locks.WithLock(userLockKey(cmd.UserID), func() error {
		var err error
		account, err = h.deps.loadOrCreateAccount(ctx, cmd.UserID)
		if err != nil {
			return err
		}

		newBalance, err := account.GrantDirect(h.deps.XPRules, cmd.Amount, cmd.Reason, h.deps.now())
		if err != nil {
			return err
		}

		if err := h.deps.XPRepo.Save(ctx, account); err != nil {
			return fmt.Errorf("grant_xp: save account: %w", err)
		}

		result = &GrantXPResult{Amount: cmd.Amount, NewBalance: newBalance}
		events = append(events, shared.NewXPGrantedEvent(cmd.UserID.String(), cmd.Amount, cmd.Reason, newBalance))
		return nil
	})
	if err != nil {
		if errors.Is(err, shared.ErrAlreadyGranted) || shared.IsValidation(err) {
			h.deps.log().Warn("direct grant refused",
				"user_id", cmd.UserID, "reason", cmd.Reason, "error", err)
		}
		return nil, err
	}

	h.deps.publish(events...)
	h.deps.updateLeaderboard(ctx, account)
	h.deps.log().Info("xp granted directly",
		"user_id", cmd.UserID,
		"amount", cmd.Amount,
		"reason", cmd.Reason,
		"new_balance", result.NewBalance)
	return result, nil
}
